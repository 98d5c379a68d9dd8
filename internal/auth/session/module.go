package session

import (
	"github.com/brizzai/insta-auth/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("session",
	fx.Provide(func(cfg *config.Config) (*Codec, error) {
		return NewCodec(&cfg.Session)
	}),
)
