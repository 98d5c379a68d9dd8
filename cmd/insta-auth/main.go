package main

import (
	"os"
	"runtime/debug"

	"github.com/brizzai/insta-auth/internal/auth"
	"github.com/brizzai/insta-auth/internal/config"
	"github.com/brizzai/insta-auth/internal/instagram"
	"github.com/brizzai/insta-auth/internal/logger"
	"github.com/brizzai/insta-auth/internal/metrics"
	"github.com/brizzai/insta-auth/internal/requester"
	"github.com/brizzai/insta-auth/internal/server"
	"github.com/brizzai/insta-auth/internal/webhook"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func main() {
	Execute()
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "insta-auth",
	Short: "Instagram sign-in service",
	Long: `insta-auth signs users in with their Instagram Professional account, through
either the Instagram Basic Display flow or Facebook Login for Business, and
serves their profile and media behind a signed session cookie.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets redacted",
	RunE:  runConfig,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		pterm.Info.Println(config.GetVersionInfo())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	config.InitFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(serveCmd, configCmd, versionCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return err
	}
	pterm.Println(string(out))
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	defer func() {
		if r := recover(); r != nil {
			pterm.Error.Printf("\nCaught panic: %v\n", r)
			pterm.Error.Printf("%s\n", debug.Stack())
			os.Exit(2)
		}
	}()

	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		pterm.Error.Println("Configuration is incomplete, the service cannot start")
		return err
	}

	pterm.Info.Printfln("Starting %s with the %s flow on port %d",
		config.GetVersionInfo(),
		pterm.LightGreen(cfg.OAuth.Flow),
		cfg.Server.Port)

	app := fx.New(
		fx.Supply(cfg),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		logger.Module,
		metrics.Module,
		requester.Module,
		auth.Module,
		instagram.Module,
		webhook.Module,
		server.Module,
	)
	if err := app.Err(); err != nil {
		return err
	}

	app.Run()
	return nil
}
