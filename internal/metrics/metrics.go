// Package metrics exposes Prometheus instrumentation for sign-in attempts,
// provider calls and HTTP traffic.
package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// Sign-in results
const (
	ResultSuccess           = "success"
	ResultExchangeFailed    = "exchange_failed"
	ResultUserFetchFailed   = "user_fetch_failed"
	ResultNoBusinessAccount = "no_business_account"
	ResultInvalidState      = "invalid_state"
	ResultProviderDenied    = "provider_denied"
	ResultError             = "error"
)

// Recorder holds the registered collectors. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	gatherer prometheus.Gatherer

	signInAttempts   *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	providerErrors   *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. A nil reg gets a
// fresh registry, which keeps tests independent of the global one.
func New(reg *prometheus.Registry) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	r := &Recorder{
		gatherer: reg,
		signInAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signin_attempts_total",
			Help: "Sign-in attempts by flow and result",
		}, []string{"flow", "result"}),
		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Latency of calls to the Instagram and Graph APIs",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provider_request_errors_total",
			Help: "Provider calls that failed at the transport level or returned an error object",
		}, []string{"endpoint"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency of HTTP requests served",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	for _, c := range []prometheus.Collector{r.signInAttempts, r.providerDuration, r.providerErrors, r.httpRequests, r.httpDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Handler serves the registered metrics.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// SignIn counts one completed sign-in attempt.
func (r *Recorder) SignIn(flow, result string) {
	if r == nil {
		return
	}
	r.signInAttempts.WithLabelValues(flow, result).Inc()
}

// ProviderCall records the latency of one provider call.
func (r *Recorder) ProviderCall(path string, d time.Duration, failed bool) {
	if r == nil {
		return
	}
	endpoint := NormalizePath(path)
	r.providerDuration.WithLabelValues(endpoint).Observe(d.Seconds())
	if failed {
		r.providerErrors.WithLabelValues(endpoint).Inc()
	}
}

// UnmatchedRoute labels requests no chi route matched.
const UnmatchedRoute = "unmatched"

// Middleware instruments served HTTP requests. It must run inside a chi router
// so that requests are labelled by route pattern rather than raw path.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		method := strings.ToUpper(req.Method)
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			path := routePattern(req)
			r.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			r.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		}()

		next.ServeHTTP(rec, req)
	})
}

// routePattern reads the matched pattern once chi has routed req.
func routePattern(req *http.Request) string {
	rctx := chi.RouteContext(req.Context())
	if rctx == nil {
		return UnmatchedRoute
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return UnmatchedRoute
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

var (
	hexSegmentRE   = regexp.MustCompile(`^[0-9a-fA-F]{16,}$`)
	tokenSegmentRE = regexp.MustCompile(`^[A-Za-z0-9_-]{24,}$`)
)

// NormalizePath replaces id-like path segments with ":param". It labels
// outbound provider calls, whose paths this service builds itself.
func NormalizePath(p string) string {
	clean := strings.SplitN(p, "?", 2)[0]
	var out []string
	for _, seg := range strings.Split(clean, "/") {
		if seg == "" {
			continue
		}
		if isDynamicSegment(seg) {
			out = append(out, ":param")
		} else {
			out = append(out, seg)
		}
	}
	if len(out) == 0 {
		return "/"
	}
	return "/" + strings.Join(out, "/")
}

func isDynamicSegment(seg string) bool {
	if len(seg) > 48 {
		return true
	}
	if hexSegmentRE.MatchString(seg) || tokenSegmentRE.MatchString(seg) {
		return true
	}
	if _, err := strconv.ParseUint(seg, 10, 64); err == nil {
		return true
	}
	return false
}

// Module provides the metrics recorder
var Module = fx.Module("metrics",
	fx.Provide(func() (*Recorder, error) {
		return New(prometheus.NewRegistry())
	}),
)
