package httpapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/berboapp/internal/logging"
	"github.com/dmitrijs2005/berboapp/internal/server/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig bundles what NewRouter wires together.
type RouterConfig struct {
	Handlers *Handlers
	Verifier Verifier
	Rules    []Rule
	Limiter  *ratelimit.Limiter
	Logger   logging.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Rules == nil {
		cfg.Rules = DefaultRules
	}
	h := cfg.Handlers

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(keepPeer)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(AuthorizationFilter(cfg.Verifier, cfg.Logger))
	r.Use(AccessPolicy(cfg.Rules, cfg.Logger))

	r.Route("/user", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(ratelimit.Middleware(cfg.Limiter, rateLimitKey, cfg.Logger, tooManyRequests))
			r.Post("/login", h.Login)
			r.Post("/register", h.Register)
			r.Get("/verify/code/{email}/{code}", h.VerifyCode)
			r.Get("/verify/account/{key}", h.VerifyAccount)
			r.Get("/verify/password/{key}", h.VerifyResetURL)
			r.Get("/reset-password/{email}", h.RequestReset)
			r.Post("/reset-password", h.CompleteReset)
			r.Get("/refresh/token", h.RefreshToken)
		})
		r.Get("/image/{fileName}", h.Image)

		r.Get("/profile", h.Profile)
		r.Patch("/update", h.Update)
		r.Patch("/update-password", h.UpdatePassword)
		r.Patch("/update-role/{roleName}", h.UpdateRole)
		r.Patch("/update-settings", h.UpdateSettings)
		r.Patch("/update-mfa", h.UpdateMFA)
		r.Patch("/update-image", h.UpdateImage)
		r.Get("/events", h.Events)
		r.Delete("/delete/{id}", h.DeleteUser)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusNotFound, "There is no mapping for "+r.Method+" request on this url", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusMethodNotAllowed, "There is no mapping for "+r.Method+" request on this url", nil)
	})
	return r
}

type peerKey struct{}

// keepPeer records the connection's remote host before RealIP rewrites
// RemoteAddr from forwarding headers.
func keepPeer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), peerKey{}, host)))
	})
}

func peerIP(r *http.Request) string {
	if host, ok := r.Context().Value(peerKey{}).(string); ok {
		return host
	}
	return requestMeta(r).IPAddress
}

// rateLimitKey buckets by peer address and route pattern, so path parameters
// share one window.
func rateLimitKey(r *http.Request) string {
	route := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			route = p
		}
	}
	return peerIP(r) + "|" + route
}

func tooManyRequests(w http.ResponseWriter, _ *http.Request, _ ratelimit.Result) {
	respond(w, http.StatusTooManyRequests, "Too many requests, please try again later!", nil)
}

func requestLogger(log logging.Logger) func(http.Handler) http.Handler {
	log = log.With("module", "http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info(r.Context(), "request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
