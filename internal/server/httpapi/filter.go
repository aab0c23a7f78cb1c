package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/berboapp/internal/common"
	"github.com/dmitrijs2005/berboapp/internal/logging"
	"github.com/dmitrijs2005/berboapp/internal/server/auth"
)

// PublicPrefixes are served without a principal.
var PublicPrefixes = []string{
	"/user/verify/",
	"/user/login",
	"/user/register",
	"/user/renew-password",
	"/user/reset-password",
	"/user/refresh/token",
	"/user/image/",
}

func isPublic(path string) bool {
	for _, p := range PublicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

type principalKey struct{}

// PrincipalFrom returns the principal the filter attached to ctx.
func PrincipalFrom(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(auth.Principal)
	return p, ok
}

func withPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// Verifier resolves a bearer token to a principal.
type Verifier interface {
	Verify(token string) (auth.Principal, error)
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get(common.AuthorizationHeader)
	if !strings.HasPrefix(h, common.TokenPrefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(common.TokenPrefix):]), true
}

// AuthorizationFilter attaches the bearer's principal to the request
// context. Invalid tokens fall through without a principal so the access
// policy decides; expired tokens are answered here with 401.
func AuthorizationFilter(v Verifier, log logging.Logger) func(http.Handler) http.Handler {
	log = log.With("module", "auth_filter")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			p, err := verify(v, token)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
			case errors.Is(err, common.ErrTokenInvalidSignature), errors.Is(err, common.ErrTokenInvalidClaim):
				log.Debug(r.Context(), "bearer rejected", "path", r.URL.Path, "error", err)
				next.ServeHTTP(w, r)
			case errors.Is(err, common.ErrTokenExpired):
				respond(w, http.StatusUnauthorized, msgLoginAgain, nil)
			case errors.Is(err, common.ErrBadCredentials),
				errors.Is(err, common.ErrAccountDisabled),
				errors.Is(err, common.ErrAccountLocked):
				_, msg := statusFor(err)
				respond(w, http.StatusBadRequest, msg, nil)
			default:
				log.Error(r.Context(), "bearer verification failed", "path", r.URL.Path, "error", err)
				respond(w, http.StatusInternalServerError, msgInternal, nil)
			}
		})
	}
}

// verify converts a panic inside the verifier into an error.
func verify(v Verifier, token string) (p auth.Principal, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: panic: %v", common.ErrorInternal, rec)
		}
	}()
	return v.Verify(token)
}
