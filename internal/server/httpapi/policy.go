package httpapi

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/berboapp/internal/logging"
	"github.com/dmitrijs2005/berboapp/internal/server/models"
)

// Rule requires Authority for requests whose method and path prefix match.
type Rule struct {
	Method    string
	Prefix    string
	Authority string
}

// DefaultRules guard role changes and the destructive routes.
var DefaultRules = []Rule{
	{Method: http.MethodPatch, Prefix: "/user/update-role/", Authority: models.PermissionUpdateUser},
	{Method: http.MethodDelete, Prefix: "/user/delete/", Authority: models.PermissionDeleteUser},
	{Method: http.MethodDelete, Prefix: "/customer/delete/", Authority: models.PermissionDeleteCustomer},
}

const (
	reasonUnauthenticated = "You need to login to access this page!!!"
	devUnauthenticated    = "NO AUTH TO THE USER"
	reasonForbidden       = "You do not have enough permissions to view this page!!!"
	devForbidden          = "NO ACCESS TO THE USER"
)

// AccessPolicy rejects non-public requests that have no principal with 401
// and requests lacking a rule's authority with 403.
func AccessPolicy(rules []Rule, log logging.Logger) func(http.Handler) http.Handler {
	log = log.With("module", "access_policy")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeDenied(w, http.StatusUnauthorized, reasonUnauthenticated, devUnauthenticated)
				return
			}
			for _, rule := range rules {
				if rule.Method == r.Method && strings.HasPrefix(r.URL.Path, rule.Prefix) && !p.Has(rule.Authority) {
					log.Info(r.Context(), "access denied", "user_id", p.ID, "path", r.URL.Path, "authority", rule.Authority)
					writeDenied(w, http.StatusForbidden, reasonForbidden, devForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeDenied(w http.ResponseWriter, code int, reason, dev string) {
	resp := newResponse(code, "")
	resp.Reason = reason
	resp.DeveloperMessage = dev
	writeJSON(w, resp)
}
