package rbac

import (
	"log/slog"
	"net/http"
)

// AccessModel decides whether roles hold a privilege.
type AccessModel interface {
	HavePrivilege(privilege string, roles []string) bool
}

// Middleware enforces gateway roles and injects the caller identity.
type Middleware struct {
	Access       AccessModel
	Logger       *slog.Logger
	FallbackName string
	// Reject renders the response for a refused request. http.Error is used
	// when nil.
	Reject func(w http.ResponseWriter, r *http.Request, status int)
}

// Require refuses the request with 403 unless the X-Roles header grants
// privilege. An empty privilege means PrivilegeUser.
func (m Middleware) Require(privilege string) func(http.Handler) http.Handler {
	if privilege == "" {
		privilege = PrivilegeUser
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roles := ParseRoles(r.Header.Get(HeaderRoles))
			if m.Access == nil || !m.Access.HavePrivilege(privilege, roles) {
				m.logger().Warn("rbac forbidden",
					slog.String("path", r.URL.Path),
					slog.String("privilege", privilege),
					slog.Any("roles", roles))
				m.reject(w, r, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Identify stores the caller identity in the request context. A malformed
// X-User-Id is a client error.
func (m Middleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := IdentityFromRequest(r, m.FallbackName)
		if err != nil {
			m.logger().Error("rbac identity", slog.String("path", r.URL.Path), slog.Any("error", err))
			m.reject(w, r, http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
	})
}

func (m Middleware) reject(w http.ResponseWriter, r *http.Request, status int) {
	if m.Reject != nil {
		m.Reject(w, r, status)
		return
	}
	http.Error(w, http.StatusText(status), status)
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}
