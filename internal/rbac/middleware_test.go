package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMiddleware(t *testing.T) Middleware {
	t.Helper()
	p, err := DefaultPolicy()
	require.NoError(t, err)
	return Middleware{Access: p}
}

func TestRequireRejectsMissingRoles(t *testing.T) {
	m := newTestMiddleware(t)
	called := false
	h := m.Require(PrivilegeAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	for _, roles := range []string{"", "(null)", "user"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if roles != "" {
			req.Header.Set(HeaderRoles, roles)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code, roles)
	}
	assert.False(t, called)
}

func TestRequireUsesRejectHook(t *testing.T) {
	m := newTestMiddleware(t)
	var got int
	m.Reject = func(w http.ResponseWriter, r *http.Request, status int) {
		got = status
		w.WriteHeader(status)
	}
	h := m.Require("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, got)
}

func TestRequireAndIdentifyPassThrough(t *testing.T) {
	m := newTestMiddleware(t)
	var id Identity
	var ok bool
	h := m.Require(PrivilegeAdmin)(m.Identify(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok = IdentityFromContext(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRoles, "admin")
	req.Header.Set(HeaderUserID, "5")
	req.Header.Set(HeaderFullName, "Jane")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.True(t, ok)
	assert.Equal(t, Identity{UID: 5, Username: "Jane"}, id)
}

func TestIdentifyDefaults(t *testing.T) {
	m := Middleware{FallbackName: "fallback"}
	var id Identity
	h := m.Identify(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ = IdentityFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, Identity{UID: 0, Username: "fallback"}, id)
}

func TestIdentifyRejectsNonNumericUserID(t *testing.T) {
	m := Middleware{}
	called := false
	h := m.Identify(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "abc")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.False(t, called)
}
