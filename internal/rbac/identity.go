package rbac

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Gateway headers.
const (
	HeaderRoles    = "X-Roles"
	HeaderUserID   = "X-User-Id"
	HeaderFullName = "X-Full-Name"
)

// DefaultFullName is used when the gateway omits X-Full-Name.
const DefaultFullName = "brabemi"

// ErrBadUserID is returned when X-User-Id is not an integer.
var ErrBadUserID = errors.New("rbac: malformed user id header")

type identityContextKey struct{}

// ContextWithIdentity stores the caller identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the identity stored by Identify.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

// IdentityFromRequest reads the caller identity from the gateway headers.
func IdentityFromRequest(r *http.Request, fallbackName string) (Identity, error) {
	rawID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if rawID == "" {
		rawID = "0"
	}
	uid, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %q", ErrBadUserID, rawID)
	}
	name := r.Header.Get(HeaderFullName)
	if name == "" {
		name = fallbackName
		if name == "" {
			name = DefaultFullName
		}
	}
	return Identity{UID: uid, Username: DecodeFullName(name)}, nil
}

// DecodeFullName repairs names the gateway forwarded with the wrong charset.
// UTF-8 that was read as latin-1 and re-encoded is turned back into the
// original text; raw latin-1 bytes are decoded as latin-1.
func DecodeFullName(raw string) string {
	if !utf8.ValidString(raw) {
		decoded, err := charmap.ISO8859_1.NewDecoder().String(raw)
		if err != nil {
			return strings.ToValidUTF8(raw, "")
		}
		return decoded
	}
	encoded, err := charmap.ISO8859_1.NewEncoder().String(raw)
	if err != nil || encoded == raw || !utf8.ValidString(encoded) {
		return raw
	}
	return encoded
}
