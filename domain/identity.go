// Package domain contains core concepts of the session service.
// No runtime, network, or UI logic should be added here.
package domain

// IdentityKind discriminates how a connection's identity was established.
type IdentityKind int

const (
	// KindAuthenticated means the user identifier was resolved from a valid credential token.
	KindAuthenticated IdentityKind = iota
	// KindAnonymous means resolution failed or no token was supplied;
	// the connection identifier stands in as a pseudo identity.
	KindAnonymous
)

// Identity is the binding between a live connection and a user.
// It is a tagged variant: the UserID of an anonymous identity is
// derived from the connection identifier, never from a credential.
type Identity struct {
	Kind   IdentityKind
	UserID string
}

func Authenticated(userID string) Identity {
	return Identity{Kind: KindAuthenticated, UserID: userID}
}

func Anonymous(connID string) Identity {
	return Identity{Kind: KindAnonymous, UserID: connID}
}

// IsAuthenticated reports whether this identity may own a presence record.
func (i Identity) IsAuthenticated() bool {
	return i.Kind == KindAuthenticated
}
