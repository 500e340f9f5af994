package auth

import (
	"github.com/workgate/workgate/internal/session"
)

// Method identifies how a request was authenticated.
type Method string

const (
	// MethodBearer means the request carried a valid Authorization header.
	MethodBearer Method = "bearer"

	// MethodCookie means the request carried a valid session cookie.
	MethodCookie Method = "cookie"

	// MethodAnonymous means the request was admitted without credentials by
	// the optional resolver variant.
	MethodAnonymous Method = "anonymous"
)

// Principal is the resolved identity threaded through the call chain after
// successful authentication. It is an explicit parameter, never attached to
// shared request state.
type Principal struct {
	Session *session.Session
	Method  Method
}

// SessionID returns the id of the backing session, or "" for anonymous
// principals.
func (p *Principal) SessionID() string {
	if p == nil || p.Session == nil {
		return ""
	}
	return p.Session.ID
}

// UserEmail returns the resolved identity, or "" for anonymous principals.
func (p *Principal) UserEmail() string {
	if p == nil || p.Session == nil {
		return ""
	}
	return p.Session.UserEmail
}

// Anonymous reports whether this principal carries no authenticated session.
func (p *Principal) Anonymous() bool {
	return p == nil || p.Session == nil
}
