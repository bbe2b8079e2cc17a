package guard

import "context"

// Authorizer decides whether the caller in ctx may run snapshot operations.
type Authorizer interface {
	Authorize(ctx context.Context) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context) bool

// Authorize implements Authorizer.
func (f AuthorizerFunc) Authorize(ctx context.Context) bool { return f(ctx) }

// RequireCapability authorizes callers whose context claims grant capability.
func RequireCapability(capability string) Authorizer {
	return AuthorizerFunc(func(ctx context.Context) bool {
		return ClaimsFrom(ctx).Can(capability)
	})
}

// RequireAdmin authorizes callers holding CapabilityAdmin.
func RequireAdmin() Authorizer {
	return RequireCapability(CapabilityAdmin)
}

// LocalOperator authorizes every caller. It is used by the CLI, where the
// operator already has direct access to the store.
func LocalOperator() Authorizer {
	return AuthorizerFunc(func(context.Context) bool { return true })
}

// Deny authorizes no one.
func Deny() Authorizer {
	return AuthorizerFunc(func(context.Context) bool { return false })
}
