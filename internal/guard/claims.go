package guard

import (
	"context"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// CapabilityAdmin is the capability required for every snapshot operation.
const CapabilityAdmin = "manage_options"

// Audiences separate operator credentials from single-use action tokens so
// one can never be presented as the other.
const (
	audienceCredential = "siteconf:credential"
	audienceAction     = "siteconf:action"
)

// Claims is the JWT payload of both credentials and action tokens.
type Claims struct {
	jwt.RegisteredClaims
	Action       string   `json:"act,omitempty"`
	Capabilities []string `json:"caps,omitempty"`
}

// Can reports whether the claims grant capability.
func (c *Claims) Can(capability string) bool {
	return c != nil && slices.Contains(c.Capabilities, capability)
}

type claimsKey struct{}

// WithClaims returns a context carrying the authenticated caller.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom returns the authenticated caller, or nil.
func ClaimsFrom(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}
