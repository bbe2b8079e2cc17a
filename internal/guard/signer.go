package guard

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/thoreinstein/siteconf/internal/errors"
)

// MinSecretLen is the minimum HS256 secret length in bytes.
const MinSecretLen = 32

// Defaults for token lifetimes.
const (
	DefaultTokenTTL      = 15 * time.Minute
	DefaultCredentialTTL = 24 * time.Hour
)

const issuer = "siteconf"

// Sentinel errors.
var (
	// ErrUnauthorized indicates the caller lacks the administrative capability.
	ErrUnauthorized = errors.New("caller is not authorized")

	// ErrReplayToken indicates a missing, expired, reused or mismatched action token.
	ErrReplayToken = errors.New("action token is invalid or already used")

	// ErrInvalidCredential indicates a credential that failed verification.
	ErrInvalidCredential = errors.New("credential is invalid")

	// ErrSecretTooShort indicates a signing secret below MinSecretLen.
	ErrSecretTooShort = errors.Newf("secret must be at least %d bytes", MinSecretLen)
)

// TokenIssuer issues single-use action tokens.
type TokenIssuer interface {
	IssueToken(action string) (string, error)
}

// TokenVerifier verifies and consumes action tokens.
type TokenVerifier interface {
	VerifyToken(token, action string) error
}

// Signer issues and verifies HS256 JWTs: action tokens that are bound to one
// action and accepted once, and operator credentials that carry capabilities.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	newID  func() string

	mu   sync.Mutex
	used map[string]time.Time // jti → expiry
}

// SignerOption configures a Signer.
type SignerOption func(*Signer)

// WithTokenTTL sets the lifetime of action tokens.
func WithTokenTTL(d time.Duration) SignerOption {
	return func(s *Signer) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSigner returns a Signer for secret.
func NewSigner(secret []byte, opts ...SignerOption) (*Signer, error) {
	if len(secret) < MinSecretLen {
		return nil, ErrSecretTooShort
	}
	s := &Signer{
		secret: append([]byte(nil), secret...),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
		newID:  func() string { return uuid.Must(uuid.NewV7()).String() },
		used:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GenerateSecret returns a random hex-encoded secret suitable for NewSigner.
func GenerateSecret() (string, error) {
	b := make([]byte, MinSecretLen)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "reading random bytes")
	}
	return hex.EncodeToString(b), nil
}

// IssueToken returns a single-use token for action.
func (s *Signer) IssueToken(action string) (string, error) {
	if action == "" {
		return "", errors.New("action is required")
	}
	claims := s.claims(audienceAction, "", s.ttl)
	claims.Action = action
	return s.sign(claims)
}

// VerifyToken accepts token once for action. Tokens for a different action
// are rejected without being consumed.
func (s *Signer) VerifyToken(token, action string) error {
	if token == "" {
		return errors.Wrap(ErrReplayToken, "missing token")
	}
	claims, err := s.parse(token, audienceAction)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "verifying action token"), ErrReplayToken)
	}
	if claims.Action != action {
		return errors.Wrapf(ErrReplayToken, "token issued for %q, not %q", claims.Action, action)
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return errors.Wrap(ErrReplayToken, "token lacks id or expiry")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, exp := range s.used {
		if now.After(exp) {
			delete(s.used, id)
		}
	}
	if _, seen := s.used[claims.ID]; seen {
		return errors.Wrap(ErrReplayToken, "token already used")
	}
	s.used[claims.ID] = claims.ExpiresAt.Time
	return nil
}

// IssueCredential returns an operator credential for subject granting
// capabilities, valid for ttl (DefaultCredentialTTL when zero).
func (s *Signer) IssueCredential(subject string, ttl time.Duration, capabilities ...string) (string, error) {
	if subject == "" {
		return "", errors.New("subject is required")
	}
	if ttl <= 0 {
		ttl = DefaultCredentialTTL
	}
	claims := s.claims(audienceCredential, subject, ttl)
	claims.Capabilities = capabilities
	return s.sign(claims)
}

// Authenticate verifies an operator credential and returns its claims.
func (s *Signer) Authenticate(credential string) (*Claims, error) {
	claims, err := s.parse(credential, audienceCredential)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "verifying credential"), ErrInvalidCredential)
	}
	return claims, nil
}

func (s *Signer) claims(audience, subject string, ttl time.Duration) *Claims {
	now := s.now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			ID:        s.newID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

func (s *Signer) sign(claims *Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return signed, nil
}

// parse pins HS256 so a token cannot choose its own algorithm.
func (s *Signer) parse(token, audience string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{},
		func(t *jwt.Token) (any, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, errors.Newf("unexpected signing method %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithAudience(audience),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
