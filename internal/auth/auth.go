// Package auth verifies bearer tokens issued by the identity service and
// decides which quiz operations a caller may perform.
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/victornm/codexa/internal/errors"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Capability is an operation class guarded by role.
type Capability int

const (
	// CapabilityAuthor covers quiz creation, question authoring and publishing.
	CapabilityAuthor Capability = iota + 1
	// CapabilityParticipate covers registration and submission.
	CapabilityParticipate
)

func (c Capability) String() string {
	switch c {
	case CapabilityAuthor:
		return "author"
	case CapabilityParticipate:
		return "participate"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// Claims mirrors the payload the identity service signs.
type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}

// Can reports whether the caller holds the capability. Admins hold every capability.
func (c *Claims) Can(cp Capability) bool {
	if c == nil || c.UserID <= 0 {
		return false
	}

	switch cp {
	case CapabilityAuthor:
		return c.Role == RoleTeacher || c.Role == RoleAdmin
	case CapabilityParticipate:
		return true
	default:
		return false
	}
}

// ActingAs resolves the user an operation runs for. A zero userID means the caller itself;
// only admins may act on behalf of another user.
func (c *Claims) ActingAs(userID int64) (int64, error) {
	if userID == 0 || userID == c.UserID {
		return c.UserID, nil
	}

	if c.Role == RoleAdmin {
		return userID, nil
	}

	return 0, errors.New(errors.CodePermissionDenied,
		errors.WithMessagef("cannot act on behalf of user %d", userID))
}

type Config struct {
	Secret string
	Issuer string
}

type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(c Config) *Verifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if c.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.Issuer))
	}

	return &Verifier{
		secret: []byte(c.Secret),
		parser: jwt.NewParser(opts...),
	}
}

// Verify parses and validates a raw token.
func (v *Verifier) Verify(token string) (*Claims, error) {
	claims := new(Claims)
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("invalid token"),
			errors.WithCause(err))
	}

	if claims.UserID <= 0 {
		return nil, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("token has no user"))
	}

	return claims, nil
}

// VerifyHeader verifies an Authorization header value. It returns nil claims without error when
// the header is empty.
func (v *Verifier) VerifyHeader(header string) (*Claims, error) {
	if header == "" {
		return nil, nil
	}

	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("malformed authorization header"))
	}

	return v.Verify(token)
}

type claimsKey struct{}

func NewContext(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}

// Authorize checks that the caller attached to ctx holds cp.
func Authorize(ctx context.Context, cp Capability) (*Claims, error) {
	c, ok := FromContext(ctx)
	if !ok {
		return nil, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("authentication required"))
	}

	if !c.Can(cp) {
		return nil, errors.New(errors.CodePermissionDenied,
			errors.WithMessagef("role %q cannot %s", c.Role, cp))
	}

	return c, nil
}
