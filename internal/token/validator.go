package token

import (
	"errors"
	"strings"
	"time"
)

// Validation failure reasons reported by the Validator. These are safe to
// return to callers; they never reveal signing material.
const (
	ReasonExpired   = "token expired"
	ReasonSignature = "signature invalid"
	ReasonMalformed = "token malformed"
	ReasonWrongType = "not an access token"
)

// Identity describes the authenticated principal carried by a valid
// access token.
type Identity struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HasRole reports whether the identity carries the given role.
func (id *Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Result is the outcome of validating an access token. Invalid is the normal
// outcome for bad input, not an error: Reason says why, Identity is nil.
type Result struct {
	Valid    bool      `json:"valid"`
	Identity *Identity `json:"identity,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

// Validator verifies access tokens locally against the shared secret. No
// network calls are involved, so validation cannot fail transiently: every
// token is either valid or invalid with a reason.
type Validator struct {
	codec *Codec
}

// NewValidator creates a validator backed by the given codec.
func NewValidator(codec *Codec) *Validator {
	return &Validator{codec: codec}
}

// Validate checks the token's signature, expiry, and type, and extracts the
// identity. Surrounding whitespace is tolerated; tokens pass through JSON
// fields and header splitting that can leave stray padding. It treats a
// boundary-exact expiry (exp == now) as valid.
func (v *Validator) Validate(tokenString string) Result {
	claims, err := v.codec.ParseAccessToken(strings.TrimSpace(tokenString))
	if err != nil {
		return Result{Valid: false, Reason: reasonFor(err)}
	}

	identity := &Identity{
		UserID:    claims.Subject,
		Username:  claims.PreferredUsername,
		Email:     claims.Email,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
	}
	if claims.Role != "" {
		identity.Roles = []string{claims.Role}
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}

	return Result{Valid: true, Identity: identity}
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, ErrSignatureInvalid):
		return ReasonSignature
	case errors.Is(err, ErrWrongTokenType):
		return ReasonWrongType
	default:
		return ReasonMalformed
	}
}
