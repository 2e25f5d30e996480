package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fly-pay/corporate-banking-backend/internal/domain"
)

// Typed parse failures. Callers branch with errors.Is to distinguish an
// expired token from a forged or garbled one.
var (
	ErrTokenExpired     = errors.New("token expired")
	ErrSignatureInvalid = errors.New("token signature invalid")
	ErrTokenMalformed   = errors.New("token malformed")
	ErrWrongTokenType   = errors.New("wrong token type")
)

// refreshTokenType is the value of the "type" claim that marks refresh
// tokens. Access tokens carry no "type" claim.
const refreshTokenType = "refresh"

// AccessClaims is the claim set carried by access tokens.
type AccessClaims struct {
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	Role              string `json:"role"`
	FirstName         string `json:"firstName"`
	LastName          string `json:"lastName"`
	TokenType         string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims is the claim set carried by refresh tokens. The "type" claim
// discriminates refresh tokens from access tokens; its absence means the
// token is not a refresh token.
type RefreshClaims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// Codec signs and parses the two token kinds with a shared HMAC secret.
// Both sides of the trust boundary (issuer and validator) hold the same
// Codec configuration.
type Codec struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewCodec creates a codec. accessTTL and refreshTTL bound the lifetime of
// newly signed tokens; parsing accepts any token signed with the secret.
func NewCodec(secret, issuer string, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// AccessTTL returns the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// SignAccessToken creates a signed access token for the user. The subject is
// the user ID and preferred_username mirrors the email.
func (c *Codec) SignAccessToken(user *domain.User) (string, error) {
	now := time.Now().UTC()
	claims := &AccessClaims{
		Email:             user.Email,
		PreferredUsername: user.Email,
		Role:              string(user.Role),
		FirstName:         user.FirstName,
		LastName:          user.LastName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
			Issuer:    c.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	return signed, nil
}

// SignRefreshToken creates a signed refresh token carrying only the user ID
// and the refresh type marker.
func (c *Codec) SignRefreshToken(userID string) (string, error) {
	now := time.Now().UTC()
	claims := &RefreshClaims{
		TokenType: refreshTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refreshTTL)),
			Issuer:    c.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}

	return signed, nil
}

// ParseAccessToken verifies the signature and expiry of an access token and
// returns its claims. Refresh tokens are rejected with ErrWrongTokenType.
func (c *Codec) ParseAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(tokenString, claims); err != nil {
		return nil, err
	}

	if claims.TokenType == refreshTokenType {
		return nil, fmt.Errorf("refresh token used as access token: %w", ErrWrongTokenType)
	}

	return claims, nil
}

// ParseRefreshToken verifies the signature and expiry of a refresh token and
// returns its claims. Tokens without the refresh type marker are rejected
// with ErrWrongTokenType.
func (c *Codec) ParseRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.parse(tokenString, claims); err != nil {
		return nil, err
	}

	if claims.TokenType != refreshTokenType {
		return nil, fmt.Errorf("access token used as refresh token: %w", ErrWrongTokenType)
	}

	return claims, nil
}

func (c *Codec) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return classifyParseError(err)
	}

	if !token.Valid {
		return ErrTokenMalformed
	}

	return nil
}

// classifyParseError folds the jwt library's error set into the codec's
// typed failures. Expiry takes precedence so an expired token is always
// reported as expired rather than generically invalid.
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}
