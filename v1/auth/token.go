package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token validation failures. They are kept distinct so callers and operators can tell them apart.
var (
	ErrTokenMalformed       = errors.New("token malformed")
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenContentMismatch = errors.New("token not valid for requested content")
)

var signingMethod = jwt.SigningMethodHS256

// ContentClaims are the claims of a content access token. A token grants access
// to exactly one (content type, slug) pair.
type ContentClaims struct {
	ContentType string `json:"type"`
	Slug        string `json:"slug"`
	Email       string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenConfig configures both the issuer and the validator
type TokenConfig struct {
	Secret   []byte
	Issuer   string
	Validity time.Duration
	// Now overrides the clock; nil means time.Now
	Now func() time.Time
}

func (c TokenConfig) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// TokenIssuer mints signed content tokens
type TokenIssuer struct {
	config TokenConfig
}

// NewTokenIssuer creates an issuer. The secret must not be empty and the validity must be positive.
func NewTokenIssuer(config TokenConfig) (*TokenIssuer, error) {
	if len(config.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if config.Validity <= 0 {
		return nil, fmt.Errorf("token validity must be positive, got %s", config.Validity)
	}
	return &TokenIssuer{config: config}, nil
}

// Issue signs a token for (contentType, slug). email is embedded only when non-empty.
func (i *TokenIssuer) Issue(contentType, slug, email string) (string, *ContentClaims, error) {
	// JWT dates have second precision; truncating keeps exp exactly iat + validity
	issuedAt := i.config.now().UTC().Truncate(time.Second)

	claims := &ContentClaims{
		ContentType: contentType,
		Slug:        slug,
		Email:       email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(i.config.Validity)),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(i.config.Secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// TokenValidator checks tokens presented for a content fetch
type TokenValidator struct {
	config TokenConfig
	parser *jwt.Parser
}

// NewTokenValidator creates a validator sharing the issuer's secret
func NewTokenValidator(config TokenConfig) (*TokenValidator, error) {
	if len(config.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(config.now),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}

	return &TokenValidator{config: config, parser: jwt.NewParser(opts...)}, nil
}

// Validate verifies the signature and expiry of raw and that it was issued for
// (contentType, slug). The token is expired once now >= exp.
func (v *TokenValidator) Validate(raw, contentType, slug string) (*ContentClaims, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrTokenMalformed)
	}

	claims := &ContentClaims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return v.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	if claims.ContentType == "" || claims.Slug == "" {
		return nil, fmt.Errorf("%w: missing content claims", ErrTokenMalformed)
	}
	if claims.ContentType != contentType || claims.Slug != slug {
		return nil, ErrTokenContentMismatch
	}
	return claims, nil
}
