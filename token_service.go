package govern

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-govern/middleware/jwtware"
	"github.com/goliatone/go-router"
)

// OperatorRole is the access tier of an API caller.
type OperatorRole string

const (
	RoleViewer   OperatorRole = "viewer"
	RoleOperator OperatorRole = "operator"
	RoleAdmin    OperatorRole = "admin"
)

var (
	ErrTokenExpired = errors.New("authentication token expired", errors.CategoryAuth).
			WithTextCode("TOKEN_EXPIRED").
			WithCode(errors.CodeUnauthorized)

	ErrTokenMalformed = errors.New("authentication token malformed", errors.CategoryAuth).
			WithTextCode("TOKEN_MALFORMED").
			WithCode(errors.CodeUnauthorized)
)

// IsValid reports whether the role is one of the predefined tiers.
func (r OperatorRole) IsValid() bool {
	switch r {
	case RoleViewer, RoleOperator, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsAtLeast reports whether this role meets the minimum required tier.
func (r OperatorRole) IsAtLeast(minRole OperatorRole) bool {
	hierarchy := map[OperatorRole]int{
		RoleViewer:   0,
		RoleOperator: 1,
		RoleAdmin:    2,
	}

	current, ok := hierarchy[r]
	if !ok {
		return false
	}

	min, ok := hierarchy[minRole]
	if !ok {
		return false
	}

	return current >= min
}

// ParseOperatorRole safely parses a string into an OperatorRole.
func ParseOperatorRole(roleStr string) (OperatorRole, bool) {
	role := OperatorRole(roleStr)
	return role, role.IsValid()
}

// OperatorClaims are the JWT claims minted for API callers.
type OperatorClaims struct {
	jwt.RegisteredClaims
	OperatorRole string `json:"role,omitempty"`
}

var _ jwtware.CallerClaims = (*OperatorClaims)(nil)

func (c *OperatorClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

func (c *OperatorClaims) Role() string {
	return c.OperatorRole
}

func (c *OperatorClaims) HasRole(role string) bool {
	return c.OperatorRole == role
}

func (c *OperatorClaims) IsAtLeast(minRole string) bool {
	return OperatorRole(c.OperatorRole).IsAtLeast(OperatorRole(minRole))
}

// TokenService mints and validates the HS256 tokens that guard the
// provisioning API.
type TokenService struct {
	signingKey      []byte
	tokenExpiration int
	issuer          string
	audience        jwt.ClaimStrings
	logger          Logger
}

var _ jwtware.TokenValidator = (*TokenService)(nil)

// NewTokenService creates a TokenService. tokenExpiration is in hours.
func NewTokenService(signingKey []byte, tokenExpiration int, issuer string, audience jwt.ClaimStrings, logger Logger) *TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenService{
		signingKey:      signingKey,
		tokenExpiration: tokenExpiration,
		issuer:          issuer,
		audience:        audience,
		logger:          logger,
	}
}

// Generate creates a signed token for the given caller subject and role.
func (ts *TokenService) Generate(subject string, role OperatorRole) (string, error) {
	now := time.Now()
	claims := &OperatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   subject,
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ts.tokenExpiration) * time.Hour)),
		},
		OperatorRole: string(role),
	}

	return ts.SignClaims(claims)
}

// SignClaims signs arbitrary claims using the configured signing key.
func (ts *TokenService) SignClaims(claims *OperatorClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}

// Validate parses and validates a token string, returning structured claims.
func (ts *TokenService) Validate(tokenString string) (jwtware.CallerClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(*OperatorClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService validate could not decode claims")
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// ProtectedRoute returns middleware that rejects requests without a valid
// token of at least minRole.
func (ts *TokenService) ProtectedRoute(minRole OperatorRole, errorHandler router.ErrorHandler) router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		ErrorHandler:   errorHandler,
		TokenValidator: ts,
		SigningKey: jwtware.SigningKey{
			Key:    ts.signingKey,
			JWTAlg: jwt.SigningMethodHS256.Alg(),
		},
		MinimumRole: string(minRole),
	})
}
