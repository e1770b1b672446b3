package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/openshelf/openshelf/internal/authz"
	"github.com/openshelf/openshelf/internal/identity"
)

// Domain errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims is the payload of an issued bearer token.
//
// Permissions is a snapshot of the resolved set at issuance time, in
// "Resource:Action" form. It exists so edge consumers can cheaply hide UI
// affordances; the authorization gate never reads it, because grants can
// change while the token is still valid and there is no revocation short
// of expiry.
type Claims struct {
	Email       string   `json:"email,omitempty"`
	Name        string   `json:"name,omitempty"`
	GivenName   string   `json:"given_name,omitempty"`
	FamilyName  string   `json:"family_name,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"perms,omitempty"`
	jwt.RegisteredClaims
}

// Issuer mints and validates HS256 bearer tokens. Tokens are stateless and
// unrevocable before expiry; there is no server-side session store.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewIssuer creates a new token issuer.
func NewIssuer(secret []byte, issuer string, ttl time.Duration) (*Issuer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("token secret must be at least 32 bytes, got %d", len(secret))
	}
	return &Issuer{
		secret: secret,
		issuer: issuer,
		ttl:    ttl,
	}, nil
}

// Issue mints a token for the user holding the given roles. perms may be
// nil; when present it is embedded as the advisory permission snapshot.
func (i *Issuer) Issue(user *identity.User, roles []*authz.Role, perms authz.PermissionSet) (string, error) {
	now := time.Now()

	roleNames := make([]string, 0, len(roles))
	for _, r := range roles {
		roleNames = append(roleNames, r.Name)
	}

	claims := Claims{
		Email:      user.Email,
		Name:       user.Profile.FullName,
		GivenName:  user.Profile.GivenName,
		FamilyName: user.Profile.FamilyName,
		Roles:      roleNames,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	if perms != nil {
		claims.Permissions = perms.Strings()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse validates signature and expiry and returns the claims.
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return i.secret, nil
		},
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}
