package jwtauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/winestore/internal/domain/identity"
	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrMissingToken = errors.New("jwtauth: bearer token required")
	ErrInvalidToken = errors.New("jwtauth: invalid or expired token")
)

// Claims is the token body: the caller's user id and role.
type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 bearer tokens and turns them into identities.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// FromHeader accepts "Bearer <token>" or a bare token.
func (v *Verifier) FromHeader(header string) (identity.Identity, error) {
	token := strings.TrimSpace(header)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return identity.Identity{}, ErrMissingToken
	}
	return v.Verify(token)
}

func (v *Verifier) Verify(token string) (identity.Identity, error) {
	var claims Claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return identity.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if v.issuer != "" && claims.Issuer != "" && claims.Issuer != v.issuer {
		return identity.Identity{}, fmt.Errorf("%w: unexpected issuer", ErrInvalidToken)
	}
	if claims.UserID == "" {
		return identity.Identity{}, fmt.Errorf("%w: userId claim missing", ErrInvalidToken)
	}
	role := claims.Role
	if role == "" {
		role = identity.RoleUser
	}
	return identity.Identity{UserID: claims.UserID, Role: role}, nil
}

// Sign issues a token for id valid for ttl.
func (v *Verifier) Sign(id identity.Identity, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		UserID: id.UserID,
		Role:   id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
