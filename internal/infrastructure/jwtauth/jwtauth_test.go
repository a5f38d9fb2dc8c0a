package jwtauth

import (
	"testing"
	"time"

	"github.com/Zhima-Mochi/winestore/internal/domain/identity"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	t.Parallel()
	v := NewVerifier("s3cret", "winestore")

	token, err := v.Sign(identity.Identity{UserID: "u1", Role: identity.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	id, err := v.FromHeader("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, identity.Identity{UserID: "u1", Role: identity.RoleAdmin}, id)

	id, err = v.FromHeader("bearer  " + token)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)

	id, err = v.FromHeader(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
}

func TestMissingRoleDefaultsToUser(t *testing.T) {
	t.Parallel()
	v := NewVerifier("s3cret", "")

	token, err := v.Sign(identity.Identity{UserID: "u2"}, time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, identity.RoleUser, id.Role)
}

func TestRejectedTokens(t *testing.T) {
	t.Parallel()
	v := NewVerifier("s3cret", "winestore")

	_, err := v.FromHeader("")
	assert.ErrorIs(t, err, ErrMissingToken)
	_, err = v.FromHeader("Bearer ")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = v.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	forged, err := NewVerifier("other", "winestore").Sign(identity.Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	foreign, err := NewVerifier("s3cret", "someone-else").Sign(identity.Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	anonymous, err := v.Sign(identity.Identity{}, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(anonymous)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.Verify(none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredToken(t *testing.T) {
	t.Parallel()
	v := NewVerifier("s3cret", "winestore")
	v.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := v.Sign(identity.Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
