package jwt

import (
	"testing"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateParse(t *testing.T) {
	tok, err := Generate("s3cret", "u1", "t1", "admin", "dte-sync", 5)
	require.NoError(t, err)

	claims, err := Parse("s3cret", tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "t1", claims.TenantID)
	assert.Equal(t, "admin", claims.Role)

	_, err = Parse("otra", tok)
	assert.Error(t, err)
}

func TestParse_SinTenant(t *testing.T) {
	tok, err := Generate("s3cret", "u1", "", "admin", "dte-sync", 5)
	require.NoError(t, err)
	_, err = Parse("s3cret", tok)
	assert.Error(t, err)
}

func TestParse_Expirado(t *testing.T) {
	tok, err := Generate("s3cret", "u1", "t1", "admin", "dte-sync", -1)
	require.NoError(t, err)
	_, err = Parse("s3cret", tok)
	assert.Error(t, err)
}

func TestParse_SoloHS256(t *testing.T) {
	tok, err := gojwt.NewWithClaims(gojwt.SigningMethodHS512, Claims{UserID: "u1", TenantID: "t1"}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = Parse("s3cret", tok)
	assert.ErrorIs(t, err, gojwt.ErrTokenSignatureInvalid)
}
