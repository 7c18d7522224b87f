package tokens

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParse(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := SignAccess(secret, "2", "user", "sess-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	claims, err := AccessClaimsFromToken(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "2", claims.Subject)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, "sess-1", claims.SessionID)
}

func TestParse_Rejects(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")

	expired, err := SignAccess(secret, "1", "admin", "s", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, err = AccessClaimsFromToken(expired, secret)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	tok, err := SignAccess(secret, "1", "admin", "s", time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = AccessClaimsFromToken(tok, []byte("other"))
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, AccessClaims{Role: "admin"})
	raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = AccessClaimsFromToken(raw, secret)
	assert.Error(t, err)

	_, err = AccessClaimsFromToken("garbage", secret)
	assert.Error(t, err)
}
