package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "checkin/pkg/domain-errors"
)

var jwtService = NewJWTService("test-signing-key", "test-issuer", "terminal-a")

func Test_GenerateAdminToken(t *testing.T) {
	token, err := jwtService.GenerateAdminToken("admin-1", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.AdminID)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)

	adminID, err := jwtService.ValidateAdminToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", adminID)
}

func Test_GenerateAdminToken_RequiresID(t *testing.T) {
	_, err := jwtService.GenerateAdminToken("", time.Hour)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func Test_ValidateToken_Rejections(t *testing.T) {
	expired, err := jwtService.GenerateAdminToken("admin-1", -time.Hour)
	require.NoError(t, err)
	otherAudience, err := NewJWTService("test-signing-key", "test-issuer", "terminal-b").GenerateAdminToken("admin-1", time.Hour)
	require.NoError(t, err)
	otherKey, err := NewJWTService("another-key", "test-issuer", "terminal-a").GenerateAdminToken("admin-1", time.Hour)
	require.NoError(t, err)

	cases := map[string]struct {
		token string
		msg   string
	}{
		"garbage":        {token: "invalid-token-string", msg: "invalid token"},
		"expired":        {token: expired, msg: "token has expired"},
		"wrong audience": {token: otherAudience, msg: "invalid token"},
		"wrong key":      {token: otherKey, msg: "invalid token"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := jwtService.ValidateToken(tc.token)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
			assert.Equal(t, tc.msg, err.Error())
		})
	}
}

func Test_ValidateAdminToken_RequiresAdminRole(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AdminClaims{
		AdminID: "operator-7",
		Role:    "operator",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			Audience:  []string{"terminal-a"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	_, err = jwtService.ValidateAdminToken(signed)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}
