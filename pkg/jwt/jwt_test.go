package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-access-secret-key-for-testing-purposes"
	testIssuer = "voyago-admin-auth"
)

func TestNewService(t *testing.T) {
	service := NewService(testSecret, testIssuer, time.Hour)

	assert.NotNil(t, service)
	assert.Equal(t, testSecret, service.secret)
	assert.Equal(t, testIssuer, service.issuer)
	assert.Equal(t, time.Hour, service.expiry)
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	service := NewService(testSecret, testIssuer, time.Hour)
	userID := uuid.New()
	permissions := []string{"manage-tour-bookings", "manage-hotel-bookings"}

	token, err := service.GenerateAccessToken(userID, "Nadia Perera", "nadia@example.com", permissions)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := service.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "Nadia Perera", claims.Name)
	assert.Equal(t, "nadia@example.com", claims.Email)
	assert.Equal(t, permissions, claims.Permissions)
	assert.Equal(t, testIssuer, claims.Issuer)
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	service := NewService(testSecret, testIssuer, time.Hour)
	other := NewService("another-secret-entirely", testIssuer, time.Hour)

	token, err := other.GenerateAccessToken(uuid.New(), "x", "", nil)
	require.NoError(t, err)

	claims, err := service.ValidateAccessToken(token)
	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestValidateAccessToken_WrongIssuer(t *testing.T) {
	service := NewService(testSecret, testIssuer, time.Hour)
	other := NewService(testSecret, "someone-else", time.Hour)

	token, err := other.GenerateAccessToken(uuid.New(), "x", "", nil)
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestValidateAccessToken_Expired(t *testing.T) {
	service := NewService(testSecret, testIssuer, -time.Minute)

	token, err := service.GenerateAccessToken(uuid.New(), "x", "", nil)
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(token)
	assert.Error(t, err)
	assert.True(t, service.IsTokenExpired(token))
}

func TestValidateAccessToken_RejectsNoneAlgorithm(t *testing.T) {
	service := NewService(testSecret, testIssuer, time.Hour)

	claims := Claims{
		UserID: uuid.New(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(tokenString)
	assert.Error(t, err)
}

func TestIsTokenExpired_Garbage(t *testing.T) {
	service := NewService(testSecret, testIssuer, time.Hour)
	assert.True(t, service.IsTokenExpired("not-a-token"))
}
