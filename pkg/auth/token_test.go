package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learningsainttech/nanocart-backend/pkg/config"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "nanocart"}

func TestMintAndParseAccessToken(t *testing.T) {
	accountID := uuid.New()
	token, err := MintAccessToken(testJWT, time.Now().UTC(), time.Hour, AccessTokenPayload{
		AccountID:   accountID,
		AccountKind: enums.AccountKindPartner,
		Role:        enums.RoleCustomer,
	})
	require.NoError(t, err)

	claims, err := ParseAccessToken(testJWT, token)
	require.NoError(t, err)
	assert.Equal(t, accountID, claims.AccountID)
	assert.Equal(t, enums.AccountKindPartner, claims.AccountKind)
	assert.Equal(t, enums.RoleCustomer, claims.Role)
	assert.Equal(t, "nanocart", claims.Issuer)
	assert.Equal(t, accountID.String(), claims.Subject)
}

func TestParseAccessTokenRejects(t *testing.T) {
	payload := AccessTokenPayload{AccountID: uuid.New(), AccountKind: enums.AccountKindUser, Role: enums.RoleOperator}

	expired, err := MintAccessToken(testJWT, time.Now().Add(-2*time.Hour), time.Hour, payload)
	require.NoError(t, err)
	_, err = ParseAccessToken(testJWT, expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	other, err := MintAccessToken(config.JWTConfig{Secret: "secret", Issuer: "someone-else"}, time.Now(), time.Hour, payload)
	require.NoError(t, err)
	_, err = ParseAccessToken(testJWT, other)
	assert.Error(t, err)

	wrongKey, err := MintAccessToken(config.JWTConfig{Secret: "nope", Issuer: "nanocart"}, time.Now(), time.Hour, payload)
	require.NoError(t, err)
	_, err = ParseAccessToken(testJWT, wrongKey)
	assert.Error(t, err)
}

func TestMintAccessTokenValidatesPayload(t *testing.T) {
	_, err := MintAccessToken(testJWT, time.Now(), time.Hour, AccessTokenPayload{AccountKind: enums.AccountKindUser, Role: enums.RoleCustomer})
	assert.Error(t, err)
	_, err = MintAccessToken(testJWT, time.Now(), time.Hour, AccessTokenPayload{AccountID: uuid.New(), AccountKind: enums.AccountKindUser, Role: "admin"})
	assert.Error(t, err)
	_, err = MintAccessToken(testJWT, time.Now(), 0, AccessTokenPayload{AccountID: uuid.New(), AccountKind: enums.AccountKindUser, Role: enums.RoleCustomer})
	assert.Error(t, err)
}
