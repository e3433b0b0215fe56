package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/learningsainttech/nanocart-backend/pkg/enums"
)

// AccessTokenPayload is the identity baked into a token when minting.
type AccessTokenPayload struct {
	AccountID   uuid.UUID
	AccountKind enums.AccountKind
	Role        enums.Role
}

// AccessTokenClaims is the typed JWT body accepted by the API.
type AccessTokenClaims struct {
	AccountID   uuid.UUID         `json:"account_id"`
	AccountKind enums.AccountKind `json:"account_kind"`
	Role        enums.Role        `json:"role"`
	jwt.RegisteredClaims
}
