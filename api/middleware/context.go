package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	pkgerrors "github.com/learningsainttech/nanocart-backend/pkg/errors"
)

type contextKey string

const (
	ctxAccountID   contextKey = "account_id"
	ctxAccountKind contextKey = "account_kind"
	ctxRole        contextKey = "actor_role"
)

// Identity is the bearer's identity as seen by controllers.
type Identity struct {
	AccountID   uuid.UUID
	AccountKind enums.AccountKind
	Role        enums.Role
}

// WithIdentity seeds the context the same way Auth does. Tests use it to
// bypass token parsing.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxAccountID, id.AccountID)
	ctx = context.WithValue(ctx, ctxAccountKind, id.AccountKind)
	return context.WithValue(ctx, ctxRole, id.Role)
}

func AccountIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	v, ok := ctx.Value(ctxAccountID).(uuid.UUID)
	return v, ok && v != uuid.Nil
}

func AccountKindFromContext(ctx context.Context) enums.AccountKind {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(ctxAccountKind).(enums.AccountKind)
	return v
}

func RoleFromContext(ctx context.Context) enums.Role {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(ctxRole).(enums.Role)
	return v
}

// RequireIdentity returns the authenticated identity or an Unauthorized error
// when the route was mounted without Auth.
func RequireIdentity(ctx context.Context) (Identity, error) {
	id, ok := AccountIDFromContext(ctx)
	if !ok {
		return Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return Identity{AccountID: id, AccountKind: AccountKindFromContext(ctx), Role: RoleFromContext(ctx)}, nil
}
