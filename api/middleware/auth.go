package middleware

import (
	"net/http"
	"strings"

	"github.com/learningsainttech/nanocart-backend/api/responses"
	pkgAuth "github.com/learningsainttech/nanocart-backend/pkg/auth"
	"github.com/learningsainttech/nanocart-backend/pkg/config"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	pkgerrors "github.com/learningsainttech/nanocart-backend/pkg/errors"
	"github.com/learningsainttech/nanocart-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the identity.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			kind := claims.AccountKind
			if kind == "" {
				kind = enums.AccountKindUser
			}
			ctx := WithIdentity(r.Context(), Identity{
				AccountID:   claims.AccountID,
				AccountKind: kind,
				Role:        claims.Role,
			})
			if logg != nil {
				ctx = logg.WithAccountID(ctx, claims.AccountID.String())
				ctx = logg.WithActorRole(ctx, string(claims.Role))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
