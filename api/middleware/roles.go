package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/ayurkart/storefront-backend/api/responses"
	pkgerrors "github.com/ayurkart/storefront-backend/pkg/errors"
	"github.com/ayurkart/storefront-backend/pkg/logger"
)

// AdminChecker resolves whether a user holds an active admin role record.
type AdminChecker interface {
	IsActiveAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
}

// RequireAdmin admits only callers with an active admin role record. The token
// role claim is not trusted for this decision.
func RequireAdmin(checker AdminChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if checker == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConfiguration, "admin checker unavailable"))
				return
			}
			caller, ok := CallerFrom(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			admin, err := checker.IsActiveAdmin(r.Context(), caller.UserID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check admin role"))
				return
			}
			if !admin {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
