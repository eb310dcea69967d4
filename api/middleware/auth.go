package middleware

import (
	"net/http"
	"strings"

	"github.com/ayurkart/storefront-backend/api/responses"
	"github.com/ayurkart/storefront-backend/pkg/auth"
	pkgerrors "github.com/ayurkart/storefront-backend/pkg/errors"
	"github.com/ayurkart/storefront-backend/pkg/logger"
)

// Auth requires a valid "Authorization: Bearer <jwt>" header and stores the
// caller on the request context.
func Auth(verifier *auth.Verifier, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing bearer token"))
				return
			}
			who, err := verifier.Verify(token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithCaller(r.Context(), Caller{UserID: who.UserID, Role: who.Role})
			if logg != nil {
				ctx = logg.WithUserID(ctx, who.UserID.String())
				if who.Role != "" {
					ctx = logg.WithActorRole(ctx, who.Role)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
