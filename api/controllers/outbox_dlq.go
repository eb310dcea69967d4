package controllers

import (
	"context"
	"net/http"

	"github.com/ayurkart/storefront-backend/api/responses"
	"github.com/ayurkart/storefront-backend/api/validators"
	"github.com/ayurkart/storefront-backend/pkg/db/models"
	pkgerrors "github.com/ayurkart/storefront-backend/pkg/errors"
	"github.com/ayurkart/storefront-backend/pkg/logger"
)

const (
	defaultDLQLimit = 50
	maxDLQLimit     = 200
)

// DLQLister reads dead-lettered outbox events.
type DLQLister interface {
	Recent(ctx context.Context, limit int) ([]models.OutboxDLQ, error)
}

// AdminOutboxDLQ lists the most recent dead-lettered outbox events, newest first.
func AdminOutboxDLQ(repo DLQLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dlq repository unavailable"))
			return
		}

		limit, err := validators.QueryInt(r, "limit", defaultDLQLimit, 1, maxDLQLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := repo.Recent(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list outbox dlq"))
			return
		}
		if rows == nil {
			rows = []models.OutboxDLQ{}
		}
		responses.WriteSuccess(w, map[string]any{"entries": rows})
	}
}
