package controllers

import (
	"net/http"
	"strings"

	"github.com/dromeroc/tiendapos-backend/api/responses"
	"github.com/dromeroc/tiendapos-backend/internal/audit"
	pkgerrors "github.com/dromeroc/tiendapos-backend/pkg/errors"
	"github.com/dromeroc/tiendapos-backend/pkg/logger"
	"github.com/dromeroc/tiendapos-backend/pkg/pagination"
)

// ListAuditLogs pages through the audit trail, newest first. Admin only.
func ListAuditLogs(repo *audit.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit repository unavailable"))
			return
		}

		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := audit.ListFilters{
			Action: strings.TrimSpace(r.URL.Query().Get("action")),
			Entity: strings.TrimSpace(r.URL.Query().Get("entity")),
		}

		userID, err := queryUUID(r, "user_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters.UserID = userID

		from, err := queryDate(r, "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters.StartDate = from

		to, err := queryDate(r, "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if to != nil {
			end := endOfDay(*to)
			filters.EndDate = &end
		}

		rows, total, err := repo.List(r.Context(), filters, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit logs"))
			return
		}

		responses.WriteSuccess(w, pagination.NewPage(rows, total, params))
	}
}
