package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dexten32/Task-Management-System-sub000/internal/api/shared"
	"github.com/dexten32/Task-Management-System-sub000/internal/domain"
	"github.com/dexten32/Task-Management-System-sub000/internal/platform/logger"
	"github.com/dexten32/Task-Management-System-sub000/internal/service"
)

// callerFromRequest returns the identity placed in the context by the auth
// middleware, writing a 401 when it is missing.
func callerFromRequest(w http.ResponseWriter, r *http.Request) (domain.Caller, bool) {
	caller, ok := domain.CallerFromContext(r.Context())
	if !ok || !caller.Authenticated() {
		logger.FromContext(r.Context()).Warn("caller not found in request context")
		HandleAPIError(w, r, domain.ErrUnauthenticated, "")
		return domain.Caller{}, false
	}
	return caller, true
}

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required", nil)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}

	return id, nil
}

// handleCallerAndPathUUID extracts the caller and a UUID path parameter,
// writing an error response if either is missing.
func handleCallerAndPathUUID(
	w http.ResponseWriter,
	r *http.Request,
	paramName string,
) (domain.Caller, uuid.UUID, bool) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return domain.Caller{}, uuid.Nil, false
	}

	id, err := getPathUUID(r, paramName)
	if err != nil {
		logger.FromContext(r.Context()).Debug("invalid path parameter",
			slog.String("param_name", paramName),
			slog.String("value", chi.URLParam(r, paramName)))
		HandleAPIError(w, r, err, "")
		return domain.Caller{}, uuid.Nil, false
	}

	return caller, id, true
}

// parseListInput reads page, limit and the assignee_id, department_id and
// assigned_by filters from the query string. Absent values stay zero.
func parseListInput(r *http.Request) (service.ListInput, error) {
	q := r.URL.Query()
	var in service.ListInput

	for name, dst := range map[string]*int{"page": &in.Page, "limit": &in.Limit} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return service.ListInput{}, domain.NewValidationError(name, "must be an integer", nil)
		}
		*dst = n
	}

	filters := map[string]**uuid.UUID{
		"assignee_id":   &in.Filters.AssigneeID,
		"department_id": &in.Filters.DepartmentID,
		"assigned_by":   &in.Filters.AssignedByID,
	}
	for name, dst := range filters {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return service.ListInput{}, domain.NewValidationError(name, "has invalid format", domain.ErrInvalidID)
		}
		*dst = &id
	}

	return in, nil
}

// decodeAndValidate decodes the JSON body into v and validates it, writing a
// 400 on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := shared.DecodeJSON(r, v); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return false
	}
	return true
}
