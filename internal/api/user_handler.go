package api

import (
	"log/slog"
	"net/http"

	"github.com/dexten32/Task-Management-System-sub000/internal/api/shared"
	"github.com/dexten32/Task-Management-System-sub000/internal/service"
)

// UserHandler handles account administration.
type UserHandler struct {
	users  service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users service.UserService, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{
		users:  users,
		logger: logger.With(slog.String("component", "user_handler")),
	}
}

// Approve handles POST /api/users/{id}/approve.
func (h *UserHandler) Approve(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := handleCallerAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	user, err := h.users.Approve(r.Context(), caller, id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to approve user")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, userToResponse(user))
}
