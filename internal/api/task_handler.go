package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dexten32/Task-Management-System-sub000/internal/api/shared"
	"github.com/dexten32/Task-Management-System-sub000/internal/domain"
	"github.com/dexten32/Task-Management-System-sub000/internal/platform/logger"
	"github.com/dexten32/Task-Management-System-sub000/internal/service"
)

// CacheHeader reports how a listing was served: HIT, MISS or BYPASS.
const CacheHeader = "X-Cache"

// TaskHandler handles task and report requests.
type TaskHandler struct {
	tasks  service.TaskService
	logger *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(tasks service.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		tasks:  tasks,
		logger: logger.With(slog.String("component", "task_handler")),
	}
}

type listFunc func(ctx context.Context, caller domain.Caller, in service.ListInput) (*service.ListResult, error)

// ListRecent handles GET /api/tasks/recent.
func (h *TaskHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.tasks.ListRecent)
}

// ListMine handles GET /api/tasks/mine. Filters are ignored.
func (h *TaskHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.tasks.ListMine)
}

func (h *TaskHandler) list(w http.ResponseWriter, r *http.Request, fn listFunc) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}

	in, err := parseListInput(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	res, err := fn(r.Context(), caller, in)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}

	w.Header().Set(CacheHeader, string(res.Outcome))
	shared.RespondWithRawJSON(w, r, http.StatusOK, res.Payload)
}

// GetTask handles GET /api/tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := handleCallerAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	task, err := h.tasks.Get(r.Context(), caller, id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, task)
}

// CreateTask handles POST /api/tasks.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	task, err := h.tasks.Create(r.Context(), caller, service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Deadline:    req.Deadline,
		PriorityID:  req.PriorityID,
		AssigneeIDs: req.AssigneeIDs,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create task")
		return
	}

	log.Debug("task created", slog.String("task_id", task.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, task)
}

// UpdateStatus handles PATCH /api/tasks/{id}/status.
func (h *TaskHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := handleCallerAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	task, err := h.tasks.ChangeStatus(r.Context(), caller, id, req.Status)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update task status")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, task)
}

// ReplaceAssignees handles PUT /api/tasks/{id}/assignees.
func (h *TaskHandler) ReplaceAssignees(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := handleCallerAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req ReplaceAssigneesRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	task, err := h.tasks.ChangeAssignees(r.Context(), caller, id, req.AssigneeIDs)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update task assignees")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, task)
}

// RequestReport handles POST /api/reports. The report is generated and
// mailed in the background. A queue failure does not fail the request; the
// body reports queued=false.
func (h *TaskHandler) RequestReport(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}

	var req ReportRequest
	if r.ContentLength != 0 {
		if !decodeAndValidate(w, r, &req) {
			return
		}
	}

	res, err := h.tasks.RequestReport(r.Context(), caller, req.DepartmentID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to request report")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, res)
}
