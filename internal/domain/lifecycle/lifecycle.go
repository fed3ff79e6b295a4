// Package lifecycle decides task status transitions.
//
// Exactly three transitions are live: ACTIVE to COMPLETED or DELAYED (chosen by
// the clock relative to the deadline) and COMPLETED or DELAYED back to ACTIVE
// (elevated roles only). Everything else is rejected.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dexten32/Task-Management-System-sub000/internal/domain"
)

// TransitionRequest carries everything Decide needs. It is a pure value; no
// storage is consulted.
type TransitionRequest struct {
	Current     domain.TaskStatus
	Requested   domain.TaskStatus
	Deadline    time.Time
	Now         time.Time
	Caller      domain.Caller
	CreatorID   uuid.UUID
	AssigneeIDs []uuid.UUID
}

// Decide returns the status the task moves to.
//
// A request for COMPLETED or DELAYED is a request to finish the task; the
// resulting status depends only on whether Now is before Deadline.
func Decide(req TransitionRequest) (domain.TaskStatus, error) {
	if _, err := domain.ParseTaskStatus(string(req.Requested)); err != nil {
		return "", err
	}
	if _, err := domain.ParseTaskStatus(string(req.Current)); err != nil {
		return "", err
	}
	if !req.Caller.Authenticated() {
		return "", domain.ErrUnauthenticated
	}

	switch req.Requested {
	case domain.TaskStatusCompleted, domain.TaskStatusDelayed:
		if req.Current != domain.TaskStatusActive {
			return "", transitionError(req)
		}
		if !mayFinish(req) {
			return "", fmt.Errorf("%w: only assignees, the creator or elevated roles may finish a task", domain.ErrForbidden)
		}
		if req.Now.Before(req.Deadline) {
			return domain.TaskStatusCompleted, nil
		}
		return domain.TaskStatusDelayed, nil

	case domain.TaskStatusActive:
		if req.Current == domain.TaskStatusActive {
			return "", transitionError(req)
		}
		if !req.Caller.Role.Elevated() {
			return "", fmt.Errorf("%w: only ADMIN or MANAGER may reactivate a task", domain.ErrForbidden)
		}
		return domain.TaskStatusActive, nil
	}

	return "", transitionError(req)
}

func mayFinish(req TransitionRequest) bool {
	if req.Caller.Role.Elevated() || req.Caller.ID == req.CreatorID {
		return true
	}
	for _, id := range req.AssigneeIDs {
		if id == req.Caller.ID {
			return true
		}
	}
	return false
}

func transitionError(req TransitionRequest) error {
	return fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, req.Current, req.Requested)
}
