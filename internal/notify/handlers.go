package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dexten32/Task-Management-System-sub000/internal/domain"
	"github.com/dexten32/Task-Management-System-sub000/internal/jobs"
	"github.com/dexten32/Task-Management-System-sub000/internal/platform/logger"
)

// EmailPayload is the payload of a send-email job.
type EmailPayload struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// ReportPayload is the payload of a generate-report job. A nil RequestedBy
// marks a scheduled report, which goes to every approved ADMIN.
type ReportPayload struct {
	RequestedBy  *uuid.UUID `json:"requested_by,omitempty"`
	DepartmentID *uuid.UUID `json:"department_id,omitempty"`
	RequestedAt  time.Time  `json:"requested_at"`
}

// ErrInvalidPayload is returned for a job whose payload cannot be used.
// Such a job still consumes its attempts and ends up in the failed set.
var ErrInvalidPayload = errors.New("invalid job payload")

// TaskCounter is the subset of the task store used by reports.
type TaskCounter interface {
	CountByStatus(ctx context.Context, departmentID *uuid.UUID) (map[domain.TaskStatus]int, error)
}

// UserDirectory resolves report recipients.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	ListByRole(ctx context.Context, role domain.Role) ([]*domain.User, error)
}

// Handlers executes notification jobs.
type Handlers struct {
	mailer Mailer
	tasks  TaskCounter
	users  UserDirectory
	logger *slog.Logger
	now    func() time.Time
}

// NewHandlers creates the notification job handlers.
func NewHandlers(mailer Mailer, tasks TaskCounter, users UserDirectory, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		mailer: mailer,
		tasks:  tasks,
		users:  users,
		logger: logger.With("component", "notify"),
		now:    time.Now,
	}
}

// Register binds the handlers to their job names on p.
func (h *Handlers) Register(p *jobs.Pool) {
	p.Register(jobs.SendEmail, h.SendEmail)
	p.Register(jobs.GenerateReport, h.GenerateReport)
}

// SendEmail delivers the message described by an EmailPayload.
func (h *Handlers) SendEmail(ctx context.Context, job *jobs.Job) error {
	var p EmailPayload
	if err := job.Decode(&p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(p.To) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, ErrNoRecipients)
	}

	if err := h.mailer.Send(ctx, Message{To: p.To, Subject: p.Subject, Body: p.Body}); err != nil {
		return err
	}
	logger.FromContextOrDefault(ctx, h.logger).Debug("notification email sent",
		"job_id", job.ID,
		"recipients", len(p.To),
		"attempt", job.Attempts,
	)
	return nil
}

// GenerateReport counts tasks by status and mails the summary.
func (h *Handlers) GenerateReport(ctx context.Context, job *jobs.Job) error {
	log := logger.FromContextOrDefault(ctx, h.logger).With("job_id", job.ID)

	var p ReportPayload
	if err := job.Decode(&p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	recipients, err := h.reportRecipients(ctx, p)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		log.Warn("report has no recipients, skipping")
		return nil
	}

	counts, err := h.tasks.CountByStatus(ctx, p.DepartmentID)
	if err != nil {
		return fmt.Errorf("count tasks: %w", err)
	}

	msg := Message{
		To:      recipients,
		Subject: "Task status report",
		Body:    renderReport(counts, p.DepartmentID, h.now().UTC()),
	}
	if err := h.mailer.Send(ctx, msg); err != nil {
		return err
	}
	log.Info("task report sent", "recipients", len(recipients))
	return nil
}

func (h *Handlers) reportRecipients(ctx context.Context, p ReportPayload) ([]string, error) {
	if p.RequestedBy != nil {
		u, err := h.users.GetByID(ctx, *p.RequestedBy)
		if err != nil {
			return nil, fmt.Errorf("load report requester: %w", err)
		}
		return []string{u.Email}, nil
	}

	admins, err := h.users.ListByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	out := make([]string, 0, len(admins))
	for _, a := range admins {
		out = append(out, a.Email)
	}
	return out, nil
}

func renderReport(counts map[domain.TaskStatus]int, departmentID *uuid.UUID, at time.Time) string {
	var b strings.Builder
	scope := "all departments"
	if departmentID != nil {
		scope = "department " + departmentID.String()
	}
	fmt.Fprintf(&b, "Task report for %s, generated %s\n\n", scope, at.Format(time.RFC3339))

	total := 0
	for _, s := range []domain.TaskStatus{domain.TaskStatusActive, domain.TaskStatusCompleted, domain.TaskStatusDelayed} {
		fmt.Fprintf(&b, "%-10s %d\n", s, counts[s])
		total += counts[s]
	}
	fmt.Fprintf(&b, "%-10s %d\n", "TOTAL", total)
	return b.String()
}
