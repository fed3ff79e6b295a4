package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dexten32/Task-Management-System-sub000/internal/domain"
	"github.com/dexten32/Task-Management-System-sub000/internal/platform/logger"
	"github.com/dexten32/Task-Management-System-sub000/internal/store"
)

const userColumns = "id, name, email, role, department_id, approved, hashed_password, created_at, updated_at"

// PostgresUserStore implements store.UserStore.
type PostgresUserStore struct {
	db         store.DBTX
	bcryptCost int
	logger     *slog.Logger
}

// NewPostgresUserStore creates a PostgresUserStore. bcryptCost is used to
// hash plaintext passwords on Create.
func NewPostgresUserStore(db store.DBTX, bcryptCost int, logger *slog.Logger) *PostgresUserStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresUserStore{db: db, bcryptCost: bcryptCost, logger: logger.With("component", "user_store")}
}

var _ store.UserStore = (*PostgresUserStore)(nil)

// WithTx implements store.UserStore.
func (s *PostgresUserStore) WithTx(tx *sql.Tx) store.UserStore {
	return &PostgresUserStore{db: tx, bcryptCost: s.bcryptCost, logger: s.logger}
}

// Create implements store.UserStore.
func (s *PostgresUserStore) Create(ctx context.Context, user *domain.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	if user.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), s.bcryptCost)
		if err != nil {
			return store.NewStoreError("user", "create", "password hashing failed", err)
		}
		user.HashedPassword = string(hash)
		user.Password = ""
	}
	if user.HashedPassword == "" {
		return store.NewStoreError("user", "create", "password required", store.ErrInvalidEntity)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Name, user.Email, string(user.Role), nullUUID(user.DepartmentID),
		user.Approved, user.HashedPassword, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		mapped := MapError(err)
		if errors.Is(mapped, store.ErrEmailExists) {
			return store.ErrEmailExists
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to insert user", "error", err)
		return store.NewStoreError("user", "create", "insert failed", mapped)
	}
	return nil
}

// GetByID implements store.UserStore.
func (s *PostgresUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.getOne(ctx, "id = $1", id)
}

// GetByEmail implements store.UserStore.
func (s *PostgresUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getOne(ctx, "email = $1", strings.ToLower(strings.TrimSpace(email)))
}

func (s *PostgresUserStore) getOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where, arg)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, store.NewStoreError("user", "get", "query failed", MapError(err))
	}
	return u, nil
}

// GetMany implements store.UserStore.
func (s *PostgresUserStore) GetMany(ctx context.Context, ids []uuid.UUID) ([]*domain.User, error) {
	if len(ids) == 0 {
		return []*domain.User{}, nil
	}
	a := &args{}
	return s.list(ctx, "get_many",
		"SELECT "+userColumns+" FROM users WHERE id IN "+inList(ids, a)+" ORDER BY name",
		a.values...)
}

// ListByRole implements store.UserStore.
func (s *PostgresUserStore) ListByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	return s.list(ctx, "list_by_role",
		"SELECT "+userColumns+" FROM users WHERE role = $1 AND approved ORDER BY name",
		string(role))
}

func (s *PostgresUserStore) list(ctx context.Context, op, query string, params ...any) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, store.NewStoreError("user", op, "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	users := []*domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, store.NewStoreError("user", op, "scan failed", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("user", op, "iteration failed", MapError(err))
	}
	return users, nil
}

// SetApproved implements store.UserStore.
func (s *PostgresUserStore) SetApproved(ctx context.Context, id uuid.UUID, approved bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET approved = $2, updated_at = $3 WHERE id = $1",
		id, approved, time.Now().UTC())
	if err != nil {
		return store.NewStoreError("user", "approve", "update failed", MapError(err))
	}
	return CheckRowsAffected(res, store.ErrUserNotFound)
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u    domain.User
		role string
		dept uuid.NullUUID
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &dept, &u.Approved, &u.HashedPassword, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	if !u.Role.Valid() {
		return nil, fmt.Errorf("user %s has unknown role %q", u.ID, role)
	}
	if dept.Valid {
		id := dept.UUID
		u.DepartmentID = &id
	}
	return &u, nil
}

// PostgresDepartmentStore implements store.DepartmentStore.
type PostgresDepartmentStore struct {
	db store.DBTX
}

// NewPostgresDepartmentStore creates a PostgresDepartmentStore.
func NewPostgresDepartmentStore(db store.DBTX) *PostgresDepartmentStore {
	return &PostgresDepartmentStore{db: db}
}

var _ store.DepartmentStore = (*PostgresDepartmentStore)(nil)

// Create implements store.DepartmentStore.
func (s *PostgresDepartmentStore) Create(ctx context.Context, d *domain.Department) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO departments (id, name, created_at) VALUES ($1, $2, $3)",
		d.ID, d.Name, d.CreatedAt)
	if err != nil {
		return store.NewStoreError("department", "create", "insert failed", MapError(err))
	}
	return nil
}

// GetByID implements store.DepartmentStore.
func (s *PostgresDepartmentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Department, error) {
	var d domain.Department
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM departments WHERE id = $1", id,
	).Scan(&d.ID, &d.Name, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrDepartmentNotFound
	}
	if err != nil {
		return nil, store.NewStoreError("department", "get", "query failed", MapError(err))
	}
	return &d, nil
}

// List implements store.DepartmentStore.
func (s *PostgresDepartmentStore) List(ctx context.Context) ([]*domain.Department, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at FROM departments ORDER BY name")
	if err != nil {
		return nil, store.NewStoreError("department", "list", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	out := []*domain.Department{}
	for rows.Next() {
		var d domain.Department
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedAt); err != nil {
			return nil, store.NewStoreError("department", "list", "scan failed", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}
