package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anton/taskboard/internal/models"
)

// Sentinel errors returned by store operations. Handlers translate them to
// status codes with errors.Is.
var (
	// ErrNotFound means no row matched; for tasks that includes rows
	// owned by someone else, which must stay indistinguishable from
	// absence.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a uniqueness constraint (username, email) was or
	// would be violated.
	ErrConflict = errors.New("already exists")
)

// uniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// PostgresStore handles user and task CRUD against PostgreSQL. Every
// method takes the request's context so queries inherit its deadline.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the users and tasks tables if they don't exist. Tasks
// cascade-delete with their owner.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id            BIGSERIAL    PRIMARY KEY,
			username      VARCHAR(32)  UNIQUE NOT NULL,
			email         VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create users table: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id          BIGSERIAL    PRIMARY KEY,
			title       VARCHAR(200) NOT NULL,
			description TEXT,
			completed   BOOLEAN      NOT NULL DEFAULT FALSE,
			due_date    TIMESTAMPTZ,
			owner_id    BIGINT       NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create tasks table: %w", err)
	}

	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_owner_id ON tasks (owner_id)`)
	if err != nil {
		return fmt.Errorf("create tasks owner index: %w", err)
	}
	return nil
}

// CreateUser inserts a new user and returns it with the server-assigned id
// and creation time. A taken username or email yields ErrConflict, whether
// caught by the pre-check or by the unique constraint when two
// registrations race past it.
func (s *PostgresStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	var taken bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`,
		username, email,
	).Scan(&taken)
	if err != nil {
		return nil, fmt.Errorf("check user exists: %w", err)
	}
	if taken {
		return nil, ErrConflict
	}

	u := models.User{Username: username, Email: email, PasswordHash: passwordHash}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		username, email, passwordHash,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

// GetUserByUsername returns the user with the given username, or
// ErrNotFound.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// CreateTask inserts a task for its owner and fills the server-assigned
// id, completed default, and timestamps.
func (s *PostgresStore) CreateTask(ctx context.Context, task *models.Task) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tasks (title, description, due_date, owner_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, completed, created_at, updated_at`,
		task.Title, task.Description, task.DueDate, task.OwnerID,
	).Scan(&task.ID, &task.Completed, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// ListTasksByOwner returns every task owned by ownerID in insertion order.
func (s *PostgresStore) ListTasksByOwner(ctx context.Context, ownerID int64) ([]models.Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, description, completed, due_date, owner_id, created_at, updated_at
		 FROM tasks WHERE owner_id = $1 ORDER BY id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Completed, &t.DueDate, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// GetTaskByID returns the task only when it exists and belongs to ownerID;
// any other case is ErrNotFound.
func (s *PostgresStore) GetTaskByID(ctx context.Context, ownerID, taskID int64) (*models.Task, error) {
	var t models.Task
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, description, completed, due_date, owner_id, created_at, updated_at
		 FROM tasks WHERE id = $1 AND owner_id = $2`,
		taskID, ownerID,
	).Scan(&t.ID, &t.Title, &t.Description, &t.Completed, &t.DueDate, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &t, nil
}

// UpdateTask writes the task's mutable columns and refreshes updated_at.
// The WHERE clause re-checks ownership so a task deleted or never owned by
// task.OwnerID comes back as ErrNotFound.
func (s *PostgresStore) UpdateTask(ctx context.Context, task *models.Task) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE tasks
		 SET title = $1, description = $2, completed = $3, due_date = $4, updated_at = NOW()
		 WHERE id = $5 AND owner_id = $6
		 RETURNING updated_at`,
		task.Title, task.Description, task.Completed, task.DueDate, task.ID, task.OwnerID,
	).Scan(&task.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// DeleteTask removes the task when it belongs to ownerID, or reports
// ErrNotFound (including for repeat deletes).
func (s *PostgresStore) DeleteTask(ctx context.Context, ownerID, taskID int64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM tasks WHERE id = $1 AND owner_id = $2`,
		taskID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
