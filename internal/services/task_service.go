package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/tasks-be/internal/apperror"
	"github.com/isdelr/tasks-be/internal/database"
	"github.com/isdelr/tasks-be/internal/models"
	"github.com/jmoiron/sqlx"
)

const taskColumns = `id, title, description, completed, user_id, created_at, updated_at`

// Task event actions published after a successful mutation.
const (
	TaskCreated = "task.created"
	TaskUpdated = "task.updated"
	TaskDeleted = "task.deleted"
	TaskToggled = "task.toggled"
)

// TaskServiceProvider defines the interface for task services. Every method is
// scoped to an owner that has already passed the ownership check.
type TaskServiceProvider interface {
	List(ctx context.Context, owner string) ([]models.Task, error)
	Create(ctx context.Context, owner string, in models.TaskCreate) (models.Task, error)
	Get(ctx context.Context, owner, taskID string) (models.Task, error)
	Update(ctx context.Context, owner, taskID string, patch models.TaskUpdate) (models.Task, error)
	Delete(ctx context.Context, owner, taskID string) error
	ToggleCompletion(ctx context.Context, owner, taskID string) (models.Task, error)
}

// TaskPublisher receives task changes for an owner.
type TaskPublisher interface {
	PublishTask(owner, action string, task models.Task)
}

// TaskService stores tasks. Lookups always filter by owner, so a task owned by
// someone else is indistinguishable from one that does not exist.
type TaskService struct {
	db        *sqlx.DB
	publisher TaskPublisher
	now       func() time.Time
}

// NewTaskService creates a new TaskService. publisher may be nil.
func NewTaskService(db *sqlx.DB, publisher TaskPublisher) *TaskService {
	return &TaskService{db: db, publisher: publisher, now: time.Now}
}

func errTaskNotFound(err error) error {
	return apperror.NewNotFound("Task not found", err)
}

func (s *TaskService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *TaskService) publish(owner, action string, task models.Task) {
	if s.publisher != nil {
		s.publisher.PublishTask(owner, action, task)
	}
}

// List returns every task of owner in insertion order.
func (s *TaskService) List(ctx context.Context, owner string) ([]models.Task, error) {
	tasks := []models.Task{}
	err := database.WithTx(ctx, s.db, &sql.TxOptions{ReadOnly: s.db.DriverName() == "pgx"}, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, &tasks,
			tx.Rebind(`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? ORDER BY created_at, id`), owner)
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return tasks, nil
}

// Create validates and stores a new task for owner.
func (s *TaskService) Create(ctx context.Context, owner string, in models.TaskCreate) (models.Task, error) {
	if err := validateStruct(in); err != nil {
		return models.Task{}, err
	}

	now := s.timestamp()
	task := models.Task{
		ID:          uuid.New().String(),
		Title:       in.Title,
		Description: in.Description,
		Completed:   false,
		UserID:      owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := database.WithTx(ctx, s.db, nil, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx,
			`INSERT INTO tasks (id, title, description, completed, user_id, created_at, updated_at)
			 VALUES (:id, :title, :description, :completed, :user_id, :created_at, :updated_at)`, task)
		return err
	})
	if err != nil {
		return models.Task{}, fmt.Errorf("db error: %w", err)
	}

	s.publish(owner, TaskCreated, task)
	return task, nil
}

// Get returns a single task of owner.
func (s *TaskService) Get(ctx context.Context, owner, taskID string) (models.Task, error) {
	var task models.Task
	err := database.WithTx(ctx, s.db, nil, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &task,
			tx.Rebind(`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`), taskID, owner)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Task{}, errTaskNotFound(err)
		}
		return models.Task{}, fmt.Errorf("db error: %w", err)
	}
	return task, nil
}

// Update applies the supplied fields of patch in one UPDATE statement, so it
// cannot interleave with a concurrent toggle or update of the same row.
func (s *TaskService) Update(ctx context.Context, owner, taskID string, patch models.TaskUpdate) (models.Task, error) {
	if err := validateStruct(patch); err != nil {
		return models.Task{}, err
	}

	sets := []string{"updated_at = ?"}
	args := []any{s.timestamp()}
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, *patch.Completed)
	}
	args = append(args, taskID, owner)

	task, err := s.updateAndLoad(ctx, taskID, owner,
		`UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`, args...)
	if err != nil {
		return models.Task{}, err
	}

	s.publish(owner, TaskUpdated, task)
	return task, nil
}

// Delete permanently removes a task of owner. Deleting twice fails the
// second time with NotFound.
func (s *TaskService) Delete(ctx context.Context, owner, taskID string) error {
	var deleted models.Task
	err := database.WithTx(ctx, s.db, nil, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &deleted,
			tx.Rebind(`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`), taskID, owner); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM tasks WHERE id = ? AND user_id = ?`), taskID, owner)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errTaskNotFound(err)
		}
		return fmt.Errorf("db error: %w", err)
	}

	s.publish(owner, TaskDeleted, deleted)
	return nil
}

// ToggleCompletion flips the completed flag. The flip happens inside the
// UPDATE itself, so N concurrent toggles leave the row flipped N mod 2 times.
func (s *TaskService) ToggleCompletion(ctx context.Context, owner, taskID string) (models.Task, error) {
	task, err := s.updateAndLoad(ctx, taskID, owner,
		`UPDATE tasks SET completed = NOT completed, updated_at = ? WHERE id = ? AND user_id = ?`,
		s.timestamp(), taskID, owner)
	if err != nil {
		return models.Task{}, err
	}

	s.publish(owner, TaskToggled, task)
	return task, nil
}

// updateAndLoad runs an owner-scoped UPDATE and reads the row back inside the
// same transaction. The row lock taken by the UPDATE is held until commit.
func (s *TaskService) updateAndLoad(ctx context.Context, taskID, owner, query string, args ...any) (models.Task, error) {
	var task models.Task
	err := database.WithTx(ctx, s.db, nil, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
		if err != nil {
			return err
		}
		if err := requireAffected(res); err != nil {
			return err
		}
		return tx.GetContext(ctx, &task,
			tx.Rebind(`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`), taskID, owner)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Task{}, errTaskNotFound(err)
		}
		return models.Task{}, fmt.Errorf("db error: %w", err)
	}
	return task, nil
}

// requireAffected maps a zero-row write to sql.ErrNoRows.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
