package models

import "time"

// Task is a single to-do item owned by exactly one user.
type Task struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description *string   `json:"description" db:"description"`
	Completed   bool      `json:"completed" db:"completed"`
	UserID      string    `json:"user_id" db:"user_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// TaskCreate is the input for a new task.
type TaskCreate struct {
	Title       string  `json:"title" validate:"required,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

// TaskUpdate carries only the fields the caller supplied; nil means absent.
type TaskUpdate struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Completed   *bool   `json:"completed"`
}

// Empty reports whether the update carries no fields at all.
func (u TaskUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Completed == nil
}
