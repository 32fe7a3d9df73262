package models

import (
	"encoding/json"
	"time"
)

// Task represents a row in the PostgreSQL tasks table. Description and
// DueDate are nullable columns, hence the pointers.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Completed   bool       `json:"completed"`
	DueDate     *time.Time `json:"due_date"`
	OwnerID     int64      `json:"owner_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateTaskRequest is the JSON body for POST /tasks/.
type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=1000"`
	DueDate     *time.Time `json:"due_date"`
}

// Patch is one field of a partial update. Set reports whether the field
// appeared in the request body at all; Null that it was an explicit JSON
// null. A zero Patch means the field was omitted and must stay untouched.
type Patch[T any] struct {
	Value T
	Set   bool
	Null  bool
}

// UnmarshalJSON records field presence. encoding/json only calls it for
// keys present in the object, including keys holding an explicit null.
func (p *Patch[T]) UnmarshalJSON(data []byte) error {
	p.Set = true
	if string(data) == "null" {
		p.Null = true
		return nil
	}
	return json.Unmarshal(data, &p.Value)
}

// UpdateTaskRequest is the JSON body for PUT /tasks/{id}. Omitted fields
// keep their stored value; an explicit null clears description or due_date
// and is rejected for the non-nullable title and completed.
type UpdateTaskRequest struct {
	Title       Patch[string]    `json:"title"`
	Description Patch[string]    `json:"description"`
	Completed   Patch[bool]      `json:"completed"`
	DueDate     Patch[time.Time] `json:"due_date"`
}
