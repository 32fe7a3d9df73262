package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/anton/taskboard/internal/middleware"
	"github.com/anton/taskboard/internal/models"
	"github.com/anton/taskboard/internal/store"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Store defines the interface for task persistence. Every read and write
// is scoped by owner; a task owned by someone else must come back as
// store.ErrNotFound, not as a distinct "forbidden" signal.
type Store interface {
	CreateTask(ctx context.Context, task *models.Task) error
	ListTasksByOwner(ctx context.Context, ownerID int64) ([]models.Task, error)
	GetTaskByID(ctx context.Context, ownerID, taskID int64) (*models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, ownerID, taskID int64) error
}

// Handler holds the ownership-scoped task CRUD handlers. All routes sit
// behind middleware.RequireAuth, so the authenticated user is always in
// the request context.
type Handler struct {
	tasks    Store
	log      *logrus.Logger
	validate *validator.Validate
}

func NewHandler(tasks Store, log *logrus.Logger) *Handler {
	return &Handler{tasks: tasks, log: log, validate: validator.New()}
}

// Create inserts a new task owned by the caller.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req models.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid task fields")
		return
	}

	task := models.Task{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		OwnerID:     user.ID,
	}
	if err := h.tasks.CreateTask(r.Context(), &task); err != nil {
		h.log.WithError(err).Error("create task")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

// List returns every task owned by the caller, in insertion order.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	tasks, err := h.tasks.ListTasksByOwner(r.Context(), user.ID)
	if err != nil {
		h.log.WithError(err).Error("list tasks")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Get returns a single task. A task owned by someone else is reported as
// not found, indistinguishable from a task that doesn't exist.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	taskID, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	task, err := h.tasks.GetTaskByID(r.Context(), user.ID, taskID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "task not found")
		return
	case err != nil:
		h.log.WithError(err).Error("get task")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Update applies a partial update: only fields present in the body change,
// and an explicit null clears description or due_date. Null is rejected
// for title and completed, which have no empty state.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	taskID, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	var req models.UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	task, err := h.tasks.GetTaskByID(r.Context(), user.ID, taskID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "task not found")
		return
	case err != nil:
		h.log.WithError(err).Error("get task")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if msg, ok := applyPatch(task, &req); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	err = h.tasks.UpdateTask(r.Context(), task)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Deleted between the lookup and the write.
		writeError(w, http.StatusNotFound, "task not found")
		return
	case err != nil:
		h.log.WithError(err).Error("update task")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Delete removes the task permanently. A repeat delete is not found.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	taskID, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	err = h.tasks.DeleteTask(r.Context(), user.ID, taskID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "task not found")
		return
	case err != nil:
		h.log.WithError(err).Error("delete task")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseID reads the {id} URL parameter. An unparseable id can never name
// an existing task, so callers translate the error to 404.
func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// applyPatch copies the fields present in req onto task, enforcing the
// same bounds as creation. Returns a client-facing message when a field is
// out of bounds or null where null isn't allowed.
func applyPatch(task *models.Task, req *models.UpdateTaskRequest) (string, bool) {
	if req.Title.Set {
		if req.Title.Null {
			return "title cannot be null", false
		}
		if n := utf8.RuneCountInString(req.Title.Value); n < 1 || n > 200 {
			return "title must be 1-200 characters", false
		}
		task.Title = req.Title.Value
	}
	if req.Description.Set {
		if req.Description.Null {
			task.Description = nil
		} else {
			if utf8.RuneCountInString(req.Description.Value) > 1000 {
				return "description must be at most 1000 characters", false
			}
			desc := req.Description.Value
			task.Description = &desc
		}
	}
	if req.Completed.Set {
		if req.Completed.Null {
			return "completed cannot be null", false
		}
		task.Completed = req.Completed.Value
	}
	if req.DueDate.Set {
		if req.DueDate.Null {
			task.DueDate = nil
		} else {
			due := req.DueDate.Value
			task.DueDate = &due
		}
	}
	return "", true
}
