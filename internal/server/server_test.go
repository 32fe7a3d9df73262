package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anton/taskboard/internal/auth"
	"github.com/anton/taskboard/internal/models"
	"github.com/anton/taskboard/internal/server"
	"github.com/anton/taskboard/internal/store"
)

// memStore is an in-memory implementation of server.Store for driving the
// assembled router end to end.
type memStore struct {
	nextUserID int64
	nextTaskID int64
	users      map[string]*models.User
	tasks      map[int64]*models.Task
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[string]*models.User),
		tasks: make(map[int64]*models.Task),
	}
}

func (m *memStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username || u.Email == email {
			return nil, store.ErrConflict
		}
	}
	m.nextUserID++
	u := &models.User{
		ID:           m.nextUserID,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	m.users[username] = u
	return u, nil
}

func (m *memStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	u, ok := m.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (m *memStore) CreateTask(ctx context.Context, task *models.Task) error {
	m.nextTaskID++
	task.ID = m.nextTaskID
	task.Completed = false
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	cp := *task
	m.tasks[task.ID] = &cp
	return nil
}

func (m *memStore) ListTasksByOwner(ctx context.Context, ownerID int64) ([]models.Task, error) {
	var out []models.Task
	for _, t := range m.tasks {
		if t.OwnerID == ownerID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetTaskByID(ctx context.Context, ownerID, taskID int64) (*models.Task, error) {
	t, ok := m.tasks[taskID]
	if !ok || t.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) UpdateTask(ctx context.Context, task *models.Task) error {
	stored, ok := m.tasks[task.ID]
	if !ok || stored.OwnerID != task.OwnerID {
		return store.ErrNotFound
	}
	task.UpdatedAt = stored.UpdatedAt.Add(time.Second)
	cp := *task
	m.tasks[task.ID] = &cp
	return nil
}

func (m *memStore) DeleteTask(ctx context.Context, ownerID, taskID int64) error {
	t, ok := m.tasks[taskID]
	if !ok || t.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(m.tasks, taskID)
	return nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	tokens := auth.NewTokenService([]byte("test-secret"), 24*time.Hour)
	ts := httptest.NewServer(server.New(log, tokens, newMemStore(), []string{"*"}))
	t.Cleanup(ts.Close)
	return ts
}

// call sends one request and decodes the JSON response body into out when
// out is non-nil.
func call(t *testing.T, ts *httptest.Server, method, path, token, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func login(t *testing.T, ts *httptest.Server, username, password string) string {
	t.Helper()
	var resp models.TokenResponse
	code := call(t, ts, http.MethodPost, "/auth/login", "",
		`{"username":"`+username+`","password":"`+password+`"}`, &resp)
	if code != http.StatusOK {
		t.Fatalf("login %s: status = %d, want 200", username, code)
	}
	return resp.AccessToken
}

func register(t *testing.T, ts *httptest.Server, username, email, password string) models.User {
	t.Helper()
	var u models.User
	code := call(t, ts, http.MethodPost, "/auth/register", "",
		`{"username":"`+username+`","email":"`+email+`","password":"`+password+`"}`, &u)
	if code != http.StatusOK {
		t.Fatalf("register %s: status = %d, want 200", username, code)
	}
	return u
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	var body map[string]string
	code := call(t, ts, http.MethodGet, "/", "", "", &body)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["message"] != "Healthy" {
		t.Fatalf("body = %v, want message Healthy", body)
	}
}

func TestFullScenario(t *testing.T) {
	ts := newTestServer(t)

	aliceUser := register(t, ts, "alice", "a@x.com", "secret1")
	token := login(t, ts, "alice", "secret1")

	var created models.Task
	code := call(t, ts, http.MethodPost, "/tasks/", token, `{"title":"buy milk"}`, &created)
	if code != http.StatusCreated {
		t.Fatalf("create task: status = %d, want 201", code)
	}
	if created.Completed {
		t.Fatal("new task is completed")
	}
	if created.OwnerID != aliceUser.ID {
		t.Fatalf("owner_id = %d, want %d", created.OwnerID, aliceUser.ID)
	}

	var list []models.Task
	if code := call(t, ts, http.MethodGet, "/tasks/", token, "", &list); code != http.StatusOK {
		t.Fatalf("list tasks: status = %d, want 200", code)
	}
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("list = %+v, want the created task", list)
	}

	id := "/tasks/1"
	var updated models.Task
	if code := call(t, ts, http.MethodPut, id, token, `{"completed":true}`, &updated); code != http.StatusOK {
		t.Fatalf("update task: status = %d, want 200", code)
	}
	if !updated.Completed || updated.Title != "buy milk" {
		t.Fatalf("update result = %+v, want completed with title intact", updated)
	}

	if code := call(t, ts, http.MethodDelete, id, token, "", nil); code != http.StatusNoContent {
		t.Fatalf("delete task: status = %d, want 204", code)
	}
	if code := call(t, ts, http.MethodGet, id, token, "", nil); code != http.StatusNotFound {
		t.Fatalf("get after delete: status = %d, want 404", code)
	}
}

func TestProfile(t *testing.T) {
	ts := newTestServer(t)

	register(t, ts, "alice", "a@x.com", "secret1")
	token := login(t, ts, "alice", "secret1")

	var me models.User
	if code := call(t, ts, http.MethodGet, "/users/me", token, "", &me); code != http.StatusOK {
		t.Fatalf("me: status = %d, want 200", code)
	}
	if me.Username != "alice" || me.Email != "a@x.com" {
		t.Fatalf("me = %+v, want alice's projection", me)
	}

	if code := call(t, ts, http.MethodGet, "/users/me", "", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("me without token: status = %d, want 401", code)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	ts := newTestServer(t)

	register(t, ts, "alice", "a@x.com", "secret1")
	code := call(t, ts, http.MethodPost, "/auth/register", "",
		`{"username":"alice","email":"other@x.com","password":"secret2"}`, nil)
	if code != http.StatusBadRequest {
		t.Fatalf("duplicate register: status = %d, want 400", code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	paths := []struct{ method, path string }{
		{http.MethodPost, "/tasks/"},
		{http.MethodGet, "/tasks/"},
		{http.MethodGet, "/tasks/1"},
		{http.MethodPut, "/tasks/1"},
		{http.MethodDelete, "/tasks/1"},
		{http.MethodGet, "/users/me"},
	}
	for _, p := range paths {
		if code := call(t, ts, p.method, p.path, "", "", nil); code != http.StatusUnauthorized {
			t.Errorf("%s %s without token: status = %d, want 401", p.method, p.path, code)
		}
	}

	if code := call(t, ts, http.MethodGet, "/tasks/", "not-a-jwt", "", nil); code != http.StatusUnauthorized {
		t.Errorf("garbage token: status = %d, want 401", code)
	}
}

func TestOwnershipIsolationOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	register(t, ts, "alice", "a@x.com", "secret1")
	register(t, ts, "bobby", "b@x.com", "secret2")
	aliceToken := login(t, ts, "alice", "secret1")
	bobToken := login(t, ts, "bobby", "secret2")

	var created models.Task
	if code := call(t, ts, http.MethodPost, "/tasks/", aliceToken, `{"title":"private"}`, &created); code != http.StatusCreated {
		t.Fatalf("create: status = %d, want 201", code)
	}

	id := "/tasks/1"
	if code := call(t, ts, http.MethodGet, id, bobToken, "", nil); code != http.StatusNotFound {
		t.Errorf("cross-owner get: status = %d, want 404", code)
	}
	if code := call(t, ts, http.MethodPut, id, bobToken, `{"completed":true}`, nil); code != http.StatusNotFound {
		t.Errorf("cross-owner update: status = %d, want 404", code)
	}
	if code := call(t, ts, http.MethodDelete, id, bobToken, "", nil); code != http.StatusNotFound {
		t.Errorf("cross-owner delete: status = %d, want 404", code)
	}

	var list []models.Task
	call(t, ts, http.MethodGet, "/tasks/", bobToken, "", &list)
	if len(list) != 0 {
		t.Errorf("bob's list = %+v, want empty", list)
	}
}
