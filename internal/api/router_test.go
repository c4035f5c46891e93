package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Emmanuel1440/task-manager-api/internal/auth"
	"github.com/Emmanuel1440/task-manager-api/internal/database"
	"github.com/Emmanuel1440/task-manager-api/internal/models"
	"github.com/Emmanuel1440/task-manager-api/internal/services"
	"github.com/Emmanuel1440/task-manager-api/internal/websocket"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })

	hub := websocket.NewHub()
	go hub.Run()

	tokens := auth.NewManager("test-secret", time.Hour)
	eventService := services.NewEventService(db, hub)
	userService := services.NewUserService(db, eventService)
	taskService := services.NewTaskService(db, eventService)

	return NewRouter("http://localhost:3000", tokens, hub, userService, taskService, eventService)
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func registerAndLogin(t *testing.T, router http.Handler, email string) string {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ann", "email": email, "password": "p455w0rd",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": email, "password": "p455w0rd",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestRegisterLoginTaskFlow(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ann", "email": "ann@x.com", "password": "p455w0rd",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "passwordHash")
	assert.NotContains(t, rec.Body.String(), "password_hash")

	rec = doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ann@x.com", "password": "p455w0rd",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var login struct {
		Message string `json:"message"`
		Token   string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.Equal(t, "Login successful", login.Message)

	// Empty task list comes back as [], not null.
	rec = doJSON(t, router, http.MethodGet, "/api/tasks", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	// No header is rejected before task logic runs.
	rec = doJSON(t, router, http.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegister_Validation(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ann", "email": "not-an-email", "password": "p455w0rd",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "ann@x.com", "password": "p455w0rd",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_Duplicate(t *testing.T) {
	router := newTestRouter(t)
	registerAndLogin(t, router, "ann@x.com")

	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Someone Else", "email": "ann@x.com", "password": "different",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already exists")
}

func TestLogin_Failures(t *testing.T) {
	router := newTestRouter(t)
	registerAndLogin(t, router, "ann@x.com")

	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ann@x.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "nobody@x.com", "password": "whatever",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTasks_CRUDOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "ann@x.com")

	rec := doJSON(t, router, http.MethodPost, "/api/tasks", token, map[string]string{
		"title": "Buy milk", "description": "2 liters",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var task models.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	assert.Equal(t, "Buy milk", task.Title)

	// Missing title fails validation.
	rec = doJSON(t, router, http.MethodPost, "/api/tasks", token, map[string]string{
		"description": "no title",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Partial update keeps unspecified fields.
	rec = doJSON(t, router, http.MethodPut, "/api/tasks/"+task.ID, token, map[string]bool{
		"completed": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated models.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.True(t, updated.Completed)
	assert.Equal(t, "Buy milk", updated.Title)

	rec = doJSON(t, router, http.MethodPut, "/api/tasks/no-such-id", token, map[string]string{
		"title": "x",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/api/tasks/"+task.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Task deleted successfully")

	rec = doJSON(t, router, http.MethodDelete, "/api/tasks/"+task.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTasks_TokenGate(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/tasks", "garbage-token", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Token signed with a different secret is rejected too.
	other, err := auth.NewManager("other-secret", time.Hour).Generate("u1")
	require.NoError(t, err)
	rec = doJSON(t, router, http.MethodGet, "/api/tasks", other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestProfileAndEvents(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "ann@x.com")

	rec := doJSON(t, router, http.MethodGet, "/api/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "ann@x.com", user.Email)

	doJSON(t, router, http.MethodPost, "/api/tasks", token, map[string]string{"title": "Buy milk"})

	rec = doJSON(t, router, http.MethodGet, "/api/events", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []models.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.NotEmpty(t, events)

	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, "user.registered")
	assert.Contains(t, types, "task.created")
}

func TestWebSocketEventFeed(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "ann@x.com")

	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws"
	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, _, err := gws.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	// Let the hub process the registration before producing an event.
	time.Sleep(50 * time.Millisecond)

	resp, err := http.Post(server.URL+"/api/tasks", "application/json",
		bytes.NewBufferString(`{"title":"Buy milk"}`))
	require.NoError(t, err)
	resp.Body.Close()
	// Unauthenticated create must not produce a broadcast.
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/tasks",
		bytes.NewBufferString(`{"title":"Buy milk"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Action  string       `json:"action"`
		Payload models.Event `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "event", msg.Action)
	assert.Equal(t, "task.created", msg.Payload.Type)
	assert.Equal(t, fmt.Sprintf("Task %q created", "Buy milk"), msg.Payload.Message)
}
