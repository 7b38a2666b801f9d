package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stride-fit/stride/internal/db"
	"github.com/stride-fit/stride/internal/event"
	"github.com/stride-fit/stride/internal/metrics"
	"github.com/stride-fit/stride/internal/preset"
)

// fakeRepo is an in-memory ReminderRepository.
type fakeRepo struct {
	mu        sync.Mutex
	reminders map[uuid.UUID]*db.Reminder
	subs      map[uuid.UUID]*db.PushSubscription
	createErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		reminders: map[uuid.UUID]*db.Reminder{},
		subs:      map[uuid.UUID]*db.PushSubscription{},
	}
}

func (f *fakeRepo) CreateReminder(_ context.Context, rem *db.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	rem.CreatedAt = time.Now()
	cp := *rem
	f.reminders[rem.ID] = &cp
	return nil
}

func (f *fakeRepo) GetReminder(_ context.Context, ownerID, id uuid.UUID) (*db.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rem, ok := f.reminders[id]
	if !ok || rem.OwnerID != ownerID {
		return nil, db.ErrNotFound
	}
	cp := *rem
	return &cp, nil
}

func (f *fakeRepo) ListRemindersByOwner(_ context.Context, ownerID uuid.UUID, _, _ int) ([]*db.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*db.Reminder
	for _, rem := range f.reminders {
		if rem.OwnerID == ownerID {
			cp := *rem
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateReminder(_ context.Context, rem *db.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reminders[rem.ID]; !ok {
		return db.ErrNotFound
	}
	cp := *rem
	f.reminders[rem.ID] = &cp
	return nil
}

func (f *fakeRepo) DeleteReminder(_ context.Context, ownerID, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rem, ok := f.reminders[id]
	if !ok || rem.OwnerID != ownerID {
		return db.ErrNotFound
	}
	delete(f.reminders, id)
	return nil
}

func (f *fakeRepo) ListPushSubscriptions(_ context.Context, ownerID uuid.UUID) ([]*db.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*db.PushSubscription
	for _, sub := range f.subs {
		if sub.OwnerID == ownerID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreatePushSubscription(_ context.Context, sub *db.PushSubscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub.CreatedAt = time.Now()
	f.subs[sub.ID] = sub
	return nil
}

func (f *fakeRepo) DeletePushSubscription(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, id)
	return nil
}

// fakeEngine records arm/disarm calls.
type fakeEngine struct {
	mu       sync.Mutex
	armed    []uuid.UUID
	rearmed  []uuid.UUID
	disarmed []uuid.UUID
	armErr   error
}

func (e *fakeEngine) Arm(_ context.Context, rem *db.Reminder) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.armErr != nil {
		return e.armErr
	}
	e.armed = append(e.armed, rem.ID)
	return nil
}

func (e *fakeEngine) Rearm(_ context.Context, rem *db.Reminder) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rearmed = append(e.rearmed, rem.ID)
	return nil
}

func (e *fakeEngine) Disarm(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disarmed = append(e.disarmed, id)
}

// fakeBoot records bootstrap runs.
type fakeBoot struct {
	mu     sync.Mutex
	runs   []uuid.UUID
	resets []uuid.UUID
	armed  int
}

func (b *fakeBoot) Run(_ context.Context, ownerID uuid.UUID) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runs = append(b.runs, ownerID)
	return b.armed, nil
}

func (b *fakeBoot) Reset(ownerID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resets = append(b.resets, ownerID)
}

func testHandler(t *testing.T) (*Handler, *fakeRepo, *fakeEngine, *fakeBoot, *event.Hub) {
	t.Helper()
	repo := newFakeRepo()
	engine := &fakeEngine{}
	boot := &fakeBoot{}
	hub := event.NewHub()
	mock := clock.NewMock()
	mock.Set(time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))
	h := NewHandler(zap.NewNop(), repo, engine, boot, preset.NewFactory(mock), hub)
	return h, repo, engine, boot, hub
}

func router(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/reminders", h.CreateReminder)
	r.Get("/v1/reminders", h.ListReminders)
	r.Get("/v1/reminders/{id}", h.GetReminder)
	r.Put("/v1/reminders/{id}", h.UpdateReminder)
	r.Delete("/v1/reminders/{id}", h.DeleteReminder)
	r.Post("/v1/reminders/presets", h.CreatePresets)
	r.Get("/v1/stream", h.Stream)
	r.Post("/v1/subscriptions", h.CreateSubscription)
	r.Get("/v1/subscriptions", h.ListSubscriptions)
	r.Delete("/v1/subscriptions/{id}", h.DeleteSubscription)
	return r
}

func TestCreateReminder_Success(t *testing.T) {
	h, repo, engine, _, _ := testHandler(t)
	ownerID := uuid.New()

	body := map[string]interface{}{
		"owner_id": ownerID.String(),
		"title":    "Leg day",
		"category": "training",
		"fire_at":  "2025-03-11T18:00:00Z",
		"repeat":   map[string]interface{}{"kind": "weekly", "weekdays": []int{2}},
	}
	buf, _ := json.Marshal(body)

	rec := httptest.NewRecorder()
	router(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/reminders", bytes.NewReader(buf)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp ReminderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Armed {
		t.Fatal("response says not armed")
	}

	id, err := uuid.Parse(resp.ID)
	if err != nil {
		t.Fatalf("response id %q is not a UUID", resp.ID)
	}
	if _, ok := repo.reminders[id]; !ok {
		t.Fatal("reminder not persisted")
	}
	if len(engine.armed) != 1 || engine.armed[0] != id {
		t.Fatalf("engine.Arm calls = %v, want [%s]", engine.armed, id)
	}
}

func TestCreateReminder_Validation(t *testing.T) {
	h, _, _, _, _ := testHandler(t)
	ownerID := uuid.New().String()

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing title", map[string]interface{}{
			"owner_id": ownerID, "category": "meal", "fire_at": "2025-03-11T07:30:00Z",
		}},
		{"bad category", map[string]interface{}{
			"owner_id": ownerID, "title": "x", "category": "naps", "fire_at": "2025-03-11T07:30:00Z",
		}},
		{"missing fire_at", map[string]interface{}{
			"owner_id": ownerID, "title": "x", "category": "meal",
		}},
		{"weekly without weekdays", map[string]interface{}{
			"owner_id": ownerID, "title": "x", "category": "meal", "fire_at": "2025-03-11T07:30:00Z",
			"repeat": map[string]interface{}{"kind": "weekly"},
		}},
		{"weekday out of range", map[string]interface{}{
			"owner_id": ownerID, "title": "x", "category": "meal", "fire_at": "2025-03-11T07:30:00Z",
			"repeat": map[string]interface{}{"kind": "weekly", "weekdays": []int{7}},
		}},
		{"bad owner uuid", map[string]interface{}{
			"owner_id": "not-a-uuid", "title": "x", "category": "meal", "fire_at": "2025-03-11T07:30:00Z",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, _ := json.Marshal(tt.body)
			rec := httptest.NewRecorder()
			router(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/reminders", bytes.NewReader(buf)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body = %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateReminder_ArmFailureStillCreates(t *testing.T) {
	h, repo, engine, _, _ := testHandler(t)
	engine.armErr = context.DeadlineExceeded

	body := map[string]interface{}{
		"owner_id": uuid.New().String(),
		"title":    "Drink water",
		"category": "hydration",
		"fire_at":  "2025-03-11T09:00:00Z",
	}
	buf, _ := json.Marshal(body)

	rec := httptest.NewRecorder()
	router(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/reminders", bytes.NewReader(buf)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (record is durable)", rec.Code)
	}
	var resp ReminderResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Armed {
		t.Fatal("response must report the reminder as not armed")
	}
	if len(repo.reminders) != 1 {
		t.Fatal("reminder must still be persisted")
	}
}

func TestGetReminder_NotFound(t *testing.T) {
	h, _, _, _, _ := testHandler(t)

	url := "/v1/reminders/" + uuid.New().String() + "?owner_id=" + uuid.New().String()
	rec := httptest.NewRecorder()
	router(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetReminder_WrongOwnerIsNotFound(t *testing.T) {
	h, repo, _, _, _ := testHandler(t)

	ownerID := uuid.New()
	rem := &db.Reminder{ID: uuid.New(), OwnerID: ownerID, Title: "x", Category: "meal", Active: true}
	repo.reminders[rem.ID] = rem

	url := "/v1/reminders/" + rem.ID.String() + "?owner_id=" + uuid.New().String()
	rec := httptest.NewRecorder()
	router(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for another owner's reminder", rec.Code)
	}
}

func TestUpdateReminder_DisarmsThenRearms(t *testing.T) {
	h, repo, engine, _, _ := testHandler(t)

	ownerID := uuid.New()
	rem := &db.Reminder{
		ID: uuid.New(), OwnerID: ownerID, Title: "Old", Category: "meal",
		FireAt: time.Date(2025, 3, 11, 7, 30, 0, 0, time.UTC),
		Repeat: db.RepeatRule{Kind: db.RepeatDaily}, Active: true,
	}
	repo.reminders[rem.ID] = rem

	body := map[string]interface{}{
		"owner_id": ownerID.String(),
		"title":    "New title",
		"category": "meal",
		"fire_at":  "2025-03-11T08:00:00Z",
		"repeat":   map[string]interface{}{"kind": "daily"},
	}
	buf, _ := json.Marshal(body)

	rec := httptest.NewRecorder()
	router(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1/reminders/"+rem.ID.String(), bytes.NewReader(buf)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if len(engine.disarmed) != 1 || engine.disarmed[0] != rem.ID {
		t.Fatalf("disarm calls = %v, want [%s]", engine.disarmed, rem.ID)
	}
	if len(engine.rearmed) != 1 || engine.rearmed[0] != rem.ID {
		t.Fatalf("rearm calls = %v, want [%s]", engine.rearmed, rem.ID)
	}

	updated := repo.reminders[rem.ID]
	if updated.Title != "New title" {
		t.Fatalf("title = %q, update not persisted", updated.Title)
	}
}

func TestDeleteReminder_DisarmsFirst(t *testing.T) {
	h, repo, engine, _, _ := testHandler(t)

	ownerID := uuid.New()
	rem := &db.Reminder{ID: uuid.New(), OwnerID: ownerID, Title: "x", Category: "event", Active: true}
	repo.reminders[rem.ID] = rem

	url := "/v1/reminders/" + rem.ID.String() + "?owner_id=" + ownerID.String()
	rec := httptest.NewRecorder()
	router(h).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, url, nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(engine.disarmed) != 1 || engine.disarmed[0] != rem.ID {
		t.Fatalf("disarm calls = %v, want [%s]", engine.disarmed, rem.ID)
	}
	if _, ok := repo.reminders[rem.ID]; ok {
		t.Fatal("reminder not deleted")
	}
}

func TestCreatePresets_HydrationCreatesAndArmsAll(t *testing.T) {
	h, repo, engine, _, _ := testHandler(t)

	body := map[string]interface{}{
		"owner_id": uuid.New().String(),
		"preset":   "hydration",
	}
	buf, _ := json.Marshal(body)

	rec := httptest.NewRecorder()
	router(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/reminders/presets", bytes.NewReader(buf)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(repo.reminders) != 4 {
		t.Fatalf("persisted %d reminders, want 4 hydration slots", len(repo.reminders))
	}
	if len(engine.armed) != 4 {
		t.Fatalf("armed %d reminders, want 4", len(engine.armed))
	}
}

func TestCreatePresets_TrainingNeedsSlotFields(t *testing.T) {
	h, _, _, _, _ := testHandler(t)

	body := map[string]interface{}{
		"owner_id": uuid.New().String(),
		"preset":   "training",
	}
	buf, _ := json.Marshal(body)

	rec := httptest.NewRecorder()
	router(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/reminders/presets", bytes.NewReader(buf)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 without weekday/hour/minute", rec.Code)
	}
}

func TestStream_BootstrapsAndDeliversEvents(t *testing.T) {
	h, _, _, boot, hub := testHandler(t)
	ownerID := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/v1/stream?owner_id="+ownerID.String(), nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		router(h).ServeHTTP(rec, req)
	}()

	// Wait until the stream has subscribed.
	deadline := time.After(2 * time.Second)
	for hub.Subscribers(ownerID) == 0 {
		select {
		case <-deadline:
			t.Fatal("stream never subscribed to the hub")
		case <-time.After(5 * time.Millisecond):
		}
	}

	remID := uuid.New()
	hub.Publish(event.Fired{ReminderID: remID, OwnerID: ownerID, Title: "Lunch", Category: "meal"})

	// Give the handler a moment to flush, then disconnect.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	boot.mu.Lock()
	runs, resets := len(boot.runs), len(boot.resets)
	boot.mu.Unlock()
	if runs != 1 {
		t.Fatalf("bootstrap ran %d times, want 1", runs)
	}
	if resets != 1 {
		t.Fatalf("bootstrap reset %d times, want 1 on disconnect", resets)
	}

	out := rec.Body.String()
	if !strings.Contains(out, "event: reminder") {
		t.Fatalf("stream output missing event frame: %q", out)
	}
	if !strings.Contains(out, remID.String()) {
		t.Fatalf("stream output missing reminder id: %q", out)
	}
}

// wrappedRouter mirrors the middleware chain cmd/stride installs in front
// of the handlers, so the stream is exercised through the same wrapped
// writer it sees in production.
func wrappedRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			next.ServeHTTP(ww, req)
		})
	})
	r.Get("/v1/stream", h.Stream)
	return r
}

func TestStream_AttachesThroughMiddlewareChain(t *testing.T) {
	h, _, _, boot, hub := testHandler(t)
	ownerID := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/v1/stream?owner_id="+ownerID.String(), nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		wrappedRouter(h).ServeHTTP(rec, req)
	}()

	deadline := time.After(2 * time.Second)
	for hub.Subscribers(ownerID) == 0 {
		select {
		case <-done:
			t.Fatalf("stream exited instead of attaching: status = %d, body = %s", rec.Code, rec.Body.String())
		case <-deadline:
			t.Fatal("stream never subscribed to the hub")
		case <-time.After(5 * time.Millisecond):
		}
	}

	remID := uuid.New()
	hub.Publish(event.Fired{ReminderID: remID, OwnerID: ownerID, Title: "Lunch", Category: "meal"})

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d behind the middleware chain, body = %s", rec.Code, rec.Body.String())
	}
	out := rec.Body.String()
	if !strings.Contains(out, "event: reminder") {
		t.Fatalf("stream output missing event frame: %q", out)
	}
	if !strings.Contains(out, remID.String()) {
		t.Fatalf("stream output missing reminder id: %q", out)
	}

	boot.mu.Lock()
	runs := len(boot.runs)
	boot.mu.Unlock()
	if runs != 1 {
		t.Fatalf("bootstrap ran %d times, want 1", runs)
	}
}

func TestSubscriptions_CreateListDelete(t *testing.T) {
	h, _, _, _, _ := testHandler(t)
	ownerID := uuid.New()

	body := map[string]interface{}{
		"owner_id":  ownerID.String(),
		"transport": "webhook",
		"target":    "https://relay.example/hook",
	}
	buf, _ := json.Marshal(body)

	rec := httptest.NewRecorder()
	router(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader(buf)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var created map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	rec = httptest.NewRecorder()
	router(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/subscriptions?owner_id="+ownerID.String(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "relay.example") {
		t.Fatalf("list missing created target: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router(h).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/subscriptions/"+created["id"], nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}
}

func TestCreateSubscription_RejectsUnknownTransport(t *testing.T) {
	h, _, _, _, _ := testHandler(t)

	body := map[string]interface{}{
		"owner_id":  uuid.New().String(),
		"transport": "carrier-pigeon",
		"target":    "coop 7",
	}
	buf, _ := json.Marshal(body)

	rec := httptest.NewRecorder()
	router(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader(buf)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
