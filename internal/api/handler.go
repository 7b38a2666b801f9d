package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stride-fit/stride/internal/db"
	"github.com/stride-fit/stride/internal/event"
	"github.com/stride-fit/stride/internal/metrics"
	"github.com/stride-fit/stride/internal/preset"
	"github.com/stride-fit/stride/internal/redis"
)

// ReminderRepository defines the interface for reminder database operations
type ReminderRepository interface {
	CreateReminder(ctx context.Context, rem *db.Reminder) error
	GetReminder(ctx context.Context, ownerID, id uuid.UUID) (*db.Reminder, error)
	ListRemindersByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*db.Reminder, error)
	UpdateReminder(ctx context.Context, rem *db.Reminder) error
	DeleteReminder(ctx context.Context, ownerID, id uuid.UUID) error
	// Push subscription registry
	ListPushSubscriptions(ctx context.Context, ownerID uuid.UUID) ([]*db.PushSubscription, error)
	CreatePushSubscription(ctx context.Context, sub *db.PushSubscription) error
	DeletePushSubscription(ctx context.Context, id uuid.UUID) error
}

// Engine is the scheduling surface the API drives.
type Engine interface {
	Arm(ctx context.Context, rem *db.Reminder) error
	Rearm(ctx context.Context, rem *db.Reminder) error
	Disarm(id uuid.UUID)
}

// SessionBootstrap reconciles timers when an owner's session attaches.
type SessionBootstrap interface {
	Run(ctx context.Context, ownerID uuid.UUID) (int, error)
	Reset(ownerID uuid.UUID)
}

// RepeatRequest is the wire form of a repeat rule. Weekdays use 0 = Sunday.
type RepeatRequest struct {
	Kind     string `json:"kind"`
	Weekdays []int  `json:"weekdays,omitempty"`
}

// ReminderRequest represents the incoming create/update body
type ReminderRequest struct {
	OwnerID  string          `json:"owner_id"`
	Title    string          `json:"title"`
	Body     string          `json:"body,omitempty"`
	Category string          `json:"category"`
	FireAt   time.Time       `json:"fire_at"`
	Repeat   RepeatRequest   `json:"repeat"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// ReminderResponse is returned after creating a reminder
type ReminderResponse struct {
	ID    string `json:"id"`
	Armed bool   `json:"armed"`
}

// PresetRequest asks for a named preset, or a weekly training slot.
type PresetRequest struct {
	OwnerID string `json:"owner_id"`
	Preset  string `json:"preset"`
	// Training-only fields
	Weekday *int `json:"weekday,omitempty"`
	Hour    *int `json:"hour,omitempty"`
	Minute  *int `json:"minute,omitempty"`
}

// SubscriptionRequest registers an already-provisioned push target.
type SubscriptionRequest struct {
	OwnerID   string `json:"owner_id"`
	Transport string `json:"transport"`
	Target    string `json:"target"`
}

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Handler holds dependencies for API handlers
type Handler struct {
	logger      *zap.Logger
	repo        ReminderRepository
	engine      Engine
	boot        SessionBootstrap
	factory     *preset.Factory
	hub         *event.Hub
	idempotency *redis.IdempotencyService // nil if Redis not configured
}

// NewHandler creates a new API handler
func NewHandler(logger *zap.Logger, repo ReminderRepository, engine Engine, boot SessionBootstrap, factory *preset.Factory, hub *event.Hub) *Handler {
	return &Handler{
		logger:  logger,
		repo:    repo,
		engine:  engine,
		boot:    boot,
		factory: factory,
		hub:     hub,
	}
}

// WithIdempotency enables Idempotency-Key support on creates.
func (h *Handler) WithIdempotency(svc *redis.IdempotencyService) *Handler {
	h.idempotency = svc
	return h
}

func validCategory(c string) bool {
	switch c {
	case db.CategoryMeal, db.CategoryTraining, db.CategoryHydration, db.CategoryEvent, db.CategoryGeneral:
		return true
	}
	return false
}

func repeatFromRequest(req RepeatRequest) (db.RepeatRule, bool) {
	switch req.Kind {
	case "", db.RepeatNone:
		return db.RepeatRule{Kind: db.RepeatNone}, true
	case db.RepeatDaily:
		return db.RepeatRule{Kind: db.RepeatDaily}, true
	case db.RepeatWeekly:
		if len(req.Weekdays) == 0 {
			return db.RepeatRule{}, false
		}
		days := make([]time.Weekday, 0, len(req.Weekdays))
		for _, d := range req.Weekdays {
			if d < 0 || d > 6 {
				return db.RepeatRule{}, false
			}
			days = append(days, time.Weekday(d))
		}
		return db.RepeatRule{Kind: db.RepeatWeekly, Weekdays: days}, true
	}
	return db.RepeatRule{}, false
}

// CreateReminder handles POST /v1/reminders
// Supports idempotency via the Idempotency-Key header.
func (h *Handler) CreateReminder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idempotencyKey := r.Header.Get("Idempotency-Key")

	var req ReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if req.OwnerID == "" || req.Title == "" || req.Category == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "owner_id, title, and category are required")
		return
	}

	if !validCategory(req.Category) {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid category", "category must be meal, training, hydration, event, or general")
		return
	}

	if req.FireAt.IsZero() {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing fire_at", "fire_at is required")
		return
	}

	rule, ok := repeatFromRequest(req.Repeat)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid repeat rule", "kind must be none, daily, or weekly; weekly needs weekdays 0-6")
		return
	}

	if len(req.Payload) > 0 && !json.Valid(req.Payload) {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid payload", "payload must be valid JSON")
		return
	}

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid owner_id", "owner_id must be a valid UUID")
		return
	}

	// Check idempotency if key provided
	if idempotencyKey != "" && h.idempotency != nil {
		cachedResult, err := h.idempotency.CheckOrReserve(ctx, req.OwnerID, idempotencyKey)

		if err != nil {
			if errors.Is(err, redis.ErrDuplicateRequest) {
				h.writeError(w, http.StatusConflict, "duplicate_request",
					"Request is already being processed",
					"Another request with this idempotency key is in progress")
				return
			}
			h.logger.Warn("idempotency check failed, proceeding",
				zap.Error(err),
				zap.String("idempotency_key", idempotencyKey),
			)
		} else if cachedResult != nil {
			metrics.RecordIdempotencyHit()
			resp := ReminderResponse{ID: cachedResult.ReminderID, Armed: true}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Idempotency-Replayed", "true")
			w.WriteHeader(cachedResult.StatusCode)
			_ = json.NewEncoder(w).Encode(resp)
			return
		}
	}

	rem := &db.Reminder{
		ID:       uuid.New(),
		OwnerID:  ownerID,
		Title:    req.Title,
		Body:     req.Body,
		Category: req.Category,
		FireAt:   req.FireAt,
		Repeat:   rule,
		Active:   true,
		Payload:  req.Payload,
	}

	if err := h.repo.CreateReminder(ctx, rem); err != nil {
		h.logger.Error("failed to create reminder",
			zap.Error(err),
			zap.String("owner_id", req.OwnerID),
			zap.String("category", req.Category),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to create reminder", "")
		return
	}

	// The record is durable either way; an arm failure is reconciled at the
	// next session bootstrap.
	armed := true
	if err := h.engine.Arm(ctx, rem); err != nil {
		armed = false
		h.logger.Error("failed to arm created reminder",
			zap.Error(err),
			zap.String("reminder_id", rem.ID.String()),
		)
	}

	h.logger.Info("reminder created",
		zap.String("id", rem.ID.String()),
		zap.String("owner_id", req.OwnerID),
		zap.String("category", req.Category),
		zap.Bool("armed", armed),
	)

	// Store idempotency result
	if idempotencyKey != "" && h.idempotency != nil {
		result := &redis.IdempotencyResult{
			ReminderID: rem.ID.String(),
			StatusCode: http.StatusCreated,
		}
		if err := h.idempotency.Store(ctx, req.OwnerID, idempotencyKey, result); err != nil {
			h.logger.Warn("failed to store idempotency result",
				zap.Error(err),
				zap.String("idempotency_key", idempotencyKey),
			)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(ReminderResponse{ID: rem.ID.String(), Armed: armed})
}

// GetReminder handles GET /v1/reminders/{id}?owner_id=xxx
func (h *Handler) GetReminder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ownerID, ok := h.pathIDAndOwner(w, r)
	if !ok {
		return
	}

	rem, err := h.repo.GetReminder(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Reminder not found", "")
			return
		}
		h.logger.Error("failed to get reminder",
			zap.Error(err),
			zap.String("id", id.String()),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to get reminder", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(rem)
}

// ListReminders handles GET /v1/reminders?owner_id=xxx&limit=20&offset=0
func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerIDStr := r.URL.Query().Get("owner_id")
	if ownerIDStr == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing owner_id", "owner_id query parameter is required")
		return
	}

	ownerID, err := uuid.Parse(ownerIDStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid owner_id", "owner_id must be a valid UUID")
		return
	}

	limit := 20
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	reminders, err := h.repo.ListRemindersByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list reminders",
			zap.Error(err),
			zap.String("owner_id", ownerIDStr),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list reminders", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"data":   reminders,
		"limit":  limit,
		"offset": offset,
		"count":  len(reminders),
	})
}

// UpdateReminder handles PUT /v1/reminders/{id}
// The reminder is disarmed, the stored fields replaced, then re-armed if
// still active.
func (h *Handler) UpdateReminder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid reminder ID", "ID must be a valid UUID")
		return
	}

	var req ReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if req.OwnerID == "" || req.Title == "" || req.Category == "" || req.FireAt.IsZero() {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "owner_id, title, category, and fire_at are required")
		return
	}

	if !validCategory(req.Category) {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid category", "category must be meal, training, hydration, event, or general")
		return
	}

	rule, ok := repeatFromRequest(req.Repeat)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid repeat rule", "kind must be none, daily, or weekly; weekly needs weekdays 0-6")
		return
	}

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid owner_id", "owner_id must be a valid UUID")
		return
	}

	existing, err := h.repo.GetReminder(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Reminder not found", "")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to get reminder", "")
		return
	}

	// Disarm before touching durable state so the old timer can't fire with
	// stale fields mid-update.
	h.engine.Disarm(id)

	existing.Title = req.Title
	existing.Body = req.Body
	existing.Category = req.Category
	existing.FireAt = req.FireAt
	existing.Repeat = rule
	existing.Active = true
	if req.Payload != nil {
		existing.Payload = req.Payload
	}

	if err := h.repo.UpdateReminder(ctx, existing); err != nil {
		h.logger.Error("failed to update reminder",
			zap.Error(err),
			zap.String("id", idStr),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to update reminder", "")
		return
	}

	armed := true
	if err := h.engine.Rearm(ctx, existing); err != nil {
		armed = false
		h.logger.Error("failed to re-arm updated reminder",
			zap.Error(err),
			zap.String("reminder_id", idStr),
		)
	}

	h.logger.Info("reminder updated",
		zap.String("id", idStr),
		zap.Time("fire_at", existing.FireAt),
		zap.Bool("armed", armed),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(ReminderResponse{ID: idStr, Armed: armed})
}

// DeleteReminder handles DELETE /v1/reminders/{id}?owner_id=xxx
func (h *Handler) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ownerID, ok := h.pathIDAndOwner(w, r)
	if !ok {
		return
	}

	// Disarm first; a timer for a deleted row must never fire.
	h.engine.Disarm(id)

	if err := h.repo.DeleteReminder(ctx, ownerID, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Reminder not found", "")
			return
		}
		h.logger.Error("failed to delete reminder",
			zap.Error(err),
			zap.String("id", id.String()),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to delete reminder", "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreatePresets handles POST /v1/reminders/presets
func (h *Handler) CreatePresets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req PresetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if req.OwnerID == "" || req.Preset == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "owner_id and preset are required")
		return
	}

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid owner_id", "owner_id must be a valid UUID")
		return
	}

	var drafts []*db.Reminder
	if req.Preset == "training" {
		if req.Weekday == nil || req.Hour == nil || req.Minute == nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing training fields", "training needs weekday, hour, and minute")
			return
		}
		if *req.Weekday < 0 || *req.Weekday > 6 {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid weekday", "weekday must be 0-6 (0 = Sunday)")
			return
		}
		draft, err := h.factory.Training(ownerID, time.Weekday(*req.Weekday), *req.Hour, *req.Minute)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid training time", err.Error())
			return
		}
		drafts = []*db.Reminder{draft}
	} else {
		drafts, err = h.factory.Build(ownerID, req.Preset)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Unknown preset", err.Error())
			return
		}
	}

	created := make([]ReminderResponse, 0, len(drafts))
	for _, rem := range drafts {
		if err := h.repo.CreateReminder(ctx, rem); err != nil {
			h.logger.Error("failed to create preset reminder",
				zap.Error(err),
				zap.String("preset", req.Preset),
			)
			h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to create preset reminders", "")
			return
		}

		armed := true
		if err := h.engine.Arm(ctx, rem); err != nil {
			armed = false
			h.logger.Error("failed to arm preset reminder",
				zap.Error(err),
				zap.String("reminder_id", rem.ID.String()),
			)
		}
		created = append(created, ReminderResponse{ID: rem.ID.String(), Armed: armed})
	}

	h.logger.Info("preset reminders created",
		zap.String("owner_id", req.OwnerID),
		zap.String("preset", req.Preset),
		zap.Int("count", len(created)),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"data":  created,
		"count": len(created),
	})
}

// Stream handles GET /v1/stream?owner_id=xxx
// It is the session attach point: connecting bootstraps the owner's timers
// and then streams fired reminders as server-sent events until the client
// disconnects.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	ownerIDStr := r.URL.Query().Get("owner_id")
	if ownerIDStr == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing owner_id", "owner_id query parameter is required")
		return
	}

	ownerID, err := uuid.Parse(ownerIDStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid owner_id", "owner_id must be a valid UUID")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming_unsupported", "Streaming not supported", "")
		return
	}

	events, unsub := h.hub.Subscribe(ownerID, 16)
	defer unsub()
	defer h.boot.Reset(ownerID)

	if _, err := h.boot.Run(r.Context(), ownerID); err != nil {
		h.logger.Error("session bootstrap failed",
			zap.Error(err),
			zap.String("owner_id", ownerIDStr),
		)
		h.writeError(w, http.StatusInternalServerError, "bootstrap_error", "Failed to bootstrap session", "")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.Info("session stream attached", zap.String("owner_id", ownerIDStr))

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("session stream detached", zap.String("owner_id", ownerIDStr))
			return
		case e, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				h.logger.Error("failed to marshal fired event", zap.Error(err))
				continue
			}
			if _, err := w.Write([]byte("event: reminder\ndata: " + string(data) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// CreateSubscription handles POST /v1/subscriptions
// The target must already exist (an SNS endpoint ARN, a relay URL, or an
// email address); this only records it in the registry.
func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if req.OwnerID == "" || req.Transport == "" || req.Target == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "owner_id, transport, and target are required")
		return
	}

	if req.Transport != db.TransportSNS && req.Transport != db.TransportWebhook && req.Transport != db.TransportEmail {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid transport", "transport must be sns, webhook, or email")
		return
	}

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid owner_id", "owner_id must be a valid UUID")
		return
	}

	sub := &db.PushSubscription{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Transport: req.Transport,
		Target:    req.Target,
	}

	if err := h.repo.CreatePushSubscription(ctx, sub); err != nil {
		h.logger.Error("failed to create push subscription",
			zap.Error(err),
			zap.String("owner_id", req.OwnerID),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to create subscription", "")
		return
	}

	h.logger.Info("push subscription registered",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("owner_id", req.OwnerID),
		zap.String("transport", req.Transport),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"id": sub.ID.String()})
}

// ListSubscriptions handles GET /v1/subscriptions?owner_id=xxx
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerIDStr := r.URL.Query().Get("owner_id")
	ownerID, err := uuid.Parse(ownerIDStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid owner_id", "owner_id must be a valid UUID")
		return
	}

	subs, err := h.repo.ListPushSubscriptions(ctx, ownerID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list subscriptions", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"data":  subs,
		"count": len(subs),
	})
}

// DeleteSubscription handles DELETE /v1/subscriptions/{id}
func (h *Handler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid subscription ID", "ID must be a valid UUID")
		return
	}

	if err := h.repo.DeletePushSubscription(ctx, id); err != nil {
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to delete subscription", "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathIDAndOwner(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid reminder ID", "ID must be a valid UUID")
		return uuid.Nil, uuid.Nil, false
	}

	ownerID, err := uuid.Parse(r.URL.Query().Get("owner_id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid owner_id", "owner_id query parameter must be a valid UUID")
		return uuid.Nil, uuid.Nil, false
	}

	return id, ownerID, true
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}
