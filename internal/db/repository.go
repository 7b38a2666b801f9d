package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a reminder or subscription does not exist
// for the given owner.
var ErrNotFound = errors.New("not found")

// Repository handles database operations for reminders and push subscriptions
type Repository struct {
	db     *DB
	logger *zap.Logger
}

// NewRepository creates a new reminder repository
func NewRepository(db *DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// CreateReminder inserts a new reminder into the database
func (r *Repository) CreateReminder(ctx context.Context, rem *Reminder) error {
	query := `
		INSERT INTO reminders (
			id, owner_id, title, body, category,
			fire_at, repeat_kind, repeat_weekdays, active, payload
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		RETURNING created_at
	`

	err := r.db.Pool().QueryRow(
		ctx,
		query,
		rem.ID,
		rem.OwnerID,
		rem.Title,
		rem.Body,
		rem.Category,
		rem.FireAt,
		rem.Repeat.Kind,
		weekdayMask(rem.Repeat.Weekdays),
		rem.Active,
		rem.Payload,
	).Scan(&rem.CreatedAt)

	if err != nil {
		r.logger.Error("failed to create reminder",
			zap.Error(err),
			zap.String("reminder_id", rem.ID.String()),
		)
		return fmt.Errorf("insert reminder: %w", err)
	}

	r.logger.Info("reminder created",
		zap.String("reminder_id", rem.ID.String()),
		zap.String("owner_id", rem.OwnerID.String()),
		zap.String("category", rem.Category),
		zap.Time("fire_at", rem.FireAt),
	)

	return nil
}

const reminderColumns = `
	id, owner_id, title, body, category,
	fire_at, repeat_kind, repeat_weekdays, active, payload, created_at
`

func scanReminder(row pgx.Row) (*Reminder, error) {
	var rem Reminder
	var mask int32
	err := row.Scan(
		&rem.ID,
		&rem.OwnerID,
		&rem.Title,
		&rem.Body,
		&rem.Category,
		&rem.FireAt,
		&rem.Repeat.Kind,
		&mask,
		&rem.Active,
		&rem.Payload,
		&rem.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rem.Repeat.Weekdays = weekdaysFromMask(mask)
	return &rem, nil
}

// GetReminder retrieves a reminder by owner and id
func (r *Repository) GetReminder(ctx context.Context, ownerID, id uuid.UUID) (*Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE owner_id = $1 AND id = $2`

	rem, err := scanReminder(r.db.Pool().QueryRow(ctx, query, ownerID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reminder %s: %w", id, ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get reminder",
			zap.Error(err),
			zap.String("reminder_id", id.String()),
		)
		return nil, fmt.Errorf("query reminder: %w", err)
	}

	return rem, nil
}

// ListRemindersByOwner retrieves all reminders for an owner with pagination
func (r *Repository) ListRemindersByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Reminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM reminders
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool().Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	return collectReminders(rows)
}

// ListActiveByOwner retrieves the owner's active reminders ordered by
// fire_at ascending. This is the bootstrap query: every row returned is
// expected to end up with exactly one armed timer.
func (r *Repository) ListActiveByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Reminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM reminders
		WHERE owner_id = $1 AND active
		ORDER BY fire_at ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query active reminders: %w", err)
	}
	defer rows.Close()

	return collectReminders(rows)
}

func collectReminders(rows pgx.Rows) ([]*Reminder, error) {
	var reminders []*Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return reminders, nil
}

// UpdateReminder overwrites the editable fields of a reminder
func (r *Repository) UpdateReminder(ctx context.Context, rem *Reminder) error {
	query := `
		UPDATE reminders
		SET title = $1, body = $2, category = $3, fire_at = $4,
		    repeat_kind = $5, repeat_weekdays = $6, active = $7, payload = $8
		WHERE owner_id = $9 AND id = $10
	`

	result, err := r.db.Pool().Exec(ctx, query,
		rem.Title,
		rem.Body,
		rem.Category,
		rem.FireAt,
		rem.Repeat.Kind,
		weekdayMask(rem.Repeat.Weekdays),
		rem.Active,
		rem.Payload,
		rem.OwnerID,
		rem.ID,
	)
	if err != nil {
		r.logger.Error("failed to update reminder",
			zap.Error(err),
			zap.String("reminder_id", rem.ID.String()),
		)
		return fmt.Errorf("update reminder: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("reminder %s: %w", rem.ID, ErrNotFound)
	}

	return nil
}

// UpdateFireAt advances a reminder's next occurrence. Called by the
// dispatcher after each firing of a recurring reminder.
func (r *Repository) UpdateFireAt(ctx context.Context, id uuid.UUID, fireAt time.Time) error {
	query := `UPDATE reminders SET fire_at = $1 WHERE id = $2 AND active`

	result, err := r.db.Pool().Exec(ctx, query, fireAt, id)
	if err != nil {
		r.logger.Error("failed to advance reminder",
			zap.Error(err),
			zap.String("reminder_id", id.String()),
		)
		return fmt.Errorf("update fire_at: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("reminder %s: %w", id, ErrNotFound)
	}

	return nil
}

// Deactivate marks a reminder inactive: a one-off that has fired or was
// missed, or a user-disabled reminder.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE reminders SET active = FALSE WHERE id = $1`

	result, err := r.db.Pool().Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("failed to deactivate reminder",
			zap.Error(err),
			zap.String("reminder_id", id.String()),
		)
		return fmt.Errorf("deactivate reminder: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("reminder %s: %w", id, ErrNotFound)
	}

	return nil
}

// DeleteReminder removes a reminder entirely
func (r *Repository) DeleteReminder(ctx context.Context, ownerID, id uuid.UUID) error {
	query := `DELETE FROM reminders WHERE owner_id = $1 AND id = $2`

	result, err := r.db.Pool().Exec(ctx, query, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("reminder %s: %w", id, ErrNotFound)
	}

	r.logger.Info("reminder deleted",
		zap.String("reminder_id", id.String()),
		zap.String("owner_id", ownerID.String()),
	)

	return nil
}

// ListPushSubscriptions retrieves all registered push targets for an owner
func (r *Repository) ListPushSubscriptions(ctx context.Context, ownerID uuid.UUID) ([]*PushSubscription, error) {
	query := `
		SELECT id, owner_id, transport, target, created_at
		FROM push_subscriptions
		WHERE owner_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*PushSubscription
	for rows.Next() {
		var sub PushSubscription
		err := rows.Scan(&sub.ID, &sub.OwnerID, &sub.Transport, &sub.Target, &sub.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return subs, nil
}

// CreatePushSubscription registers a delivery target for an owner
func (r *Repository) CreatePushSubscription(ctx context.Context, sub *PushSubscription) error {
	query := `
		INSERT INTO push_subscriptions (id, owner_id, transport, target)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	err := r.db.Pool().QueryRow(ctx, query, sub.ID, sub.OwnerID, sub.Transport, sub.Target).
		Scan(&sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert push subscription: %w", err)
	}

	return nil
}

// DeletePushSubscription prunes a subscription whose target is gone
func (r *Repository) DeletePushSubscription(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Pool().Exec(ctx, `DELETE FROM push_subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}

	r.logger.Info("push subscription pruned", zap.String("subscription_id", id.String()))

	return nil
}
