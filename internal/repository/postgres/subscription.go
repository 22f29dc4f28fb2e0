package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pratik-mahalle/wiman/internal/domain/subscription"
	"github.com/pratik-mahalle/wiman/internal/pkg/errors"
)

const subscriptionColumns = `id, user_id, plan_id, status, start_at, expires_at, payment_id, created_at, updated_at`

// Rows written before statuses were enforced may carry NULL; they are treated as active.
const activeCondition = `(status = 'active' OR status IS NULL)`

type subscriptionRow struct {
	ID        string         `db:"id"`
	UserID    int64          `db:"user_id"`
	PlanID    string         `db:"plan_id"`
	Status    sql.NullString `db:"status"`
	StartAt   sql.NullInt64  `db:"start_at"`
	ExpiresAt sql.NullInt64  `db:"expires_at"`
	PaymentID sql.NullString `db:"payment_id"`
	CreatedAt int64          `db:"created_at"`
	UpdatedAt int64          `db:"updated_at"`
}

func (row *subscriptionRow) toDomain() *subscription.Subscription {
	status := subscription.StatusActive
	if row.Status.Valid {
		status = subscription.Status(row.Status.String)
	}
	return &subscription.Subscription{
		ID:        row.ID,
		UserID:    row.UserID,
		PlanID:    row.PlanID,
		Status:    status,
		StartAt:   ptrUnix(row.StartAt),
		ExpiresAt: ptrUnix(row.ExpiresAt),
		PaymentID: row.PaymentID.String,
		CreatedAt: fromUnix(row.CreatedAt),
		UpdatedAt: fromUnix(row.UpdatedAt),
	}
}

// SubscriptionRepository implements subscription.Repository
type SubscriptionRepository struct {
	store
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *sqlx.DB, timeout time.Duration) subscription.Repository {
	return &SubscriptionRepository{store: newStore(db, timeout)}
}

// Create creates a new subscription
func (r *SubscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = sub.CreatedAt
	}

	query := `
		INSERT INTO subscriptions (id, user_id, plan_id, status, start_at, expires_at, payment_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := r.call(ctx, "insert", "subscriptions", func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
			sub.ID, sub.UserID, sub.PlanID, string(sub.Status),
			nullUnix(sub.StartAt), nullUnix(sub.ExpiresAt), nullString(sub.PaymentID),
			unix(sub.CreatedAt), unix(sub.UpdatedAt),
		)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return errors.DuplicateActiveSubscription()
		}
		return classify(err, "Failed to create subscription")
	}
	return nil
}

func (r *SubscriptionRepository) getOne(ctx context.Context, query string, args ...interface{}) (*subscription.Subscription, error) {
	var row subscriptionRow
	err := r.call(ctx, "select", "subscriptions", func(ctx context.Context) error {
		return r.db.GetContext(ctx, &row, r.db.Rebind(query), args...)
	})
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// GetByID retrieves a subscription by ID
func (r *SubscriptionRepository) GetByID(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := r.getOne(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id)
	if isNoRows(err) {
		return nil, errors.NotFound("Subscription")
	}
	if err != nil {
		return nil, classify(err, "Failed to get subscription")
	}
	return sub, nil
}

// GetOpenByUser returns the user's pending or active subscription, nil when none
func (r *SubscriptionRepository) GetOpenByUser(ctx context.Context, userID int64) (*subscription.Subscription, error) {
	sub, err := r.getOne(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = ? AND (status IN ('pending', 'active') OR status IS NULL)
		ORDER BY created_at DESC LIMIT 1`, userID)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "Failed to get open subscription")
	}
	return sub, nil
}

// GetLatestByUser returns the most recently created subscription of a user
func (r *SubscriptionRepository) GetLatestByUser(ctx context.Context, userID int64) (*subscription.Subscription, error) {
	sub, err := r.getOne(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = ?
		ORDER BY created_at DESC, updated_at DESC LIMIT 1`, userID)
	if isNoRows(err) {
		return nil, errors.NotFound("Subscription")
	}
	if err != nil {
		return nil, classify(err, "Failed to get subscription")
	}
	return sub, nil
}

// Activate moves a pending subscription to active
func (r *SubscriptionRepository) Activate(ctx context.Context, id, paymentID string, startAt, expiresAt, now time.Time) (bool, error) {
	n, err := r.exec(ctx, "update", "subscriptions", `
		UPDATE subscriptions
		SET status = 'active', start_at = ?, expires_at = ?, payment_id = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`,
		unix(startAt), unix(expiresAt), nullString(paymentID), unix(now), id,
	)
	if err != nil {
		return false, classify(err, "Failed to activate subscription")
	}
	return n > 0, nil
}

// Extend sets a new window if the row still has the status and deadline of prev
func (r *SubscriptionRepository) Extend(ctx context.Context, prev *subscription.Subscription, startAt *time.Time, expiresAt, now time.Time) (bool, error) {
	query := `UPDATE subscriptions SET status = 'active', expires_at = ?, updated_at = ?`
	args := []interface{}{unix(expiresAt), unix(now)}
	if startAt != nil {
		query += `, start_at = ?`
		args = append(args, unix(*startAt))
	}

	query += ` WHERE id = ?`
	args = append(args, prev.ID)

	if prev.Status == subscription.StatusActive {
		query += ` AND ` + activeCondition
	} else {
		query += ` AND status = ?`
		args = append(args, string(prev.Status))
	}

	if prev.ExpiresAt == nil {
		query += ` AND expires_at IS NULL`
	} else {
		query += ` AND expires_at = ?`
		args = append(args, unix(*prev.ExpiresAt))
	}

	n, err := r.exec(ctx, "update", "subscriptions", query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return false, errors.DuplicateActiveSubscription()
		}
		return false, classify(err, "Failed to extend subscription")
	}
	return n > 0, nil
}

// Cancel moves a pending or active subscription to cancelled
func (r *SubscriptionRepository) Cancel(ctx context.Context, id string, now time.Time) (bool, error) {
	n, err := r.exec(ctx, "update", "subscriptions", `
		UPDATE subscriptions SET status = 'cancelled', updated_at = ?
		WHERE id = ? AND (status = 'pending' OR `+activeCondition+`)`,
		unix(now), id,
	)
	if err != nil {
		return false, classify(err, "Failed to cancel subscription")
	}
	return n > 0, nil
}

// ExpireDue expires every active subscription whose deadline is before now
func (r *SubscriptionRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	n, err := r.exec(ctx, "update", "subscriptions", `
		UPDATE subscriptions SET status = 'expired', updated_at = ?
		WHERE `+activeCondition+` AND expires_at IS NOT NULL AND expires_at < ?`,
		unix(now), unix(now),
	)
	if err != nil {
		return 0, classify(err, "Failed to expire subscriptions")
	}
	return n, nil
}

// ExpireOne expires a single active subscription whose deadline is before now
func (r *SubscriptionRepository) ExpireOne(ctx context.Context, id string, now time.Time) (bool, error) {
	n, err := r.exec(ctx, "update", "subscriptions", `
		UPDATE subscriptions SET status = 'expired', updated_at = ?
		WHERE id = ? AND `+activeCondition+` AND expires_at IS NOT NULL AND expires_at < ?`,
		unix(now), id, unix(now),
	)
	if err != nil {
		return false, classify(err, "Failed to expire subscription")
	}
	return n > 0, nil
}

// List retrieves subscriptions with filters and pagination
func (r *SubscriptionRepository) List(ctx context.Context, filter subscription.Filter, limit, offset int) ([]*subscription.Subscription, int64, error) {
	var w where
	if filter.UserID != 0 {
		w.add("user_id = ?", filter.UserID)
	}
	if filter.PlanID != "" {
		w.add("plan_id = ?", filter.PlanID)
	}
	if filter.Status != "" {
		if filter.Status == subscription.StatusActive {
			w.clauses = append(w.clauses, activeCondition)
		} else {
			w.add("status = ?", string(filter.Status))
		}
	}

	var total int64
	var rows []subscriptionRow
	err := r.call(ctx, "select", "subscriptions", func(ctx context.Context) error {
		if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM subscriptions`+w.String()), w.args...); err != nil {
			return err
		}
		args := append(append([]interface{}{}, w.args...), limit, offset)
		return r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT `+subscriptionColumns+` FROM subscriptions`+w.String()+
			` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`), args...)
	})
	if err != nil {
		return nil, 0, classify(err, "Failed to list subscriptions")
	}

	subs := make([]*subscription.Subscription, 0, len(rows))
	for i := range rows {
		subs = append(subs, rows[i].toDomain())
	}
	return subs, total, nil
}
