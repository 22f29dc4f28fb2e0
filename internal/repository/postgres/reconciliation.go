package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pratik-mahalle/wiman/internal/domain/payment"
	"github.com/pratik-mahalle/wiman/internal/pkg/errors"
)

const entryColumns = `id, reason, status, payment_id, subscription_id, provider_tx_id, detail, payload,
	attempts, next_attempt_at, created_at, updated_at, resolved_at`

type entryRow struct {
	ID             string         `db:"id"`
	Reason         string         `db:"reason"`
	Status         string         `db:"status"`
	PaymentID      sql.NullString `db:"payment_id"`
	SubscriptionID sql.NullString `db:"subscription_id"`
	ProviderTxID   sql.NullString `db:"provider_tx_id"`
	Detail         string         `db:"detail"`
	Payload        string         `db:"payload"`
	Attempts       int            `db:"attempts"`
	NextAttemptAt  sql.NullInt64  `db:"next_attempt_at"`
	CreatedAt      int64          `db:"created_at"`
	UpdatedAt      int64          `db:"updated_at"`
	ResolvedAt     sql.NullInt64  `db:"resolved_at"`
}

func (row *entryRow) toDomain() *payment.Entry {
	return &payment.Entry{
		ID:             row.ID,
		Reason:         payment.Reason(row.Reason),
		Status:         payment.EntryStatus(row.Status),
		PaymentID:      row.PaymentID.String,
		SubscriptionID: row.SubscriptionID.String,
		ProviderTxID:   row.ProviderTxID.String,
		Detail:         row.Detail,
		Payload:        row.Payload,
		Attempts:       row.Attempts,
		NextAttemptAt:  ptrUnix(row.NextAttemptAt),
		CreatedAt:      fromUnix(row.CreatedAt),
		UpdatedAt:      fromUnix(row.UpdatedAt),
		ResolvedAt:     ptrUnix(row.ResolvedAt),
	}
}

// ReconciliationRepository implements payment.ReconciliationRepository
type ReconciliationRepository struct {
	store
}

// NewReconciliationRepository creates a new reconciliation queue repository
func NewReconciliationRepository(db *sqlx.DB, timeout time.Duration) payment.ReconciliationRepository {
	return &ReconciliationRepository{store: newStore(db, timeout)}
}

// Create queues an entry
func (r *ReconciliationRepository) Create(ctx context.Context, e *payment.Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.UpdatedAt = e.CreatedAt
	if e.Status == "" {
		e.Status = payment.EntryOpen
	}

	query := `
		INSERT INTO reconciliation_entries (id, reason, status, payment_id, subscription_id, provider_tx_id,
			detail, payload, attempts, next_attempt_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := r.call(ctx, "insert", "reconciliation_entries", func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
			e.ID, string(e.Reason), string(e.Status), nullString(e.PaymentID), nullString(e.SubscriptionID),
			nullString(e.ProviderTxID), e.Detail, e.Payload, e.Attempts, nullUnix(e.NextAttemptAt),
			unix(e.CreatedAt), unix(e.UpdatedAt),
		)
		return err
	})
	return classify(err, "Failed to queue reconciliation entry")
}

// Due returns open entries with reason whose next attempt is due
func (r *ReconciliationRepository) Due(ctx context.Context, reason payment.Reason, now time.Time, limit int) ([]*payment.Entry, error) {
	var rows []entryRow
	err := r.call(ctx, "select", "reconciliation_entries", func(ctx context.Context) error {
		return r.db.SelectContext(ctx, &rows, r.db.Rebind(`
			SELECT `+entryColumns+` FROM reconciliation_entries
			WHERE status = 'open' AND reason = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
			ORDER BY created_at, id LIMIT ?`),
			string(reason), unix(now), limit)
	})
	if err != nil {
		return nil, classify(err, "Failed to load due reconciliation entries")
	}

	entries := make([]*payment.Entry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].toDomain())
	}
	return entries, nil
}

// Close marks an open entry resolved or abandoned
func (r *ReconciliationRepository) Close(ctx context.Context, id string, status payment.EntryStatus, detail string, now time.Time) error {
	n, err := r.exec(ctx, "update", "reconciliation_entries", `
		UPDATE reconciliation_entries
		SET status = ?, detail = ?, next_attempt_at = NULL, resolved_at = ?, updated_at = ?
		WHERE id = ? AND status = 'open'`,
		string(status), detail, unix(now), unix(now), id,
	)
	if err != nil {
		return classify(err, "Failed to close reconciliation entry")
	}
	if n == 0 {
		return errors.NotFound("Open reconciliation entry")
	}
	return nil
}

// Reschedule records a failed attempt
func (r *ReconciliationRepository) Reschedule(ctx context.Context, id string, attempts int, next time.Time, detail string, now time.Time) error {
	n, err := r.exec(ctx, "update", "reconciliation_entries", `
		UPDATE reconciliation_entries
		SET attempts = ?, next_attempt_at = ?, detail = ?, updated_at = ?
		WHERE id = ? AND status = 'open'`,
		attempts, unix(next), detail, unix(now), id,
	)
	if err != nil {
		return classify(err, "Failed to reschedule reconciliation entry")
	}
	if n == 0 {
		return errors.NotFound("Open reconciliation entry")
	}
	return nil
}

// List retrieves entries, optionally by status
func (r *ReconciliationRepository) List(ctx context.Context, status payment.EntryStatus, limit, offset int) ([]*payment.Entry, int64, error) {
	var w where
	if status != "" {
		w.add("status = ?", string(status))
	}

	var total int64
	var rows []entryRow
	err := r.call(ctx, "select", "reconciliation_entries", func(ctx context.Context) error {
		if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM reconciliation_entries`+w.String()), w.args...); err != nil {
			return err
		}
		args := append(append([]interface{}{}, w.args...), limit, offset)
		return r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT `+entryColumns+` FROM reconciliation_entries`+w.String()+
			` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`), args...)
	})
	if err != nil {
		return nil, 0, classify(err, "Failed to list reconciliation entries")
	}

	entries := make([]*payment.Entry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].toDomain())
	}
	return entries, total, nil
}
