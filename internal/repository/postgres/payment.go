package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/pratik-mahalle/wiman/internal/domain/payment"
	"github.com/pratik-mahalle/wiman/internal/pkg/errors"
)

const paymentColumns = `id, subscription_id, user_id, phone_number, amount, paid_amount, checkout_request_id,
	merchant_request_id, provider_tx_id, status, result_desc, created_at, updated_at, completed_at`

type paymentRow struct {
	ID                string              `db:"id"`
	SubscriptionID    sql.NullString      `db:"subscription_id"`
	UserID            int64               `db:"user_id"`
	PhoneNumber       string              `db:"phone_number"`
	Amount            decimal.Decimal     `db:"amount"`
	PaidAmount        decimal.NullDecimal `db:"paid_amount"`
	CheckoutRequestID sql.NullString      `db:"checkout_request_id"`
	MerchantRequestID sql.NullString      `db:"merchant_request_id"`
	ProviderTxID      sql.NullString      `db:"provider_tx_id"`
	Status            string              `db:"status"`
	ResultDesc        string              `db:"result_desc"`
	CreatedAt         int64               `db:"created_at"`
	UpdatedAt         int64               `db:"updated_at"`
	CompletedAt       sql.NullInt64       `db:"completed_at"`
}

func (row *paymentRow) toDomain() *payment.Payment {
	return &payment.Payment{
		ID:                row.ID,
		SubscriptionID:    row.SubscriptionID.String,
		UserID:            row.UserID,
		PhoneNumber:       row.PhoneNumber,
		Amount:            row.Amount,
		PaidAmount:        row.PaidAmount,
		CheckoutRequestID: row.CheckoutRequestID.String,
		MerchantRequestID: row.MerchantRequestID.String,
		ProviderTxID:      row.ProviderTxID.String,
		Status:            payment.Status(row.Status),
		ResultDesc:        row.ResultDesc,
		CreatedAt:         fromUnix(row.CreatedAt),
		UpdatedAt:         fromUnix(row.UpdatedAt),
		CompletedAt:       ptrUnix(row.CompletedAt),
	}
}

// PaymentRepository implements payment.Repository
type PaymentRepository struct {
	store
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *sqlx.DB, timeout time.Duration) payment.Repository {
	return &PaymentRepository{store: newStore(db, timeout)}
}

// Create creates a new payment
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	if p.Status == "" {
		p.Status = payment.StatusInitiated
	}

	query := `
		INSERT INTO payments (id, subscription_id, user_id, phone_number, amount, checkout_request_id,
			merchant_request_id, provider_tx_id, status, result_desc, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := r.call(ctx, "insert", "payments", func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
			p.ID, nullString(p.SubscriptionID), p.UserID, p.PhoneNumber, p.Amount,
			nullString(p.CheckoutRequestID), nullString(p.MerchantRequestID), nullString(p.ProviderTxID),
			string(p.Status), p.ResultDesc, unix(p.CreatedAt), unix(p.UpdatedAt),
		)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Conflict("Payment reference already recorded")
		}
		return classify(err, "Failed to create payment")
	}
	return nil
}

func (r *PaymentRepository) getOne(ctx context.Context, query string, args ...interface{}) (*payment.Payment, error) {
	var row paymentRow
	err := r.call(ctx, "select", "payments", func(ctx context.Context) error {
		return r.db.GetContext(ctx, &row, r.db.Rebind(query), args...)
	})
	if isNoRows(err) {
		return nil, errors.NotFound("Payment")
	}
	if err != nil {
		return nil, classify(err, "Failed to get payment")
	}
	return row.toDomain(), nil
}

// GetByID retrieves a payment by ID
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*payment.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
}

// GetByCheckoutRequestID retrieves a payment by its STK push correlation key
func (r *PaymentRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*payment.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE checkout_request_id = ?`, checkoutRequestID)
}

// GetByProviderTxID retrieves a payment by receipt number
func (r *PaymentRepository) GetByProviderTxID(ctx context.Context, providerTxID string) (*payment.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE provider_tx_id = ?`, providerTxID)
}

// FindLatestInitiatedByPhone returns the newest initiated payment for phone
func (r *PaymentRepository) FindLatestInitiatedByPhone(ctx context.Context, phone string) (*payment.Payment, error) {
	return r.getOne(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE phone_number = ? AND status = 'initiated'
		ORDER BY created_at DESC LIMIT 1`, phone)
}

// MarkCompleted records the receipt on an initiated payment
func (r *PaymentRepository) MarkCompleted(ctx context.Context, id, providerTxID string, paid decimal.Decimal, now time.Time) (bool, error) {
	n, err := r.exec(ctx, "update", "payments", `
		UPDATE payments
		SET status = 'completed', provider_tx_id = ?, paid_amount = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status = 'initiated'`,
		providerTxID, paid, unix(now), unix(now), id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, errors.Conflict("Receipt already recorded")
		}
		return false, classify(err, "Failed to complete payment")
	}
	return n > 0, nil
}

// List retrieves payments with filters and pagination
func (r *PaymentRepository) List(ctx context.Context, filter payment.Filter, limit, offset int) ([]*payment.Payment, int64, error) {
	var w where
	if filter.UserID != 0 {
		w.add("user_id = ?", filter.UserID)
	}
	if filter.SubscriptionID != "" {
		w.add("subscription_id = ?", filter.SubscriptionID)
	}
	if filter.Status != "" {
		w.add("status = ?", string(filter.Status))
	}

	var total int64
	var rows []paymentRow
	err := r.call(ctx, "select", "payments", func(ctx context.Context) error {
		if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM payments`+w.String()), w.args...); err != nil {
			return err
		}
		args := append(append([]interface{}{}, w.args...), limit, offset)
		return r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT `+paymentColumns+` FROM payments`+w.String()+
			` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`), args...)
	})
	if err != nil {
		return nil, 0, classify(err, "Failed to list payments")
	}

	payments := make([]*payment.Payment, 0, len(rows))
	for i := range rows {
		payments = append(payments, rows[i].toDomain())
	}
	return payments, total, nil
}
