package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "cart_checkout_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	addressJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping address: %w", err)
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		query := `INSERT INTO orders (id, session_id, user_id, status, items, subtotal, shipping_amount,
		              discount_amount, tax_amount, total_amount, currency, coupon_code, shipping_option_id,
		              shipping_address, created_at, updated_at)
		          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)`

		_, err := tx.ExecContext(ctx, query,
			order.ID,
			nullable(order.SessionID),
			nullable(order.UserID),
			order.Status,
			itemsJSON,
			order.Subtotal,
			order.ShippingAmount,
			order.DiscountAmount,
			order.TaxAmount,
			order.TotalAmount,
			order.Currency,
			nullable(order.CouponCode),
			nullable(order.ShippingOptionID),
			addressJSON,
			order.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		if err := insertHistory(ctx, tx, order.ID, "", order.Status, "order created"); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, order.ID, EventOrderCreated, order)
	})
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT id, COALESCE(session_id, ''), COALESCE(user_id, ''), status, items, subtotal,
	                 shipping_amount, discount_amount, tax_amount, total_amount, currency,
	                 COALESCE(coupon_code, ''), COALESCE(shipping_option_id, ''), shipping_address,
	                 created_at, updated_at
	          FROM orders WHERE id = $1`

	var order domain.Order
	var itemsJSON, addressJSON []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.SessionID,
		&order.UserID,
		&order.Status,
		&itemsJSON,
		&order.Subtotal,
		&order.ShippingAmount,
		&order.DiscountAmount,
		&order.TaxAmount,
		&order.TotalAmount,
		&order.Currency,
		&order.CouponCode,
		&order.ShippingOptionID,
		&addressJSON,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}

	return &order, nil
}

func (r *Repository) RecordPayment(ctx context.Context, payment *domain.Payment, from, to domain.OrderStatus) error {
	if !domain.CanTransitionTo(from, to) {
		return fmt.Errorf("illegal order transition %s -> %s", from, to)
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		query := `INSERT INTO payments (id, order_id, amount, method, status, transaction_id, error_message,
		              idempotency_key, created_at)
		          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		_, err := tx.ExecContext(ctx, query,
			payment.ID,
			payment.OrderID,
			payment.Amount,
			payment.Method,
			payment.Status,
			nullable(payment.TransactionID),
			nullable(payment.ErrorMessage),
			nullable(payment.IdempotencyKey),
			payment.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		note := "payment " + string(payment.Status)
		if err := updateStatus(ctx, tx, payment.OrderID, from, to, note); err != nil {
			return err
		}

		event := EventOrderPaid
		if to != domain.OrderStatusPaid {
			event = EventOrderPaymentFailed
		}
		return insertOutbox(ctx, tx, payment.OrderID, event, map[string]interface{}{
			"order_id":       payment.OrderID,
			"payment_id":     payment.ID,
			"amount":         payment.Amount,
			"status":         payment.Status,
			"transaction_id": payment.TransactionID,
			"error_message":  payment.ErrorMessage,
		})
	})
}

func (r *Repository) GetLatestSuccessfulPayment(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	query := `SELECT id, order_id, amount, method, status, COALESCE(transaction_id, ''),
	                 COALESCE(error_message, ''), COALESCE(idempotency_key, ''),
	                 COALESCE(refund_transaction_id, ''), refunded_amount, refunded_at, created_at
	          FROM payments
	          WHERE order_id = $1 AND status IN ($2, $3)
	          ORDER BY created_at DESC
	          LIMIT 1`

	var p domain.Payment
	var refundedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, orderID, domain.PaymentStatusSucceeded, domain.PaymentStatusRefunded).Scan(
		&p.ID,
		&p.OrderID,
		&p.Amount,
		&p.Method,
		&p.Status,
		&p.TransactionID,
		&p.ErrorMessage,
		&p.IdempotencyKey,
		&p.RefundTransactionID,
		&p.RefundedAmount,
		&refundedAt,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest payment: %w", err)
	}
	if refundedAt.Valid {
		p.RefundedAt = &refundedAt.Time
	}
	return &p, nil
}

func (r *Repository) RecordRefund(ctx context.Context, refund *Refund) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		query := `UPDATE payments
		          SET status = $1, refund_transaction_id = $2, refunded_amount = $3, refunded_at = $4
		          WHERE id = $5 AND order_id = $6 AND status = $7`
		res, err := tx.ExecContext(ctx, query,
			domain.PaymentStatusRefunded,
			refund.TransactionID,
			refund.Amount,
			refund.RefundedAt,
			refund.PaymentID,
			refund.OrderID,
			domain.PaymentStatusSucceeded)
		if err != nil {
			return fmt.Errorf("update payment refund: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrStatusChanged
		}

		note := "refunded"
		if refund.Reason != "" {
			note = "refunded: " + refund.Reason
		}
		if err := updateStatus(ctx, tx, refund.OrderID, domain.OrderStatusPaid, domain.OrderStatusRefunded, note); err != nil {
			return err
		}

		return insertOutbox(ctx, tx, refund.OrderID, EventOrderRefunded, map[string]interface{}{
			"order_id":              refund.OrderID,
			"payment_id":            refund.PaymentID,
			"refund_transaction_id": refund.TransactionID,
			"amount":                refund.Amount,
			"reason":                refund.Reason,
			"refunded_at":           refund.RefundedAt,
		})
	})
}

func (r *Repository) GetStatusHistory(ctx context.Context, orderID uuid.UUID) ([]domain.OrderStatusChange, error) {
	query := `SELECT order_id, COALESCE(from_status, ''), to_status, COALESCE(note, ''), changed_at
	          FROM order_status_history WHERE order_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query status history: %w", err)
	}
	defer rows.Close()

	var history []domain.OrderStatusChange
	for rows.Next() {
		var c domain.OrderStatusChange
		if err := rows.Scan(&c.OrderID, &c.From, &c.To, &c.Note, &c.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan status history row: %w", err)
		}
		history = append(history, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return history, nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM order_outbox WHERE processed_at IS NULL ORDER BY id LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE order_outbox SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event processed: %w", err)
	}
	return nil
}

func updateStatus(ctx context.Context, tx *sql.Tx, orderID uuid.UUID, from, to domain.OrderStatus, note string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		to, orderID, from)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStatusChanged
	}
	return insertHistory(ctx, tx, orderID, from, to, note)
}

func insertHistory(ctx context.Context, tx *sql.Tx, orderID uuid.UUID, from, to domain.OrderStatus, note string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO order_status_history (order_id, from_status, to_status, note, changed_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		orderID, nullable(string(from)), to, note, time.Now())
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

func insertOutbox(ctx context.Context, tx *sql.Tx, aggregateID uuid.UUID, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO order_outbox (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`,
		aggregateID, eventType, data)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
