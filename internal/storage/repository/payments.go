package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nkorotkov/gym-access-bot/internal/models"
)

const paymentColumns = `id, user_id, plan, amount, amount_uah, months, discount_percent,
			      ref_code, proof_file_id, status, comment, created_at, approved_at, rejected_at`

func scanPayment(row interface{ Scan(...any) error }) (*models.Payment, error) {
	p := &models.Payment{}
	var proofFileID, comment sql.NullString
	var approvedAt, rejectedAt sql.NullTime
	if err := row.Scan(&p.ID, &p.UserID, &p.Plan, &p.Amount, &p.AmountUAH,
		&p.Months, &p.DiscountPercent, &p.RefCode, &proofFileID, &p.Status,
		&comment, &p.CreatedAt, &approvedAt, &rejectedAt); err != nil {
		return nil, err
	}
	p.ProofFileID = proofFileID.String
	p.Comment = comment.String
	if approvedAt.Valid {
		p.ApprovedAt = &approvedAt.Time
	}
	if rejectedAt.Valid {
		p.RejectedAt = &rejectedAt.Time
	}
	return p, nil
}

// CreatePayment сохраняет новую заявку в статусе pending и возвращает её
// ID. Занятый референс-код даёт ErrRefCodeTaken — вызывающий генерирует
// новый код и повторяет.
func (s *Storage) CreatePayment(ctx context.Context, p models.Payment) (int64, error) {
	const op = "storage.CreatePayment"

	query := `INSERT INTO payments (user_id, plan, amount, amount_uah, months,
			      discount_percent, ref_code, status)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')
			  RETURNING id`
	var newID int64
	err := s.DB.QueryRowContext(ctx, query, p.UserID, p.Plan, p.Amount, p.AmountUAH,
		p.Months, p.DiscountPercent, p.RefCode).Scan(&newID)
	if err != nil {
		if isUniqueViolation(err, "payments_ref_code_key") {
			return 0, fmt.Errorf("%s: %w", op, ErrRefCodeTaken)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ActivePayment возвращает последнюю незакрытую (pending/review) заявку
// пользователя или ErrNotFound.
func (s *Storage) ActivePayment(ctx context.Context, userID int64) (*models.Payment, error) {
	const op = "storage.ActivePayment"

	query := `SELECT ` + paymentColumns + `
			  FROM payments
			  WHERE user_id = $1 AND status IN ('pending', 'review')
			  ORDER BY created_at DESC
			  LIMIT 1`
	p, err := scanPayment(s.DB.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, notFound(op, err)
	}
	return p, nil
}

// AttachProof сохраняет чек: pending переходит в review, review только
// обновляет файл. Терминальные статусы дают ErrInvalidState.
func (s *Storage) AttachProof(ctx context.Context, paymentID int64, fileID string) (models.PaymentStatus, error) {
	const op = "storage.AttachProof"

	query := `UPDATE payments
			  SET proof_file_id = $1,
			      status = CASE WHEN status = 'pending' THEN 'review' ELSE status END
			  WHERE id = $2 AND status IN ('pending', 'review')
			  RETURNING status`
	var status models.PaymentStatus
	err := s.DB.QueryRowContext(ctx, query, fileID, paymentID).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("%s: %w", op, models.ErrInvalidState)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return status, nil
}

// CancelPayment отмена заявки её автором: pending/review -> rejected.
func (s *Storage) CancelPayment(ctx context.Context, paymentID int64) error {
	const op = "storage.CancelPayment"

	query := `UPDATE payments SET status = 'rejected', rejected_at = now()
			  WHERE id = $1 AND status IN ('pending', 'review')`
	res, err := s.DB.ExecContext(ctx, query, paymentID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrInvalidState)
	}
	return nil
}

// ApprovePayment подтверждает заявку одной транзакцией: смена статуса,
// начисление интервала по правилу наращивания и запись журнала действий.
// Частичное применение невозможно — при любой ошибке транзакция
// откатывается целиком.
func (s *Storage) ApprovePayment(ctx context.Context, paymentID, actorID int64,
	now time.Time) (p *models.Payment, start, end time.Time, err error) {

	const op = "storage.ApprovePayment"

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`,
			paymentID)
		var txErr error
		if p, txErr = scanPayment(row); txErr != nil {
			if txErr == sql.ErrNoRows {
				return models.ErrNotFound
			}
			return txErr
		}
		if !p.Status.Open() {
			return models.ErrInvalidState
		}

		if _, txErr = tx.ExecContext(ctx,
			`UPDATE payments SET status = 'approved', approved_at = $1 WHERE id = $2`,
			now, paymentID); txErr != nil {
			return txErr
		}

		if start, end, txErr = appendSubscriptionTx(ctx, tx, p.UserID, p.Plan,
			p.Months, now); txErr != nil {
			return txErr
		}

		details := fmt.Sprintf("plan=%s months=%d %s -> %s", p.Plan, p.Months,
			start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
		_, txErr = tx.ExecContext(ctx,
			`INSERT INTO admin_actions (actor_id, action, target_user_id, payment_id, details)
			 VALUES ($1, $2, $3, $4, $5)`,
			actorID, models.ActionApprovePayment, p.UserID, p.ID, details)
		return txErr
	})
	if err != nil {
		return nil, time.Time{}, time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	p.Status = models.PaymentApproved
	p.ApprovedAt = &now
	return p, start, end, nil
}

// RejectPayment отклоняет заявку с причиной: смена статуса и запись
// журнала действий в одной транзакции.
func (s *Storage) RejectPayment(ctx context.Context, paymentID, actorID int64,
	reason string, now time.Time) (*models.Payment, error) {

	const op = "storage.RejectPayment"

	var p *models.Payment
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`,
			paymentID)
		var txErr error
		if p, txErr = scanPayment(row); txErr != nil {
			if txErr == sql.ErrNoRows {
				return models.ErrNotFound
			}
			return txErr
		}
		if !p.Status.Open() {
			return models.ErrInvalidState
		}

		if _, txErr = tx.ExecContext(ctx,
			`UPDATE payments SET status = 'rejected', rejected_at = $1, comment = $2
			 WHERE id = $3`, now, reason, paymentID); txErr != nil {
			return txErr
		}

		_, txErr = tx.ExecContext(ctx,
			`INSERT INTO admin_actions (actor_id, action, target_user_id, payment_id, details)
			 VALUES ($1, $2, $3, $4, $5)`,
			actorID, models.ActionRejectPayment, p.UserID, p.ID, reason)
		return txErr
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p.Status = models.PaymentRejected
	p.RejectedAt = &now
	p.Comment = reason
	return p, nil
}

// ListPaymentQueue возвращает очередь на рассмотрение: сначала review,
// затем pending, внутри статуса — старые первыми.
func (s *Storage) ListPaymentQueue(ctx context.Context) ([]*models.Payment, error) {
	const op = "storage.ListPaymentQueue"

	query := `SELECT ` + paymentColumns + `
			  FROM payments
			  WHERE status IN ('review', 'pending')
			  ORDER BY CASE status WHEN 'review' THEN 0 ELSE 1 END, created_at ASC`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
