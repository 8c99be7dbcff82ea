package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nkorotkov/gym-access-bot/internal/models"
)

// ListAdminActions возвращает журнал действий администраторов, свежие
// первыми, с именами актора и цели.
func (s *Storage) ListAdminActions(ctx context.Context, limit, offset int) ([]*models.AdminAction, error) {
	const op = "storage.ListAdminActions"

	query := `SELECT a.id, a.actor_id, a.action, a.target_user_id, a.payment_id,
			      a.details, a.created_at,
			      COALESCE(ua.name, '') AS actor_name,
			      COALESCE(ut.name, '') AS target_name
			  FROM admin_actions a
			  LEFT JOIN users ua ON ua.user_id = a.actor_id
			  LEFT JOIN users ut ON ut.user_id = a.target_user_id
			  ORDER BY a.id DESC
			  LIMIT $1 OFFSET $2`
	rows, err := s.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.AdminAction
	for rows.Next() {
		var a models.AdminAction
		var target, payment sql.NullInt64
		if err := rows.Scan(&a.ID, &a.ActorID, &a.Action, &target, &payment,
			&a.Details, &a.CreatedAt, &a.ActorName, &a.TargetName); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if target.Valid {
			a.TargetUserID = &target.Int64
		}
		if payment.Valid {
			a.PaymentID = &payment.Int64
		}
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountAdminActions возвращает размер журнала.
func (s *Storage) CountAdminActions(ctx context.Context) (int, error) {
	const op = "storage.CountAdminActions"

	var n int
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM admin_actions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
