package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nkorotkov/gym-access-bot/internal/lib/period"
	"github.com/nkorotkov/gym-access-bot/internal/models"
)

const subscriptionColumns = `id, user_id, plan, start_at, end_at, created_at`

func scanSubscription(row interface{ Scan(...any) error }) (*models.Subscription, error) {
	sub := &models.Subscription{}
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.Plan, &sub.StartAt, &sub.EndAt,
		&sub.CreatedAt); err != nil {
		return nil, err
	}
	return sub, nil
}

// CurrentSubscription возвращает интервал, содержащий now
// (start_at <= now < end_at), или ErrNotFound.
func (s *Storage) CurrentSubscription(ctx context.Context, userID int64) (*models.Subscription, error) {
	const op = "storage.CurrentSubscription"

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE user_id = $1 AND start_at <= now() AND end_at > now()
			  ORDER BY end_at DESC
			  LIMIT 1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, notFound(op, err)
	}
	return sub, nil
}

// NextSubscription возвращает ближайший будущий интервал или ErrNotFound.
func (s *Storage) NextSubscription(ctx context.Context, userID int64) (*models.Subscription, error) {
	const op = "storage.NextSubscription"

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE user_id = $1 AND start_at > now()
			  ORDER BY start_at ASC
			  LIMIT 1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, notFound(op, err)
	}
	return sub, nil
}

// LastSubscription возвращает интервал с самым поздним концом
// или ErrNotFound.
func (s *Storage) LastSubscription(ctx context.Context, userID int64) (*models.Subscription, error) {
	const op = "storage.LastSubscription"

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE user_id = $1
			  ORDER BY end_at DESC
			  LIMIT 1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, notFound(op, err)
	}
	return sub, nil
}

// appendSubscriptionTx добавляет интервал по правилу наращивания внутри
// уже открытой транзакции. Конец последнего интервала читается с
// блокировкой строки, чтобы два одновременных начисления не пересеклись.
func appendSubscriptionTx(ctx context.Context, tx *sql.Tx, userID int64, plan string,
	months int, now time.Time) (start, end time.Time, err error) {

	var lastEnd *time.Time
	var le time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT end_at FROM subscriptions
		 WHERE user_id = $1
		 ORDER BY end_at DESC
		 LIMIT 1
		 FOR UPDATE`, userID).Scan(&le)
	switch err {
	case nil:
		lastEnd = &le
	case sql.ErrNoRows:
	default:
		return time.Time{}, time.Time{}, err
	}

	start, end = period.Stack(now, lastEnd, months)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO subscriptions (user_id, plan, start_at, end_at)
		 VALUES ($1, $2, $3, $4)`, userID, plan, start, end)
	return start, end, err
}

// GrantManual ручная выдача абонемента администратором: интервал и
// запись журнала действий в одной транзакции.
func (s *Storage) GrantManual(ctx context.Context, actorID, targetID int64, plan string,
	months int, now time.Time) (start, end time.Time, err error) {

	const op = "storage.GrantManual"

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		start, end, txErr = appendSubscriptionTx(ctx, tx, targetID, plan, months, now)
		if txErr != nil {
			return txErr
		}

		details := fmt.Sprintf("plan=%s months=%d %s -> %s", plan, months,
			start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
		_, txErr = tx.ExecContext(ctx,
			`INSERT INTO admin_actions (actor_id, action, target_user_id, details)
			 VALUES ($1, $2, $3, $4)`,
			actorID, models.ActionGrantManual, targetID, details)
		return txErr
	})
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	return start, end, nil
}

// ListActiveSubscriptions возвращает действующие сейчас абонементы
// с данными владельцев для админского списка.
func (s *Storage) ListActiveSubscriptions(ctx context.Context, limit, offset int) ([]*models.ActiveSubscription, error) {
	const op = "storage.ListActiveSubscriptions"

	query := `SELECT s.id, s.user_id, s.plan, s.start_at, s.end_at, s.created_at,
			      u.name, u.room, u.faculty, u.username
			  FROM subscriptions s
			  JOIN users u ON u.user_id = s.user_id
			  WHERE s.start_at <= now() AND s.end_at > now()
			  ORDER BY s.end_at DESC, u.name ASC
			  LIMIT $1 OFFSET $2`
	rows, err := s.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.ActiveSubscription
	for rows.Next() {
		var as models.ActiveSubscription
		var faculty, username sql.NullString
		if err := rows.Scan(&as.ID, &as.UserID, &as.Plan, &as.StartAt, &as.EndAt,
			&as.CreatedAt, &as.Name, &as.Room, &faculty, &username); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		as.Faculty = faculty.String
		as.Username = username.String
		result = append(result, &as)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
