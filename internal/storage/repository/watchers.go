package repository

import (
	"context"
	"fmt"
)

// AddWatcher ставит пользователя «на вахту»: он начинает получать
// сообщения о старте и завершении сессий. Повторная постановка — no-op.
func (s *Storage) AddWatcher(ctx context.Context, userID int64) error {
	const op = "storage.AddWatcher"

	if _, err := s.DB.ExecContext(ctx,
		`INSERT INTO watchers (user_id) VALUES ($1) ON CONFLICT DO NOTHING`,
		userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RemoveWatcher снимает пользователя с вахты.
func (s *Storage) RemoveWatcher(ctx context.Context, userID int64) error {
	const op = "storage.RemoveWatcher"

	if _, err := s.DB.ExecContext(ctx,
		`DELETE FROM watchers WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// IsWatcher сообщает, стоит ли пользователь на вахте.
func (s *Storage) IsWatcher(ctx context.Context, userID int64) (bool, error) {
	const op = "storage.IsWatcher"

	var exists bool
	err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM watchers WHERE user_id = $1)`,
		userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// ListWatchers возвращает всех стоящих на вахте.
func (s *Storage) ListWatchers(ctx context.Context) ([]int64, error) {
	const op = "storage.ListWatchers"

	rows, err := s.DB.QueryContext(ctx, `SELECT user_id FROM watchers`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
