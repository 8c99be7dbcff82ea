package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nkorotkov/gym-access-bot/internal/models"
)

// RegState возвращает состояние незавершённой регистрации
// или ErrNotFound.
func (s *Storage) RegState(ctx context.Context, userID int64) (*models.RegState, error) {
	const op = "storage.RegState"

	query := `SELECT user_id, step, tmp_first, tmp_last, created_at
			  FROM reg_state
			  WHERE user_id = $1`
	rs := &models.RegState{}
	var tmpFirst, tmpLast sql.NullString
	err := s.DB.QueryRowContext(ctx, query, userID).
		Scan(&rs.UserID, &rs.Step, &tmpFirst, &tmpLast, &rs.CreatedAt)
	if err != nil {
		return nil, notFound(op, err)
	}
	rs.TmpFirst = tmpFirst.String
	rs.TmpLast = tmpLast.String
	return rs, nil
}

// SetRegState сохраняет шаг регистрации и промежуточные значения.
func (s *Storage) SetRegState(ctx context.Context, rs models.RegState) error {
	const op = "storage.SetRegState"

	query := `INSERT INTO reg_state (user_id, step, tmp_first, tmp_last)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (user_id) DO UPDATE
			  SET step = EXCLUDED.step, tmp_first = EXCLUDED.tmp_first,
			      tmp_last = EXCLUDED.tmp_last`
	if _, err := s.DB.ExecContext(ctx, query, rs.UserID, rs.Step, rs.TmpFirst,
		rs.TmpLast); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ClearRegState удаляет состояние регистрации.
func (s *Storage) ClearRegState(ctx context.Context, userID int64) error {
	const op = "storage.ClearRegState"

	if _, err := s.DB.ExecContext(ctx,
		`DELETE FROM reg_state WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
