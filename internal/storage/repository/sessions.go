package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nkorotkov/gym-access-bot/internal/models"
)

const sessionColumns = `id, captain_id, started_at, ended_at, active,
			      status_chat_id, status_message_id`

func scanSession(row interface{ Scan(...any) error }) (*models.Session, error) {
	s := &models.Session{}
	var endedAt sql.NullTime
	var statusChatID, statusMessageID sql.NullInt64
	if err := row.Scan(&s.ID, &s.CaptainID, &s.StartedAt, &endedAt, &s.Active,
		&statusChatID, &statusMessageID); err != nil {
		return nil, err
	}
	if endedAt.Valid {
		s.EndedAt = &endedAt.Time
	}
	if statusChatID.Valid {
		s.StatusChatID = &statusChatID.Int64
	}
	if statusMessageID.Valid {
		s.StatusMessageID = &statusMessageID.Int64
	}
	return s, nil
}

// ActiveSession возвращает текущую активную сессию или ErrNotFound.
func (s *Storage) ActiveSession(ctx context.Context) (*models.Session, error) {
	const op = "storage.ActiveSession"

	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE active`
	session, err := scanSession(s.DB.QueryRowContext(ctx, query))
	if err != nil {
		return nil, notFound(op, err)
	}
	return session, nil
}

// StartSession атомарно открывает сессию: повторная проверка отсутствия
// активной, вставка сессии, открывающего посещения и первой записи
// журнала капитанов. Гонку двух одновременных стартов закрывает
// частичный уникальный индекс one_active_session: проигравший получает
// ErrAlreadyActive.
func (s *Storage) StartSession(ctx context.Context, captainID int64) (*models.Session, error) {
	const op = "storage.StartSession"

	var session *models.Session
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var existing int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM sessions WHERE active`).Scan(&existing)
		if err == nil {
			return models.ErrAlreadyActive
		}
		if err != sql.ErrNoRows {
			return err
		}

		row := tx.QueryRowContext(ctx,
			`INSERT INTO sessions (captain_id, active)
			 VALUES ($1, TRUE)
			 RETURNING `+sessionColumns, captainID)
		if session, err = scanSession(row); err != nil {
			return err
		}

		if _, err = tx.ExecContext(ctx,
			`INSERT INTO visits (session_id, user_id) VALUES ($1, $2)`,
			session.ID, captainID); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO captain_changes (session_id, old_captain_id, new_captain_id)
			 VALUES ($1, NULL, $2)`, session.ID, captainID)
		return err
	})
	if err != nil {
		if isUniqueViolation(err, "one_active_session") {
			return nil, fmt.Errorf("%s: %w", op, models.ErrAlreadyActive)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return session, nil
}

// OpenVisit возвращает открытое посещение пользователя в сессии
// или ErrNotFound.
func (s *Storage) OpenVisit(ctx context.Context, sessionID, userID int64) (*models.Visit, error) {
	const op = "storage.OpenVisit"

	query := `SELECT id, session_id, user_id, entered_at, exited_at
			  FROM visits
			  WHERE session_id = $1 AND user_id = $2 AND exited_at IS NULL`
	v := &models.Visit{}
	var exitedAt sql.NullTime
	err := s.DB.QueryRowContext(ctx, query, sessionID, userID).
		Scan(&v.ID, &v.SessionID, &v.UserID, &v.EnteredAt, &exitedAt)
	if err != nil {
		return nil, notFound(op, err)
	}
	if exitedAt.Valid {
		v.ExitedAt = &exitedAt.Time
	}
	return v, nil
}

// CreateVisit открывает посещение. Повторный вход без выхода блокирует
// индекс ux_visits_open — возвращается ErrInvalidState.
func (s *Storage) CreateVisit(ctx context.Context, sessionID, userID int64) (*models.Visit, error) {
	const op = "storage.CreateVisit"

	query := `INSERT INTO visits (session_id, user_id)
			  VALUES ($1, $2)
			  RETURNING id, session_id, user_id, entered_at`
	v := &models.Visit{}
	err := s.DB.QueryRowContext(ctx, query, sessionID, userID).
		Scan(&v.ID, &v.SessionID, &v.UserID, &v.EnteredAt)
	if err != nil {
		if isUniqueViolation(err, "ux_visits_open") {
			return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidState)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

// CloseVisit закрывает самое свежее открытое посещение пользователя.
func (s *Storage) CloseVisit(ctx context.Context, sessionID, userID int64) error {
	const op = "storage.CloseVisit"

	query := `UPDATE visits SET exited_at = now()
			  WHERE id = (
			      SELECT id FROM visits
			      WHERE session_id = $1 AND user_id = $2 AND exited_at IS NULL
			      ORDER BY entered_at DESC
			      LIMIT 1
			  )`
	res, err := s.DB.ExecContext(ctx, query, sessionID, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrInvalidState)
	}
	return nil
}

// EndSession завершает сессию последним выходящим капитаном: закрытие
// его посещения и деактивация сессии в одной транзакции. Это
// единственный путь завершения сессии.
func (s *Storage) EndSession(ctx context.Context, sessionID, captainID int64) error {
	const op = "storage.EndSession"

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE visits SET exited_at = now()
			 WHERE id = (
			     SELECT id FROM visits
			     WHERE session_id = $1 AND user_id = $2 AND exited_at IS NULL
			     ORDER BY entered_at DESC
			     LIMIT 1
			 )`, sessionID, captainID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return models.ErrInvalidState
		}

		res, err = tx.ExecContext(ctx,
			`UPDATE sessions SET ended_at = now(), active = FALSE
			 WHERE id = $1 AND active`, sessionID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return models.ErrInvalidState
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CountOpenVisits возвращает количество людей внутри.
func (s *Storage) CountOpenVisits(ctx context.Context, sessionID int64) (int, error) {
	const op = "storage.CountOpenVisits"

	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM visits WHERE session_id = $1 AND exited_at IS NULL`,
		sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// ListParticipants возвращает участников с открытым посещением,
// отсортированных по имени.
func (s *Storage) ListParticipants(ctx context.Context, sessionID int64) ([]*models.Participant, error) {
	const op = "storage.ListParticipants"

	query := `SELECT u.user_id, u.name, u.room
			  FROM visits v
			  JOIN users u ON u.user_id = v.user_id
			  WHERE v.session_id = $1 AND v.exited_at IS NULL
			  ORDER BY u.name`
	rows, err := s.DB.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.UserID, &p.Name, &p.Room); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// TransferCaptain передаёт капитанство: запись журнала и обновление
// сессии в одной транзакции.
func (s *Storage) TransferCaptain(ctx context.Context, sessionID, oldCaptainID, newCaptainID int64) error {
	const op = "storage.TransferCaptain"

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO captain_changes (session_id, old_captain_id, new_captain_id)
			 VALUES ($1, $2, $3)`, sessionID, oldCaptainID, newCaptainID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE sessions SET captain_id = $1
			 WHERE id = $2 AND active AND captain_id = $3`,
			newCaptainID, sessionID, oldCaptainID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return models.ErrInvalidState
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SaveStatusMessage запоминает закреплённое статус-сообщение сессии.
func (s *Storage) SaveStatusMessage(ctx context.Context, sessionID, chatID, messageID int64) error {
	const op = "storage.SaveStatusMessage"

	if _, err := s.DB.ExecContext(ctx,
		`UPDATE sessions SET status_chat_id = $1, status_message_id = $2 WHERE id = $3`,
		chatID, messageID, sessionID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListSessionDays возвращает дни, в которые были сессии, свежие первыми.
func (s *Storage) ListSessionDays(ctx context.Context, limit int) ([]string, error) {
	const op = "storage.ListSessionDays"

	query := `SELECT DISTINCT to_char(started_at, 'YYYY-MM-DD') AS d
			  FROM sessions ORDER BY d DESC LIMIT $1`
	rows, err := s.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// SessionHistoryByDay возвращает сессии за день с посещениями и
// передачами капитанства.
func (s *Storage) SessionHistoryByDay(ctx context.Context, day time.Time) ([]*models.SessionHistory, error) {
	const op = "storage.SessionHistoryByDay"

	query := `SELECT ` + sessionColumns + `
			  FROM sessions
			  WHERE started_at >= $1 AND started_at < $2
			  ORDER BY started_at ASC`
	rows, err := s.DB.QueryContext(ctx, query, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.SessionHistory
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &models.SessionHistory{Session: *session})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, h := range result {
		if h.Visits, err = s.listVisitsWithUsers(ctx, h.Session.ID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if h.Changes, err = s.listCaptainChanges(ctx, h.Session.ID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return result, nil
}

func (s *Storage) listVisitsWithUsers(ctx context.Context, sessionID int64) ([]*models.VisitWithUser, error) {
	query := `SELECT v.id, v.session_id, v.user_id, v.entered_at, v.exited_at,
			      u.name, u.room
			  FROM visits v
			  JOIN users u ON u.user_id = v.user_id
			  WHERE v.session_id = $1
			  ORDER BY v.entered_at`
	rows, err := s.DB.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.VisitWithUser
	for rows.Next() {
		var v models.VisitWithUser
		var exitedAt sql.NullTime
		if err := rows.Scan(&v.ID, &v.SessionID, &v.UserID, &v.EnteredAt,
			&exitedAt, &v.Name, &v.Room); err != nil {
			return nil, err
		}
		if exitedAt.Valid {
			v.ExitedAt = &exitedAt.Time
		}
		result = append(result, &v)
	}
	return result, rows.Err()
}

func (s *Storage) listCaptainChanges(ctx context.Context, sessionID int64) ([]*models.CaptainChange, error) {
	query := `SELECT id, session_id, old_captain_id, new_captain_id, changed_at
			  FROM captain_changes
			  WHERE session_id = $1
			  ORDER BY changed_at`
	rows, err := s.DB.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.CaptainChange
	for rows.Next() {
		var c models.CaptainChange
		var oldCaptain sql.NullInt64
		if err := rows.Scan(&c.ID, &c.SessionID, &oldCaptain, &c.NewCaptainID,
			&c.ChangedAt); err != nil {
			return nil, err
		}
		if oldCaptain.Valid {
			c.OldCaptainID = &oldCaptain.Int64
		}
		result = append(result, &c)
	}
	return result, rows.Err()
}

// ClearHistory удаляет посещения, журнал капитанов и сессии одной
// транзакцией, пользователи сохраняются. Факт очистки пишется в журнал
// действий.
func (s *Storage) ClearHistory(ctx context.Context, actorID int64) error {
	const op = "storage.ClearHistory"

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM visits`,
			`DELETE FROM captain_changes`,
			`DELETE FROM sessions`,
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO admin_actions (actor_id, action, details)
			 VALUES ($1, $2, '')`, actorID, models.ActionClearHistory)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
