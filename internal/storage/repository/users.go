package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nkorotkov/gym-access-bot/internal/models"
)

const userColumns = `user_id, name, first_name, last_name, room, faculty, username,
			      registered, blocked, terms_version, terms_accepted_at, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	var firstName, lastName, faculty, username sql.NullString
	var termsAcceptedAt sql.NullTime
	if err := row.Scan(&u.ID, &u.Name, &firstName, &lastName, &u.Room, &faculty,
		&username, &u.Registered, &u.Blocked, &u.TermsVersion, &termsAcceptedAt,
		&u.CreatedAt); err != nil {
		return nil, err
	}
	u.FirstName = firstName.String
	u.LastName = lastName.String
	u.Faculty = faculty.String
	u.Username = username.String
	if termsAcceptedAt.Valid {
		u.TermsAcceptedAt = &termsAcceptedAt.Time
	}
	return u, nil
}

// User возвращает пользователя по Telegram id.
func (s *Storage) User(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.User"

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE user_id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(op, err)
	}
	return u, nil
}

// UpsertRegistration сохраняет анкету после шага ROOM. Повторная
// регистрация сбрасывает registered до повторного выбора факультета.
func (s *Storage) UpsertRegistration(ctx context.Context, user models.User) error {
	const op = "storage.UpsertRegistration"

	query := `INSERT INTO users (user_id, name, first_name, last_name, room, username, registered)
			  VALUES ($1, $2, $3, $4, $5, $6, FALSE)
			  ON CONFLICT (user_id) DO UPDATE
			  SET name = EXCLUDED.name, first_name = EXCLUDED.first_name,
			      last_name = EXCLUDED.last_name, room = EXCLUDED.room,
			      username = EXCLUDED.username, registered = FALSE`
	if _, err := s.DB.ExecContext(ctx, query, user.ID, user.Name, user.FirstName,
		user.LastName, user.Room, user.Username); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetFaculty записывает факультет и завершает регистрацию.
func (s *Storage) SetFaculty(ctx context.Context, userID int64, faculty string) error {
	const op = "storage.SetFaculty"

	query := `UPDATE users SET faculty = $1, registered = TRUE WHERE user_id = $2`
	res, err := s.DB.ExecContext(ctx, query, faculty, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}

// AcceptTerms фиксирует принятие правил указанной версии.
func (s *Storage) AcceptTerms(ctx context.Context, userID int64, version int, at time.Time) error {
	const op = "storage.AcceptTerms"

	query := `UPDATE users SET terms_version = $1, terms_accepted_at = $2 WHERE user_id = $3`
	if _, err := s.DB.ExecContext(ctx, query, version, at, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetBlocked переключает блокировку и в той же транзакции пишет запись
// журнала действий. Возвращает новое значение флага.
func (s *Storage) SetBlocked(ctx context.Context, actorID, targetID int64, blocked bool) error {
	const op = "storage.SetBlocked"

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET blocked = $1 WHERE user_id = $2`, blocked, targetID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return models.ErrNotFound
		}

		action := models.ActionUnblockUser
		if blocked {
			action = models.ActionBlockUser
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO admin_actions (actor_id, action, target_user_id, details)
			 VALUES ($1, $2, $3, '')`, actorID, action, targetID)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListMembers возвращает зарегистрированных участников с количеством
// закрытых посещений, сначала самые активные.
func (s *Storage) ListMembers(ctx context.Context, limit, offset int) ([]*models.Member, error) {
	const op = "storage.ListMembers"

	query := `SELECT u.user_id, u.name, u.room, u.faculty, u.username,
			      COUNT(v.id) AS visits
			  FROM users u
			  LEFT JOIN visits v ON v.user_id = u.user_id AND v.exited_at IS NOT NULL
			  WHERE u.registered
			  GROUP BY u.user_id
			  ORDER BY visits DESC, u.name ASC
			  LIMIT $1 OFFSET $2`
	rows, err := s.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Member
	for rows.Next() {
		var m models.Member
		var faculty, username sql.NullString
		if err := rows.Scan(&m.ID, &m.Name, &m.Room, &faculty, &username,
			&m.Visits); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		m.Faculty = faculty.String
		m.Username = username.String
		m.Registered = true
		result = append(result, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountMembers возвращает количество зарегистрированных участников.
func (s *Storage) CountMembers(ctx context.Context) (int, error) {
	const op = "storage.CountMembers"

	var n int
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE registered`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
