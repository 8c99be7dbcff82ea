// Package services содержит бизнес-логику сессий зала: старт, вход,
// выход, передачу капитанства и завершение. Правило одной активной
// сессии обеспечивает хранилище, сервис отвечает за условия допуска
// и порядок операций.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nkorotkov/gym-access-bot/internal/metrics"
	"github.com/nkorotkov/gym-access-bot/internal/models"
)

// SessionRepository определяет методы для работы с сессиями и
// посещениями в хранилище.
type SessionRepository interface {
	ActiveSession(ctx context.Context) (*models.Session, error)
	StartSession(ctx context.Context, captainID int64) (*models.Session, error)
	OpenVisit(ctx context.Context, sessionID, userID int64) (*models.Visit, error)
	CreateVisit(ctx context.Context, sessionID, userID int64) (*models.Visit, error)
	CloseVisit(ctx context.Context, sessionID, userID int64) error
	EndSession(ctx context.Context, sessionID, captainID int64) error
	CountOpenVisits(ctx context.Context, sessionID int64) (int, error)
	ListParticipants(ctx context.Context, sessionID int64) ([]*models.Participant, error)
	TransferCaptain(ctx context.Context, sessionID, oldCaptainID, newCaptainID int64) error
	SaveStatusMessage(ctx context.Context, sessionID, chatID, messageID int64) error
	User(ctx context.Context, id int64) (*models.User, error)
}

// AccessChecker проверяет право пользователя находиться в зале.
type AccessChecker interface {
	CheckAccess(ctx context.Context, userID int64, at time.Time) (*models.Subscription, error)
}

// Notifier рассылает события сессий наблюдателям. Доставка best-effort,
// ошибки не влияют на саму операцию.
type Notifier interface {
	SessionStarted(ctx context.Context, captain *models.User, at time.Time)
	SessionEnded(ctx context.Context, captain *models.User, at time.Time)
	VisitorEntered(ctx context.Context, captainID int64, visitor *models.User, inside int)
	VisitorExited(ctx context.Context, captainID int64, visitor *models.User, inside int)
}

// Hours часы работы зала: [Open, Close) в часовом поясе Location.
type Hours struct {
	Location *time.Location
	Open     int
	Close    int
}

// Contains сообщает, попадает ли момент t в часы работы.
func (h Hours) Contains(t time.Time) bool {
	hour := t.In(h.Location).Hour()
	return hour >= h.Open && hour < h.Close
}

// ExitResult итог выхода: завершилась ли сессия целиком.
type ExitResult struct {
	SessionEnded bool
}

// SessionStatus снимок активной сессии для статусного сообщения.
type SessionStatus struct {
	Session      *models.Session
	Captain      *models.User
	Participants []*models.Participant
}

// SessionService реализует бизнес-логику сессий.
type SessionService struct {
	repo     SessionRepository
	access   AccessChecker
	notifier Notifier
	hours    Hours
	log      *slog.Logger
}

// NewSessionService создает новый экземпляр SessionService.
func NewSessionService(repo SessionRepository, access AccessChecker, notifier Notifier,
	hours Hours, log *slog.Logger) *SessionService {
	return &SessionService{
		repo:     repo,
		access:   access,
		notifier: notifier,
		hours:    hours,
		log:      log,
	}
}

// Start открывает новую сессию с инициатором в роли капитана. Вне часов
// работы и без действующего допуска старт запрещён. Если активная сессия
// уже есть, возвращается ErrAlreadyActive и вызывающий предлагает вход.
func (s *SessionService) Start(ctx context.Context, userID int64) (*models.Session, error) {
	now := time.Now().In(s.hours.Location)
	if !s.hours.Contains(now) {
		return nil, &models.NotEligibleError{Reason: models.ReasonOutsideHours}
	}
	if _, err := s.access.CheckAccess(ctx, userID, now); err != nil {
		return nil, err
	}

	session, err := s.repo.StartSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.log.Info("session started",
		slog.Int64("session_id", session.ID), slog.Int64("captain_id", userID))
	metrics.SessionsStarted.Inc()
	metrics.Visits.Inc()

	if captain, err := s.repo.User(ctx, userID); err == nil {
		s.notifier.SessionStarted(ctx, captain, session.StartedAt)
	}
	return session, nil
}

// Enter присоединяет пользователя к активной сессии. Без активной сессии
// входа нет: первый пришедший стартует сессию сам.
func (s *SessionService) Enter(ctx context.Context, userID int64) (*models.Visit, error) {
	now := time.Now().In(s.hours.Location)
	if !s.hours.Contains(now) {
		return nil, &models.NotEligibleError{Reason: models.ReasonOutsideHours}
	}

	session, err := s.repo.ActiveSession(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.CheckAccess(ctx, userID, now); err != nil {
		return nil, err
	}

	visit, err := s.repo.CreateVisit(ctx, session.ID, userID)
	if err != nil {
		return nil, err
	}
	s.log.Info("user entered",
		slog.Int64("session_id", session.ID), slog.Int64("user_id", userID))
	metrics.Visits.Inc()

	if userID != session.CaptainID {
		s.notifyCaptain(ctx, session, userID, s.notifier.VisitorEntered)
	}
	return visit, nil
}

// notifyCaptain тихо уведомляет капитана о входе или выходе участника.
func (s *SessionService) notifyCaptain(ctx context.Context, session *models.Session, visitorID int64,
	notify func(ctx context.Context, captainID int64, visitor *models.User, inside int)) {
	visitor, err := s.repo.User(ctx, visitorID)
	if err != nil {
		return
	}
	inside, err := s.repo.CountOpenVisits(ctx, session.ID)
	if err != nil {
		return
	}
	notify(ctx, session.CaptainID, visitor, inside)
}

// Exit закрывает посещение пользователя. Капитан с людьми внутри выйти
// не может: сначала передача капитанства. Выход последнего (капитана)
// завершает сессию.
func (s *SessionService) Exit(ctx context.Context, userID int64) (*ExitResult, error) {
	session, err := s.repo.ActiveSession(ctx)
	if err != nil {
		return nil, err
	}

	if session.CaptainID == userID {
		inside, err := s.repo.CountOpenVisits(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		if inside > 1 {
			return nil, fmt.Errorf("%d users still inside: %w", inside-1, models.ErrCaptainMustTransfer)
		}

		if err := s.repo.EndSession(ctx, session.ID, userID); err != nil {
			return nil, err
		}
		s.log.Info("session ended", slog.Int64("session_id", session.ID))
		metrics.SessionsEnded.Inc()

		if captain, err := s.repo.User(ctx, userID); err == nil {
			s.notifier.SessionEnded(ctx, captain, time.Now())
		}
		return &ExitResult{SessionEnded: true}, nil
	}

	if err := s.repo.CloseVisit(ctx, session.ID, userID); err != nil {
		return nil, err
	}
	s.log.Info("user exited",
		slog.Int64("session_id", session.ID), slog.Int64("user_id", userID))

	s.notifyCaptain(ctx, session, userID, s.notifier.VisitorExited)
	return &ExitResult{}, nil
}

// TransferCaptaincy передаёт капитанство участнику с открытым
// посещением. Передача возможна только действующим капитаном.
func (s *SessionService) TransferCaptaincy(ctx context.Context, captainID, newCaptainID int64) error {
	session, err := s.repo.ActiveSession(ctx)
	if err != nil {
		return err
	}
	if session.CaptainID != captainID {
		return fmt.Errorf("user %d is not the captain: %w", captainID, models.ErrInvalidState)
	}
	if captainID == newCaptainID {
		return fmt.Errorf("captain transfers to himself: %w", models.ErrInvalidState)
	}

	if _, err := s.repo.OpenVisit(ctx, session.ID, newCaptainID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("new captain is not inside: %w", models.ErrInvalidState)
		}
		return err
	}

	if err := s.repo.TransferCaptain(ctx, session.ID, captainID, newCaptainID); err != nil {
		return err
	}
	s.log.Info("captain transferred", slog.Int64("session_id", session.ID),
		slog.Int64("old_captain_id", captainID), slog.Int64("new_captain_id", newCaptainID))
	return nil
}

// Status возвращает снимок активной сессии: капитан и участники внутри.
func (s *SessionService) Status(ctx context.Context) (*SessionStatus, error) {
	session, err := s.repo.ActiveSession(ctx)
	if err != nil {
		return nil, err
	}

	st := &SessionStatus{Session: session}
	if st.Captain, err = s.repo.User(ctx, session.CaptainID); err != nil {
		return nil, err
	}
	if st.Participants, err = s.repo.ListParticipants(ctx, session.ID); err != nil {
		return nil, err
	}
	return st, nil
}

// SaveStatusMessage запоминает закреплённое статус-сообщение сессии.
func (s *SessionService) SaveStatusMessage(ctx context.Context, sessionID, chatID, messageID int64) error {
	return s.repo.SaveStatusMessage(ctx, sessionID, chatID, messageID)
}
