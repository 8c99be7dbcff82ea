// Package services содержит административные операции: ручную выдачу
// абонементов, блокировки, отчёты и очистку истории. Проверка ролей
// выполняется на транспортном уровне, сервис отвечает за сами операции
// и их аудит.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator"

	"github.com/nkorotkov/gym-access-bot/internal/lib/plans"
	"github.com/nkorotkov/gym-access-bot/internal/models"
)

// AdminRepository определяет методы хранилища для административных
// операций.
type AdminRepository interface {
	GrantManual(ctx context.Context, actorID, targetID int64, plan string, months int, now time.Time) (time.Time, time.Time, error)
	SetBlocked(ctx context.Context, actorID, targetID int64, blocked bool) error
	ListMembers(ctx context.Context, limit, offset int) ([]*models.Member, error)
	CountMembers(ctx context.Context) (int, error)
	ListAdminActions(ctx context.Context, limit, offset int) ([]*models.AdminAction, error)
	CountAdminActions(ctx context.Context) (int, error)
	ListActiveSubscriptions(ctx context.Context, limit, offset int) ([]*models.ActiveSubscription, error)
	ListSessionDays(ctx context.Context, limit int) ([]string, error)
	SessionHistoryByDay(ctx context.Context, day time.Time) ([]*models.SessionHistory, error)
	ClearHistory(ctx context.Context, actorID int64) error
	User(ctx context.Context, id int64) (*models.User, error)
}

// LedgerInvalidator сбрасывает кеш доступа после ручной выдачи.
type LedgerInvalidator interface {
	Invalidate(ctx context.Context, userID int64)
}

// GrantResult итог ручной выдачи: получатель и начисленный интервал.
type GrantResult struct {
	Target  *models.User
	StartAt time.Time
	EndAt   time.Time
}

// AdminService реализует административные операции.
type AdminService struct {
	repo     AdminRepository
	ledger   LedgerInvalidator
	validate *validator.Validate
	loc      *time.Location
	log      *slog.Logger
}

// NewAdminService создает новый экземпляр AdminService.
func NewAdminService(repo AdminRepository, ledger LedgerInvalidator,
	loc *time.Location, log *slog.Logger) *AdminService {
	return &AdminService{
		repo:     repo,
		ledger:   ledger,
		validate: validator.New(),
		loc:      loc,
		log:      log,
	}
}

// GrantManual выдаёт абонемент без оплаты. Интервал наращивается по
// общему правилу, выдача попадает в журнал действий одной транзакцией.
func (s *AdminService) GrantManual(ctx context.Context, actorID int64, req models.GrantManualRequest) (*GrantResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", models.ErrInvalidState)
	}

	target, err := s.repo.User(ctx, req.TargetID)
	if err != nil {
		return nil, err
	}
	// Ограничение факультета действует и на ручную выдачу.
	if !plans.AllowedForFaculty(target.Faculty, plans.Code(req.Plan)) {
		return nil, fmt.Errorf("plan %s is not available for %s: %w",
			req.Plan, target.Faculty, models.ErrNotEligible)
	}

	start, end, err := s.repo.GrantManual(ctx, actorID, req.TargetID, req.Plan, req.Months, time.Now())
	if err != nil {
		return nil, err
	}
	s.ledger.Invalidate(ctx, req.TargetID)

	s.log.Info("manual grant", slog.Int64("actor_id", actorID),
		slog.Int64("target_id", req.TargetID), slog.String("plan", req.Plan),
		slog.Int("months", req.Months))
	return &GrantResult{Target: target, StartAt: start, EndAt: end}, nil
}

// SetBlocked блокирует или разблокирует пользователя. Блокировка
// закрывает и вход в зал, и создание заявок, но не стирает историю.
func (s *AdminService) SetBlocked(ctx context.Context, actorID, targetID int64, blocked bool) (*models.User, error) {
	target, err := s.repo.User(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetBlocked(ctx, actorID, targetID, blocked); err != nil {
		return nil, err
	}
	target.Blocked = blocked

	s.log.Info("blocked flag changed", slog.Int64("actor_id", actorID),
		slog.Int64("target_id", targetID), slog.Bool("blocked", blocked))
	return target, nil
}

// Members возвращает страницу списка участников и общее количество.
func (s *AdminService) Members(ctx context.Context, limit, offset int) ([]*models.Member, int, error) {
	members, err := s.repo.ListMembers(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountMembers(ctx)
	if err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

// ActionLog возвращает страницу журнала действий администраторов
// и общий размер журнала.
func (s *AdminService) ActionLog(ctx context.Context, limit, offset int) ([]*models.AdminAction, int, error) {
	actions, err := s.repo.ListAdminActions(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountAdminActions(ctx)
	if err != nil {
		return nil, 0, err
	}
	return actions, total, nil
}

// ActiveSubscriptions возвращает действующие сейчас абонементы.
func (s *AdminService) ActiveSubscriptions(ctx context.Context, limit, offset int) ([]*models.ActiveSubscription, error) {
	return s.repo.ListActiveSubscriptions(ctx, limit, offset)
}

// SessionDays возвращает дни с сессиями для меню отчётов.
func (s *AdminService) SessionDays(ctx context.Context, limit int) ([]string, error) {
	return s.repo.ListSessionDays(ctx, limit)
}

// HistoryByDay возвращает историю сессий за день, заданный строкой
// YYYY-MM-DD в часовом поясе зала.
func (s *AdminService) HistoryByDay(ctx context.Context, day string) ([]*models.SessionHistory, error) {
	parsed, err := time.ParseInLocation("2006-01-02", day, s.loc)
	if err != nil {
		return nil, fmt.Errorf("bad day %q: %w", day, models.ErrInvalidState)
	}
	return s.repo.SessionHistoryByDay(ctx, parsed)
}

// ClearHistory удаляет сессии, посещения и журнал капитанов. Анкеты,
// абонементы и заявки сохраняются. Необратимо.
func (s *AdminService) ClearHistory(ctx context.Context, actorID int64) error {
	if err := s.repo.ClearHistory(ctx, actorID); err != nil {
		return err
	}
	s.log.Warn("history cleared", slog.Int64("actor_id", actorID))
	return nil
}
