// Package services содержит бизнес-логику реестра абонементов:
// проверку доступа, статус пользователя и кеширование.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nkorotkov/gym-access-bot/internal/lib/plans"
	"github.com/nkorotkov/gym-access-bot/internal/models"
)

// LedgerRepository определяет методы для работы с абонементами в хранилище.
type LedgerRepository interface {
	// CurrentSubscription возвращает интервал, действующий сейчас, или ErrNotFound.
	CurrentSubscription(ctx context.Context, userID int64) (*models.Subscription, error)
	// NextSubscription возвращает ближайший будущий интервал или ErrNotFound.
	NextSubscription(ctx context.Context, userID int64) (*models.Subscription, error)
	// LastSubscription возвращает интервал с самым поздним концом или ErrNotFound.
	LastSubscription(ctx context.Context, userID int64) (*models.Subscription, error)
	// User возвращает пользователя по Telegram id.
	User(ctx context.Context, id int64) (*models.User, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(ctx context.Context, key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(ctx context.Context, key string) error
}

// Status сводка доступа пользователя для команды "мой абонемент".
type Status struct {
	Current *models.Subscription
	Next    *models.Subscription
	Last    *models.Subscription
}

// LedgerService реализует бизнес-логику реестра абонементов.
type LedgerService struct {
	repo  LedgerRepository
	cache Cache
	log   *slog.Logger
}

// NewLedgerService создает новый экземпляр LedgerService.
func NewLedgerService(repo LedgerRepository, cache Cache, log *slog.Logger) *LedgerService {
	return &LedgerService{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// Время жизни кеша короткое: абонемент может закончиться в любую минуту.
const cacheTTL = time.Minute

func cacheKey(userID int64) string {
	return fmt.Sprintf("subscription:current:%d", userID)
}

// Current возвращает действующий сейчас интервал пользователя, используя
// кеш или репозиторий. Отсутствие интервала не кешируется.
func (s *LedgerService) Current(ctx context.Context, userID int64) (*models.Subscription, error) {
	var cached models.Subscription
	key := cacheKey(userID)
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("failed to read from cache", slog.String("key", key), slog.Any("err", err))
	}
	if found && cached.Contains(time.Now()) {
		return &cached, nil
	}

	sub, err := s.repo.CurrentSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, sub, cacheTTL); err != nil {
		s.log.Warn("failed to cache subscription", slog.String("key", key), slog.Any("err", err))
	}
	return sub, nil
}

// Invalidate сбрасывает кеш пользователя. Вызывается после подтверждения
// оплаты или ручной выдачи, чтобы новый интервал был виден сразу.
func (s *LedgerService) Invalidate(ctx context.Context, userID int64) {
	if err := s.cache.Invalidate(ctx, cacheKey(userID)); err != nil {
		s.log.Warn("failed to invalidate cache", slog.Int64("user_id", userID), slog.Any("err", err))
	}
}

// User возвращает пользователя по Telegram id.
func (s *LedgerService) User(ctx context.Context, id int64) (*models.User, error) {
	return s.repo.User(ctx, id)
}

// Status возвращает сводку по абонементам пользователя: действующий,
// ближайший будущий и последний по дате конца.
func (s *LedgerService) Status(ctx context.Context, userID int64) (*Status, error) {
	st := &Status{}
	var err error

	if st.Current, err = s.Current(ctx, userID); err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if st.Next, err = s.repo.NextSubscription(ctx, userID); err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if st.Last, err = s.repo.LastSubscription(ctx, userID); err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	return st, nil
}

// CheckAccess проверяет право пользователя находиться в зале в момент at:
// регистрация завершена, не заблокирован, есть действующий абонемент и
// его план разрешает этот день недели. Момент at передаётся уже в часовом
// поясе зала. Любой провал — ErrNotEligible.
func (s *LedgerService) CheckAccess(ctx context.Context, userID int64, at time.Time) (*models.Subscription, error) {
	user, err := s.repo.User(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, &models.NotEligibleError{
				Reason: models.ReasonNotRegistered, Detail: "user not registered"}
		}
		return nil, err
	}
	if !user.Registered {
		return nil, &models.NotEligibleError{
			Reason: models.ReasonNotRegistered, Detail: "registration not finished"}
	}
	if user.Blocked {
		return nil, &models.NotEligibleError{Reason: models.ReasonBlocked}
	}

	sub, err := s.Current(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, &models.NotEligibleError{Reason: models.ReasonNoSubscription}
		}
		return nil, err
	}
	if !plans.AllowedOn(plans.Code(sub.Plan), at.Weekday()) {
		return nil, &models.NotEligibleError{
			Reason: models.ReasonWrongDay,
			Detail: fmt.Sprintf("plan %s does not cover %s", sub.Plan, at.Weekday()),
		}
	}
	return sub, nil
}
