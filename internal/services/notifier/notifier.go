// Package services содержит рассылку событий зала наблюдателям.
// Получатели — объединение подписавшихся на вахту и постоянного списка
// администраторов. Каждое уведомление публикуется в очередь отдельным
// сообщением, доставка best-effort: ошибка по одному получателю не
// мешает остальным.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nkorotkov/gym-access-bot/internal/metrics"
	"github.com/nkorotkov/gym-access-bot/internal/models"
)

// WatcherRepository определяет методы для работы со списком вахты.
type WatcherRepository interface {
	AddWatcher(ctx context.Context, userID int64) error
	RemoveWatcher(ctx context.Context, userID int64) error
	IsWatcher(ctx context.Context, userID int64) (bool, error)
	ListWatchers(ctx context.Context) ([]int64, error)
}

// Publisher публикует сообщение в очередь уведомлений.
type Publisher interface {
	Publish(exchange, routingKey string, message any) error
}

// Exchange и ключ маршрутизации очереди уведомлений.
const (
	notifyExchange   = "notifications"
	notifyRoutingKey = "outbound"
)

// NotifierService реализует рассылку уведомлений.
type NotifierService struct {
	repo   WatcherRepository
	pub    Publisher
	static []int64 // Постоянные получатели (администраторы)
	loc    *time.Location
	log    *slog.Logger
}

// NewNotifierService создает новый экземпляр NotifierService.
func NewNotifierService(repo WatcherRepository, pub Publisher, static []int64,
	loc *time.Location, log *slog.Logger) *NotifierService {
	return &NotifierService{
		repo:   repo,
		pub:    pub,
		static: static,
		loc:    loc,
		log:    log,
	}
}

// SessionStarted рассылает событие открытия зала. Сам капитан
// уведомление не получает.
func (s *NotifierService) SessionStarted(ctx context.Context, captain *models.User, at time.Time) {
	text := fmt.Sprintf("🏋️ Зал відчинено!\nКапітан: %s (кімната %s)\nЧас: %s",
		captain.Name, captain.Room, at.In(s.loc).Format("15:04"))
	s.fanOut(ctx, models.NotifySessionStarted, text, captain.ID)
}

// SessionEnded рассылает событие закрытия зала.
func (s *NotifierService) SessionEnded(ctx context.Context, captain *models.User, at time.Time) {
	text := fmt.Sprintf("🔒 Зал зачинено.\nОстаннім вийшов: %s\nЧас: %s",
		captain.Name, at.In(s.loc).Format("15:04"))
	s.fanOut(ctx, models.NotifySessionEnded, text, captain.ID)
}

// PaymentSubmitted сообщает администраторам о заявке, ожидающей
// рассмотрения. Рассылается только постоянному списку, вахта платежи
// не видит.
func (s *NotifierService) PaymentSubmitted(ctx context.Context, p *models.Payment, owner *models.User) {
	text := fmt.Sprintf("💳 Нова заявка на оплату №%d\n%s, кімната %s\nПлан %s, %d міс, %d грн\nКод: %s",
		p.ID, owner.Name, owner.Room, p.Plan, p.Months, p.AmountUAH, p.RefCode)
	for _, chatID := range s.static {
		s.publish(models.Notification{
			Kind:   models.NotifyPayment,
			ChatID: chatID,
			Text:   text,
		})
	}
}

// VisitorEntered тихо сообщает капитану о входе участника и числе
// людей внутри.
func (s *NotifierService) VisitorEntered(ctx context.Context, captainID int64, visitor *models.User, inside int) {
	s.publish(models.Notification{
		Kind:   models.NotifyDirect,
		ChatID: captainID,
		Text: fmt.Sprintf("➡️ %s (к. %s) увійшов у зал. Зараз всередині: %d.",
			visitor.Name, visitor.Room, inside),
		Silent: true,
	})
}

// VisitorExited тихо сообщает капитану о выходе участника.
func (s *NotifierService) VisitorExited(ctx context.Context, captainID int64, visitor *models.User, inside int) {
	s.publish(models.Notification{
		Kind:   models.NotifyDirect,
		ChatID: captainID,
		Text: fmt.Sprintf("⬅️ %s (к. %s) вийшов із залу. Зараз всередині: %d.",
			visitor.Name, visitor.Room, inside),
		Silent: true,
	})
}

// Direct ставит в очередь личное сообщение одному получателю.
func (s *NotifierService) Direct(ctx context.Context, chatID int64, text string) {
	s.publish(models.Notification{
		Kind:   models.NotifyDirect,
		ChatID: chatID,
		Text:   text,
	})
}

// Watch ставит пользователя на вахту.
func (s *NotifierService) Watch(ctx context.Context, userID int64) error {
	return s.repo.AddWatcher(ctx, userID)
}

// Unwatch снимает пользователя с вахты.
func (s *NotifierService) Unwatch(ctx context.Context, userID int64) error {
	return s.repo.RemoveWatcher(ctx, userID)
}

// IsWatching сообщает, стоит ли пользователь на вахте.
func (s *NotifierService) IsWatching(ctx context.Context, userID int64) (bool, error) {
	return s.repo.IsWatcher(ctx, userID)
}

func (s *NotifierService) fanOut(ctx context.Context, kind models.NotificationKind, text string, exclude int64) {
	watchers, err := s.repo.ListWatchers(ctx)
	if err != nil {
		s.log.Warn("failed to list watchers", slog.Any("err", err))
	}

	seen := make(map[int64]bool, len(watchers)+len(s.static))
	for _, chatID := range append(watchers, s.static...) {
		if chatID == exclude || seen[chatID] {
			continue
		}
		seen[chatID] = true
		s.publish(models.Notification{Kind: kind, ChatID: chatID, Text: text})
	}
}

func (s *NotifierService) publish(n models.Notification) {
	if err := s.pub.Publish(notifyExchange, notifyRoutingKey, n); err != nil {
		metrics.NotificationsFailed.Inc()
		s.log.Warn("failed to publish notification",
			slog.String("kind", string(n.Kind)), slog.Int64("chat_id", n.ChatID),
			slog.Any("err", err))
		return
	}
	metrics.NotificationsPublished.Inc()
}
