// Package services содержит доставку уведомлений из очереди в Telegram.
package services

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nkorotkov/gym-access-bot/internal/lib/sl"
	"github.com/nkorotkov/gym-access-bot/internal/models"
)

// Transport отправляет одно сообщение в Telegram.
type Transport interface {
	Send(chatID int64, text string, silent bool) error
}

// SenderService потребляет очередь уведомлений и доставляет их.
type SenderService struct {
	transport Transport
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(transport Transport, log *slog.Logger) *SenderService {
	return &SenderService{
		transport: transport,
		log:       log,
	}
}

// HandleNotification обрабатывает одно сообщение очереди. Битый JSON
// подтверждается без доставки, иначе сообщение зациклится в requeue.
func (s *SenderService) HandleNotification(body []byte) error {
	var n models.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		s.log.Error("failed to unmarshal notification, dropping", sl.Err(err))
		return nil
	}
	if n.ChatID == 0 || n.Text == "" {
		s.log.Error("notification without recipient or text, dropping",
			slog.String("kind", string(n.Kind)))
		return nil
	}

	if err := s.transport.Send(n.ChatID, n.Text, n.Silent); err != nil {
		s.log.Error("failed to deliver notification",
			slog.String("kind", string(n.Kind)), slog.Int64("chat_id", n.ChatID), sl.Err(err))
		return fmt.Errorf("deliver notification: %w", err)
	}

	s.log.Info("notification delivered",
		slog.String("kind", string(n.Kind)), slog.Int64("chat_id", n.ChatID))
	return nil
}
