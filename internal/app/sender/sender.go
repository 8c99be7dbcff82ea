// Package sender собирает сервис доставки уведомлений: потребителя
// очереди и транспорт в Telegram.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/streadway/amqp"

	"github.com/nkorotkov/gym-access-bot/internal/config"
	"github.com/nkorotkov/gym-access-bot/internal/rabbitmq"
	senderservice "github.com/nkorotkov/gym-access-bot/internal/services/sender"
	"github.com/nkorotkov/gym-access-bot/internal/telegram"
)

// App сервис доставки уведомлений.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

// New инициализирует подключение к очереди и транспорт доставки.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		conn.Close()
		return nil, err
	}

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	senderService := senderservice.NewSenderService(telegram.NewTransport(api), logger)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

// Run потребляет очередь уведомлений до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	queues := rabbitmq.GetNotificationQueues()
	for _, q := range queues {
		if err := rabbitmq.ConsumerMessage(ctx, a.ch, q.QueueName, a.senderService.HandleNotification); err != nil {
			a.logger.Error("failed to start consumer",
				slog.String("queue", q.QueueName), slog.Any("err", err))
			return err
		}
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}
	return nil
}
