// Package bot собирает основное приложение: хранилище, кеш, очередь
// уведомлений, сервисы, Telegram-бота и служебный HTTP-сервер.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/streadway/amqp"

	"github.com/nkorotkov/gym-access-bot/internal/cache"
	"github.com/nkorotkov/gym-access-bot/internal/config"
	"github.com/nkorotkov/gym-access-bot/internal/migrations"
	"github.com/nkorotkov/gym-access-bot/internal/rabbitmq"
	adminservice "github.com/nkorotkov/gym-access-bot/internal/services/admin"
	notifierservice "github.com/nkorotkov/gym-access-bot/internal/services/notifier"
	paymentservice "github.com/nkorotkov/gym-access-bot/internal/services/payment"
	registrationservice "github.com/nkorotkov/gym-access-bot/internal/services/registration"
	sessionservice "github.com/nkorotkov/gym-access-bot/internal/services/session"
	subscriptionservice "github.com/nkorotkov/gym-access-bot/internal/services/subscription"
	"github.com/nkorotkov/gym-access-bot/internal/storage/repository"
	"github.com/nkorotkov/gym-access-bot/internal/telegram"
)

// App основное приложение: бот плюс служебный HTTP-сервер.
type App struct {
	server *http.Server
	bot    *telegram.Bot
	logger *slog.Logger
	db     *repository.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New инициализирует все зависимости приложения.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}
	if err = repository.CheckDatabaseReady(db); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		conn.Close()
		return nil, err
	}

	loc := cfg.Location()

	ledger := subscriptionservice.NewLedgerService(db, cacheRedis, logger)
	notifier := notifierservice.NewNotifierService(db, rabbitmq.NewPublisher(ch),
		cfg.Telegram.Admins, loc, logger)
	sessions := sessionservice.NewSessionService(db, ledger, notifier, sessionservice.Hours{
		Location: loc,
		Open:     cfg.Facility.OpenHour,
		Close:    cfg.Facility.CloseHour,
	}, logger)
	payments := paymentservice.NewPaymentService(db, ledger, logger)
	reg := registrationservice.NewRegistrationService(db, logger)
	admins := adminservice.NewAdminService(db, ledger, loc, logger)

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	bot := telegram.New(api, cfg, sessions, ledger, payments, reg, admins, notifier, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, sessions)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		bot:    bot,
		logger: logger,
		db:     db,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run запускает бота и HTTP-сервер до отмены контекста или первой
// фатальной ошибки.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	go func() {
		errCh <- a.bot.Run(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if chErr := a.ch.Close(); chErr != nil {
			a.logger.Error("failed to close channel", slog.Any("err", chErr))
		}
		if connErr := a.conn.Close(); connErr != nil {
			a.logger.Error("failed to close connection", slog.Any("err", connErr))
		}
		a.db.DB.Close()
		return err
	}
}
