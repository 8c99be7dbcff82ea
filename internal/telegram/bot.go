// Package telegram реализует транспортный слой бота: разбор обновлений,
// клавиатуры, тексты и статусное сообщение в групповому чате. Вся
// бизнес-логика живёт в сервисах, здесь только диалог.
package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/nkorotkov/gym-access-bot/internal/config"
	"github.com/nkorotkov/gym-access-bot/internal/lib/sl"
	adminservice "github.com/nkorotkov/gym-access-bot/internal/services/admin"
	notifierservice "github.com/nkorotkov/gym-access-bot/internal/services/notifier"
	paymentservice "github.com/nkorotkov/gym-access-bot/internal/services/payment"
	registrationservice "github.com/nkorotkov/gym-access-bot/internal/services/registration"
	sessionservice "github.com/nkorotkov/gym-access-bot/internal/services/session"
	subscriptionservice "github.com/nkorotkov/gym-access-bot/internal/services/subscription"
)

// Bot связывает Telegram API с сервисами приложения.
type Bot struct {
	api      *tgbotapi.BotAPI
	cfg      *config.Config
	loc      *time.Location
	sessions *sessionservice.SessionService
	ledger   *subscriptionservice.LedgerService
	payments *paymentservice.PaymentService
	reg      *registrationservice.RegistrationService
	admins   *adminservice.AdminService
	notifier *notifierservice.NotifierService
	log      *slog.Logger

	dialogs  *adminStates
	limiters sync.Map // user_id -> *rate.Limiter
}

// New создает бота поверх готовых сервисов.
func New(api *tgbotapi.BotAPI, cfg *config.Config,
	sessions *sessionservice.SessionService,
	ledger *subscriptionservice.LedgerService,
	payments *paymentservice.PaymentService,
	reg *registrationservice.RegistrationService,
	admins *adminservice.AdminService,
	notifier *notifierservice.NotifierService,
	log *slog.Logger) *Bot {
	return &Bot{
		api:      api,
		cfg:      cfg,
		loc:      cfg.Location(),
		sessions: sessions,
		ledger:   ledger,
		payments: payments,
		reg:      reg,
		admins:   admins,
		notifier: notifier,
		log:      log,
		dialogs:  newAdminStates(),
	}
}

// Run получает обновления long polling и обрабатывает их до отмены
// контекста.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	b.log.Info("bot started", slog.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.log.Info("bot shutting down gracefully")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic in update handler", slog.Any("panic", r))
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		if !b.allow(update.CallbackQuery.From.ID) {
			return
		}
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		if !b.allow(update.Message.From.ID) {
			return
		}
		b.handleMessage(ctx, update.Message)
	}
}

// allow ограничивает частоту обращений одного пользователя, чтобы
// кнопочный спам не забивал базу.
func (b *Bot) allow(userID int64) bool {
	v, _ := b.limiters.LoadOrStore(userID, rate.NewLimiter(rate.Every(time.Second), 3))
	return v.(*rate.Limiter).Allow()
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil || !msg.Chat.IsPrivate() {
		return
	}
	userID := msg.From.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.handleStart(ctx, msg)
		case "menu":
			b.sendMainMenu(ctx, userID)
		case "cancel":
			b.handleCancelPayment(ctx, userID)
		case "admin":
			if b.cfg.IsAdmin(userID) {
				b.send(userID, "Адмінка:", adminMenuKeyboard(b.cfg.IsSuperAdmin(userID)))
			} else {
				b.send(userID, msgNotAdmin, nil)
			}
		case "pushstatus":
			if b.cfg.IsAdmin(userID) {
				b.handlePushStatus(ctx, userID)
			} else {
				b.send(userID, msgNotAdmin, nil)
			}
		}
		return
	}

	// Фото или документ в личке — чек к открытой заявке.
	if fileID := proofFileID(msg); fileID != "" {
		b.handleProof(ctx, userID, fileID)
		return
	}

	if msg.Text != "" {
		// Сначала админские диалоги, затем шаги регистрации.
		if b.cfg.IsAdmin(userID) {
			if _, ok := b.dialogs.get(userID); ok {
				b.handleAdminInput(ctx, userID, msg.Text)
				return
			}
		}
		b.handleRegistrationText(ctx, msg)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// Кнопка должна мигнуть даже при ошибке обработчика.
	defer func() {
		if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			b.log.Warn("failed to answer callback", sl.Err(err))
		}
	}()

	userID := cb.From.ID

	// Команды вида "ns:action" или "ns:action:arg[:arg2]".
	parts := strings.SplitN(cb.Data, ":", 4)
	cmd := parts[0]
	if len(parts) > 1 {
		cmd += ":" + parts[1]
	}
	args := parts[2:]
	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}

	switch cmd {
	case cbOpenGym:
		b.handleOpenGym(ctx, userID)
	case cbEnter:
		b.handleEnter(ctx, userID)
	case cbExit:
		b.handleExit(ctx, userID)
	case cbTransfer:
		b.handleTransferMenu(ctx, userID)
	case cbTransferTo:
		b.handleTransferTo(ctx, userID, arg)
	case cbMySub:
		b.handleMySubscription(ctx, userID)
	case cbBuy:
		b.handleBuy(ctx, userID)
	case cbTerms:
		b.handleAcceptTerms(ctx, userID)
	case cbPlan:
		b.handleChoosePlan(ctx, userID, arg)
	case cbMonths:
		b.handleChooseMonths(ctx, userID, args)
	case cbCancel:
		b.handleCancelPayment(ctx, userID)
	case cbWatchOn:
		b.handleWatch(ctx, userID, true)
	case cbWatchOff:
		b.handleWatch(ctx, userID, false)
	case cbFaculty:
		b.handleFaculty(ctx, userID, arg)
	default:
		if strings.HasPrefix(cmd, "adm:") {
			b.handleAdminCallback(ctx, userID, cmd, arg)
		}
	}
}

func proofFileID(msg *tgbotapi.Message) string {
	if len(msg.Photo) > 0 {
		return msg.Photo[len(msg.Photo)-1].FileID
	}
	if msg.Document != nil {
		return msg.Document.FileID
	}
	return ""
}

// send отправляет сообщение, ошибки только логируются: диалог не должен
// падать из-за недоступности Telegram.
func (b *Bot) send(chatID int64, text string, keyboard any) {
	msg := tgbotapi.NewMessage(chatID, text)
	if keyboard != nil {
		msg.ReplyMarkup = keyboard
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("failed to send message", slog.Int64("chat_id", chatID), sl.Err(err))
	}
}

func parseInt64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
