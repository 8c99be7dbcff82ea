package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nkorotkov/gym-access-bot/internal/lib/sl"
	"github.com/nkorotkov/gym-access-bot/internal/models"
)

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID

	user, err := b.userOrNil(ctx, userID)
	if err != nil {
		b.log.Error("failed to load user", sl.Err(err))
		return
	}
	if user != nil && user.Registered {
		b.sendMainMenu(ctx, userID)
		return
	}

	if err := b.reg.Begin(ctx, userID); err != nil {
		b.log.Error("failed to begin registration", sl.Err(err))
		return
	}
	b.send(userID, msgWelcome, nil)
	b.send(userID, msgAskFirstName, nil)
}

func (b *Bot) handleRegistrationText(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID

	inProgress, err := b.reg.InProgress(ctx, userID)
	if err != nil {
		b.log.Error("failed to check registration", sl.Err(err))
		return
	}
	if !inProgress {
		b.sendMainMenu(ctx, userID)
		return
	}

	step, err := b.reg.HandleText(ctx, userID, msg.From.UserName, msg.Text)
	if err != nil {
		if errors.Is(err, models.ErrInvalidState) {
			b.send(userID, msgBadInput, nil)
			return
		}
		b.log.Error("registration step failed", sl.Err(err))
		return
	}

	switch step {
	case models.StepLastName:
		b.send(userID, msgAskLastName, nil)
	case models.StepRoom:
		b.send(userID, msgAskRoom, nil)
	case models.StepFaculty:
		b.send(userID, msgAskFaculty, facultyKeyboard())
	}
}

func (b *Bot) handleFaculty(ctx context.Context, userID int64, faculty string) {
	if err := b.reg.ChooseFaculty(ctx, userID, faculty); err != nil {
		if errors.Is(err, models.ErrInvalidState) {
			b.send(userID, msgBadInput, nil)
			return
		}
		b.log.Error("failed to set faculty", sl.Err(err))
		return
	}
	b.send(userID, msgRegDone, nil)
	b.sendMainMenu(ctx, userID)
}

// sendMainMenu собирает главное меню с учётом текущего состояния зала
// и пользователя.
func (b *Bot) sendMainMenu(ctx context.Context, userID int64) {
	sessionActive := false
	inside := false
	if st, err := b.sessions.Status(ctx); err == nil {
		sessionActive = true
		for _, p := range st.Participants {
			if p.UserID == userID {
				inside = true
				break
			}
		}
	}
	watching, _ := b.notifier.IsWatching(ctx, userID)

	b.send(userID, "Меню:", mainMenuKeyboard(sessionActive, inside, watching, b.cfg.IsAdmin(userID)))
}

func (b *Bot) handleOpenGym(ctx context.Context, userID int64) {
	session, err := b.sessions.Start(ctx, userID)
	if err != nil {
		b.send(userID, b.accessErrorText(err), nil)
		return
	}
	b.send(userID, "Зал відчинено! Ти — капітан. 👑", nil)
	b.publishStatusPost(ctx, session.ID)
}

func (b *Bot) handleEnter(ctx context.Context, userID int64) {
	visit, err := b.sessions.Enter(ctx, userID)
	if err != nil {
		b.send(userID, b.accessErrorText(err), nil)
		return
	}
	b.send(userID, "Вхід зафіксовано. Гарного тренування!", nil)
	b.refreshStatusPost(ctx, visit.SessionID)
}

func (b *Bot) handleExit(ctx context.Context, userID int64) {
	st, err := b.sessions.Status(ctx)
	if err != nil {
		b.send(userID, msgNoActiveSession, nil)
		return
	}

	res, err := b.sessions.Exit(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrCaptainMustTransfer):
			b.send(userID, msgCaptainMustTransfer, nil)
			b.handleTransferMenu(ctx, userID)
		case errors.Is(err, models.ErrInvalidState):
			b.send(userID, msgNotInside, nil)
		default:
			b.log.Error("exit failed", sl.Err(err))
		}
		return
	}

	if res.SessionEnded {
		b.send(userID, msgSessionEnded, nil)
		b.closeStatusPost(ctx, st.Session)
		return
	}
	b.send(userID, msgExited, nil)
	b.refreshStatusPost(ctx, st.Session.ID)
}

func (b *Bot) handleTransferMenu(ctx context.Context, userID int64) {
	st, err := b.sessions.Status(ctx)
	if err != nil {
		b.send(userID, msgNoActiveSession, nil)
		return
	}
	if st.Session.CaptainID != userID {
		b.send(userID, "Капітанство передає лише капітан.", nil)
		return
	}
	if len(st.Participants) < 2 {
		b.send(userID, "У залі немає кому передати капітанство.", nil)
		return
	}
	b.send(userID, "Кому передати капітанство?", transferKeyboard(st.Participants, userID))
}

func (b *Bot) handleTransferTo(ctx context.Context, userID int64, arg string) {
	newCaptainID := parseInt64(arg)
	if err := b.sessions.TransferCaptaincy(ctx, userID, newCaptainID); err != nil {
		if errors.Is(err, models.ErrInvalidState) {
			b.send(userID, "Передати не вдалося: учасник уже вийшов або сесія завершилась.", nil)
			return
		}
		b.log.Error("transfer failed", sl.Err(err))
		return
	}
	b.send(userID, "Капітанство передано. Тепер можеш вийти.", nil)
	b.notifier.Direct(ctx, newCaptainID, "Тобі передали капітанство. Тепер ти відповідаєш за зал! 👑")

	if st, err := b.sessions.Status(ctx); err == nil {
		b.refreshStatusPost(ctx, st.Session.ID)
	}
}

func (b *Bot) handleMySubscription(ctx context.Context, userID int64) {
	st, err := b.ledger.Status(ctx, userID)
	if err != nil {
		b.log.Error("failed to load subscription status", sl.Err(err))
		return
	}
	b.send(userID, subscriptionStatusText(st), nil)
}

func (b *Bot) handleBuy(ctx context.Context, userID int64) {
	user, err := b.userOrNil(ctx, userID)
	if err != nil {
		b.log.Error("failed to load user", sl.Err(err))
		return
	}
	if user == nil || !user.Registered {
		b.send(userID, msgNotRegistered, nil)
		return
	}
	if user.Blocked {
		b.send(userID, msgBlocked, nil)
		return
	}

	if p, err := b.payments.Active(ctx, userID); err == nil {
		b.send(userID, fmt.Sprintf(msgPaymentOpenFmt, p.RefCode), nil)
		return
	}

	if !user.AcceptedCurrentTerms() {
		b.send(userID, fmt.Sprintf(msgTermsPromptFmt, models.CurrentTermsVersion), termsKeyboard())
		return
	}
	b.send(userID, msgChoosePlan, planKeyboard(user.Faculty))
}

func (b *Bot) handleAcceptTerms(ctx context.Context, userID int64) {
	if err := b.payments.AcceptTerms(ctx, userID); err != nil {
		b.log.Error("failed to accept terms", sl.Err(err))
		return
	}
	user, err := b.userOrNil(ctx, userID)
	if err != nil || user == nil {
		return
	}
	b.send(userID, msgTermsAccepted, planKeyboard(user.Faculty))
}

func (b *Bot) handleChoosePlan(ctx context.Context, userID int64, plan string) {
	b.send(userID, msgChooseMonths, monthsKeyboard(plan))
}

func (b *Bot) handleChooseMonths(ctx context.Context, userID int64, args []string) {
	if len(args) < 2 {
		return
	}
	months, err := strconv.Atoi(args[1])
	if err != nil {
		return
	}

	p, err := b.payments.Create(ctx, userID, models.CreatePaymentRequest{
		Plan:   args[0],
		Months: months,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotEligible):
			b.send(userID, msgPlanNotAllowed, nil)
		case errors.Is(err, models.ErrInvalidState):
			b.send(userID, msgBadInput, nil)
		default:
			b.log.Error("failed to create payment", sl.Err(err))
		}
		return
	}

	b.send(userID, invoiceText(p, b.cfg.Telegram.PaymentCard, b.cfg.Telegram.PaymentHolder), nil)
}

func (b *Bot) handleProof(ctx context.Context, userID int64, fileID string) {
	p, err := b.payments.AttachProof(ctx, userID, fileID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			b.send(userID, msgNoActivePayment, nil)
			return
		}
		b.log.Error("failed to attach proof", sl.Err(err))
		return
	}
	b.send(userID, msgProofReceived, nil)

	if owner, err := b.userOrNil(ctx, userID); err == nil && owner != nil {
		b.notifier.PaymentSubmitted(ctx, p, owner)
	}
}

func (b *Bot) handleCancelPayment(ctx context.Context, userID int64) {
	if _, err := b.payments.Cancel(ctx, userID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			b.send(userID, msgNoActivePayment, nil)
			return
		}
		b.log.Error("failed to cancel payment", sl.Err(err))
		return
	}
	b.send(userID, msgPaymentCancelled, nil)
}

func (b *Bot) handleWatch(ctx context.Context, userID int64, on bool) {
	var err error
	if on {
		err = b.notifier.Watch(ctx, userID)
	} else {
		err = b.notifier.Unwatch(ctx, userID)
	}
	if err != nil {
		b.log.Error("failed to toggle watch", sl.Err(err))
		return
	}
	if on {
		b.send(userID, "Тепер ти на вахті: бот повідомить про відкриття і закриття залу.", nil)
	} else {
		b.send(userID, "Вахту знято.", nil)
	}
}

// accessErrorText переводит доменные ошибки допуска в сообщение для
// пользователя.
func (b *Bot) accessErrorText(err error) string {
	switch {
	case errors.Is(err, models.ErrAlreadyActive):
		return msgSessionAlreadyActive
	case errors.Is(err, models.ErrNotFound):
		return msgNoActiveSession
	case errors.Is(err, models.ErrInvalidState):
		return msgAlreadyInside
	case errors.Is(err, models.ErrNotEligible):
		return eligibilityText(err)
	default:
		b.log.Error("gym operation failed", sl.Err(err))
		return "Сталася помилка, спробуй пізніше."
	}
}

// eligibilityText выбирает сообщение по причине отказа в допуске.
func eligibilityText(err error) string {
	var ne *models.NotEligibleError
	if !errors.As(err, &ne) {
		return msgNoSubscription
	}
	switch ne.Reason {
	case models.ReasonOutsideHours:
		return msgCurfew
	case models.ReasonNotRegistered:
		return msgNotRegistered
	case models.ReasonBlocked:
		return msgBlocked
	case models.ReasonWrongDay:
		return msgWrongDay
	default:
		return msgNoSubscription
	}
}

func (b *Bot) userOrNil(ctx context.Context, userID int64) (*models.User, error) {
	user, err := b.ledger.User(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}
