package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nkorotkov/gym-access-bot/internal/lib/plans"
	"github.com/nkorotkov/gym-access-bot/internal/lib/sl"
	"github.com/nkorotkov/gym-access-bot/internal/models"
)

const adminPageSize = 20

func (b *Bot) handleAdminCallback(ctx context.Context, userID int64, cmd, arg string) {
	if !b.cfg.IsAdmin(userID) {
		b.send(userID, msgNotAdmin, nil)
		return
	}

	switch cmd {
	case cbAdminMenu:
		b.dialogs.clear(userID)
		b.send(userID, "Адмінка:", adminMenuKeyboard(b.cfg.IsSuperAdmin(userID)))
	case cbAdminQueue:
		b.showPaymentQueue(ctx, userID)
	case cbAdminApprove:
		b.approvePayment(ctx, userID, parseInt64(arg))
	case cbAdminReject:
		b.dialogs.set(userID, &AdminState{Step: stateRejectReason, PaymentID: parseInt64(arg)})
		b.send(userID, "Вкажи причину відхилення:", nil)
	case cbAdminGrant:
		b.dialogs.set(userID, &AdminState{Step: stateGrantTarget})
		b.send(userID, "Введи Telegram ID отримувача:", nil)
	case cbAdminBlock:
		b.dialogs.set(userID, &AdminState{Step: stateBlockTarget})
		b.send(userID, "Введи Telegram ID користувача (блокування перемикається):", nil)
	case cbAdminMembers:
		b.showMembers(ctx, userID)
	case cbAdminSubs:
		b.showActiveSubscriptions(ctx, userID)
	case cbAdminHistory:
		b.showHistoryDays(ctx, userID)
	case cbAdminDay:
		b.showHistoryDay(ctx, userID, arg)
	case cbAdminLog:
		b.showActionLog(ctx, userID)
	case cbAdminClear:
		if !b.cfg.IsSuperAdmin(userID) {
			b.send(userID, "Очищення історії доступне лише суперадміністраторам.", nil)
			return
		}
		b.send(userID, "Видалити всю історію сесій і відвідувань? Це незворотно. Анкети та абонементи збережуться.",
			clearConfirmKeyboard())
	case cbAdminClearGo:
		if !b.cfg.IsSuperAdmin(userID) {
			return
		}
		if err := b.admins.ClearHistory(ctx, userID); err != nil {
			b.log.Error("failed to clear history", sl.Err(err))
			return
		}
		b.send(userID, "Історію очищено.", nil)
	}
}

// handleAdminInput обрабатывает текстовый шаг незавершённого админского
// диалога.
func (b *Bot) handleAdminInput(ctx context.Context, userID int64, text string) {
	st, ok := b.dialogs.get(userID)
	if !ok {
		return
	}
	text = strings.TrimSpace(text)

	switch st.Step {
	case stateRejectReason:
		if text == "" {
			b.send(userID, "Причина не може бути порожньою. Вкажи причину відхилення:", nil)
			return
		}
		b.dialogs.clear(userID)
		p, err := b.payments.Reject(ctx, st.PaymentID, userID, text)
		if err != nil {
			if errors.Is(err, models.ErrInvalidState) {
				b.send(userID, "Заявку вже розглянуто.", nil)
				return
			}
			b.log.Error("failed to reject payment", sl.Err(err))
			return
		}
		b.send(userID, fmt.Sprintf("Заявку №%d відхилено.", p.ID), nil)
		b.notifier.Direct(ctx, p.UserID,
			fmt.Sprintf("Твою заявку %s відхилено.\nПричина: %s", p.RefCode, text))

	case stateGrantTarget:
		targetID, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			b.send(userID, msgBadInput, nil)
			return
		}
		st.TargetID = targetID
		st.Step = stateGrantPlan
		b.dialogs.set(userID, st)
		b.send(userID, "План (A / B / UNL):", nil)

	case stateGrantPlan:
		plan := strings.ToUpper(text)
		if !plans.Valid(plans.Code(plan)) {
			b.send(userID, msgBadInput, nil)
			return
		}
		st.Plan = plan
		st.Step = stateGrantMonths
		b.dialogs.set(userID, st)
		b.send(userID, "Місяців (1-9):", nil)

	case stateGrantMonths:
		months, err := strconv.Atoi(text)
		if err != nil {
			b.send(userID, msgBadInput, nil)
			return
		}
		b.dialogs.clear(userID)
		res, err := b.admins.GrantManual(ctx, userID, models.GrantManualRequest{
			TargetID: st.TargetID, Plan: st.Plan, Months: months,
		})
		if err != nil {
			switch {
			case errors.Is(err, models.ErrNotFound):
				b.send(userID, "Користувача з таким ID не знайдено.", nil)
			case errors.Is(err, models.ErrNotEligible):
				b.send(userID, msgPlanNotAllowed, nil)
			case errors.Is(err, models.ErrInvalidState):
				b.send(userID, msgBadInput, nil)
			default:
				b.log.Error("failed to grant subscription", sl.Err(err))
			}
			return
		}
		b.send(userID, fmt.Sprintf("Видано %s на %d міс для %s (до %s).",
			res.Target.Name, months, st.Plan, res.EndAt.In(b.loc).Format("02.01.2006")), nil)
		b.notifier.Direct(ctx, st.TargetID,
			fmt.Sprintf("Тобі видано абонемент %s до %s. Гарних тренувань!",
				plans.Name(plans.Code(st.Plan)), res.EndAt.In(b.loc).Format("02.01.2006")))

	case stateBlockTarget:
		targetID, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			b.send(userID, msgBadInput, nil)
			return
		}
		b.dialogs.clear(userID)
		b.toggleBlocked(ctx, userID, targetID)
	}
}

func (b *Bot) toggleBlocked(ctx context.Context, actorID, targetID int64) {
	user, err := b.ledger.User(ctx, targetID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			b.send(actorID, "Користувача з таким ID не знайдено.", nil)
			return
		}
		b.log.Error("failed to load user", sl.Err(err))
		return
	}

	target, err := b.admins.SetBlocked(ctx, actorID, targetID, !user.Blocked)
	if err != nil {
		b.log.Error("failed to toggle block", sl.Err(err))
		return
	}
	if target.Blocked {
		b.send(actorID, fmt.Sprintf("%s заблоковано.", target.Name), nil)
	} else {
		b.send(actorID, fmt.Sprintf("%s розблоковано.", target.Name), nil)
	}
}

func (b *Bot) approvePayment(ctx context.Context, actorID, paymentID int64) {
	res, err := b.payments.Approve(ctx, paymentID, actorID)
	if err != nil {
		if errors.Is(err, models.ErrInvalidState) {
			b.send(actorID, "Заявку вже розглянуто.", nil)
			return
		}
		if errors.Is(err, models.ErrNotFound) {
			b.send(actorID, "Заявку не знайдено.", nil)
			return
		}
		b.log.Error("failed to approve payment", sl.Err(err))
		return
	}

	p := res.Payment
	b.send(actorID, fmt.Sprintf("Заявку №%d підтверджено, абонемент діє до %s.",
		p.ID, res.EndAt.In(b.loc).Format("02.01.2006")), nil)
	b.notifier.Direct(ctx, p.UserID,
		fmt.Sprintf("Оплату %s підтверджено! Абонемент %s діє з %s до %s.",
			p.RefCode, plans.Name(plans.Code(p.Plan)),
			res.StartAt.In(b.loc).Format("02.01.2006"),
			res.EndAt.In(b.loc).Format("02.01.2006")))
}

func (b *Bot) showPaymentQueue(ctx context.Context, userID int64) {
	queue, err := b.payments.Queue(ctx)
	if err != nil {
		b.log.Error("failed to load payment queue", sl.Err(err))
		return
	}
	if len(queue) == 0 {
		b.send(userID, "Черга порожня.", nil)
		return
	}

	for _, p := range queue {
		owner := strconv.FormatInt(p.UserID, 10)
		if u, err := b.ledger.User(ctx, p.UserID); err == nil {
			owner = fmt.Sprintf("%s (к. %s)", u.Name, u.Room)
		}

		// Чек отправляется вместе с кнопками решения, заявка без чека —
		// текстом без кнопок.
		if p.ProofFileID != "" {
			photo := tgbotapi.NewPhoto(userID, tgbotapi.FileID(p.ProofFileID))
			photo.Caption = paymentQueueItemText(p, owner)
			photo.ReplyMarkup = paymentReviewKeyboard(p.ID)
			if _, err := b.api.Send(photo); err != nil {
				// file_id документа не открывается как фото, шлём текстом.
				b.send(userID, paymentQueueItemText(p, owner), paymentReviewKeyboard(p.ID))
			}
			continue
		}
		b.send(userID, paymentQueueItemText(p, owner), nil)
	}
}

func (b *Bot) showMembers(ctx context.Context, userID int64) {
	members, total, err := b.admins.Members(ctx, adminPageSize, 0)
	if err != nil {
		b.log.Error("failed to load members", sl.Err(err))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Учасників: %d\n\n", total)
	for i, m := range members {
		fmt.Fprintf(&sb, "%d. %s (к. %s, %s) — %d відвідувань\n",
			i+1, m.Name, m.Room, m.Faculty, m.Visits)
	}
	b.send(userID, sb.String(), nil)
}

func (b *Bot) showActiveSubscriptions(ctx context.Context, userID int64) {
	subs, err := b.admins.ActiveSubscriptions(ctx, adminPageSize, 0)
	if err != nil {
		b.log.Error("failed to load subscriptions", sl.Err(err))
		return
	}
	if len(subs) == 0 {
		b.send(userID, "Діючих абонементів немає.", nil)
		return
	}

	var sb strings.Builder
	sb.WriteString("Діючі абонементи:\n\n")
	for _, s := range subs {
		fmt.Fprintf(&sb, "%s (к. %s) — %s до %s\n",
			s.Name, s.Room, s.Plan, s.EndAt.In(b.loc).Format("02.01.2006"))
	}
	b.send(userID, sb.String(), nil)
}

func (b *Bot) showHistoryDays(ctx context.Context, userID int64) {
	days, err := b.admins.SessionDays(ctx, 14)
	if err != nil {
		b.log.Error("failed to load session days", sl.Err(err))
		return
	}
	if len(days) == 0 {
		b.send(userID, "Історія порожня.", nil)
		return
	}
	b.send(userID, "Обери день:", historyDaysKeyboard(days))
}

func (b *Bot) showHistoryDay(ctx context.Context, userID int64, day string) {
	history, err := b.admins.HistoryByDay(ctx, day)
	if err != nil {
		b.log.Error("failed to load history", sl.Err(err))
		return
	}
	if len(history) == 0 {
		b.send(userID, "За цей день сесій не було.", nil)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Сесії за %s:\n", day)
	for _, h := range history {
		fmt.Fprintf(&sb, "\n%s", h.Session.StartedAt.In(b.loc).Format("15:04"))
		if h.Session.EndedAt != nil {
			fmt.Fprintf(&sb, " - %s", h.Session.EndedAt.In(b.loc).Format("15:04"))
		}
		sb.WriteString("\n")
		for _, v := range h.Visits {
			fmt.Fprintf(&sb, "  %s (к. %s): %s", v.Name, v.Room,
				v.EnteredAt.In(b.loc).Format("15:04"))
			if v.ExitedAt != nil {
				fmt.Fprintf(&sb, " - %s", v.ExitedAt.In(b.loc).Format("15:04"))
			}
			sb.WriteString("\n")
		}
		if len(h.Changes) > 1 {
			fmt.Fprintf(&sb, "  Передач капітанства: %d\n", len(h.Changes)-1)
		}
	}
	b.send(userID, sb.String(), nil)
}

func (b *Bot) showActionLog(ctx context.Context, userID int64) {
	actions, total, err := b.admins.ActionLog(ctx, adminPageSize, 0)
	if err != nil {
		b.log.Error("failed to load action log", sl.Err(err))
		return
	}
	if len(actions) == 0 {
		b.send(userID, "Журнал порожній.", nil)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Журнал дій (всього %d):\n\n", total)
	for _, a := range actions {
		fmt.Fprintf(&sb, "%s %s: %s",
			a.CreatedAt.In(b.loc).Format("02.01 15:04"), a.ActorName, a.Action)
		if a.TargetName != "" {
			fmt.Fprintf(&sb, " -> %s", a.TargetName)
		}
		if a.Details != "" {
			fmt.Fprintf(&sb, " (%s)", a.Details)
		}
		sb.WriteString("\n")
	}
	b.send(userID, sb.String(), nil)
}
