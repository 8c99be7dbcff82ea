package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nkorotkov/gym-access-bot/internal/lib/plans"
	"github.com/nkorotkov/gym-access-bot/internal/models"
)

// Данные callback-кнопок. Формат "префикс:аргумент".
const (
	cbOpenGym    = "gym:open"
	cbEnter      = "gym:enter"
	cbExit       = "gym:exit"
	cbTransfer   = "gym:transfer"
	cbTransferTo = "gym:transfer_to" // gym:transfer_to:<user_id>

	cbMySub    = "sub:my"
	cbBuy      = "pay:buy"
	cbTerms    = "pay:terms"
	cbPlan     = "pay:plan"   // pay:plan:<code>
	cbMonths   = "pay:months" // pay:months:<code>:<n>
	cbCancel   = "pay:cancel"
	cbWatchOn  = "watch:on"
	cbWatchOff = "watch:off"

	cbFaculty = "reg:faculty" // reg:faculty:<name>

	cbAdminMenu    = "adm:menu"
	cbAdminQueue   = "adm:queue"
	cbAdminApprove = "adm:approve" // adm:approve:<payment_id>
	cbAdminReject  = "adm:reject"  // adm:reject:<payment_id>
	cbAdminGrant   = "adm:grant"
	cbAdminBlock   = "adm:block"
	cbAdminMembers = "adm:members"
	cbAdminSubs    = "adm:subs"
	cbAdminHistory = "adm:history"
	cbAdminDay     = "adm:day" // adm:day:<YYYY-MM-DD>
	cbAdminLog     = "adm:log"
	cbAdminClear   = "adm:clear"
	cbAdminClearGo = "adm:clear_confirm"
)

func mainMenuKeyboard(sessionActive, inside, watching, isAdmin bool) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	switch {
	case !sessionActive:
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏋️ Відчинити зал", cbOpenGym)))
	case !inside:
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➡️ Увійти в зал", cbEnter)))
	default:
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Вийти з залу", cbExit),
			tgbotapi.NewInlineKeyboardButtonData("👑 Передати капітанство", cbTransfer)))
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("💳 Купити абонемент", cbBuy),
		tgbotapi.NewInlineKeyboardButtonData("📋 Мій абонемент", cbMySub)))

	watchBtn := tgbotapi.NewInlineKeyboardButtonData("🔔 Стати на вахту", cbWatchOn)
	if watching {
		watchBtn = tgbotapi.NewInlineKeyboardButtonData("🔕 Зійти з вахти", cbWatchOff)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(watchBtn))

	if isAdmin {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Адмінка", cbAdminMenu)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func facultyKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(models.FacultyIATE, cbFaculty+":"+models.FacultyIATE),
			tgbotapi.NewInlineKeyboardButtonData(models.FacultyISZI, cbFaculty+":"+models.FacultyISZI),
		),
	)
}

func termsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Приймаю", cbTerms)))
}

// planKeyboard показывает планы с ценами, недоступные факультету планы
// не показываются вовсе.
func planKeyboard(faculty string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, code := range []plans.Code{plans.PlanA, plans.PlanB, plans.PlanUnlimited} {
		if !plans.AllowedForFaculty(faculty, code) {
			continue
		}
		label := fmt.Sprintf("%s — %d грн/міс (%s)",
			plans.Name(code), plans.MonthlyPrice(code), plans.DaysText(code))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbPlan+":"+string(code))))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func monthsKeyboard(plan string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for m := plans.MonthsMin; m <= plans.MonthsMax; m++ {
		label := fmt.Sprintf("%d міс — %d грн", m, plans.Total(plans.Code(plan), m))
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label,
			fmt.Sprintf("%s:%s:%d", cbMonths, plan, m)))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func transferKeyboard(participants []*models.Participant, captainID int64) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range participants {
		if p.UserID == captainID {
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s (к. %s)", p.Name, p.Room),
				fmt.Sprintf("%s:%d", cbTransferTo, p.UserID))))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func adminMenuKeyboard(superAdmin bool) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💳 Черга оплат", cbAdminQueue),
			tgbotapi.NewInlineKeyboardButtonData("🎁 Видати абонемент", cbAdminGrant)),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👥 Учасники", cbAdminMembers),
			tgbotapi.NewInlineKeyboardButtonData("📋 Діючі абонементи", cbAdminSubs)),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📅 Історія сесій", cbAdminHistory),
			tgbotapi.NewInlineKeyboardButtonData("📜 Журнал дій", cbAdminLog)),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚫 Блокування", cbAdminBlock)),
	}
	if superAdmin {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Очистити історію", cbAdminClear)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func paymentReviewKeyboard(paymentID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Підтвердити",
				fmt.Sprintf("%s:%d", cbAdminApprove, paymentID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Відхилити",
				fmt.Sprintf("%s:%d", cbAdminReject, paymentID))))
}

func historyDaysKeyboard(days []string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, d := range days {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(d, cbAdminDay+":"+d)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func clearConfirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Так, видалити все", cbAdminClearGo),
			tgbotapi.NewInlineKeyboardButtonData("Скасувати", cbAdminMenu)))
}
