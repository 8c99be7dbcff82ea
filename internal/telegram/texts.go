package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/nkorotkov/gym-access-bot/internal/lib/plans"
	"github.com/nkorotkov/gym-access-bot/internal/models"
	sessionservice "github.com/nkorotkov/gym-access-bot/internal/services/session"
	subscriptionservice "github.com/nkorotkov/gym-access-bot/internal/services/subscription"
)

// Тексты бота. Интерфейс общается с жильцами на украинском,
// формат сообщений повторяет исходного бота общежития.
const (
	msgWelcome = "Привіт! Це бот спортзалу гуртожитку.\n" +
		"Щоб користуватися залом, спершу зареєструйся."

	msgAskFirstName = "Введи своє ім'я:"
	msgAskLastName  = "Введи своє прізвище:"
	msgAskRoom      = "Введи номер кімнати:"
	msgAskFaculty   = "Обери свій факультет:"
	msgRegDone      = "Реєстрацію завершено! Тепер можна купити абонемент і ходити в зал."
	msgBadInput     = "Некоректне значення, спробуй ще раз."

	msgNotRegistered  = "Спершу потрібно зареєструватися: натисни /start."
	msgBlocked        = "Твій доступ заблоковано. Звернись до адміністратора."
	msgNoSubscription = "У тебе немає діючого абонемента. Оформи оплату через меню."
	msgWrongDay       = "Твій план не передбачає відвідування сьогодні."
	msgCurfew         = "Зал працює з 06:00 до 23:00."

	msgSessionAlreadyActive = "Зал уже відчинено — можеш увійти."
	msgNoActiveSession      = "Зал зараз зачинено. Перший, хто прийде, стає капітаном."
	msgAlreadyInside        = "Ти вже в залі."
	msgNotInside            = "Ти зараз не в залі."
	msgCaptainMustTransfer  = "Ти капітан, а в залі ще є люди. Спершу передай капітанство."
	msgSessionEnded         = "Зал зачинено. Гарного відпочинку!"
	msgExited               = "Вихід зафіксовано."

	msgTermsPromptFmt = "Перед оплатою потрібно прийняти правила користування залом (версія %d).\n" +
		"Натискаючи «Приймаю», ти погоджуєшся з правилами."
	msgTermsAccepted = "Правила прийнято. Тепер обери план."

	msgChoosePlan   = "Обери тарифний план:"
	msgChooseMonths = "На скільки місяців? (1-9, знижка 3% за кожен місяць після першого, максимум 24%)"

	msgPaymentCancelled = "Заявку скасовано."
	msgNoActivePayment  = "У тебе немає відкритої заявки на оплату."
	msgPaymentOpenFmt   = "У тебе вже є відкрита заявка %s. Сплати або скасуй її командою /cancel."
	msgProofReceived    = "Чек отримано, заявка на розгляді. Адміністратор перевірить оплату найближчим часом."
	msgPlanNotAllowed   = "Цей план недоступний для твого факультету."

	msgNotAdmin = "Команда доступна лише адміністраторам."
)

func invoiceText(p *models.Payment, card, holder string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Заявка №%d\n", p.ID)
	fmt.Fprintf(&b, "План: %s (%s)\n", plans.Name(plans.Code(p.Plan)), plans.DaysText(plans.Code(p.Plan)))
	fmt.Fprintf(&b, "Місяців: %d\n", p.Months)
	if p.DiscountPercent > 0 {
		fmt.Fprintf(&b, "Знижка: %d%%\n", p.DiscountPercent)
	}
	fmt.Fprintf(&b, "До сплати: %d грн\n\n", p.AmountUAH)
	fmt.Fprintf(&b, "Картка: %s (%s)\n", card, holder)
	fmt.Fprintf(&b, "У коментарі до переказу вкажи код: %s\n\n", p.RefCode)
	b.WriteString("Після оплати надішли сюди фото або скрін чека.")
	return b.String()
}

func subscriptionStatusText(st *subscriptionservice.Status) string {
	if st.Current == nil && st.Next == nil {
		if st.Last != nil {
			return fmt.Sprintf("Абонемент закінчився %s.\nОформи новий через меню.",
				st.Last.EndAt.Format("02.01.2006"))
		}
		return msgNoSubscription
	}

	var b strings.Builder
	if st.Current != nil {
		fmt.Fprintf(&b, "Діючий абонемент: %s\n%s\nДіє до: %s\n",
			plans.Name(plans.Code(st.Current.Plan)),
			plans.Description(plans.Code(st.Current.Plan)),
			st.Current.EndAt.Format("02.01.2006 15:04"))
	}
	if st.Next != nil {
		fmt.Fprintf(&b, "\nНаступний: %s з %s до %s",
			plans.Name(plans.Code(st.Next.Plan)),
			st.Next.StartAt.Format("02.01.2006"),
			st.Next.EndAt.Format("02.01.2006"))
	}
	return b.String()
}

func statusPostText(st *sessionservice.SessionStatus, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("🏋️ ЗАЛ ВІДЧИНЕНО\n\n")
	fmt.Fprintf(&b, "Відчинено о %s\n", st.Session.StartedAt.In(loc).Format("15:04"))
	fmt.Fprintf(&b, "Капітан: %s (к. %s)\n\n", st.Captain.Name, st.Captain.Room)
	fmt.Fprintf(&b, "Зараз у залі (%d):\n", len(st.Participants))
	for i, p := range st.Participants {
		fmt.Fprintf(&b, "%d. %s (к. %s)\n", i+1, p.Name, p.Room)
	}
	return b.String()
}

func closedPostText(endedAt time.Time, loc *time.Location) string {
	return fmt.Sprintf("🔒 ЗАЛ ЗАЧИНЕНО\n\nЗачинено о %s", endedAt.In(loc).Format("15:04"))
}

func paymentQueueItemText(p *models.Payment, owner string) string {
	status := map[models.PaymentStatus]string{
		models.PaymentPending: "очікує чек",
		models.PaymentReview:  "на розгляді",
	}[p.Status]
	return fmt.Sprintf("№%d — %s, план %s, %d міс, %d грн, код %s (%s)",
		p.ID, owner, p.Plan, p.Months, p.AmountUAH, p.RefCode, status)
}
