// Package models содержит доменные структуры системы доступа в зал:
// пользователей, сессии, посещения, абонементы, платежи и журнал
// действий администраторов. Структуры используются в бизнес-логике
// и при работе с хранилищем.
package models

import "time"

// Факультеты общежития. Список закрытый, хранится строками как в анкете.
const (
	FacultyIATE = "НН ІАТЕ"
	FacultyISZI = "ІСЗІ"
)

// CurrentTermsVersion актуальная версия правил пользования залом.
// Пользователь без отметки о принятии этой версии не может создавать
// заявки на оплату.
const CurrentTermsVersion = 2

// User представляет участника, идентифицируемого по Telegram id.
// Запись создаётся на первом шаге регистрации и никогда не удаляется,
// только помечается (blocked, registered).
type User struct {
	ID              int64      // Telegram id
	Name            string     // Полное имя ("Имя Фамилия")
	FirstName       string     // Имя
	LastName        string     // Фамилия
	Room            string     // Номер комнаты
	Faculty         string     // Факультет, пустая строка пока не выбран
	Username        string     // @username в Telegram, может быть пустым
	Registered      bool       // Регистрация завершена (факультет выбран)
	Blocked         bool       // Доступ заблокирован администратором
	TermsVersion    int        // Версия принятых правил
	TermsAcceptedAt *time.Time // Время принятия правил
	CreatedAt       time.Time
}

// AcceptedCurrentTerms сообщает, принял ли пользователь действующую
// версию правил.
func (u *User) AcceptedCurrentTerms() bool {
	return u != nil && u.TermsVersion >= CurrentTermsVersion && u.TermsAcceptedAt != nil
}

// Member строка админского списка участников: пользователь плюс
// количество закрытых посещений.
type Member struct {
	User
	Visits int
}
