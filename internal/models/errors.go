package models

import (
	"errors"
	"fmt"
)

// Ошибки доменного уровня. Сервисы заворачивают их через fmt.Errorf
// с уточнением, вызывающий код различает через errors.Is.
var (
	// ErrAlreadyActive проигрыш гонки за старт сессии: кто-то успел
	// раньше. Не фатально, вызывающий перечитывает состояние.
	ErrAlreadyActive = errors.New("session already active")

	// ErrNotEligible пользователь не проходит условия: заблокирован,
	// не зарегистрирован, нет действующего абонемента, план не
	// разрешает сегодняшний день или факультет.
	ErrNotEligible = errors.New("not eligible")

	// ErrInvalidState операция к объекту не в требуемом статусе:
	// подтверждение уже обработанной заявки, выход без открытого
	// посещения и т.п.
	ErrInvalidState = errors.New("invalid state")

	// ErrNotFound неизвестный референс-код, пользователь или заявка.
	ErrNotFound = errors.New("not found")

	// ErrCaptainMustTransfer капитан пытается выйти, пока внутри есть
	// другие: сначала нужно передать капитанство.
	ErrCaptainMustTransfer = errors.New("captain must transfer before exit")
)

// EligibilityReason машинно-читаемая причина отказа в допуске.
type EligibilityReason string

const (
	ReasonOutsideHours   EligibilityReason = "outside_hours"
	ReasonNotRegistered  EligibilityReason = "not_registered"
	ReasonBlocked        EligibilityReason = "blocked"
	ReasonNoSubscription EligibilityReason = "no_subscription"
	ReasonWrongDay       EligibilityReason = "wrong_day"
)

// NotEligibleError несёт причину отказа в допуске, чтобы транспорт
// выбирал сообщение по Reason через errors.As. errors.Is с
// ErrNotEligible продолжает работать через Unwrap.
type NotEligibleError struct {
	Reason EligibilityReason
	Detail string
}

func (e *NotEligibleError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Detail, ErrNotEligible)
	}
	return fmt.Sprintf("%s: %s", e.Reason, ErrNotEligible)
}

func (e *NotEligibleError) Unwrap() error { return ErrNotEligible }
