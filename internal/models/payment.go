package models

import "time"

// PaymentStatus статус заявки на оплату.
type PaymentStatus string

// Переходы: pending -> review -> approved | rejected,
// pending -> rejected (отмена или отклонение без чека).
const (
	PaymentPending  PaymentStatus = "pending"
	PaymentReview   PaymentStatus = "review"
	PaymentApproved PaymentStatus = "approved"
	PaymentRejected PaymentStatus = "rejected"
)

// Open сообщает, находится ли заявка в нетерминальном статусе.
func (s PaymentStatus) Open() bool {
	return s == PaymentPending || s == PaymentReview
}

// Payment заявка на покупку абонемента с полуручной проверкой чека.
type Payment struct {
	ID              int64
	UserID          int64
	Plan            string
	Amount          int    // Сумма в копейках
	AmountUAH       int    // Сумма в гривнах, для показа
	Months          int    // Длительность, 1..9
	DiscountPercent int    // Скидка за длительность, 0..24
	RefCode         string // Уникальный короткий референс-код
	ProofFileID     string // file_id чека (фото или документ), пусто пока не прислан
	Status          PaymentStatus
	Comment         string // Причина отклонения
	CreatedAt       time.Time
	ApprovedAt      *time.Time
	RejectedAt      *time.Time
}

// CreatePaymentRequest входные данные создания заявки.
type CreatePaymentRequest struct {
	Plan   string `validate:"required,oneof=A B UNL"`
	Months int    `validate:"required,min=1,max=9"`
}
