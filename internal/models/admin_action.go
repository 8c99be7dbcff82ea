package models

import "time"

// Виды привилегированных действий, записываемых в журнал.
const (
	ActionApprovePayment = "approve_payment"
	ActionRejectPayment  = "reject_payment"
	ActionGrantManual    = "grant_manual"
	ActionBlockUser      = "block_user"
	ActionUnblockUser    = "unblock_user"
	ActionClearHistory   = "clear_history"
)

// AdminAction запись append-only журнала действий администраторов.
// Пишется в одной транзакции с самим привилегированным изменением.
type AdminAction struct {
	ID           int64
	ActorID      int64
	Action       string
	TargetUserID *int64
	PaymentID    *int64
	Details      string
	CreatedAt    time.Time

	// Имена для отчётов, заполняются выборкой с JOIN.
	ActorName  string
	TargetName string
}

// GrantManualRequest входные данные ручной выдачи абонемента.
type GrantManualRequest struct {
	TargetID int64  `validate:"required"`
	Plan     string `validate:"required,oneof=A B UNL"`
	Months   int    `validate:"required,min=1,max=9"`
}
