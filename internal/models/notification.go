package models

// NotificationKind тип события для доставки наблюдателям.
type NotificationKind string

const (
	NotifySessionStarted NotificationKind = "session_started"
	NotifySessionEnded   NotificationKind = "session_ended"
	NotifyPayment        NotificationKind = "payment"
	NotifyDirect         NotificationKind = "direct"
)

// Notification единица доставки: одно сообщение одному получателю.
// Публикуется в очередь и доставляется сервисом отправки best-effort,
// без повторов.
type Notification struct {
	Kind   NotificationKind `json:"kind"`
	ChatID int64            `json:"chat_id"`
	Text   string           `json:"text"`
	Silent bool             `json:"silent,omitempty"`
}
