package models

import "time"

// Subscription полуоткрытый интервал доступа [StartAt, EndAt) по
// тарифному плану. Интервалы только добавляются (подтверждением оплаты
// или ручной выдачей), никогда не перезаписываются; доступ пользователя —
// объединение всех его интервалов.
type Subscription struct {
	ID        int64
	UserID    int64
	Plan      string
	StartAt   time.Time
	EndAt     time.Time
	CreatedAt time.Time
}

// Contains сообщает, попадает ли момент t в интервал: start <= t < end.
func (s *Subscription) Contains(t time.Time) bool {
	return s != nil && !t.Before(s.StartAt) && t.Before(s.EndAt)
}

// ActiveSubscription строка админского списка действующих абонементов.
type ActiveSubscription struct {
	Subscription
	Name     string
	Room     string
	Faculty  string
	Username string
}
