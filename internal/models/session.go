package models

import "time"

// Session одно непрерывное окно занятости зала. В любой момент времени
// активной может быть не более одной сессии — это обеспечивается
// частичным уникальным индексом в хранилище, а не только проверками в коде.
type Session struct {
	ID              int64
	CaptainID       int64 // Текущий капитан
	StartedAt       time.Time
	EndedAt         *time.Time // nil, пока сессия открыта
	Active          bool
	StatusChatID    *int64 // Чат закреплённого статус-сообщения
	StatusMessageID *int64 // Id закреплённого статус-сообщения
}

// Visit интервал присутствия одного пользователя внутри одной сессии.
// Для пары (сессия, пользователь) одновременно может существовать не
// более одного открытого посещения (exited_at IS NULL) — частичный
// уникальный индекс ux_visits_open. Повторный вход после выхода создаёт
// новую запись.
type Visit struct {
	ID        int64
	SessionID int64
	UserID    int64
	EnteredAt time.Time
	ExitedAt  *time.Time
}

// CaptainChange запись журнала смены капитана. Первая запись сессии
// (OldCaptainID == nil) фиксирует её создание, последующие — передачи.
type CaptainChange struct {
	ID           int64
	SessionID    int64
	OldCaptainID *int64
	NewCaptainID int64
	ChangedAt    time.Time
}

// Participant участник с открытым посещением, для статуса и клавиатур.
type Participant struct {
	UserID int64
	Name   string
	Room   string
}

// SessionHistory развёрнутая история одной сессии для админского отчёта.
type SessionHistory struct {
	Session Session
	Visits  []*VisitWithUser
	Changes []*CaptainChange
}

// VisitWithUser посещение вместе с именем и комнатой участника.
type VisitWithUser struct {
	Visit
	Name string
	Room string
}
