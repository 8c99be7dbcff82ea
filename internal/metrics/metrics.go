// Package metrics объявляет счётчики Prometheus доменных событий.
// Регистрация идёт через promauto в реестр по умолчанию, отдаёт их
// promhttp на /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsStarted — открытые сессии зала.
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gym_sessions_started_total",
		Help: "Number of gym sessions started.",
	})

	// SessionsEnded — завершённые сессии зала.
	SessionsEnded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gym_sessions_ended_total",
		Help: "Number of gym sessions ended.",
	})

	// Visits — открытые посещения, включая визит капитана при старте.
	Visits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gym_visits_total",
		Help: "Number of gym visits opened.",
	})

	// Payments — заявки на оплату по исходу: created, approved,
	// rejected, cancelled.
	Payments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gym_payments_total",
		Help: "Number of payment requests by outcome.",
	}, []string{"outcome"})

	// NotificationsPublished — уведомления, поставленные в очередь.
	NotificationsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gym_notifications_published_total",
		Help: "Number of notifications published to the queue.",
	})

	// NotificationsFailed — уведомления, не дошедшие до очереди.
	NotificationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gym_notifications_failed_total",
		Help: "Number of notifications that failed to publish.",
	})
)
