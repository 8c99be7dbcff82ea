package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nkorotkov/gym-access-bot/internal/models"
)

type MockWatcherRepository struct {
	mock.Mock
}

func (m *MockWatcherRepository) AddWatcher(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockWatcherRepository) RemoveWatcher(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockWatcherRepository) IsWatcher(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockWatcherRepository) ListWatchers(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

// fakePublisher копит опубликованные уведомления, опционально
// проваливая отдельных получателей.
type fakePublisher struct {
	published []models.Notification
	failFor   map[int64]bool
}

func (p *fakePublisher) Publish(exchange, routingKey string, message any) error {
	n := message.(models.Notification)
	if p.failFor[n.ChatID] {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, n)
	return nil
}

func (p *fakePublisher) chatIDs() []int64 {
	ids := make([]int64, 0, len(p.published))
	for _, n := range p.published {
		ids = append(ids, n.ChatID)
	}
	return ids
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestNotifierService_SessionStarted(t *testing.T) {
	ctx := context.Background()
	captain := &models.User{ID: 42, Name: "Тарас Шевченко", Room: "101"}

	t.Run("объединение вахты и админов без дублей и без капитана", func(t *testing.T) {
		repo := new(MockWatcherRepository)
		// Капитан тоже стоит на вахте и админ 111 дублируется.
		repo.On("ListWatchers", ctx).Return([]int64{42, 77, 111}, nil)
		pub := &fakePublisher{}

		svc := NewNotifierService(repo, pub, []int64{111, 222}, time.UTC, newNoopLogger())
		svc.SessionStarted(ctx, captain, time.Now())

		assert.ElementsMatch(t, []int64{77, 111, 222}, pub.chatIDs())
		for _, n := range pub.published {
			assert.Equal(t, models.NotifySessionStarted, n.Kind)
			assert.Contains(t, n.Text, "Тарас Шевченко")
		}
	})

	t.Run("отказ одного получателя не мешает остальным", func(t *testing.T) {
		repo := new(MockWatcherRepository)
		repo.On("ListWatchers", ctx).Return([]int64{77, 88}, nil)
		pub := &fakePublisher{failFor: map[int64]bool{77: true}}

		svc := NewNotifierService(repo, pub, nil, time.UTC, newNoopLogger())
		svc.SessionStarted(ctx, captain, time.Now())

		assert.Equal(t, []int64{88}, pub.chatIDs())
	})

	t.Run("недоступный список вахты не отменяет рассылку админам", func(t *testing.T) {
		repo := new(MockWatcherRepository)
		repo.On("ListWatchers", ctx).Return(nil, errors.New("db down"))
		pub := &fakePublisher{}

		svc := NewNotifierService(repo, pub, []int64{111}, time.UTC, newNoopLogger())
		svc.SessionStarted(ctx, captain, time.Now())

		assert.Equal(t, []int64{111}, pub.chatIDs())
	})
}

func TestNotifierService_SessionEnded(t *testing.T) {
	ctx := context.Background()
	repo := new(MockWatcherRepository)
	repo.On("ListWatchers", ctx).Return([]int64{77}, nil)
	pub := &fakePublisher{}

	svc := NewNotifierService(repo, pub, nil, time.UTC, newNoopLogger())
	svc.SessionEnded(ctx, &models.User{ID: 42, Name: "Тарас Шевченко"}, time.Now())

	require.Len(t, pub.published, 1)
	assert.Equal(t, models.NotifySessionEnded, pub.published[0].Kind)
	assert.Contains(t, pub.published[0].Text, "зачинено")
}

func TestNotifierService_PaymentSubmitted(t *testing.T) {
	ctx := context.Background()
	repo := new(MockWatcherRepository)
	pub := &fakePublisher{}

	svc := NewNotifierService(repo, pub, []int64{111, 222}, time.UTC, newNoopLogger())
	svc.PaymentSubmitted(ctx,
		&models.Payment{ID: 5, Plan: "A", Months: 4, AmountUAH: 433, RefCode: "GYM-ABC234"},
		&models.User{ID: 42, Name: "Тарас Шевченко", Room: "101"})

	// Платежи видят только администраторы, вахту не опрашиваем.
	repo.AssertNotCalled(t, "ListWatchers", mock.Anything)
	assert.ElementsMatch(t, []int64{111, 222}, pub.chatIDs())
	assert.Contains(t, pub.published[0].Text, "GYM-ABC234")
}

func TestNotifierService_VisitorEntered(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}

	svc := NewNotifierService(new(MockWatcherRepository), pub, nil, time.UTC, newNoopLogger())
	svc.VisitorEntered(ctx, 42, &models.User{ID: 77, Name: "Леся Українка", Room: "202"}, 3)

	require.Len(t, pub.published, 1)
	n := pub.published[0]
	assert.Equal(t, models.NotifyDirect, n.Kind)
	assert.Equal(t, int64(42), n.ChatID)
	assert.True(t, n.Silent)
	assert.Contains(t, n.Text, "Леся Українка")
	assert.Contains(t, n.Text, "3")
}

func TestNotifierService_Direct(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}

	svc := NewNotifierService(new(MockWatcherRepository), pub, nil, time.UTC, newNoopLogger())
	svc.Direct(ctx, 42, "Ваш абонемент активовано")

	require.Len(t, pub.published, 1)
	assert.Equal(t, models.NotifyDirect, pub.published[0].Kind)
	assert.Equal(t, int64(42), pub.published[0].ChatID)
}
