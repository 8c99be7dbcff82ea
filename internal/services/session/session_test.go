package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nkorotkov/gym-access-bot/internal/models"
)

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) ActiveSession(ctx context.Context) (*models.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessionRepository) StartSession(ctx context.Context, captainID int64) (*models.Session, error) {
	args := m.Called(ctx, captainID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessionRepository) OpenVisit(ctx context.Context, sessionID, userID int64) (*models.Visit, error) {
	args := m.Called(ctx, sessionID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Visit), args.Error(1)
}

func (m *MockSessionRepository) CreateVisit(ctx context.Context, sessionID, userID int64) (*models.Visit, error) {
	args := m.Called(ctx, sessionID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Visit), args.Error(1)
}

func (m *MockSessionRepository) CloseVisit(ctx context.Context, sessionID, userID int64) error {
	args := m.Called(ctx, sessionID, userID)
	return args.Error(0)
}

func (m *MockSessionRepository) EndSession(ctx context.Context, sessionID, captainID int64) error {
	args := m.Called(ctx, sessionID, captainID)
	return args.Error(0)
}

func (m *MockSessionRepository) CountOpenVisits(ctx context.Context, sessionID int64) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

func (m *MockSessionRepository) ListParticipants(ctx context.Context, sessionID int64) ([]*models.Participant, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Participant), args.Error(1)
}

func (m *MockSessionRepository) TransferCaptain(ctx context.Context, sessionID, oldCaptainID, newCaptainID int64) error {
	args := m.Called(ctx, sessionID, oldCaptainID, newCaptainID)
	return args.Error(0)
}

func (m *MockSessionRepository) SaveStatusMessage(ctx context.Context, sessionID, chatID, messageID int64) error {
	args := m.Called(ctx, sessionID, chatID, messageID)
	return args.Error(0)
}

func (m *MockSessionRepository) User(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockAccessChecker struct {
	mock.Mock
}

func (m *MockAccessChecker) CheckAccess(ctx context.Context, userID int64, at time.Time) (*models.Subscription, error) {
	args := m.Called(ctx, userID, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SessionStarted(ctx context.Context, captain *models.User, at time.Time) {
	m.Called(ctx, captain, at)
}

func (m *MockNotifier) SessionEnded(ctx context.Context, captain *models.User, at time.Time) {
	m.Called(ctx, captain, at)
}

func (m *MockNotifier) VisitorEntered(ctx context.Context, captainID int64, visitor *models.User, inside int) {
	m.Called(ctx, captainID, visitor, inside)
}

func (m *MockNotifier) VisitorExited(ctx context.Context, captainID int64, visitor *models.User, inside int) {
	m.Called(ctx, captainID, visitor, inside)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

// Круглосуточные часы работы, чтобы тесты не зависели от времени запуска.
func allDayHours() Hours {
	return Hours{Location: time.UTC, Open: 0, Close: 24}
}

func activeSession(captainID int64) *models.Session {
	return &models.Session{ID: 7, CaptainID: captainID, Active: true, StartedAt: time.Now()}
}

func TestHours_Contains(t *testing.T) {
	h := Hours{Location: time.UTC, Open: 6, Close: 23}

	tests := []struct {
		name string
		hour int
		want bool
	}{
		{name: "перед открытием", hour: 5, want: false},
		{name: "сразу после открытия", hour: 6, want: true},
		{name: "вечер", hour: 22, want: true},
		{name: "час закрытия", hour: 23, want: false},
		{name: "ночь", hour: 2, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := time.Date(2026, 3, 2, tt.hour, 30, 0, 0, time.UTC)
			assert.Equal(t, tt.want, h.Contains(at))
		})
	}
}

func TestSessionService_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("успешный старт с уведомлением", func(t *testing.T) {
		repo := new(MockSessionRepository)
		access := new(MockAccessChecker)
		notifier := new(MockNotifier)

		sub := &models.Subscription{Plan: "A"}
		captain := &models.User{ID: 42, Name: "Тарас Шевченко"}
		access.On("CheckAccess", ctx, int64(42), mock.Anything).Return(sub, nil)
		repo.On("StartSession", ctx, int64(42)).Return(activeSession(42), nil)
		repo.On("User", ctx, int64(42)).Return(captain, nil)
		notifier.On("SessionStarted", ctx, captain, mock.Anything).Return()

		svc := NewSessionService(repo, access, notifier, allDayHours(), newNoopLogger())

		session, err := svc.Start(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, int64(42), session.CaptainID)
		notifier.AssertExpectations(t)
	})

	t.Run("вне часов работы", func(t *testing.T) {
		repo := new(MockSessionRepository)
		access := new(MockAccessChecker)
		hours := Hours{Location: time.UTC, Open: 0, Close: 0}

		svc := NewSessionService(repo, access, new(MockNotifier), hours, newNoopLogger())

		_, err := svc.Start(ctx, 42)
		assert.ErrorIs(t, err, models.ErrNotEligible)
		repo.AssertNotCalled(t, "StartSession", mock.Anything, mock.Anything)
	})

	t.Run("без допуска сессия не стартует", func(t *testing.T) {
		repo := new(MockSessionRepository)
		access := new(MockAccessChecker)
		access.On("CheckAccess", ctx, int64(42), mock.Anything).
			Return(nil, models.ErrNotEligible)

		svc := NewSessionService(repo, access, new(MockNotifier), allDayHours(), newNoopLogger())

		_, err := svc.Start(ctx, 42)
		assert.ErrorIs(t, err, models.ErrNotEligible)
		repo.AssertNotCalled(t, "StartSession", mock.Anything, mock.Anything)
	})

	t.Run("проигрыш гонки за старт", func(t *testing.T) {
		repo := new(MockSessionRepository)
		access := new(MockAccessChecker)
		access.On("CheckAccess", ctx, int64(42), mock.Anything).
			Return(&models.Subscription{Plan: "A"}, nil)
		repo.On("StartSession", ctx, int64(42)).Return(nil, models.ErrAlreadyActive)

		svc := NewSessionService(repo, access, new(MockNotifier), allDayHours(), newNoopLogger())

		_, err := svc.Start(ctx, 42)
		assert.ErrorIs(t, err, models.ErrAlreadyActive)
	})
}

func TestSessionService_Enter(t *testing.T) {
	ctx := context.Background()

	t.Run("успешный вход с уведомлением капитана", func(t *testing.T) {
		repo := new(MockSessionRepository)
		access := new(MockAccessChecker)
		notifier := new(MockNotifier)

		visitor := &models.User{ID: 77, Name: "Леся Українка"}
		repo.On("ActiveSession", ctx).Return(activeSession(42), nil)
		access.On("CheckAccess", ctx, int64(77), mock.Anything).
			Return(&models.Subscription{Plan: "UNL"}, nil)
		repo.On("CreateVisit", ctx, int64(7), int64(77)).
			Return(&models.Visit{ID: 1, SessionID: 7, UserID: 77}, nil)
		repo.On("User", ctx, int64(77)).Return(visitor, nil)
		repo.On("CountOpenVisits", ctx, int64(7)).Return(2, nil)
		notifier.On("VisitorEntered", ctx, int64(42), visitor, 2).Return()

		svc := NewSessionService(repo, access, notifier, allDayHours(), newNoopLogger())

		visit, err := svc.Enter(ctx, 77)
		require.NoError(t, err)
		assert.Equal(t, int64(7), visit.SessionID)
		notifier.AssertExpectations(t)
	})

	t.Run("без активной сессии входа нет", func(t *testing.T) {
		repo := new(MockSessionRepository)
		repo.On("ActiveSession", ctx).Return(nil, models.ErrNotFound)

		svc := NewSessionService(repo, new(MockAccessChecker), new(MockNotifier),
			allDayHours(), newNoopLogger())

		_, err := svc.Enter(ctx, 77)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("повторный вход без выхода", func(t *testing.T) {
		repo := new(MockSessionRepository)
		access := new(MockAccessChecker)
		repo.On("ActiveSession", ctx).Return(activeSession(42), nil)
		access.On("CheckAccess", ctx, int64(77), mock.Anything).
			Return(&models.Subscription{Plan: "UNL"}, nil)
		repo.On("CreateVisit", ctx, int64(7), int64(77)).
			Return(nil, models.ErrInvalidState)

		svc := NewSessionService(repo, access, new(MockNotifier), allDayHours(), newNoopLogger())

		_, err := svc.Enter(ctx, 77)
		assert.ErrorIs(t, err, models.ErrInvalidState)
	})
}

func TestSessionService_Exit(t *testing.T) {
	ctx := context.Background()

	t.Run("обычный участник выходит", func(t *testing.T) {
		repo := new(MockSessionRepository)
		notifier := new(MockNotifier)

		visitor := &models.User{ID: 77, Name: "Леся Українка"}
		repo.On("ActiveSession", ctx).Return(activeSession(42), nil)
		repo.On("CloseVisit", ctx, int64(7), int64(77)).Return(nil)
		repo.On("User", ctx, int64(77)).Return(visitor, nil)
		repo.On("CountOpenVisits", ctx, int64(7)).Return(1, nil)
		notifier.On("VisitorExited", ctx, int64(42), visitor, 1).Return()

		svc := NewSessionService(repo, new(MockAccessChecker), notifier,
			allDayHours(), newNoopLogger())

		res, err := svc.Exit(ctx, 77)
		require.NoError(t, err)
		assert.False(t, res.SessionEnded)
		notifier.AssertExpectations(t)
	})

	t.Run("капитан с людьми внутри выйти не может", func(t *testing.T) {
		repo := new(MockSessionRepository)
		repo.On("ActiveSession", ctx).Return(activeSession(42), nil)
		repo.On("CountOpenVisits", ctx, int64(7)).Return(3, nil)

		svc := NewSessionService(repo, new(MockAccessChecker), new(MockNotifier),
			allDayHours(), newNoopLogger())

		_, err := svc.Exit(ctx, 42)
		assert.ErrorIs(t, err, models.ErrCaptainMustTransfer)
		repo.AssertNotCalled(t, "EndSession", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("выход последнего капитана завершает сессию", func(t *testing.T) {
		repo := new(MockSessionRepository)
		notifier := new(MockNotifier)
		captain := &models.User{ID: 42, Name: "Тарас Шевченко"}
		repo.On("ActiveSession", ctx).Return(activeSession(42), nil)
		repo.On("CountOpenVisits", ctx, int64(7)).Return(1, nil)
		repo.On("EndSession", ctx, int64(7), int64(42)).Return(nil)
		repo.On("User", ctx, int64(42)).Return(captain, nil)
		notifier.On("SessionEnded", ctx, captain, mock.Anything).Return()

		svc := NewSessionService(repo, new(MockAccessChecker), notifier,
			allDayHours(), newNoopLogger())

		res, err := svc.Exit(ctx, 42)
		require.NoError(t, err)
		assert.True(t, res.SessionEnded)
		notifier.AssertExpectations(t)
	})

	t.Run("выход без открытого посещения", func(t *testing.T) {
		repo := new(MockSessionRepository)
		repo.On("ActiveSession", ctx).Return(activeSession(42), nil)
		repo.On("CloseVisit", ctx, int64(7), int64(77)).Return(models.ErrInvalidState)

		svc := NewSessionService(repo, new(MockAccessChecker), new(MockNotifier),
			allDayHours(), newNoopLogger())

		_, err := svc.Exit(ctx, 77)
		assert.ErrorIs(t, err, models.ErrInvalidState)
	})
}

func TestSessionService_TransferCaptaincy(t *testing.T) {
	ctx := context.Background()

	t.Run("успешная передача", func(t *testing.T) {
		repo := new(MockSessionRepository)
		repo.On("ActiveSession", ctx).Return(activeSession(42), nil)
		repo.On("OpenVisit", ctx, int64(7), int64(77)).
			Return(&models.Visit{ID: 2, SessionID: 7, UserID: 77}, nil)
		repo.On("TransferCaptain", ctx, int64(7), int64(42), int64(77)).Return(nil)

		svc := NewSessionService(repo, new(MockAccessChecker), new(MockNotifier),
			allDayHours(), newNoopLogger())

		require.NoError(t, svc.TransferCaptaincy(ctx, 42, 77))
		repo.AssertExpectations(t)
	})

	t.Run("передаёт не капитан", func(t *testing.T) {
		repo := new(MockSessionRepository)
		repo.On("ActiveSession", ctx).Return(activeSession(42), nil)

		svc := NewSessionService(repo, new(MockAccessChecker), new(MockNotifier),
			allDayHours(), newNoopLogger())

		err := svc.TransferCaptaincy(ctx, 99, 77)
		assert.ErrorIs(t, err, models.ErrInvalidState)
	})

	t.Run("новый капитан не внутри", func(t *testing.T) {
		repo := new(MockSessionRepository)
		repo.On("ActiveSession", ctx).Return(activeSession(42), nil)
		repo.On("OpenVisit", ctx, int64(7), int64(77)).Return(nil, models.ErrNotFound)

		svc := NewSessionService(repo, new(MockAccessChecker), new(MockNotifier),
			allDayHours(), newNoopLogger())

		err := svc.TransferCaptaincy(ctx, 42, 77)
		assert.ErrorIs(t, err, models.ErrInvalidState)
		repo.AssertNotCalled(t, "TransferCaptain",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("передача самому себе", func(t *testing.T) {
		repo := new(MockSessionRepository)
		repo.On("ActiveSession", ctx).Return(activeSession(42), nil)

		svc := NewSessionService(repo, new(MockAccessChecker), new(MockNotifier),
			allDayHours(), newNoopLogger())

		err := svc.TransferCaptaincy(ctx, 42, 42)
		assert.ErrorIs(t, err, models.ErrInvalidState)
	})
}
