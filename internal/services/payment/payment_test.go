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
	"github.com/nkorotkov/gym-access-bot/internal/storage/repository"
)

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) CreatePayment(ctx context.Context, p models.Payment) (int64, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPaymentRepository) ActivePayment(ctx context.Context, userID int64) (*models.Payment, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentRepository) AttachProof(ctx context.Context, paymentID int64, fileID string) (models.PaymentStatus, error) {
	args := m.Called(ctx, paymentID, fileID)
	return args.Get(0).(models.PaymentStatus), args.Error(1)
}

func (m *MockPaymentRepository) CancelPayment(ctx context.Context, paymentID int64) error {
	args := m.Called(ctx, paymentID)
	return args.Error(0)
}

func (m *MockPaymentRepository) ApprovePayment(ctx context.Context, paymentID, actorID int64, now time.Time) (*models.Payment, time.Time, time.Time, error) {
	args := m.Called(ctx, paymentID, actorID, now)
	if args.Get(0) == nil {
		return nil, time.Time{}, time.Time{}, args.Error(3)
	}
	return args.Get(0).(*models.Payment), args.Get(1).(time.Time), args.Get(2).(time.Time), args.Error(3)
}

func (m *MockPaymentRepository) RejectPayment(ctx context.Context, paymentID, actorID int64, reason string, now time.Time) (*models.Payment, error) {
	args := m.Called(ctx, paymentID, actorID, reason, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ListPaymentQueue(ctx context.Context) ([]*models.Payment, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Payment), args.Error(1)
}

func (m *MockPaymentRepository) User(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockPaymentRepository) AcceptTerms(ctx context.Context, userID int64, version int, at time.Time) error {
	args := m.Called(ctx, userID, version, at)
	return args.Error(0)
}

type MockLedgerInvalidator struct {
	mock.Mock
}

func (m *MockLedgerInvalidator) Invalidate(ctx context.Context, userID int64) {
	m.Called(ctx, userID)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func eligibleUser(id int64, faculty string) *models.User {
	acceptedAt := time.Now().Add(-time.Hour)
	return &models.User{
		ID:              id,
		Name:            "Тарас Шевченко",
		Room:            "101",
		Faculty:         faculty,
		Registered:      true,
		TermsVersion:    models.CurrentTermsVersion,
		TermsAcceptedAt: &acceptedAt,
	}
}

func TestPaymentService_Create(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		req        models.CreatePaymentRequest
		setupMocks func(*MockPaymentRepository)
		check      func(*testing.T, *models.Payment)
		wantErr    error
	}{
		{
			name: "один месяц плана A без скидки",
			req:  models.CreatePaymentRequest{Plan: "A", Months: 1},
			setupMocks: func(r *MockPaymentRepository) {
				r.On("User", ctx, int64(42)).Return(eligibleUser(42, models.FacultyIATE), nil)
				r.On("ActivePayment", ctx, int64(42)).Return(nil, models.ErrNotFound)
				r.On("CreatePayment", ctx, mock.Anything).Return(int64(1), nil)
			},
			check: func(t *testing.T, p *models.Payment) {
				assert.Equal(t, 119, p.AmountUAH)
				assert.Equal(t, 11900, p.Amount)
				assert.Equal(t, 0, p.DiscountPercent)
				assert.Regexp(t, `^GYM-[A-Z2-9]{6}$`, p.RefCode)
			},
		},
		{
			name: "четыре месяца со скидкой 9 процентов",
			req:  models.CreatePaymentRequest{Plan: "A", Months: 4},
			setupMocks: func(r *MockPaymentRepository) {
				r.On("User", ctx, int64(42)).Return(eligibleUser(42, models.FacultyIATE), nil)
				r.On("ActivePayment", ctx, int64(42)).Return(nil, models.ErrNotFound)
				r.On("CreatePayment", ctx, mock.Anything).Return(int64(2), nil)
			},
			check: func(t *testing.T, p *models.Payment) {
				assert.Equal(t, 433, p.AmountUAH)
				assert.Equal(t, 9, p.DiscountPercent)
			},
		},
		{
			name: "UNLIMITED недоступен ІСЗІ",
			req:  models.CreatePaymentRequest{Plan: "UNL", Months: 1},
			setupMocks: func(r *MockPaymentRepository) {
				r.On("User", ctx, int64(42)).Return(eligibleUser(42, models.FacultyISZI), nil)
			},
			wantErr: models.ErrNotEligible,
		},
		{
			name: "без принятых правил заявка не создаётся",
			req:  models.CreatePaymentRequest{Plan: "A", Months: 1},
			setupMocks: func(r *MockPaymentRepository) {
				u := eligibleUser(42, models.FacultyIATE)
				u.TermsVersion = models.CurrentTermsVersion - 1
				r.On("User", ctx, int64(42)).Return(u, nil)
			},
			wantErr: models.ErrNotEligible,
		},
		{
			name: "открытая заявка блокирует новую",
			req:  models.CreatePaymentRequest{Plan: "A", Months: 1},
			setupMocks: func(r *MockPaymentRepository) {
				r.On("User", ctx, int64(42)).Return(eligibleUser(42, models.FacultyIATE), nil)
				r.On("ActivePayment", ctx, int64(42)).
					Return(&models.Payment{ID: 9, Status: models.PaymentPending}, nil)
			},
			wantErr: models.ErrInvalidState,
		},
		{
			name:       "неизвестный план отклоняет валидатор",
			req:        models.CreatePaymentRequest{Plan: "C", Months: 1},
			setupMocks: func(r *MockPaymentRepository) {},
			wantErr:    models.ErrInvalidState,
		},
		{
			name:       "длительность вне диапазона",
			req:        models.CreatePaymentRequest{Plan: "A", Months: 10},
			setupMocks: func(r *MockPaymentRepository) {},
			wantErr:    models.ErrInvalidState,
		},
		{
			name: "заблокированный пользователь",
			req:  models.CreatePaymentRequest{Plan: "A", Months: 1},
			setupMocks: func(r *MockPaymentRepository) {
				u := eligibleUser(42, models.FacultyIATE)
				u.Blocked = true
				r.On("User", ctx, int64(42)).Return(u, nil)
			},
			wantErr: models.ErrNotEligible,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockPaymentRepository)
			tt.setupMocks(repo)
			svc := NewPaymentService(repo, new(MockLedgerInvalidator), newNoopLogger())

			p, err := svc.Create(ctx, 42, tt.req)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.NotNil(t, p)
				if tt.check != nil {
					tt.check(t, p)
				}
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestPaymentService_Create_RetriesRefCode(t *testing.T) {
	ctx := context.Background()
	repo := new(MockPaymentRepository)
	repo.On("User", ctx, int64(42)).Return(eligibleUser(42, models.FacultyIATE), nil)
	repo.On("ActivePayment", ctx, int64(42)).Return(nil, models.ErrNotFound)
	repo.On("CreatePayment", ctx, mock.Anything).Return(int64(0), repository.ErrRefCodeTaken).Once()
	repo.On("CreatePayment", ctx, mock.Anything).Return(int64(5), nil).Once()

	svc := NewPaymentService(repo, new(MockLedgerInvalidator), newNoopLogger())

	p, err := svc.Create(ctx, 42, models.CreatePaymentRequest{Plan: "B", Months: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.ID)
	repo.AssertExpectations(t)
}

func TestPaymentService_AttachProof(t *testing.T) {
	ctx := context.Background()

	t.Run("первый чек переводит в review", func(t *testing.T) {
		repo := new(MockPaymentRepository)
		repo.On("ActivePayment", ctx, int64(42)).
			Return(&models.Payment{ID: 1, UserID: 42, Status: models.PaymentPending}, nil)
		repo.On("AttachProof", ctx, int64(1), "file123").
			Return(models.PaymentReview, nil)

		svc := NewPaymentService(repo, new(MockLedgerInvalidator), newNoopLogger())

		p, err := svc.AttachProof(ctx, 42, "file123")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentReview, p.Status)
		assert.Equal(t, "file123", p.ProofFileID)
	})

	t.Run("без открытой заявки чек некуда крепить", func(t *testing.T) {
		repo := new(MockPaymentRepository)
		repo.On("ActivePayment", ctx, int64(42)).Return(nil, models.ErrNotFound)

		svc := NewPaymentService(repo, new(MockLedgerInvalidator), newNoopLogger())

		_, err := svc.AttachProof(ctx, 42, "file123")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestPaymentService_Approve(t *testing.T) {
	ctx := context.Background()

	t.Run("успешное подтверждение сбрасывает кеш владельца", func(t *testing.T) {
		repo := new(MockPaymentRepository)
		ledger := new(MockLedgerInvalidator)
		start := time.Now()
		end := start.AddDate(0, 2, 0)
		repo.On("ApprovePayment", ctx, int64(1), int64(111), mock.Anything).
			Return(&models.Payment{ID: 1, UserID: 42, Status: models.PaymentApproved}, start, end, nil)
		ledger.On("Invalidate", ctx, int64(42)).Return()

		svc := NewPaymentService(repo, ledger, newNoopLogger())

		res, err := svc.Approve(ctx, 1, 111)
		require.NoError(t, err)
		assert.Equal(t, end, res.EndAt)
		ledger.AssertExpectations(t)
	})

	t.Run("повторное подтверждение", func(t *testing.T) {
		repo := new(MockPaymentRepository)
		ledger := new(MockLedgerInvalidator)
		repo.On("ApprovePayment", ctx, int64(1), int64(111), mock.Anything).
			Return(nil, time.Time{}, time.Time{}, models.ErrInvalidState)

		svc := NewPaymentService(repo, ledger, newNoopLogger())

		_, err := svc.Approve(ctx, 1, 111)
		assert.ErrorIs(t, err, models.ErrInvalidState)
		ledger.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
	})
}

func TestPaymentService_Reject(t *testing.T) {
	ctx := context.Background()

	t.Run("отклонение с причиной", func(t *testing.T) {
		repo := new(MockPaymentRepository)
		repo.On("RejectPayment", ctx, int64(1), int64(111), "нет перевода", mock.Anything).
			Return(&models.Payment{ID: 1, UserID: 42, Status: models.PaymentRejected}, nil)

		svc := NewPaymentService(repo, new(MockLedgerInvalidator), newNoopLogger())

		p, err := svc.Reject(ctx, 1, 111, "нет перевода")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentRejected, p.Status)
		repo.AssertExpectations(t)
	})

	t.Run("пустая причина не принимается", func(t *testing.T) {
		repo := new(MockPaymentRepository)
		svc := NewPaymentService(repo, new(MockLedgerInvalidator), newNoopLogger())

		_, err := svc.Reject(ctx, 1, 111, "")
		assert.ErrorIs(t, err, models.ErrInvalidState)
		repo.AssertNotCalled(t, "RejectPayment",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("причина из одних пробелов не принимается", func(t *testing.T) {
		repo := new(MockPaymentRepository)
		svc := NewPaymentService(repo, new(MockLedgerInvalidator), newNoopLogger())

		_, err := svc.Reject(ctx, 1, 111, "   \n ")
		assert.ErrorIs(t, err, models.ErrInvalidState)
		repo.AssertNotCalled(t, "RejectPayment",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("причина обрезается до содержимого", func(t *testing.T) {
		repo := new(MockPaymentRepository)
		repo.On("RejectPayment", ctx, int64(1), int64(111), "сума не збігається", mock.Anything).
			Return(&models.Payment{ID: 1, Status: models.PaymentRejected}, nil)

		svc := NewPaymentService(repo, new(MockLedgerInvalidator), newNoopLogger())

		_, err := svc.Reject(ctx, 1, 111, "  сума не збігається  ")
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func TestPaymentService_Cancel(t *testing.T) {
	ctx := context.Background()
	repo := new(MockPaymentRepository)
	repo.On("ActivePayment", ctx, int64(42)).
		Return(&models.Payment{ID: 3, UserID: 42, Status: models.PaymentReview}, nil)
	repo.On("CancelPayment", ctx, int64(3)).Return(nil)

	svc := NewPaymentService(repo, new(MockLedgerInvalidator), newNoopLogger())

	p, err := svc.Cancel(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRejected, p.Status)
}
