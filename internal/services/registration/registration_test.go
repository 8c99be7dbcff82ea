package services

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nkorotkov/gym-access-bot/internal/models"
)

type MockRegistrationRepository struct {
	mock.Mock
}

func (m *MockRegistrationRepository) User(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRegistrationRepository) UpsertRegistration(ctx context.Context, user models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockRegistrationRepository) SetFaculty(ctx context.Context, userID int64, faculty string) error {
	args := m.Called(ctx, userID, faculty)
	return args.Error(0)
}

func (m *MockRegistrationRepository) RegState(ctx context.Context, userID int64) (*models.RegState, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RegState), args.Error(1)
}

func (m *MockRegistrationRepository) SetRegState(ctx context.Context, rs models.RegState) error {
	args := m.Called(ctx, rs)
	return args.Error(0)
}

func (m *MockRegistrationRepository) ClearRegState(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestRegistrationService_HandleText(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		state      models.RegState
		text       string
		setupMocks func(*MockRegistrationRepository)
		wantStep   models.RegStep
		wantErr    error
	}{
		{
			name:  "имя принято, переход к фамилии",
			state: models.RegState{UserID: 42, Step: models.StepFirstName},
			text:  "  Тарас  ",
			setupMocks: func(r *MockRegistrationRepository) {
				r.On("SetRegState", ctx, models.RegState{
					UserID: 42, Step: models.StepLastName, TmpFirst: "Тарас",
				}).Return(nil)
			},
			wantStep: models.StepLastName,
		},
		{
			name:    "пустое имя отклоняется",
			state:   models.RegState{UserID: 42, Step: models.StepFirstName},
			text:    "   ",
			wantErr: models.ErrInvalidState,
		},
		{
			name:    "слишком длинное имя отклоняется",
			state:   models.RegState{UserID: 42, Step: models.StepFirstName},
			text:    strings.Repeat("а", 31),
			wantErr: models.ErrInvalidState,
		},
		{
			name:    "односимвольное имя отклоняется",
			state:   models.RegState{UserID: 42, Step: models.StepFirstName},
			text:    "Т",
			wantErr: models.ErrInvalidState,
		},
		{
			name:    "имя с цифрами отклоняется",
			state:   models.RegState{UserID: 42, Step: models.StepFirstName},
			text:    "Тарас123",
			wantErr: models.ErrInvalidState,
		},
		{
			name:  "фамилия с апострофом и дефисом принимается",
			state: models.RegState{UserID: 42, Step: models.StepLastName, TmpFirst: "Григорій"},
			text:  "Квітка-Основ'яненко",
			setupMocks: func(r *MockRegistrationRepository) {
				r.On("SetRegState", ctx, models.RegState{
					UserID: 42, Step: models.StepRoom,
					TmpFirst: "Григорій", TmpLast: "Квітка-Основ'яненко",
				}).Return(nil)
			},
			wantStep: models.StepRoom,
		},
		{
			name:  "фамилия принята, переход к комнате",
			state: models.RegState{UserID: 42, Step: models.StepLastName, TmpFirst: "Тарас"},
			text:  "Шевченко",
			setupMocks: func(r *MockRegistrationRepository) {
				r.On("SetRegState", ctx, models.RegState{
					UserID: 42, Step: models.StepRoom,
					TmpFirst: "Тарас", TmpLast: "Шевченко",
				}).Return(nil)
			},
			wantStep: models.StepRoom,
		},
		{
			name: "комната записывает анкету и ведёт к факультету",
			state: models.RegState{
				UserID: 42, Step: models.StepRoom,
				TmpFirst: "Тарас", TmpLast: "Шевченко",
			},
			text: "101",
			setupMocks: func(r *MockRegistrationRepository) {
				r.On("UpsertRegistration", ctx, models.User{
					ID: 42, Name: "Тарас Шевченко",
					FirstName: "Тарас", LastName: "Шевченко",
					Room: "101", Username: "taras",
				}).Return(nil)
				r.On("SetRegState", ctx, mock.MatchedBy(func(rs models.RegState) bool {
					return rs.Step == models.StepFaculty
				})).Return(nil)
			},
			wantStep: models.StepFaculty,
		},
		{
			name: "комната с буквенным суффиксом принимается",
			state: models.RegState{
				UserID: 42, Step: models.StepRoom,
				TmpFirst: "Тарас", TmpLast: "Шевченко",
			},
			text: "101А",
			setupMocks: func(r *MockRegistrationRepository) {
				r.On("UpsertRegistration", ctx, mock.MatchedBy(func(u models.User) bool {
					return u.Room == "101А"
				})).Return(nil)
				r.On("SetRegState", ctx, mock.MatchedBy(func(rs models.RegState) bool {
					return rs.Step == models.StepFaculty
				})).Return(nil)
			},
			wantStep: models.StepFaculty,
		},
		{
			name: "комната без цифр отклоняется",
			state: models.RegState{
				UserID: 42, Step: models.StepRoom,
				TmpFirst: "Тарас", TmpLast: "Шевченко",
			},
			text:    "пентхаус",
			wantErr: models.ErrInvalidState,
		},
		{
			name: "комната из пяти цифр отклоняется",
			state: models.RegState{
				UserID: 42, Step: models.StepRoom,
				TmpFirst: "Тарас", TmpLast: "Шевченко",
			},
			text:    "12345",
			wantErr: models.ErrInvalidState,
		},
		{
			name:    "на шаге факультета текст не принимается",
			state:   models.RegState{UserID: 42, Step: models.StepFaculty},
			text:    "ІСЗІ",
			wantErr: models.ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRegistrationRepository)
			state := tt.state
			repo.On("RegState", ctx, int64(42)).Return(&state, nil)
			if tt.setupMocks != nil {
				tt.setupMocks(repo)
			}
			svc := NewRegistrationService(repo, newNoopLogger())

			step, err := svc.HandleText(ctx, 42, "taras", tt.text)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantStep, step)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestRegistrationService_ChooseFaculty(t *testing.T) {
	ctx := context.Background()

	t.Run("выбор завершает регистрацию", func(t *testing.T) {
		repo := new(MockRegistrationRepository)
		repo.On("RegState", ctx, int64(42)).
			Return(&models.RegState{UserID: 42, Step: models.StepFaculty}, nil)
		repo.On("SetFaculty", ctx, int64(42), models.FacultyIATE).Return(nil)
		repo.On("ClearRegState", ctx, int64(42)).Return(nil)

		svc := NewRegistrationService(repo, newNoopLogger())

		require.NoError(t, svc.ChooseFaculty(ctx, 42, models.FacultyIATE))
		repo.AssertExpectations(t)
	})

	t.Run("неизвестный факультет", func(t *testing.T) {
		svc := NewRegistrationService(new(MockRegistrationRepository), newNoopLogger())

		err := svc.ChooseFaculty(ctx, 42, "КПІ")
		assert.ErrorIs(t, err, models.ErrInvalidState)
	})

	t.Run("выбор до прохождения анкеты", func(t *testing.T) {
		repo := new(MockRegistrationRepository)
		repo.On("RegState", ctx, int64(42)).
			Return(&models.RegState{UserID: 42, Step: models.StepRoom}, nil)

		svc := NewRegistrationService(repo, newNoopLogger())

		err := svc.ChooseFaculty(ctx, 42, models.FacultyIATE)
		assert.ErrorIs(t, err, models.ErrInvalidState)
		repo.AssertNotCalled(t, "SetFaculty", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRegistrationService_InProgress(t *testing.T) {
	ctx := context.Background()

	repo := new(MockRegistrationRepository)
	repo.On("RegState", ctx, int64(1)).
		Return(&models.RegState{UserID: 1, Step: models.StepFirstName}, nil)
	repo.On("RegState", ctx, int64(2)).Return(nil, models.ErrNotFound)

	svc := NewRegistrationService(repo, newNoopLogger())

	inProgress, err := svc.InProgress(ctx, 1)
	require.NoError(t, err)
	assert.True(t, inProgress)

	inProgress, err = svc.InProgress(ctx, 2)
	require.NoError(t, err)
	assert.False(t, inProgress)
}
