// Package services содержит бизнес-логику пошаговой регистрации:
// имя, фамилия, комната, факультет. Состояние между шагами хранится в
// базе, поэтому регистрация переживает перезапуск бота.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/nkorotkov/gym-access-bot/internal/models"
)

// RegistrationRepository определяет методы для работы с анкетами
// и состоянием регистрации в хранилище.
type RegistrationRepository interface {
	User(ctx context.Context, id int64) (*models.User, error)
	UpsertRegistration(ctx context.Context, user models.User) error
	SetFaculty(ctx context.Context, userID int64, faculty string) error
	RegState(ctx context.Context, userID int64) (*models.RegState, error)
	SetRegState(ctx context.Context, rs models.RegState) error
	ClearRegState(ctx context.Context, userID int64) error
}

// Правила полей анкеты: имя и фамилия — 2-30 букв (латиница или
// кириллица, допускаются апостроф, дефис и пробел), комната — 1-4 цифры
// с необязательным буквенным суффиксом.
var (
	nameRe = regexp.MustCompile(`^[A-Za-zА-Яа-яЁёІіЇїЄє' -]{2,30}$`)
	roomRe = regexp.MustCompile(`^[0-9]{1,4}[A-Za-zА-Яа-я-]{0,2}$`)
)

// RegistrationService реализует машину состояний регистрации.
type RegistrationService struct {
	repo RegistrationRepository
	log  *slog.Logger
}

// NewRegistrationService создает новый экземпляр RegistrationService.
func NewRegistrationService(repo RegistrationRepository, log *slog.Logger) *RegistrationService {
	return &RegistrationService{repo: repo, log: log}
}

// Begin начинает регистрацию с первого шага. Повторный вызов сбрасывает
// незавершённую анкету, уже зарегистрированный пользователь проходит
// анкету заново и до выбора факультета считается незарегистрированным.
func (s *RegistrationService) Begin(ctx context.Context, userID int64) error {
	return s.repo.SetRegState(ctx, models.RegState{
		UserID: userID,
		Step:   models.StepFirstName,
	})
}

// State возвращает текущее состояние регистрации или ErrNotFound.
func (s *RegistrationService) State(ctx context.Context, userID int64) (*models.RegState, error) {
	return s.repo.RegState(ctx, userID)
}

// HandleText обрабатывает текстовый ответ на текущем шаге и возвращает
// следующий шаг для подсказки. Невалидный ввод даёт ErrInvalidState,
// шаг при этом не меняется.
func (s *RegistrationService) HandleText(ctx context.Context, userID int64, username, text string) (models.RegStep, error) {
	state, err := s.repo.RegState(ctx, userID)
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)

	switch state.Step {
	case models.StepFirstName:
		if !validName(text) {
			return "", fmt.Errorf("bad first name: %w", models.ErrInvalidState)
		}
		state.TmpFirst = text
		state.Step = models.StepLastName

	case models.StepLastName:
		if !validName(text) {
			return "", fmt.Errorf("bad last name: %w", models.ErrInvalidState)
		}
		state.TmpLast = text
		state.Step = models.StepRoom

	case models.StepRoom:
		if !roomRe.MatchString(text) {
			return "", fmt.Errorf("bad room: %w", models.ErrInvalidState)
		}
		// Анкета записывается уже здесь: до выбора факультета
		// пользователь хранится с registered = FALSE.
		user := models.User{
			ID:        userID,
			Name:      state.TmpFirst + " " + state.TmpLast,
			FirstName: state.TmpFirst,
			LastName:  state.TmpLast,
			Room:      text,
			Username:  username,
		}
		if err := s.repo.UpsertRegistration(ctx, user); err != nil {
			return "", err
		}
		state.Step = models.StepFaculty

	case models.StepFaculty:
		// Факультет выбирается кнопкой, текст здесь не принимается.
		return "", fmt.Errorf("faculty must be chosen from keyboard: %w", models.ErrInvalidState)

	default:
		return "", fmt.Errorf("unknown step %q: %w", state.Step, models.ErrInvalidState)
	}

	if err := s.repo.SetRegState(ctx, *state); err != nil {
		return "", err
	}
	return state.Step, nil
}

// ChooseFaculty завершает регистрацию выбором факультета.
func (s *RegistrationService) ChooseFaculty(ctx context.Context, userID int64, faculty string) error {
	if faculty != models.FacultyIATE && faculty != models.FacultyISZI {
		return fmt.Errorf("unknown faculty %q: %w", faculty, models.ErrInvalidState)
	}

	state, err := s.repo.RegState(ctx, userID)
	if err != nil {
		return err
	}
	if state.Step != models.StepFaculty {
		return fmt.Errorf("faculty chosen on step %s: %w", state.Step, models.ErrInvalidState)
	}

	if err := s.repo.SetFaculty(ctx, userID, faculty); err != nil {
		return err
	}
	if err := s.repo.ClearRegState(ctx, userID); err != nil {
		s.log.Warn("failed to clear registration state",
			slog.Int64("user_id", userID), slog.Any("err", err))
	}

	s.log.Info("registration finished",
		slog.Int64("user_id", userID), slog.String("faculty", faculty))
	return nil
}

// InProgress сообщает, находится ли пользователь в процессе регистрации.
func (s *RegistrationService) InProgress(ctx context.Context, userID int64) (bool, error) {
	_, err := s.repo.RegState(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func validName(text string) bool {
	return nameRe.MatchString(text)
}
