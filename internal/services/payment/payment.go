// Package services содержит бизнес-логику заявок на оплату: создание с
// расчётом суммы, приём чеков, подтверждение и отклонение.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator"

	"github.com/nkorotkov/gym-access-bot/internal/lib/plans"
	"github.com/nkorotkov/gym-access-bot/internal/lib/refcode"
	"github.com/nkorotkov/gym-access-bot/internal/metrics"
	"github.com/nkorotkov/gym-access-bot/internal/models"
	"github.com/nkorotkov/gym-access-bot/internal/storage/repository"
)

// PaymentRepository определяет методы для работы с заявками в хранилище.
type PaymentRepository interface {
	CreatePayment(ctx context.Context, p models.Payment) (int64, error)
	ActivePayment(ctx context.Context, userID int64) (*models.Payment, error)
	AttachProof(ctx context.Context, paymentID int64, fileID string) (models.PaymentStatus, error)
	CancelPayment(ctx context.Context, paymentID int64) error
	ApprovePayment(ctx context.Context, paymentID, actorID int64, now time.Time) (*models.Payment, time.Time, time.Time, error)
	RejectPayment(ctx context.Context, paymentID, actorID int64, reason string, now time.Time) (*models.Payment, error)
	ListPaymentQueue(ctx context.Context) ([]*models.Payment, error)
	User(ctx context.Context, id int64) (*models.User, error)
	AcceptTerms(ctx context.Context, userID int64, version int, at time.Time) error
}

// LedgerInvalidator сбрасывает кеш доступа после начисления интервала.
type LedgerInvalidator interface {
	Invalidate(ctx context.Context, userID int64)
}

// ApproveResult итог подтверждения: заявка и начисленный интервал.
type ApproveResult struct {
	Payment *models.Payment
	StartAt time.Time
	EndAt   time.Time
}

// PaymentService реализует бизнес-логику заявок на оплату.
type PaymentService struct {
	repo     PaymentRepository
	ledger   LedgerInvalidator
	validate *validator.Validate
	log      *slog.Logger
}

// NewPaymentService создает новый экземпляр PaymentService.
func NewPaymentService(repo PaymentRepository, ledger LedgerInvalidator, log *slog.Logger) *PaymentService {
	return &PaymentService{
		repo:     repo,
		ledger:   ledger,
		validate: validator.New(),
		log:      log,
	}
}

// Сколько раз перегенерировать референс-код при коллизии.
const refCodeRetries = 5

// AcceptTerms фиксирует принятие пользователем действующих правил.
func (s *PaymentService) AcceptTerms(ctx context.Context, userID int64) error {
	return s.repo.AcceptTerms(ctx, userID, models.CurrentTermsVersion, time.Now())
}

// Create создаёт заявку на оплату: валидация, проверка условий
// пользователя, расчёт суммы со скидкой и генерация референс-кода.
// Одновременно у пользователя может быть только одна открытая заявка.
func (s *PaymentService) Create(ctx context.Context, userID int64, req models.CreatePaymentRequest) (*models.Payment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", models.ErrInvalidState)
	}

	user, err := s.repo.User(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("user not registered: %w", models.ErrNotEligible)
		}
		return nil, err
	}
	if !user.Registered {
		return nil, fmt.Errorf("registration not finished: %w", models.ErrNotEligible)
	}
	if user.Blocked {
		return nil, fmt.Errorf("user blocked: %w", models.ErrNotEligible)
	}
	if !user.AcceptedCurrentTerms() {
		return nil, fmt.Errorf("terms not accepted: %w", models.ErrNotEligible)
	}

	plan := plans.Code(req.Plan)
	if !plans.AllowedForFaculty(user.Faculty, plan) {
		return nil, fmt.Errorf("plan %s is not available for %s: %w",
			req.Plan, user.Faculty, models.ErrNotEligible)
	}

	if existing, err := s.repo.ActivePayment(ctx, userID); err == nil {
		return nil, fmt.Errorf("payment %d still open: %w", existing.ID, models.ErrInvalidState)
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	totalUAH := plans.Total(plan, req.Months)
	p := models.Payment{
		UserID:          userID,
		Plan:            req.Plan,
		Amount:          totalUAH * 100,
		AmountUAH:       totalUAH,
		Months:          req.Months,
		DiscountPercent: plans.Discount(req.Months),
		Status:          models.PaymentPending,
	}

	for attempt := 0; attempt < refCodeRetries; attempt++ {
		if p.RefCode, err = refcode.New(); err != nil {
			return nil, err
		}
		p.ID, err = s.repo.CreatePayment(ctx, p)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrRefCodeTaken) {
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("payment created", slog.Int64("payment_id", p.ID),
		slog.Int64("user_id", userID), slog.String("plan", req.Plan),
		slog.Int("months", req.Months), slog.Int("amount_uah", totalUAH))
	metrics.Payments.WithLabelValues("created").Inc()
	return &p, nil
}

// Active возвращает открытую заявку пользователя или ErrNotFound.
func (s *PaymentService) Active(ctx context.Context, userID int64) (*models.Payment, error) {
	return s.repo.ActivePayment(ctx, userID)
}

// AttachProof прикрепляет чек к открытой заявке пользователя. Первый чек
// переводит заявку на рассмотрение, повторный заменяет файл.
func (s *PaymentService) AttachProof(ctx context.Context, userID int64, fileID string) (*models.Payment, error) {
	p, err := s.repo.ActivePayment(ctx, userID)
	if err != nil {
		return nil, err
	}

	status, err := s.repo.AttachProof(ctx, p.ID, fileID)
	if err != nil {
		return nil, err
	}
	p.ProofFileID = fileID
	p.Status = status

	s.log.Info("proof attached", slog.Int64("payment_id", p.ID),
		slog.String("status", string(status)))
	return p, nil
}

// Cancel отменяет открытую заявку пользователя.
func (s *PaymentService) Cancel(ctx context.Context, userID int64) (*models.Payment, error) {
	p, err := s.repo.ActivePayment(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CancelPayment(ctx, p.ID); err != nil {
		return nil, err
	}
	p.Status = models.PaymentRejected

	s.log.Info("payment cancelled", slog.Int64("payment_id", p.ID))
	metrics.Payments.WithLabelValues("cancelled").Inc()
	return p, nil
}

// Approve подтверждает заявку: статус, начисление интервала и журнал
// действий меняются одной транзакцией хранилища, затем сбрасывается кеш
// доступа владельца.
func (s *PaymentService) Approve(ctx context.Context, paymentID, actorID int64) (*ApproveResult, error) {
	p, start, end, err := s.repo.ApprovePayment(ctx, paymentID, actorID, time.Now())
	if err != nil {
		return nil, err
	}
	s.ledger.Invalidate(ctx, p.UserID)

	s.log.Info("payment approved", slog.Int64("payment_id", p.ID),
		slog.Int64("actor_id", actorID),
		slog.Time("start_at", start), slog.Time("end_at", end))
	metrics.Payments.WithLabelValues("approved").Inc()
	return &ApproveResult{Payment: p, StartAt: start, EndAt: end}, nil
}

// Reject отклоняет заявку. Причина обязательна: она уходит владельцу
// и остаётся в журнале, отклонение без неё не принимается.
func (s *PaymentService) Reject(ctx context.Context, paymentID, actorID int64, reason string) (*models.Payment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("empty reject reason: %w", models.ErrInvalidState)
	}

	p, err := s.repo.RejectPayment(ctx, paymentID, actorID, reason, time.Now())
	if err != nil {
		return nil, err
	}

	s.log.Info("payment rejected", slog.Int64("payment_id", p.ID),
		slog.Int64("actor_id", actorID), slog.String("reason", reason))
	metrics.Payments.WithLabelValues("rejected").Inc()
	return p, nil
}

// Queue возвращает очередь заявок на рассмотрение.
func (s *PaymentService) Queue(ctx context.Context) ([]*models.Payment, error) {
	return s.repo.ListPaymentQueue(ctx)
}
