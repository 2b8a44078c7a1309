// Package lifecycle управляет активным пакетом пользователя: проверяет статус
// с ленивым истечением и активирует или продлевает пакет.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/donation-bot/internal/lib/sl"
	"github.com/magabrotheeeer/donation-bot/internal/models"
)

// PackageDuration срок действия одной активации.
const PackageDuration = 30 * 24 * time.Hour

// ParameterRepository хранилище параметров пользователя.
type ParameterRepository interface {
	// EnsureParameter создаёт пустую запись, если её нет.
	EnsureParameter(ctx context.Context, userID string) error
	// GetParameter возвращает текущую запись.
	GetParameter(ctx context.Context, userID string) (*models.Parameter, error)
	// ClearExpiredPackage сбрасывает пакет, если он истёк раньше now.
	ClearExpiredPackage(ctx context.Context, userID string, now time.Time) (bool, error)
	// SetActivePackage атомарно записывает пакет и дату истечения.
	SetActivePackage(ctx context.Context, userID, packageType string, expires time.Time) error
}

// Service реализует жизненный цикл пакета.
type Service struct {
	repo  ParameterRepository
	log   *slog.Logger
	now   func() time.Time
	locks *userLocks
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New создает новый экземпляр Service.
func New(repo ParameterRepository, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:  repo,
		log:   log,
		now:   time.Now,
		locks: newUserLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckStatus возвращает статус пакета пользователя.
// Истёкший пакет сбрасывается в хранилище, и пользователь считается без пакета.
func (s *Service) CheckStatus(ctx context.Context, userID string) (models.PackageStatus, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	return s.checkStatus(ctx, userID, s.now())
}

// Activate активирует пакет packageType для пользователя и возвращает новую дату истечения.
// Тот же пакет продлевается от более поздней из дат (текущее истечение или сейчас),
// другой пакет начинается заново от текущего момента.
func (s *Service) Activate(ctx context.Context, userID, packageType string) (time.Time, error) {
	const op = "services.lifecycle.Activate"
	log := s.log.With(slog.String("op", op), slog.String("user_id", userID), slog.String("package", packageType))

	unlock := s.locks.lock(userID)
	defer unlock()

	now := s.now()
	status, err := s.checkStatus(ctx, userID, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	base := now
	if status.Active && *status.PackageName == packageType && status.Expiry.After(now) {
		base = *status.Expiry
	}
	expires := base.Add(PackageDuration)

	if err := s.repo.SetActivePackage(ctx, userID, packageType, expires); err != nil {
		log.Error("failed to set active package", sl.Err(err))
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("package activated", slog.Time("expires", expires))
	return expires, nil
}

func (s *Service) checkStatus(ctx context.Context, userID string, now time.Time) (models.PackageStatus, error) {
	const op = "services.lifecycle.checkStatus"

	if err := s.repo.EnsureParameter(ctx, userID); err != nil {
		return models.PackageStatus{}, fmt.Errorf("%s: %w", op, err)
	}
	param, err := s.repo.GetParameter(ctx, userID)
	if err != nil {
		return models.PackageStatus{}, fmt.Errorf("%s: %w", op, err)
	}

	if param.ActivePackage == nil || param.PackageExpires == nil {
		return models.PackageStatus{}, nil
	}

	if param.PackageExpires.Before(now) {
		if _, err := s.repo.ClearExpiredPackage(ctx, userID, now); err != nil {
			return models.PackageStatus{}, fmt.Errorf("%s: %w", op, err)
		}
		s.log.Info("package expired", slog.String("op", op), slog.String("user_id", userID),
			slog.String("package", *param.ActivePackage))
		return models.PackageStatus{}, nil
	}

	return models.PackageStatus{
		Active:      true,
		PackageName: param.ActivePackage,
		Expiry:      param.PackageExpires,
	}, nil
}
