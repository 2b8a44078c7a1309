// Package catalog управляет каталогом пакетов: CRUD, выбор пакета по сумме доната,
// кеширование списка в Redis и смена паролей постов WordPress при смене ключа.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/donation-bot/internal/lib/sl"
	"github.com/magabrotheeeer/donation-bot/internal/models"
)

const packagesCacheKey = "catalog:packages"

// ErrInvalidPackage пакет не прошёл валидацию.
var ErrInvalidPackage = errors.New("invalid package")

// PackageRepository хранилище пакетов.
type PackageRepository interface {
	CreatePackage(ctx context.Context, pkg models.Package) error
	DeletePackage(ctx context.Context, packageType string) error
	UpdatePackagePrice(ctx context.Context, packageType string, price int64) error
	UpdatePackageKey(ctx context.Context, packageType, licenseKey string) error
	GetPackage(ctx context.Context, packageType string) (*models.Package, error)
	ListPackages(ctx context.Context) ([]models.Package, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(ctx context.Context, key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(ctx context.Context, key string) error
}

// KeyRotator выставляет новый пароль всем постам категории.
type KeyRotator interface {
	SetCategoryPassword(ctx context.Context, category, password string) (int, error)
}

// Service реализует бизнес-логику каталога пакетов.
type Service struct {
	repo     PackageRepository
	cache    Cache
	ttl      time.Duration
	rotator  KeyRotator
	validate *validator.Validate
	log      *slog.Logger
}

// Option настраивает Service.
type Option func(*Service)

// WithCache включает кеширование списка пакетов.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = cache
		s.ttl = ttl
	}
}

// WithKeyRotator включает смену паролей постов при смене ключа.
func WithKeyRotator(r KeyRotator) Option {
	return func(s *Service) {
		s.rotator = r
	}
}

// New создает новый экземпляр Service.
func New(repo PackageRepository, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		validate: validator.New(),
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create добавляет пакет.
func (s *Service) Create(ctx context.Context, pkg models.Package) error {
	const op = "services.catalog.Create"

	if err := s.validate.Struct(pkg); err != nil {
		return fmt.Errorf("%s: %w: %s", op, ErrInvalidPackage, err.Error())
	}
	if err := s.repo.CreatePackage(ctx, pkg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx)
	s.log.Info("package created", slog.String("op", op), slog.String("package", pkg.Type), slog.Int64("price", pkg.Price))
	return nil
}

// Delete удаляет пакет.
func (s *Service) Delete(ctx context.Context, packageType string) error {
	const op = "services.catalog.Delete"

	if err := s.repo.DeletePackage(ctx, packageType); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx)
	return nil
}

// ChangePrice меняет цену пакета.
func (s *Service) ChangePrice(ctx context.Context, packageType string, price int64) error {
	const op = "services.catalog.ChangePrice"

	if price < 0 {
		return fmt.Errorf("%s: %w: negative price", op, ErrInvalidPackage)
	}
	if err := s.repo.UpdatePackagePrice(ctx, packageType, price); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx)
	return nil
}

// ChangeKey меняет лицензионный ключ пакета и, если настроен WordPress,
// выставляет этот ключ паролем постам категории с именем пакета.
// Возвращает число обновлённых постов.
func (s *Service) ChangeKey(ctx context.Context, packageType, licenseKey string) (int, error) {
	const op = "services.catalog.ChangeKey"
	log := s.log.With(slog.String("op", op), slog.String("package", packageType))

	if licenseKey == "" {
		return 0, fmt.Errorf("%s: %w: empty key", op, ErrInvalidPackage)
	}
	if err := s.repo.UpdatePackageKey(ctx, packageType, licenseKey); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx)

	if s.rotator == nil {
		return 0, nil
	}
	updated, err := s.rotator.SetCategoryPassword(ctx, packageType, licenseKey)
	if err != nil {
		log.Error("failed to rotate post passwords", sl.Err(err))
		return updated, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("post passwords rotated", slog.Int("posts", updated))
	return updated, nil
}

// Get возвращает пакет по имени.
func (s *Service) Get(ctx context.Context, packageType string) (*models.Package, error) {
	const op = "services.catalog.Get"

	pkg, err := s.repo.GetPackage(ctx, packageType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return pkg, nil
}

// List возвращает каталог по возрастанию цены. Ошибки кеша не прерывают чтение.
func (s *Service) List(ctx context.Context) ([]models.Package, error) {
	const op = "services.catalog.List"
	log := s.log.With(slog.String("op", op))

	if s.cache != nil {
		var cached []models.Package
		found, err := s.cache.Get(ctx, packagesCacheKey, &cached)
		if err != nil {
			log.Warn("cache read failed", sl.Err(err))
		} else if found {
			return cached, nil
		}
	}

	packages, err := s.repo.ListPackages(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, packagesCacheKey, packages, s.ttl); err != nil {
			log.Warn("cache write failed", sl.Err(err))
		}
	}
	return packages, nil
}

// SelectByAmount возвращает самый дорогой пакет, цена которого не превышает amount.
// Второе значение false, если подходящего пакета нет.
func (s *Service) SelectByAmount(ctx context.Context, amount int64) (*models.Package, bool, error) {
	const op = "services.catalog.SelectByAmount"

	packages, err := s.List(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	pkg, ok := SelectPackage(packages, amount)
	return pkg, ok, nil
}

// SelectPackage выбирает из packages самый дорогой пакет с ценой не выше amount.
// При равной цене побеждает пакет, идущий в списке позже.
func SelectPackage(packages []models.Package, amount int64) (*models.Package, bool) {
	var selected *models.Package
	for i := range packages {
		if packages[i].Price > amount {
			continue
		}
		if selected == nil || packages[i].Price >= selected.Price {
			selected = &packages[i]
		}
	}
	if selected == nil {
		return nil, false
	}
	pkg := *selected
	return &pkg, true
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, packagesCacheKey); err != nil {
		s.log.Warn("cache invalidation failed", slog.String("key", packagesCacheKey), sl.Err(err))
	}
}
