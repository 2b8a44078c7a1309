package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/donation-bot/internal/cache"
	"github.com/magabrotheeeer/donation-bot/internal/lib/sl"
	"github.com/magabrotheeeer/donation-bot/internal/models"
	"github.com/magabrotheeeer/donation-bot/internal/storage"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) CreatePackage(ctx context.Context, pkg models.Package) error {
	return m.Called(ctx, pkg).Error(0)
}
func (m *RepoMock) DeletePackage(ctx context.Context, packageType string) error {
	return m.Called(ctx, packageType).Error(0)
}
func (m *RepoMock) UpdatePackagePrice(ctx context.Context, packageType string, price int64) error {
	return m.Called(ctx, packageType, price).Error(0)
}
func (m *RepoMock) UpdatePackageKey(ctx context.Context, packageType, licenseKey string) error {
	return m.Called(ctx, packageType, licenseKey).Error(0)
}
func (m *RepoMock) GetPackage(ctx context.Context, packageType string) (*models.Package, error) {
	args := m.Called(ctx, packageType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Package), args.Error(1)
}
func (m *RepoMock) ListPackages(ctx context.Context) ([]models.Package, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Package), args.Error(1)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(ctx context.Context, key string, result any) (bool, error) {
	args := m.Called(ctx, key, result)
	return args.Bool(0), args.Error(1)
}
func (m *CacheMock) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return m.Called(ctx, key, value, expiration).Error(0)
}
func (m *CacheMock) Invalidate(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type RotatorMock struct{ mock.Mock }

func (m *RotatorMock) SetCategoryPassword(ctx context.Context, category, password string) (int, error) {
	args := m.Called(ctx, category, password)
	return args.Int(0), args.Error(1)
}

var catalogFixture = []models.Package{
	{Type: "bronze", Price: 10000, LicenseKey: "BRZ"},
	{Type: "silver", Price: 30000, LicenseKey: "SLV"},
	{Type: "gold", Price: 100000, LicenseKey: "GLD"},
}

func TestSelectPackage(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		want   string
		found  bool
	}{
		{name: "between tiers", amount: 50000, want: "silver", found: true},
		{name: "exact price", amount: 100000, want: "gold", found: true},
		{name: "lowest tier", amount: 10000, want: "bronze", found: true},
		{name: "below all", amount: 9999, found: false},
		{name: "zero", amount: 0, found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg, ok := SelectPackage(catalogFixture, tt.amount)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, pkg.Type)
			} else {
				assert.Nil(t, pkg)
			}
		})
	}
}

func TestSelectPackage_UnorderedInput(t *testing.T) {
	packages := []models.Package{catalogFixture[2], catalogFixture[1], catalogFixture[0]}
	pkg, ok := SelectPackage(packages, 50000)
	require.True(t, ok)
	assert.Equal(t, "silver", pkg.Type)
}

func TestService_Create(t *testing.T) {
	tests := []struct {
		name        string
		pkg         models.Package
		setupMocks  func(*RepoMock, *CacheMock)
		expectedErr error
	}{
		{
			name: "success",
			pkg:  models.Package{Type: "gold", Price: 100000, LicenseKey: "GLD"},
			setupMocks: func(r *RepoMock, c *CacheMock) {
				r.On("CreatePackage", mock.Anything, mock.AnythingOfType("models.Package")).Return(nil).Once()
				c.On("Invalidate", mock.Anything, packagesCacheKey).Return(nil).Once()
			},
		},
		{
			name: "duplicate",
			pkg:  models.Package{Type: "gold", Price: 100000, LicenseKey: "GLD"},
			setupMocks: func(r *RepoMock, _ *CacheMock) {
				r.On("CreatePackage", mock.Anything, mock.AnythingOfType("models.Package")).
					Return(storage.ErrPackageExists).Once()
			},
			expectedErr: storage.ErrPackageExists,
		},
		{
			name:        "negative price",
			pkg:         models.Package{Type: "gold", Price: -1, LicenseKey: "GLD"},
			setupMocks:  func(*RepoMock, *CacheMock) {},
			expectedErr: ErrInvalidPackage,
		},
		{
			name:        "missing key",
			pkg:         models.Package{Type: "gold", Price: 1},
			setupMocks:  func(*RepoMock, *CacheMock) {},
			expectedErr: ErrInvalidPackage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			c := new(CacheMock)
			tt.setupMocks(repo, c)

			s := New(repo, sl.Discard(), WithCache(c, time.Hour))
			err := s.Create(context.Background(), tt.pkg)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			repo.AssertExpectations(t)
			c.AssertExpectations(t)
		})
	}
}

func TestService_ChangeKey(t *testing.T) {
	ctx := context.Background()

	t.Run("rotates posts", func(t *testing.T) {
		repo := new(RepoMock)
		rot := new(RotatorMock)
		repo.On("UpdatePackageKey", mock.Anything, "gold", "NEW").Return(nil).Once()
		rot.On("SetCategoryPassword", mock.Anything, "gold", "NEW").Return(3, nil).Once()

		s := New(repo, sl.Discard(), WithKeyRotator(rot))
		n, err := s.ChangeKey(ctx, "gold", "NEW")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		rot.AssertExpectations(t)
	})

	t.Run("unknown package skips rotation", func(t *testing.T) {
		repo := new(RepoMock)
		rot := new(RotatorMock)
		repo.On("UpdatePackageKey", mock.Anything, "ghost", "NEW").Return(storage.ErrPackageNotFound).Once()

		s := New(repo, sl.Discard(), WithKeyRotator(rot))
		_, err := s.ChangeKey(ctx, "ghost", "NEW")
		assert.ErrorIs(t, err, storage.ErrPackageNotFound)
		rot.AssertNotCalled(t, "SetCategoryPassword", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rotation failure is reported", func(t *testing.T) {
		repo := new(RepoMock)
		rot := new(RotatorMock)
		repo.On("UpdatePackageKey", mock.Anything, "gold", "NEW").Return(nil).Once()
		rot.On("SetCategoryPassword", mock.Anything, "gold", "NEW").Return(0, errors.New("category not found")).Once()

		s := New(repo, sl.Discard(), WithKeyRotator(rot))
		_, err := s.ChangeKey(ctx, "gold", "NEW")
		assert.Error(t, err)
	})
}

func TestService_ListUsesRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	c := &cache.Cache{Db: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	repo := new(RepoMock)
	repo.On("ListPackages", mock.Anything).Return(catalogFixture, nil).Once()
	repo.On("UpdatePackagePrice", mock.Anything, "silver", int64(40000)).Return(nil).Once()

	s := New(repo, sl.Discard(), WithCache(c, time.Hour))

	first, err := s.List(ctx)
	require.NoError(t, err)
	second, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	repo.AssertNumberOfCalls(t, "ListPackages", 1)

	require.NoError(t, s.ChangePrice(ctx, "silver", 40000))
	assert.False(t, mr.Exists(packagesCacheKey))

	updated := []models.Package{catalogFixture[0], {Type: "silver", Price: 40000, LicenseKey: "SLV"}, catalogFixture[2]}
	repo.On("ListPackages", mock.Anything).Return(updated, nil).Once()

	pkg, ok, err := s.SelectByAmount(ctx, 50000)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(40000), pkg.Price)
}

func TestService_ListCacheFailureFallsBack(t *testing.T) {
	repo := new(RepoMock)
	c := new(CacheMock)
	c.On("Get", mock.Anything, packagesCacheKey, mock.Anything).Return(false, errors.New("redis down")).Once()
	c.On("Set", mock.Anything, packagesCacheKey, mock.Anything, time.Minute).Return(errors.New("redis down")).Once()
	repo.On("ListPackages", mock.Anything).Return(catalogFixture, nil).Once()

	s := New(repo, sl.Discard(), WithCache(c, time.Minute))
	packages, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, packages, 3)
}
