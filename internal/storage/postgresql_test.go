package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/donation-bot/internal/models"
)

func TestStorage_Users(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	verify := NewTestVerification(s)

	require.NoError(t, s.AddUser(ctx, "budi", "JKT01", []string{"6281111111111@c.us", "6281111111112@c.us"}))
	require.NoError(t, s.AddUser(ctx, "sari", "JKT02", []string{"6282222222222@c.us"}))
	require.NoError(t, s.AddUser(ctx, "joko", "BDG01", []string{"6283333333333@c.us"}))
	verify.VerifyPhoneCount(t, 4)

	all, err := s.ListPhoneNumbers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"6281111111111@c.us", "6281111111112@c.us", "6282222222222@c.us", "6283333333333@c.us"}, all)

	byLoc, err := s.ListPhoneNumbersByLocation(ctx, "JKT02")
	require.NoError(t, err)
	assert.Equal(t, []string{"6282222222222@c.us"}, byLoc)

	byPrefix, err := s.ListPhoneNumbersByLocationPrefix(ctx, "JKT")
	require.NoError(t, err)
	assert.Len(t, byPrefix, 3)

	none, err := s.ListPhoneNumbersByLocationPrefix(ctx, "%")
	require.NoError(t, err)
	assert.Empty(t, none)

	deleted, err := s.DeleteUser(ctx, "budi")
	require.NoError(t, err)
	assert.True(t, deleted)
	verify.VerifyPhoneCount(t, 2)

	deleted, err = s.DeleteUser(ctx, "budi")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestStorage_Newsletter(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, s.AddPhoneNumber(ctx, "Andi", "6281234567890@c.us"))
	require.NoError(t, s.AddPhoneNumber(ctx, "Andi", "6281234567890@c.us"))

	subs, err := s.ListSubscribers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Subscriber{{Name: "Andi", PhoneNumber: "6281234567890@c.us"}}, subs)

	removed, err := s.RemovePhoneNumber(ctx, "6281234567890@c.us")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.RemovePhoneNumber(ctx, "6281234567890@c.us")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestStorage_Packages(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, s.CreatePackage(ctx, models.Package{Type: "gold", Price: 100000, LicenseKey: "G-1"}))
	require.NoError(t, s.CreatePackage(ctx, models.Package{Type: "bronze", Price: 10000, LicenseKey: "B-1"}))

	err := s.CreatePackage(ctx, models.Package{Type: "gold", Price: 1, LicenseKey: "x"})
	require.ErrorIs(t, err, ErrPackageExists)

	require.NoError(t, s.UpdatePackagePrice(ctx, "gold", 90000))
	require.NoError(t, s.UpdatePackageKey(ctx, "gold", "G-2"))
	require.ErrorIs(t, s.UpdatePackageKey(ctx, "silver", "S"), ErrPackageNotFound)

	pkg, err := s.GetPackage(ctx, "gold")
	require.NoError(t, err)
	assert.Equal(t, models.Package{Type: "gold", Price: 90000, LicenseKey: "G-2"}, *pkg)

	list, err := s.ListPackages(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "bronze", list[0].Type)

	require.NoError(t, s.DeletePackage(ctx, "bronze"))
	require.ErrorIs(t, s.DeletePackage(ctx, "bronze"), ErrPackageNotFound)
	_, err = s.GetPackage(ctx, "bronze")
	require.ErrorIs(t, err, ErrPackageNotFound)
}

func TestStorage_Parameters(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	verify := NewTestVerification(s)
	user := "6281234567890@c.us"

	_, err := s.GetParameter(ctx, user)
	require.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, s.EnsureParameter(ctx, user))
	param, err := s.GetParameter(ctx, user)
	require.NoError(t, err)
	assert.Nil(t, param.ActivePackage)
	assert.Nil(t, param.PackageExpires)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.SetActivePackage(ctx, user, "gold", now.Add(time.Hour)))
	param, err = s.GetParameter(ctx, user)
	require.NoError(t, err)
	require.NotNil(t, param.ActivePackage)
	assert.Equal(t, "gold", *param.ActivePackage)
	assert.True(t, now.Add(time.Hour).Equal(*param.PackageExpires))

	cleared, err := s.ClearExpiredPackage(ctx, user, now)
	require.NoError(t, err)
	assert.False(t, cleared)

	cleared, err = s.ClearExpiredPackage(ctx, user, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, cleared)
	verify.VerifyParameterCleared(t, user)

	cleared, err = s.ClearExpiredPackage(ctx, user, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, cleared)
}
