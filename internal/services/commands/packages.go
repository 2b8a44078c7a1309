package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/magabrotheeeer/donation-bot/internal/lib/sl"
	"github.com/magabrotheeeer/donation-bot/internal/models"
	"github.com/magabrotheeeer/donation-bot/internal/services/catalog"
	"github.com/magabrotheeeer/donation-bot/internal/storage"
)

func (d *Dispatcher) pkgCreate(ctx context.Context, req *Request) (string, error) {
	if len(req.Args) < 3 {
		return "", ErrUsage
	}
	price, err := strconv.ParseInt(req.Args[1], 10, 64)
	if err != nil {
		return "", ErrUsage
	}
	pkg := models.Package{Type: req.Args[0], Price: price, LicenseKey: req.Args[2]}

	err = d.Catalog.Create(ctx, pkg)
	switch {
	case errors.Is(err, storage.ErrPackageExists):
		return fmt.Sprintf("Paket %s sudah ada.", pkg.Type), nil
	case errors.Is(err, catalog.ErrInvalidPackage):
		return "", ErrUsage
	case err != nil:
		return "", err
	}
	return fmt.Sprintf("Paket %s dengan harga Rp. %d berhasil dibuat.", pkg.Type, pkg.Price), nil
}

func (d *Dispatcher) pkgDelete(ctx context.Context, req *Request) (string, error) {
	if len(req.Args) < 1 {
		return "", ErrUsage
	}
	name := req.Args[0]
	err := d.Catalog.Delete(ctx, name)
	if errors.Is(err, storage.ErrPackageNotFound) {
		return fmt.Sprintf("Paket %s tidak ditemukan.", name), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Paket %s berhasil dihapus.", name), nil
}

func (d *Dispatcher) pkgPriceChange(ctx context.Context, req *Request) (string, error) {
	if len(req.Args) < 2 {
		return "", ErrUsage
	}
	name := req.Args[0]
	price, err := strconv.ParseInt(req.Args[1], 10, 64)
	if err != nil || price < 0 {
		return "", ErrUsage
	}

	err = d.Catalog.ChangePrice(ctx, name, price)
	if errors.Is(err, storage.ErrPackageNotFound) {
		return fmt.Sprintf("Paket %s tidak ditemukan.", name), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Harga paket %s berhasil diubah menjadi Rp. %d.", name, price), nil
}

// pkgKeyChange выполняется в фоне: смена паролей постов может занять минуты.
func (d *Dispatcher) pkgKeyChange(ctx context.Context, req *Request) (string, error) {
	if len(req.Args) < 2 {
		return "", ErrUsage
	}
	name, key := req.Args[0], req.Args[1]

	d.background(ctx, req.Msg, func(ctx context.Context) string {
		posts, err := d.Catalog.ChangeKey(ctx, name, key)
		switch {
		case errors.Is(err, storage.ErrPackageNotFound):
			return fmt.Sprintf("Paket %s tidak ditemukan.", name)
		case err != nil && posts > 0:
			return fmt.Sprintf("Kode paket %s berhasil diubah, tetapi hanya %d post yang diperbarui.", name, posts)
		case err != nil:
			d.log.Error("failed to change package key", sl.Err(err))
			return fmt.Sprintf("Terjadi kesalahan saat mengubah kode paket %s.", name)
		}
		return fmt.Sprintf("Kode paket %s berhasil diubah. %d post diperbarui.", name, posts)
	})
	return "", nil
}

func (d *Dispatcher) pkgPrint(ctx context.Context, _ *Request) (string, error) {
	packages, err := d.Catalog.List(ctx)
	if err != nil {
		return "", err
	}
	if len(packages) == 0 {
		return "Belum ada paket.", nil
	}

	var b strings.Builder
	b.WriteString("Daftar paket:")
	for _, p := range packages {
		fmt.Fprintf(&b, "\n%s - Rp. %d - %s", p.Type, p.Price, p.LicenseKey)
	}
	return b.String(), nil
}
