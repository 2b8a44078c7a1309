// Package storage реализует хранилище данных на основе PostgreSQL
// для пользователей бота и их номеров, каталога пакетов и параметров подписки.
// Предоставляет методы создания, чтения, обновления и удаления записей.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/donation-bot/internal/models"
)

var (
	// ErrPackageExists пакет с таким именем уже есть в каталоге.
	ErrPackageExists = errors.New("package already exists")
	// ErrPackageNotFound пакет не найден.
	ErrPackageNotFound = errors.New("package not found")
	// ErrUserNotFound пользователь или его параметры не найдены.
	ErrUserNotFound = errors.New("user not found")
)

const uniqueViolation = "23505"

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL и проверяет его доступность.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// Ping проверяет доступность базы.
func (s *Storage) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// ===== USER METHODS =====

// AddUser создаёт пользователя (или обновляет локацию существующего) и привязывает к нему номера.
func (s *Storage) AddUser(ctx context.Context, name, location string, phoneNumbers []string) error {
	const op = "storage.AddUser"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var userID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (name, location_code) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET location_code = EXCLUDED.location_code
		RETURNING id`, name, location).Scan(&userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, phone := range phoneNumbers {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO phone_numbers (user_id, phone_number) VALUES ($1, $2)
			ON CONFLICT (phone_number) DO NOTHING`, userID, phone); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteUser удаляет пользователя вместе с его номерами. Возвращает false, если пользователя нет.
func (s *Storage) DeleteUser(ctx context.Context, name string) (bool, error) {
	const op = "storage.DeleteUser"

	result, err := s.DB.ExecContext(ctx, `DELETE FROM users WHERE name = $1`, name)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}

// AddPhoneNumber подписывает номер на рассылку от имени пользователя name, создавая его при необходимости.
func (s *Storage) AddPhoneNumber(ctx context.Context, name, phoneNumber string) error {
	const op = "storage.AddPhoneNumber"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var userID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, name).Scan(&userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO phone_numbers (user_id, phone_number) VALUES ($1, $2)
		ON CONFLICT (phone_number) DO NOTHING`, userID, phoneNumber); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RemovePhoneNumber отписывает номер от рассылки. Возвращает false, если номер не был подписан.
func (s *Storage) RemovePhoneNumber(ctx context.Context, phoneNumber string) (bool, error) {
	const op = "storage.RemovePhoneNumber"

	result, err := s.DB.ExecContext(ctx, `DELETE FROM phone_numbers WHERE phone_number = $1`, phoneNumber)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}

// ListPhoneNumbers возвращает все подписанные адреса в порядке добавления.
func (s *Storage) ListPhoneNumbers(ctx context.Context) ([]string, error) {
	const op = "storage.ListPhoneNumbers"
	return s.queryPhoneNumbers(ctx, op, `SELECT phone_number FROM phone_numbers ORDER BY id`)
}

// ListPhoneNumbersByLocation возвращает адреса пользователей с указанным кодом локации.
func (s *Storage) ListPhoneNumbersByLocation(ctx context.Context, location string) ([]string, error) {
	const op = "storage.ListPhoneNumbersByLocation"
	return s.queryPhoneNumbers(ctx, op, `
		SELECT phone_numbers.phone_number
		FROM phone_numbers
		JOIN users ON users.id = phone_numbers.user_id
		WHERE users.location_code = $1
		ORDER BY phone_numbers.id`, location)
}

// ListPhoneNumbersByLocationPrefix возвращает адреса пользователей, чей код локации начинается с prefix.
func (s *Storage) ListPhoneNumbersByLocationPrefix(ctx context.Context, prefix string) ([]string, error) {
	const op = "storage.ListPhoneNumbersByLocationPrefix"
	return s.queryPhoneNumbers(ctx, op, `
		SELECT phone_numbers.phone_number
		FROM phone_numbers
		JOIN users ON users.id = phone_numbers.user_id
		WHERE users.location_code LIKE $1 ESCAPE '\'
		ORDER BY phone_numbers.id`, escapeLike(prefix)+"%")
}

func (s *Storage) queryPhoneNumbers(ctx context.Context, op, query string, args ...any) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := make([]string, 0)
	for rows.Next() {
		var phone string
		if err := rows.Scan(&phone); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, phone)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListSubscribers возвращает пары имя/адрес всех подписчиков рассылки.
func (s *Storage) ListSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	const op = "storage.ListSubscribers"

	rows, err := s.DB.QueryContext(ctx, `
		SELECT users.name, phone_numbers.phone_number
		FROM phone_numbers
		JOIN users ON users.id = phone_numbers.user_id
		ORDER BY phone_numbers.id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := make([]models.Subscriber, 0)
	for rows.Next() {
		var item models.Subscriber
		if err := rows.Scan(&item.Name, &item.PhoneNumber); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ===== PACKAGE METHODS =====

// CreatePackage добавляет пакет в каталог. Возвращает ErrPackageExists при дубликате имени.
func (s *Storage) CreatePackage(ctx context.Context, pkg models.Package) error {
	const op = "storage.CreatePackage"

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO packages (package_type, price, license_key) VALUES ($1, $2, $3)`,
		pkg.Type, pkg.Price, pkg.LicenseKey)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%s: %w", op, ErrPackageExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeletePackage удаляет пакет из каталога.
func (s *Storage) DeletePackage(ctx context.Context, packageType string) error {
	const op = "storage.DeletePackage"

	result, err := s.DB.ExecContext(ctx, `DELETE FROM packages WHERE package_type = $1`, packageType)
	return checkAffected(op, result, err)
}

// UpdatePackagePrice меняет цену пакета.
func (s *Storage) UpdatePackagePrice(ctx context.Context, packageType string, price int64) error {
	const op = "storage.UpdatePackagePrice"

	result, err := s.DB.ExecContext(ctx, `UPDATE packages SET price = $1 WHERE package_type = $2`, price, packageType)
	return checkAffected(op, result, err)
}

// UpdatePackageKey меняет лицензионный ключ пакета.
func (s *Storage) UpdatePackageKey(ctx context.Context, packageType, licenseKey string) error {
	const op = "storage.UpdatePackageKey"

	result, err := s.DB.ExecContext(ctx, `UPDATE packages SET license_key = $1 WHERE package_type = $2`, licenseKey, packageType)
	return checkAffected(op, result, err)
}

func checkAffected(op string, result sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrPackageNotFound)
	}
	return nil
}

// GetPackage возвращает пакет по имени.
func (s *Storage) GetPackage(ctx context.Context, packageType string) (*models.Package, error) {
	const op = "storage.GetPackage"

	var pkg models.Package
	err := s.DB.QueryRowContext(ctx, `
		SELECT package_type, price, license_key FROM packages WHERE package_type = $1`, packageType).
		Scan(&pkg.Type, &pkg.Price, &pkg.LicenseKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrPackageNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &pkg, nil
}

// ListPackages возвращает каталог, отсортированный по возрастанию цены.
func (s *Storage) ListPackages(ctx context.Context) ([]models.Package, error) {
	const op = "storage.ListPackages"

	rows, err := s.DB.QueryContext(ctx, `
		SELECT package_type, price, license_key FROM packages ORDER BY price ASC, package_type ASC`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := make([]models.Package, 0)
	for rows.Next() {
		var pkg models.Package
		if err := rows.Scan(&pkg.Type, &pkg.Price, &pkg.LicenseKey); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ===== PARAMETER METHODS =====

// EnsureParameter создаёт пустую запись параметров пользователя, если её ещё нет.
func (s *Storage) EnsureParameter(ctx context.Context, userID string) error {
	const op = "storage.EnsureParameter"

	if _, err := s.DB.ExecContext(ctx, `
		INSERT INTO parameters (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetParameter возвращает параметры пользователя.
func (s *Storage) GetParameter(ctx context.Context, userID string) (*models.Parameter, error) {
	const op = "storage.GetParameter"

	var (
		param   = models.Parameter{UserID: userID}
		pkg     sql.NullString
		expires sql.NullTime
	)
	err := s.DB.QueryRowContext(ctx, `
		SELECT active_package, package_expires FROM parameters WHERE user_id = $1`, userID).
		Scan(&pkg, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if pkg.Valid {
		param.ActivePackage = &pkg.String
	}
	if expires.Valid {
		t := expires.Time
		param.PackageExpires = &t
	}
	return &param, nil
}

// ClearExpiredPackage сбрасывает оба поля пакета, если срок истёк раньше now.
// Возвращает true, если запись была изменена.
func (s *Storage) ClearExpiredPackage(ctx context.Context, userID string, now time.Time) (bool, error) {
	const op = "storage.ClearExpiredPackage"

	result, err := s.DB.ExecContext(ctx, `
		UPDATE parameters SET active_package = NULL, package_expires = NULL
		WHERE user_id = $1 AND package_expires < $2`, userID, now)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}

// SetActivePackage одним запросом записывает пакет и дату истечения.
func (s *Storage) SetActivePackage(ctx context.Context, userID, packageType string, expires time.Time) error {
	const op = "storage.SetActivePackage"

	if _, err := s.DB.ExecContext(ctx, `
		INSERT INTO parameters (user_id, active_package, package_expires) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET active_package = EXCLUDED.active_package, package_expires = EXCLUDED.package_expires`,
		userID, packageType, expires); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
