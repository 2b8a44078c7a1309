package models

import "time"

// Parameter хранит активный пакет пользователя и дату его истечения.
// ActivePackage и PackageExpires либо оба заданы, либо оба nil.
type Parameter struct {
	UserID         string     // Идентификатор чата пользователя
	ActivePackage  *string    // Активный пакет
	PackageExpires *time.Time // Дата истечения пакета
}

// PackageStatus результат проверки статуса пакета пользователя.
type PackageStatus struct {
	Active      bool       `json:"active"`
	PackageName *string    `json:"package_name"`
	Expiry      *time.Time `json:"expiry"`
}
