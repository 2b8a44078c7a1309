package models

// Package представляет пакет (уровень доната) с ценой и лицензионным ключом.
type Package struct {
	Type       string `json:"package_type" validate:"required,max=64"` // Уникальное имя пакета
	Price      int64  `json:"price" validate:"gte=0"`                  // Цена в минимальных единицах валюты (IDR)
	LicenseKey string `json:"license_key" validate:"required"`         // Непрозрачная строка ключа
}
