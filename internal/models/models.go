package models

import (
	"time"

	"gorm.io/gorm"
)

// Статусы участника. Переход возможен только REGISTERED -> CHECKED-IN.
const (
	StatusRegistered = "REGISTERED"
	StatusCheckedIn  = "CHECKED-IN"
)

type Participant struct {
	gorm.Model
	Name         string     `gorm:"not null"`
	OriginSchool string     `gorm:"not null"` // Школа, из которой пришёл участник
	Email        string     `gorm:"uniqueIndex;not null"`
	Phone        string     `gorm:"uniqueIndex;not null"`
	Status       string     `gorm:"index;not null;default:'REGISTERED'"`
	TicketCode   string     `gorm:"uniqueIndex;not null"` // UUID, кодируется в QR билета
	CheckInTime  *time.Time // Время прохода через гейт (nil — ещё не отмечен)
}

type Setting struct {
	gorm.Model
	Key   string `gorm:"uniqueIndex;not null"` // Ключ настройки, например "site_mode"
	Value string `gorm:"not null"`
}

type Campus struct {
	gorm.Model
	Name        string `gorm:"not null"` // Название кампуса-партнёра
	Description string
	LogoURL     string // Готовая ссылка на логотип во внешнем хранилище
}

type RundownItem struct {
	gorm.Model
	Time        string `gorm:"not null"` // Время пункта программы, свободный формат ("09:00")
	Title       string `gorm:"not null"`
	Description string
}

type FaqItem struct {
	gorm.Model
	Question string `gorm:"not null"`
	Answer   string `gorm:"not null"`
}
