package settings

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"expo_backend/internal/models"
	"expo_backend/internal/storage"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ключи, которые читает ядро. Остальные ключи (hero_title, event_date и т.д.) —
// контент лендинга, ядро их не интерпретирует и отдаёт как есть.
const (
	KeySiteMode         = "site_mode"
	KeyRegistrationOpen = "registration_open"
	KeyCertFormat       = "cert_number_format"
	KeyAdminPassHash    = "admin_password_hash"
)

// Режимы сайта
const (
	SiteModeLive        = "LIVE"
	SiteModeMaintenance = "MAINTENANCE"
	SiteModeComingSoon  = "COMING_SOON"
)

const cacheKey = "event_settings_all"

var ctx = context.Background()

// LoadAll отдаёт все настройки одной картой. Результат кэшируется в Redis,
// кэш сбрасывается при любом изменении настроек.
func LoadAll(db *gorm.DB) (map[string]string, error) {
	if storage.RedisClient != nil {
		cached, err := storage.RedisClient.Get(ctx, cacheKey).Result()
		if err == nil && cached != "" {
			var conf map[string]string
			if err := json.Unmarshal([]byte(cached), &conf); err == nil {
				return conf, nil
			}
		}
	}

	var rows []models.Setting
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}

	conf := make(map[string]string, len(rows))
	for _, s := range rows {
		conf[s.Key] = s.Value
	}

	if storage.RedisClient != nil {
		if raw, err := json.Marshal(conf); err == nil {
			storage.RedisClient.Set(ctx, cacheKey, string(raw), time.Hour)
		}
	}

	return conf, nil
}

// Get читает один ключ напрямую из базы, мимо кэша. Пустая строка — ключа нет.
func Get(db *gorm.DB, key string) (string, error) {
	var s models.Setting
	err := db.Where("key = ?", key).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return s.Value, nil
}

// Upsert записывает значение ключа и сбрасывает кэш.
func Upsert(db *gorm.DB, key, value string) error {
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&models.Setting{Key: key, Value: value}).Error
	if err != nil {
		return err
	}
	InvalidateCache()
	return nil
}

func InvalidateCache() {
	if storage.RedisClient != nil {
		storage.RedisClient.Del(ctx, cacheKey)
	}
}

// SiteMode возвращает текущий режим сайта, по умолчанию LIVE.
func SiteMode(db *gorm.DB) string {
	conf, err := LoadAll(db)
	if err != nil {
		return SiteModeLive
	}
	switch conf[KeySiteMode] {
	case SiteModeMaintenance:
		return SiteModeMaintenance
	case SiteModeComingSoon:
		return SiteModeComingSoon
	default:
		return SiteModeLive
	}
}

// RegistrationOpen сообщает, открыта ли регистрация. Отсутствие ключа
// трактуется как "открыта".
func RegistrationOpen(db *gorm.DB) bool {
	conf, err := LoadAll(db)
	if err != nil {
		return true
	}
	return conf[KeyRegistrationOpen] != "false"
}

// CertNumberFormat возвращает шаблон номера сертификата ("421.5/[NO]/SMK.01/2025").
func CertNumberFormat(db *gorm.DB) string {
	conf, err := LoadAll(db)
	if err != nil {
		return ""
	}
	return conf[KeyCertFormat]
}
