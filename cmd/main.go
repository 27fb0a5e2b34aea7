package main

import (
	"fmt"
	"log"
	"os"

	"expo_backend/internal/models"
	"expo_backend/internal/settings"
	"expo_backend/internal/storage"

	"github.com/joho/godotenv"
)

// Утилита первичной настройки: прогоняет миграции и заполняет настройки
// события значениями по умолчанию, не трогая уже существующие ключи.
func main() {
	key := os.Getenv("ENV_CHEK")
	if key == "" {
		fmt.Println("Подключение к .env")
		err := godotenv.Load()
		if err != nil {
			log.Fatal("Ошибка получения .env")
		}
	}

	storage.ConnectDatabase()

	if err := storage.DB.AutoMigrate(
		&models.Participant{},
		&models.Setting{},
		&models.Campus{},
		&models.RundownItem{},
		&models.FaqItem{},
	); err != nil {
		log.Fatal("Ошибка при миграции... ", err.Error())
	}

	defaults := map[string]string{
		settings.KeySiteMode:         settings.SiteModeLive,
		settings.KeyRegistrationOpen: "true",
		settings.KeyCertFormat:       "421.5/[NO]/SMK.01/2025",
		"hero_title":                 "Школьная выставка",
		"hero_subtitle":              "Регистрация посетителей открыта",
	}

	for k, v := range defaults {
		existing, err := settings.Get(storage.DB, k)
		if err != nil {
			log.Fatal("Ошибка чтения настройки ", k, ": ", err.Error())
		}
		if existing != "" {
			continue
		}
		if err := settings.Upsert(storage.DB, k, v); err != nil {
			log.Fatal("Ошибка записи настройки ", k, ": ", err.Error())
		}
		log.Printf("Настройка %s установлена в %q\n", k, v)
	}

	log.Println("Миграции и настройки по умолчанию применены.")
}
