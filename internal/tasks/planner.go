package tasks

import (
	"log"

	"expo_backend/internal/handlers"
	"expo_backend/internal/settings"
	"expo_backend/internal/storage"

	"github.com/robfig/cron/v3"
)

// RefreshStats обновляет снапшот счётчиков лендинга в Redis, чтобы публичный
// эндпоинт статистики не ходил в базу на каждый запрос.
func RefreshStats() {
	if err := handlers.RefreshStatsCache(); err != nil {
		log.Println("Ошибка обновления снапшота статистики:", err)
		return
	}
	log.Println("Снапшот статистики обновлён.")
}

// WarmSettingsCache прогревает кэш настроек после ночного сброса TTL.
func WarmSettingsCache() {
	if _, err := settings.LoadAll(storage.DB); err != nil {
		log.Println("Ошибка прогрева кэша настроек:", err)
	} else {
		log.Println("Кэш настроек прогрет.")
	}
}

// InitScheduler инициализирует планировщик cron-задач.
func InitScheduler() *cron.Cron {
	c := cron.New(cron.WithSeconds())

	// Обновление снапшота статистики каждые 5 минут.
	_, err := c.AddFunc("0 */5 * * * *", RefreshStats)
	if err != nil {
		log.Println("Ошибка запуска cron-задачи RefreshStats:", err)
	}

	// Прогрев кэша настроек каждый день в 03:00.
	_, err = c.AddFunc("0 0 3 * * *", WarmSettingsCache)
	if err != nil {
		log.Println("Ошибка запуска cron-задачи WarmSettingsCache:", err)
	}

	c.Start()
	log.Println("Cron-планировщик запущен.")
	return c
}
