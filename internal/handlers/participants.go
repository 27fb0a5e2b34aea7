package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"expo_backend/internal/models"
	"expo_backend/internal/response"
	"expo_backend/internal/storage"

	"github.com/gin-gonic/gin"
)

var ctx = context.Background()

// ListParticipantsHandler обрабатывает запрос списка участников для админки
// @Summary		Список участников
// @Description	Все участники, новые сверху
// @Tags			participants
// @Produce		json
// @Security		BearerAuth
// @Success		200	{array}		ParticipantResponse
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/admin/participants [get]
func ListParticipantsHandler(c *gin.Context) {
	var participants []models.Participant
	if err := storage.DB.Order("id DESC").Find(&participants).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки участников",
			Details: err.Error(),
		})
		return
	}

	result := make([]ParticipantResponse, 0, len(participants))
	for i := range participants {
		result = append(result, toParticipantResponse(&participants[i]))
	}

	c.JSON(http.StatusOK, result)
}

// ExportParticipantsHandler обрабатывает выгрузку отчёта по участникам
// @Summary		Экспорт участников в CSV
// @Description	Отчёт по всем участникам: id, имя, школа, контакты, статус, время check-in и регистрации
// @Tags			participants
// @Produce		text/csv
// @Security		BearerAuth
// @Success		200	{string}	string					"CSV-файл"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/admin/participants/export [get]
func ExportParticipantsHandler(c *gin.Context) {
	var participants []models.Participant
	if err := storage.DB.Order("id").Find(&participants).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки участников",
			Details: err.Error(),
		})
		return
	}

	filename := fmt.Sprintf("participants_%s.csv", time.Now().Format("2006-01-02"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)

	w := csv.NewWriter(c.Writer)
	w.Write([]string{"ID", "Имя", "Школа", "Email", "Телефон", "Статус", "Время check-in", "Время регистрации"})
	for i := range participants {
		p := &participants[i]
		checkIn := "-"
		if p.CheckInTime != nil {
			checkIn = p.CheckInTime.Format(time.RFC3339)
		}
		w.Write([]string{
			strconv.FormatUint(uint64(p.ID), 10),
			p.Name,
			p.OriginSchool,
			p.Email,
			p.Phone,
			p.Status,
			checkIn,
			p.CreatedAt.Format(time.RFC3339),
		})
	}
	w.Flush()
}

// StatsResponse — счётчики для лендинга и дашборда.
type StatsResponse struct {
	Participants int64 `json:"participants"`
	CheckedIn    int64 `json:"checked_in"`
	Campuses     int64 `json:"campuses"`
}

const statsCacheKey = "landing_stats"

// GetStatsHandler обрабатывает запрос счётчиков
// @Summary		Счётчики события
// @Description	Количество участников, прошедших check-in и кампусов. Кэшируется в Redis, снапшот обновляет cron-задача.
// @Tags			stats
// @Produce		json
// @Success		200	{object}	StatsResponse
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/stats [get]
func GetStatsHandler(c *gin.Context) {
	// Проверка кэша
	if storage.RedisClient != nil {
		cached, err := storage.RedisClient.Get(ctx, statsCacheKey).Result()
		if err == nil && cached != "" {
			var stats StatsResponse
			if err := json.Unmarshal([]byte(cached), &stats); err == nil {
				c.JSON(http.StatusOK, stats)
				return
			}
		}
	}

	stats, err := CountStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка подсчёта статистики",
			Details: err.Error(),
		})
		return
	}

	if storage.RedisClient != nil {
		if raw, err := json.Marshal(stats); err == nil {
			storage.RedisClient.Set(ctx, statsCacheKey, string(raw), 10*time.Minute)
		}
	}

	c.JSON(http.StatusOK, stats)
}

// CountStats считает счётчики напрямую из базы. Используется и хендлером,
// и cron-задачей обновления снапшота.
func CountStats() (StatsResponse, error) {
	var stats StatsResponse
	if err := storage.DB.Model(&models.Participant{}).Count(&stats.Participants).Error; err != nil {
		return stats, err
	}
	if err := storage.DB.Model(&models.Participant{}).
		Where("status = ?", models.StatusCheckedIn).
		Count(&stats.CheckedIn).Error; err != nil {
		return stats, err
	}
	if err := storage.DB.Model(&models.Campus{}).Count(&stats.Campuses).Error; err != nil {
		return stats, err
	}
	return stats, nil
}

// RefreshStatsCache пересчитывает счётчики и кладёт снапшот в Redis.
func RefreshStatsCache() error {
	stats, err := CountStats()
	if err != nil {
		return err
	}
	if storage.RedisClient != nil {
		if raw, err := json.Marshal(stats); err == nil {
			storage.RedisClient.Set(ctx, statsCacheKey, string(raw), 10*time.Minute)
		}
	}
	return nil
}
