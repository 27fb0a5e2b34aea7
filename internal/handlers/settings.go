package handlers

import (
	"net/http"

	"expo_backend/internal/response"
	"expo_backend/internal/settings"
	"expo_backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// GetSettingsHandler обрабатывает запрос публичной конфигурации лендинга
// @Summary		Публичные настройки
// @Description	Возвращает настройки события (заголовки, дату, режим сайта). Результат кэшируется в Redis.
// @Tags			settings
// @Produce		json
// @Success		200	{object}	map[string]string	"Карта настроек"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/settings [get]
func GetSettingsHandler(c *gin.Context) {
	conf, err := settings.LoadAll(storage.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки настроек",
			Details: err.Error(),
		})
		return
	}

	// Хеш пароля админа живёт в той же таблице, наружу не отдаётся.
	delete(conf, settings.KeyAdminPassHash)

	c.JSON(http.StatusOK, conf)
}

// SaveSettingsHandler обрабатывает массовое сохранение настроек из админки
// @Summary		Сохранение настроек
// @Description	Перезаписывает переданные ключи настроек и сбрасывает кэш
// @Tags			settings
// @Accept			json
// @Produce		json
// @Param			settings	body		map[string]string	true	"Ключи и значения"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Настройки сохранены"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/admin/settings [put]
func SaveSettingsHandler(c *gin.Context) {
	var req map[string]string
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	for key, value := range req {
		// Пароль меняется только через /admin/change-password.
		if key == settings.KeyAdminPassHash {
			continue
		}
		if err := settings.Upsert(storage.DB, key, value); err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorResponse{
				Code:    "DB_ERROR",
				Message: "Ошибка сохранения настройки " + key,
				Details: err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, response.SuccessResponse{
		Message: "Все настройки успешно сохранены",
	})
}
