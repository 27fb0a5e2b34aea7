package handlers

import (
	"net/http"
	"strconv"

	"expo_backend/internal/models"
	"expo_backend/internal/response"
	"expo_backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// Контент лендинга: кампусы-партнёры, программа, FAQ. Обычный CRUD без
// состояний, админка добавляет и удаляет, лендинг читает.

type CampusRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	LogoURL     string `json:"logo_url"`
}

type RundownRequest struct {
	Time        string `json:"time" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

type FaqRequest struct {
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer" binding:"required"`
}

// ListCampusesHandler
// @Summary		Список кампусов-партнёров
// @Tags			content
// @Produce		json
// @Success		200	{array}		models.Campus
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/campuses [get]
func ListCampusesHandler(c *gin.Context) {
	var campuses []models.Campus
	if err := storage.DB.Order("id").Find(&campuses).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки кампусов",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, campuses)
}

// CreateCampusHandler
// @Summary		Добавление кампуса
// @Tags			content
// @Accept			json
// @Produce		json
// @Param			campus	body		CampusRequest	true	"Данные кампуса"
// @Security		BearerAuth
// @Success		201	{object}	models.Campus
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/admin/campuses [post]
func CreateCampusHandler(c *gin.Context) {
	var req CampusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	campus := models.Campus{Name: req.Name, Description: req.Description, LogoURL: req.LogoURL}
	if err := storage.DB.Create(&campus).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка добавления кампуса",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, campus)
}

// DeleteCampusHandler
// @Summary		Удаление кампуса
// @Tags			content
// @Produce		json
// @Param			id	path		string	true	"ID кампуса"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse
// @Failure		400	{object}	response.ErrorResponse	"Неверный id (INVALID_ID)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/admin/campuses/{id} [delete]
func DeleteCampusHandler(c *gin.Context) {
	deleteByID(c, &models.Campus{}, "Кампус удалён")
}

// ListRundownHandler
// @Summary		Программа мероприятия
// @Tags			content
// @Produce		json
// @Success		200	{array}		models.RundownItem
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/rundown [get]
func ListRundownHandler(c *gin.Context) {
	var items []models.RundownItem
	if err := storage.DB.Order("id").Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки программы",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, items)
}

// CreateRundownHandler
// @Summary		Добавление пункта программы
// @Tags			content
// @Accept			json
// @Produce		json
// @Param			item	body		RundownRequest	true	"Пункт программы"
// @Security		BearerAuth
// @Success		201	{object}	models.RundownItem
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/admin/rundown [post]
func CreateRundownHandler(c *gin.Context) {
	var req RundownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	item := models.RundownItem{Time: req.Time, Title: req.Title, Description: req.Description}
	if err := storage.DB.Create(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка добавления пункта программы",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, item)
}

// DeleteRundownHandler
// @Summary		Удаление пункта программы
// @Tags			content
// @Produce		json
// @Param			id	path		string	true	"ID пункта"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse
// @Failure		400	{object}	response.ErrorResponse	"Неверный id (INVALID_ID)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/admin/rundown/{id} [delete]
func DeleteRundownHandler(c *gin.Context) {
	deleteByID(c, &models.RundownItem{}, "Пункт программы удалён")
}

// ListFaqHandler
// @Summary		FAQ
// @Tags			content
// @Produce		json
// @Success		200	{array}		models.FaqItem
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/faq [get]
func ListFaqHandler(c *gin.Context) {
	var items []models.FaqItem
	if err := storage.DB.Order("id").Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки FAQ",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, items)
}

// CreateFaqHandler
// @Summary		Добавление вопроса FAQ
// @Tags			content
// @Accept			json
// @Produce		json
// @Param			item	body		FaqRequest	true	"Вопрос и ответ"
// @Security		BearerAuth
// @Success		201	{object}	models.FaqItem
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/admin/faq [post]
func CreateFaqHandler(c *gin.Context) {
	var req FaqRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	item := models.FaqItem{Question: req.Question, Answer: req.Answer}
	if err := storage.DB.Create(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка добавления вопроса",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, item)
}

// DeleteFaqHandler
// @Summary		Удаление вопроса FAQ
// @Tags			content
// @Produce		json
// @Param			id	path		string	true	"ID вопроса"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse
// @Failure		400	{object}	response.ErrorResponse	"Неверный id (INVALID_ID)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/admin/faq/{id} [delete]
func DeleteFaqHandler(c *gin.Context) {
	deleteByID(c, &models.FaqItem{}, "Вопрос удалён")
}

func deleteByID(c *gin.Context, model interface{}, okMessage string) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_ID",
			Message: "Неверный идентификатор",
		})
		return
	}

	if err := storage.DB.Delete(model, id).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка удаления записи",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{Message: okMessage})
}
