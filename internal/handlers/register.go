package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"expo_backend/internal/models"
	"expo_backend/internal/response"
	"expo_backend/internal/settings"
	"expo_backend/internal/storage"
	"expo_backend/internal/ticket"
	"expo_backend/internal/ws"

	"github.com/gin-gonic/gin"
)

// Cookie с id билета — "слот устройства": возвращает посетителя сразу к его
// билету без повторной регистрации. Потеря cookie не теряет данные участника.
const ticketCookieName = "expo_ticket_id"

const ticketCookieMaxAge = 60 * 60 * 24 * 30

type RegisterRequest struct {
	Name         string `json:"name" binding:"required"`
	OriginSchool string `json:"origin_school" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Phone        string `json:"phone" binding:"required"`
}

// ParticipantResponse — участник в ответах API.
type ParticipantResponse struct {
	ID           uint       `json:"id"`
	Name         string     `json:"name"`
	OriginSchool string     `json:"origin_school"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	Status       string     `json:"status"`
	TicketCode   string     `json:"ticket_code"`
	CheckInTime  *time.Time `json:"check_in_time"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toParticipantResponse(p *models.Participant) ParticipantResponse {
	return ParticipantResponse{
		ID:           p.ID,
		Name:         p.Name,
		OriginSchool: p.OriginSchool,
		Email:        p.Email,
		Phone:        p.Phone,
		Status:       p.Status,
		TicketCode:   p.TicketCode,
		CheckInTime:  p.CheckInTime,
		CreatedAt:    p.CreatedAt,
	}
}

func setTicketCookie(c *gin.Context, id uint) {
	c.SetCookie(ticketCookieName, strconv.FormatUint(uint64(id), 10), ticketCookieMaxAge, "/", "", false, true)
}

func clearTicketCookie(c *gin.Context) {
	c.SetCookie(ticketCookieName, "", -1, "/", "", false, true)
}

// RegisterParticipantHandler обрабатывает регистрацию посетителя
// @Summary		Регистрация участника
// @Description	Регистрирует посетителя и выпускает билет с QR-кодом. Id билета сохраняется в cookie устройства.
// @Tags			participants
// @Accept			json
// @Produce		json
// @Param			participant	body		RegisterRequest		true	"Данные участника"
// @Success		201	{object}	ParticipantResponse	"Участник зарегистрирован, билет выпущен"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR) или дубликат (DUPLICATE_PARTICIPANT)"
// @Failure		403	{object}	response.ErrorResponse	"Регистрация закрыта (REGISTRATION_CLOSED, SITE_CLOSED)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/participants [post]
func RegisterParticipantHandler(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	if settings.SiteMode(storage.DB) != settings.SiteModeLive {
		c.JSON(http.StatusForbidden, response.ErrorResponse{
			Code:    "SITE_CLOSED",
			Message: "Сайт временно недоступен",
		})
		return
	}

	if !settings.RegistrationOpen(storage.DB) {
		c.JSON(http.StatusForbidden, response.ErrorResponse{
			Code:    "REGISTRATION_CLOSED",
			Message: "Регистрация закрыта",
		})
		return
	}

	participant, err := ticket.Register(storage.DB, ticket.RegisterInput{
		Name:         req.Name,
		OriginSchool: req.OriginSchool,
		Email:        req.Email,
		Phone:        req.Phone,
	})
	if err != nil {
		if errors.Is(err, ticket.ErrDuplicate) {
			c.JSON(http.StatusBadRequest, response.ErrorResponse{
				Code:    "DUPLICATE_PARTICIPANT",
				Message: "Email или телефон уже зарегистрированы",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при создании участника",
			Details: err.Error(),
		})
		return
	}

	setTicketCookie(c, participant.ID)

	ws.HubInstance.BroadcastEvent("participant_registered", map[string]interface{}{
		"id":            participant.ID,
		"name":          participant.Name,
		"origin_school": participant.OriginSchool,
	})

	c.JSON(http.StatusCreated, toParticipantResponse(participant))
}

// GetParticipantHandler обрабатывает повторное открытие билета по id
// @Summary		Получение билета по id
// @Description	Возвращает участника по числовому id (путь клиентского кэша билета)
// @Tags			participants
// @Produce		json
// @Param			id	path		string	true	"ID участника"
// @Success		200	{object}	ParticipantResponse	"Данные участника"
// @Failure		400	{object}	response.ErrorResponse	"Неверный id (INVALID_PARTICIPANT_ID)"
// @Failure		404	{object}	response.ErrorResponse	"Участник не найден (PARTICIPANT_NOT_FOUND)"
// @Router			/api/participants/{id} [get]
func GetParticipantHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_PARTICIPANT_ID",
			Message: "Неверный идентификатор участника",
		})
		return
	}

	var participant models.Participant
	if err := storage.DB.First(&participant, id).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "PARTICIPANT_NOT_FOUND",
			Message: "Участник не найден",
		})
		return
	}

	c.JSON(http.StatusOK, toParticipantResponse(&participant))
}

// GetMyTicketHandler обрабатывает возврат посетителя к сохранённому билету
// @Summary		Билет этого устройства
// @Description	Читает id билета из cookie и возвращает билет. Если участник удалён, cookie очищается.
// @Tags			participants
// @Produce		json
// @Success		200	{object}	ParticipantResponse	"Сохранённый билет"
// @Failure		404	{object}	response.ErrorResponse	"Билет не сохранён (NO_SAVED_TICKET) или не найден (TICKET_NOT_FOUND)"
// @Router			/api/ticket [get]
func GetMyTicketHandler(c *gin.Context) {
	raw, err := c.Cookie(ticketCookieName)
	if err != nil || raw == "" {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "NO_SAVED_TICKET",
			Message: "Билет на этом устройстве не сохранён",
		})
		return
	}

	id, err := strconv.Atoi(raw)
	if err != nil {
		clearTicketCookie(c)
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "NO_SAVED_TICKET",
			Message: "Билет на этом устройстве не сохранён",
		})
		return
	}

	var participant models.Participant
	if err := storage.DB.First(&participant, id).Error; err != nil {
		// Участника больше нет — чистим слот устройства, посетитель
		// вернётся на форму регистрации.
		clearTicketCookie(c)
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "TICKET_NOT_FOUND",
			Message: "Сохранённый билет больше не существует",
		})
		return
	}

	c.JSON(http.StatusOK, toParticipantResponse(&participant))
}

// ResetMyTicketHandler обрабатывает сброс устройства
// @Summary		Сброс билета устройства
// @Description	Удаляет сохранённый id билета из cookie
// @Tags			participants
// @Produce		json
// @Success		200	{object}	response.SuccessResponse	"Слот устройства очищен"
// @Router			/api/ticket [delete]
func ResetMyTicketHandler(c *gin.Context) {
	clearTicketCookie(c)
	c.JSON(http.StatusOK, response.SuccessResponse{
		Message: "Билет удалён с этого устройства",
	})
}
