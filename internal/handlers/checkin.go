package handlers

import (
	"errors"
	"net/http"

	"expo_backend/internal/response"
	"expo_backend/internal/storage"
	"expo_backend/internal/ticket"
	"expo_backend/internal/ws"

	"github.com/gin-gonic/gin"
)

type CheckInRequest struct {
	// Сырой ввод сканера или ручной набор: UUID из QR, числовой id
	// или старый код вида "EXPO-42"
	Code string `json:"code" binding:"required"`
}

type CheckInResponse struct {
	Result      string              `json:"result"` // SUCCESS или ALREADY_USED
	Participant ParticipantResponse `json:"participant"`
	Message     string              `json:"message"`
}

// CheckInHandler обрабатывает сканирование билета на гейте
// @Summary		Гейт check-in
// @Description	Отмечает участника как прошедшего. Повторное сканирование того же билета возвращает ALREADY_USED с исходным временем прохода, ничего не меняя.
// @Tags			checkin
// @Accept			json
// @Produce		json
// @Param			scan	body		CheckInRequest	true	"Код с билета"
// @Security		BearerAuth
// @Success		200	{object}	CheckInResponse	"Результат SUCCESS или ALREADY_USED"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		404	{object}	response.ErrorResponse	"Билет не найден (TICKET_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/admin/checkin [post]
func CheckInHandler(c *gin.Context) {
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	result, err := ticket.CheckIn(storage.DB, req.Code)
	if err != nil {
		if errors.Is(err, ticket.ErrNotFound) {
			c.JSON(http.StatusNotFound, response.ErrorResponse{
				Code:    "TICKET_NOT_FOUND",
				Message: "Билет не найден",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при отметке участника",
			Details: err.Error(),
		})
		return
	}

	if result.Outcome == ticket.OutcomeAlreadyUsed {
		c.JSON(http.StatusOK, CheckInResponse{
			Result:      result.Outcome,
			Participant: toParticipantResponse(&result.Participant),
			Message:     "Билет уже был использован",
		})
		return
	}

	ws.HubInstance.BroadcastEvent("participant_checked_in", map[string]interface{}{
		"id":            result.Participant.ID,
		"name":          result.Participant.Name,
		"origin_school": result.Participant.OriginSchool,
		"check_in_time": result.Participant.CheckInTime,
	})

	c.JSON(http.StatusOK, CheckInResponse{
		Result:      result.Outcome,
		Participant: toParticipantResponse(&result.Participant),
		Message:     "Участник успешно отмечен",
	})
}
