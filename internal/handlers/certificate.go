package handlers

import (
	"errors"
	"net/http"

	"expo_backend/internal/models"
	"expo_backend/internal/response"
	"expo_backend/internal/settings"
	"expo_backend/internal/storage"
	"expo_backend/internal/ticket"

	"github.com/gin-gonic/gin"
)

type CertificateResponse struct {
	Participant       ParticipantResponse `json:"participant"`
	CertificateNumber string              `json:"certificate_number"`
}

// GetCertificateHandler обрабатывает запрос печатаемого сертификата
// @Summary		Сертификат участника
// @Description	Возвращает данные сертификата по ticket_code. Доступен только после check-in; причина отказа не раскрывается.
// @Tags			certificates
// @Produce		json
// @Param			code	path		string	true	"Ticket code (UUID из QR)"
// @Success		200	{object}	CertificateResponse	"Сертификат доступен"
// @Failure		404	{object}	response.ErrorResponse	"Сертификат недоступен (CERTIFICATE_NOT_AVAILABLE)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/certificate/{code} [get]
func GetCertificateHandler(c *gin.Context) {
	participant, err := ticket.ResolveCertificate(storage.DB, c.Param("code"))
	if err != nil {
		if errors.Is(err, ticket.ErrNotEligible) {
			c.JSON(http.StatusNotFound, response.ErrorResponse{
				Code:    "CERTIFICATE_NOT_AVAILABLE",
				Message: "Сертификат недоступен",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при проверке сертификата",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, CertificateResponse{
		Participant:       toParticipantResponse(participant),
		CertificateNumber: ticket.CertificateNumber(participant.ID, settings.CertNumberFormat(storage.DB)),
	})
}

// VerifyResponse — публичная страница проверки подлинности сертификата.
type VerifyResponse struct {
	Valid             bool   `json:"valid"`
	CertificateNumber string `json:"certificate_number,omitempty"`
	Name              string `json:"name,omitempty"`
	OriginSchool      string `json:"origin_school,omitempty"`
	Status            string `json:"status,omitempty"`
}

// VerifyCertificateHandler обрабатывает публичную проверку сертификата
// @Summary		Проверка сертификата
// @Description	Публичная проверка по коду из сертификата (ticket_code или старый числовой id). Только чтение; valid строго означает статус CHECKED-IN.
// @Tags			certificates
// @Produce		json
// @Param			code	path		string	true	"Код с сертификата"
// @Success		200	{object}	VerifyResponse	"Результат проверки"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/verify/{code} [get]
func VerifyCertificateHandler(c *gin.Context) {
	participant, err := ticket.FindByCode(storage.DB, ticket.NormalizeCode(c.Param("code")))
	if err != nil {
		if errors.Is(err, ticket.ErrNotFound) {
			// Страница проверки всегда отвечает, несуществующий код — просто "не валиден".
			c.JSON(http.StatusOK, VerifyResponse{Valid: false})
			return
		}
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при проверке сертификата",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, VerifyResponse{
		Valid:             participant.Status == models.StatusCheckedIn,
		CertificateNumber: ticket.CertificateNumber(participant.ID, settings.CertNumberFormat(storage.DB)),
		Name:              participant.Name,
		OriginSchool:      participant.OriginSchool,
		Status:            participant.Status,
	})
}
