package handlers

import (
	"net/http"
	"os"
	"time"

	"expo_backend/internal/response"
	"expo_backend/internal/settings"
	"expo_backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	AccessSecret  = []byte(os.Getenv("JWT_ACCESS_SECRET"))
	refreshSecret = []byte(os.Getenv("JWT_REFRESH_SECRET"))
)

func adminUsername() string {
	if u := os.Getenv("ADMIN_USERNAME"); u != "" {
		return u
	}
	return "admin"
}

// Хеш пароля админа хранится в настройках события. При первом входе
// инициализируется из ADMIN_INITIAL_PASSWORD.
func getOrInitPasswordHash() (string, error) {
	hash, err := settings.Get(storage.DB, settings.KeyAdminPassHash)
	if err != nil {
		return "", err
	}
	if hash != "" {
		return hash, nil
	}

	initial := os.Getenv("ADMIN_INITIAL_PASSWORD")
	if initial == "" {
		initial = "admin123"
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(initial), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	if err := settings.Upsert(storage.DB, settings.KeyAdminPassHash, string(hashed)); err != nil {
		return "", err
	}
	return string(hashed), nil
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginHandler обрабатывает вход администратора
// @Summary		Вход администратора
// @Description	Проверяет логин и пароль, выдаёт access и refresh токены
// @Tags			auth
// @Accept			json
// @Produce		json
// @Param			credentials	body		LoginRequest	true	"Логин и пароль"
// @Success		200	{object}	response.TokenResponse	"Успешный вход"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации данных (VALIDATION_ERROR)"
// @Failure		401	{object}	response.ErrorResponse	"Неверные учетные данные (ACCESS_DENIED)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (TOKEN_GENERATION_ERROR, DB_ERROR)"
// @Router			/admin/login [post]
func LoginHandler(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	if req.Username != adminUsername() {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{
			Code:    "ACCESS_DENIED",
			Message: "Неверный логин или пароль",
		})
		return
	}

	hash, err := getOrInitPasswordHash()
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка чтения учетных данных",
			Details: err.Error(),
		})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{
			Code:    "ACCESS_DENIED",
			Message: "Неверный логин или пароль",
		})
		return
	}

	accessToken, err := generateToken(req.Username, time.Minute*15, AccessSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "TOKEN_GENERATION_ERROR",
			Message: "Ошибка при генерации access токена",
		})
		return
	}

	refreshToken, err := generateToken(req.Username, time.Hour*24*7, refreshSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "TOKEN_GENERATION_ERROR",
			Message: "Ошибка при генерации refresh токена",
		})
		return
	}

	c.JSON(http.StatusOK, response.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

func generateToken(username string, duration time.Duration, secret []byte) (string, error) {
	claims := jwt.MapClaims{
		"sub":      "admin",
		"username": username,
		"exp":      time.Now().Add(duration).Unix(),
		"iat":      time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshTokenHandler обрабатывает обновление access токена
// @Summary		Обновление access токена
// @Description	Обновление access токена с помощью refresh токена
// @Tags			auth
// @Accept			json
// @Produce		json
// @Param			refresh_token	body		RefreshTokenRequest	true	"Refresh токен"
// @Success		200	{object}	response.TokenResponse	"Новая пара токенов"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации данных (VALIDATION_ERROR)"
// @Failure		401	{object}	response.ErrorResponse	"Неверный или просроченный refresh токен (INVALID_REFRESH_TOKEN)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (TOKEN_GENERATION_ERROR)"
// @Router			/admin/refresh [post]
func RefreshTokenHandler(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	token, err := jwt.Parse(req.RefreshToken, func(token *jwt.Token) (interface{}, error) {
		return refreshSecret, nil
	})
	if err != nil || !token.Valid {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{
			Code:    "INVALID_REFRESH_TOKEN",
			Message: "Неверный или просроченный refresh токен",
		})
		return
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{
			Code:    "INVALID_REFRESH_TOKEN",
			Message: "Неверный или просроченный refresh токен",
		})
		return
	}

	username, ok := claims["username"].(string)
	if !ok || claims["sub"] != "admin" {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{
			Code:    "INVALID_REFRESH_TOKEN",
			Message: "Неверный или просроченный refresh токен",
		})
		return
	}

	newAccessToken, err := generateToken(username, time.Minute*15, AccessSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "TOKEN_GENERATION_ERROR",
			Message: "Ошибка при генерации access токена",
		})
		return
	}

	newRefreshToken, err := generateToken(username, time.Hour*24*7, refreshSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "TOKEN_GENERATION_ERROR",
			Message: "Ошибка при генерации нового refresh токена",
		})
		return
	}

	c.JSON(http.StatusOK, response.TokenResponse{
		AccessToken:  newAccessToken,
		RefreshToken: newRefreshToken,
	})
}

// MeHandler обрабатывает проверку сессии админа
// @Summary		Текущий администратор
// @Tags			auth
// @Produce		json
// @Security		BearerAuth
// @Success		200	{object}	map[string]string	"Имя администратора"
// @Router			/admin/me [get]
func MeHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"username": c.GetString("adminUser")})
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

// ChangePasswordHandler обрабатывает смену пароля админа
// @Summary		Смена пароля администратора
// @Tags			auth
// @Accept			json
// @Produce		json
// @Param			passwords	body		ChangePasswordRequest	true	"Старый и новый пароль"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Пароль изменён"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		401	{object}	response.ErrorResponse	"Неверный старый пароль (ACCESS_DENIED)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (PASSWORD_HASH_ERROR, DB_ERROR)"
// @Router			/admin/change-password [post]
func ChangePasswordHandler(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	hash, err := getOrInitPasswordHash()
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка чтения учетных данных",
			Details: err.Error(),
		})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.OldPassword)); err != nil {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{
			Code:    "ACCESS_DENIED",
			Message: "Неверный старый пароль",
		})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "PASSWORD_HASH_ERROR",
			Message: "Ошибка при хешировании пароля",
		})
		return
	}

	if err := settings.Upsert(storage.DB, settings.KeyAdminPassHash, string(hashed)); err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка сохранения нового пароля",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{
		Message: "Пароль успешно изменён",
	})
}
