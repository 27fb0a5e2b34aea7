package handlers

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"expo_backend/internal/models"
	"expo_backend/internal/settings"
	"expo_backend/internal/storage"
	"expo_backend/internal/ticket"
	"expo_backend/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var hubOnce sync.Once

func setupTestServer(t *testing.T) *httptest.Server {
	// По умолчанию тесты работают на sqlite в памяти. С TEST_DB_HOST прогон
	// идёт на тестовом Postgres — том же драйвере, что и в бою.
	if os.Getenv("TEST_DB_HOST") != "" {
		storage.ConnectTestingDatabase()
	} else {
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
		require.NoError(t, err, "Ошибка открытия тестовой базы")
		storage.DB = db
	}
	require.NoError(t, storage.DB.AutoMigrate(
		&models.Participant{},
		&models.Setting{},
		&models.Campus{},
		&models.RundownItem{},
		&models.FaqItem{},
	), "Ошибка при миграции...")
	if os.Getenv("TEST_DB_HOST") != "" {
		// Тестовый Postgres переживает прогоны, данные чистим перед каждым тестом
		require.NoError(t, storage.DB.Exec(
			"TRUNCATE participants, settings, campuses, rundown_items, faq_items RESTART IDENTITY CASCADE").Error)
	}

	hubOnce.Do(func() {
		go ws.HubInstance.Run()
	})

	gin.SetMode(gin.TestMode)
	r := gin.New()

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/participants", RegisterParticipantHandler)
		apiGroup.GET("/participants/:id", GetParticipantHandler)
		apiGroup.GET("/ticket", GetMyTicketHandler)
		apiGroup.DELETE("/ticket", ResetMyTicketHandler)
		apiGroup.GET("/certificate/:code", GetCertificateHandler)
		apiGroup.GET("/settings", GetSettingsHandler)
		apiGroup.GET("/rundown", ListRundownHandler)
		apiGroup.GET("/stats", GetStatsHandler)
	}
	r.GET("/verify/:code", VerifyCertificateHandler)

	adminAuth := r.Group("/admin")
	{
		adminAuth.POST("/login", LoginHandler)
		adminAuth.POST("/refresh", RefreshTokenHandler)
	}
	admin := r.Group("/admin", authMiddlewareTest())
	{
		admin.POST("/checkin", CheckInHandler)
		admin.PUT("/settings", SaveSettingsHandler)
		admin.GET("/participants", ListParticipantsHandler)
		admin.GET("/participants/export", ExportParticipantsHandler)
		admin.POST("/rundown", CreateRundownHandler)
		admin.GET("/ws", ws.GateWebSocketHandler)
	}

	return httptest.NewServer(r)
}

// authMiddlewareTest проверяет подпись токена так же, как боевой middleware,
// но живёт в пакете handlers, чтобы тест не тянул пакет auth (цикл импортов).
func authMiddlewareTest() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader("Authorization")
		if len(tokenString) > 7 {
			tokenString = tokenString[7:] // срезаем "Bearer "
		}
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return AccessSecret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		claims, _ := token.Claims.(jwt.MapClaims)
		username, _ := claims["username"].(string)
		c.Set("adminUser", username)
		c.Next()
	}
}

func postJSON(t *testing.T, url string, body interface{}, headers map[string]string) *http.Response {
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest("POST", url, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return res
}

func loginAdmin(t *testing.T, ts *httptest.Server) string {
	// Без ADMIN_INITIAL_PASSWORD хеш инициализируется паролем по умолчанию
	res := postJSON(t, ts.URL+"/admin/login", map[string]string{
		"username": "admin",
		"password": "admin123",
	}, nil)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode, "Админ не смог войти")

	var tokens map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&tokens))
	require.NotEmpty(t, tokens["access_token"])
	return tokens["access_token"]
}

func TestRegistrationAndCheckInFlow(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	// 1. Регистрация Алисы
	res := postJSON(t, ts.URL+"/api/participants", map[string]string{
		"name": "Alice", "origin_school": "X", "email": "a@x.com", "phone": "0811",
	}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, "Регистрация не прошла")

	var alice ParticipantResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&alice))
	res.Body.Close()
	assert.Equal(t, models.StatusRegistered, alice.Status)
	assert.Nil(t, alice.CheckInTime)
	assert.NotEmpty(t, alice.TicketCode)

	// Cookie устройства должна быть установлена
	var ticketCookie *http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == "expo_ticket_id" {
			ticketCookie = c
		}
	}
	require.NotNil(t, ticketCookie, "Регистрация должна сохранять id билета в cookie")
	assert.Equal(t, fmt.Sprintf("%d", alice.ID), ticketCookie.Value)

	// 2. Дубликат по email отклоняется и не создаёт записей
	dupRes := postJSON(t, ts.URL+"/api/participants", map[string]string{
		"name": "Bob", "origin_school": "Y", "email": "a@x.com", "phone": "0822",
	}, nil)
	defer dupRes.Body.Close()
	assert.Equal(t, http.StatusBadRequest, dupRes.StatusCode)

	var count int64
	require.NoError(t, storage.DB.Model(&models.Participant{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "Дубликат не должен создавать запись")

	// 3. Гейт: сканирование кода билета
	token := loginAdmin(t, ts)
	authHeader := map[string]string{"Authorization": "Bearer " + token}

	scanRes := postJSON(t, ts.URL+"/admin/checkin", map[string]string{"code": alice.TicketCode}, authHeader)
	require.Equal(t, http.StatusOK, scanRes.StatusCode)
	var scan CheckInResponse
	require.NoError(t, json.NewDecoder(scanRes.Body).Decode(&scan))
	scanRes.Body.Close()
	assert.Equal(t, ticket.OutcomeSuccess, scan.Result)
	assert.Equal(t, models.StatusCheckedIn, scan.Participant.Status)
	require.NotNil(t, scan.Participant.CheckInTime)
	firstCheckIn := *scan.Participant.CheckInTime

	// 4. Повторное сканирование: ALREADY_USED, исходное время прохода
	scanRes2 := postJSON(t, ts.URL+"/admin/checkin", map[string]string{"code": alice.TicketCode}, authHeader)
	require.Equal(t, http.StatusOK, scanRes2.StatusCode)
	var scan2 CheckInResponse
	require.NoError(t, json.NewDecoder(scanRes2.Body).Decode(&scan2))
	scanRes2.Body.Close()
	assert.Equal(t, ticket.OutcomeAlreadyUsed, scan2.Result)
	require.NotNil(t, scan2.Participant.CheckInTime)
	assert.WithinDuration(t, firstCheckIn, *scan2.Participant.CheckInTime, time.Second)

	// 5. Неизвестный код
	notFound := postJSON(t, ts.URL+"/admin/checkin", map[string]string{"code": "no-such-code"}, authHeader)
	defer notFound.Body.Close()
	assert.Equal(t, http.StatusNotFound, notFound.StatusCode)
}

func TestCertificateFlow(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	res := postJSON(t, ts.URL+"/api/participants", map[string]string{
		"name": "Alice", "origin_school": "X", "email": "a@x.com", "phone": "0811",
	}, nil)
	var alice ParticipantResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&alice))
	res.Body.Close()

	// До check-in сертификат недоступен
	before, err := http.Get(ts.URL + "/api/certificate/" + alice.TicketCode)
	require.NoError(t, err)
	defer before.Body.Close()
	assert.Equal(t, http.StatusNotFound, before.StatusCode)

	// Страница проверки отвечает, но документ не валиден
	verifyBefore, err := http.Get(ts.URL + "/verify/" + alice.TicketCode)
	require.NoError(t, err)
	var vb VerifyResponse
	require.NoError(t, json.NewDecoder(verifyBefore.Body).Decode(&vb))
	verifyBefore.Body.Close()
	assert.False(t, vb.Valid)

	_, checkErr := ticket.CheckIn(storage.DB, alice.TicketCode)
	require.NoError(t, checkErr)

	// Шаблон номера сертификата из настроек
	require.NoError(t, settings.Upsert(storage.DB, settings.KeyCertFormat, "421.5/[NO]/SMK.01/2025"))

	after, err := http.Get(ts.URL + "/api/certificate/" + alice.TicketCode)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, after.StatusCode)
	var cert CertificateResponse
	require.NoError(t, json.NewDecoder(after.Body).Decode(&cert))
	after.Body.Close()
	assert.Equal(t, alice.ID, cert.Participant.ID)
	assert.Equal(t, fmt.Sprintf("421.5/%06d/SMK.01/2025", alice.ID), cert.CertificateNumber)

	verifyAfter, err := http.Get(ts.URL + "/verify/" + alice.TicketCode)
	require.NoError(t, err)
	var va VerifyResponse
	require.NoError(t, json.NewDecoder(verifyAfter.Body).Decode(&va))
	verifyAfter.Body.Close()
	assert.True(t, va.Valid)
	assert.Equal(t, "Alice", va.Name)
	assert.Equal(t, models.StatusCheckedIn, va.Status)
}

func TestTicketCookieFlow(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	res := postJSON(t, ts.URL+"/api/participants", map[string]string{
		"name": "Alice", "origin_school": "X", "email": "a@x.com", "phone": "0811",
	}, nil)
	var alice ParticipantResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&alice))
	res.Body.Close()

	var ticketCookie *http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == "expo_ticket_id" {
			ticketCookie = c
		}
	}
	require.NotNil(t, ticketCookie)

	// Возврат на сайт: билет открывается из cookie
	req, _ := http.NewRequest("GET", ts.URL+"/api/ticket", nil)
	req.AddCookie(ticketCookie)
	reopen, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, reopen.StatusCode)
	var reopened ParticipantResponse
	require.NoError(t, json.NewDecoder(reopen.Body).Decode(&reopened))
	reopen.Body.Close()
	assert.Equal(t, alice.ID, reopened.ID)

	// Без cookie билета нет
	empty, err := http.Get(ts.URL + "/api/ticket")
	require.NoError(t, err)
	defer empty.Body.Close()
	assert.Equal(t, http.StatusNotFound, empty.StatusCode)

	// Участник удалён админом: cookie очищается, посетитель падает на форму
	require.NoError(t, storage.DB.Unscoped().Delete(&models.Participant{}, alice.ID).Error)
	req2, _ := http.NewRequest("GET", ts.URL+"/api/ticket", nil)
	req2.AddCookie(ticketCookie)
	gone, err := http.DefaultClient.Do(req2)
	require.NoError(t, err)
	defer gone.Body.Close()
	assert.Equal(t, http.StatusNotFound, gone.StatusCode)
	for _, c := range gone.Cookies() {
		if c.Name == "expo_ticket_id" {
			assert.Equal(t, "", c.Value, "Протухшая cookie должна быть очищена")
		}
	}
}

func TestRegistrationGating(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	require.NoError(t, settings.Upsert(storage.DB, settings.KeyRegistrationOpen, "false"))

	res := postJSON(t, ts.URL+"/api/participants", map[string]string{
		"name": "Alice", "origin_school": "X", "email": "a@x.com", "phone": "0811",
	}, nil)
	defer res.Body.Close()
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	var count int64
	require.NoError(t, storage.DB.Model(&models.Participant{}).Count(&count).Error)
	assert.Equal(t, int64(0), count, "При закрытой регистрации записи не создаются")

	// Режим MAINTENANCE закрывает регистрацию даже при открытом флаге
	require.NoError(t, settings.Upsert(storage.DB, settings.KeyRegistrationOpen, "true"))
	require.NoError(t, settings.Upsert(storage.DB, settings.KeySiteMode, settings.SiteModeMaintenance))

	res2 := postJSON(t, ts.URL+"/api/participants", map[string]string{
		"name": "Alice", "origin_school": "X", "email": "a@x.com", "phone": "0811",
	}, nil)
	defer res2.Body.Close()
	assert.Equal(t, http.StatusForbidden, res2.StatusCode)
}

func TestSettingsEndpoints(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	token := loginAdmin(t, ts)

	// Сохранение настроек из админки
	raw, _ := json.Marshal(map[string]string{
		"hero_title":                 "Выставка",
		settings.KeyAdminPassHash:    "malicious", // должен быть проигнорирован
		settings.KeyRegistrationOpen: "true",
	})
	req, _ := http.NewRequest("PUT", ts.URL+"/admin/settings", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	save, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer save.Body.Close()
	require.Equal(t, http.StatusOK, save.StatusCode)

	// Публичные настройки не содержат хеш пароля
	pub, err := http.Get(ts.URL + "/api/settings")
	require.NoError(t, err)
	var conf map[string]string
	require.NoError(t, json.NewDecoder(pub.Body).Decode(&conf))
	pub.Body.Close()
	assert.Equal(t, "Выставка", conf["hero_title"])
	_, exposed := conf[settings.KeyAdminPassHash]
	assert.False(t, exposed, "Хеш пароля не должен попадать в публичный ответ")

	// Хеш в базе не перезаписан значением из запроса
	stored, err := settings.Get(storage.DB, settings.KeyAdminPassHash)
	require.NoError(t, err)
	assert.NotEqual(t, "malicious", stored)
}

func TestCheckInBroadcastOnce(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	// Регистрация напрямую, без HTTP: в ленте должен появиться только проход
	alice, err := ticket.Register(storage.DB, ticket.RegisterInput{
		Name: "Alice", OriginSchool: "X", Email: "a@x.com", Phone: "0811",
	})
	require.NoError(t, err)

	token := loginAdmin(t, ts)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/admin/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{
		"Authorization": []string{"Bearer " + token},
	})
	require.NoError(t, err, "Дашборд не смог подключиться к ленте гейта")
	defer conn.Close()

	// Даём хабу время зарегистрировать подключение
	time.Sleep(100 * time.Millisecond)

	authHeader := map[string]string{"Authorization": "Bearer " + token}
	scan := postJSON(t, ts.URL+"/admin/checkin", map[string]string{"code": alice.TicketCode}, authHeader)
	scan.Body.Close()
	require.Equal(t, http.StatusOK, scan.StatusCode)
	rescan := postJSON(t, ts.URL+"/admin/checkin", map[string]string{"code": alice.TicketCode}, authHeader)
	rescan.Body.Close()
	require.Equal(t, http.StatusOK, rescan.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err, "Лента должна получить событие прохода")
	var ev ws.Event
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, "participant_checked_in", ev.EventType)
	assert.Equal(t, "Alice", ev.Data["name"])

	// Повторный скан того же билета события не рождает
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "После ALREADY_USED второго события быть не должно")
}

func TestParticipantsExportCSV(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	alice, err := ticket.Register(storage.DB, ticket.RegisterInput{
		Name: "Alice", OriginSchool: "X", Email: "a@x.com", Phone: "0811",
	})
	require.NoError(t, err)
	_, err = ticket.CheckIn(storage.DB, alice.TicketCode)
	require.NoError(t, err)

	token := loginAdmin(t, ts)
	req, _ := http.NewRequest("GET", ts.URL+"/admin/participants/export", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Header.Get("Content-Type"), "text/csv")
	assert.Contains(t, res.Header.Get("Content-Disposition"), "attachment")

	rows, err := csv.NewReader(res.Body).ReadAll()
	require.NoError(t, err, "Отчёт должен быть корректным CSV")
	require.Len(t, rows, 2, "Заголовок и одна строка данных")
	assert.Len(t, rows[0], 8)
	assert.Equal(t, fmt.Sprintf("%d", alice.ID), rows[1][0])
	assert.Equal(t, "Alice", rows[1][1])
	assert.Equal(t, "X", rows[1][2])
	assert.Equal(t, models.StatusCheckedIn, rows[1][5])
	assert.NotEqual(t, "-", rows[1][6], "После check-in время прохода заполнено")
}

func TestRundownContent(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	token := loginAdmin(t, ts)
	created := postJSON(t, ts.URL+"/admin/rundown", map[string]string{
		"time":        "09:00",
		"title":       "Открытие",
		"description": "Сцена главного корпуса",
	}, map[string]string{"Authorization": "Bearer " + token})
	defer created.Body.Close()
	require.Equal(t, http.StatusCreated, created.StatusCode)

	res, err := http.Get(ts.URL + "/api/rundown")
	require.NoError(t, err)
	defer res.Body.Close()
	var items []models.RundownItem
	require.NoError(t, json.NewDecoder(res.Body).Decode(&items))
	require.Len(t, items, 1)
	assert.Equal(t, "Открытие", items[0].Title)
	assert.Equal(t, "Сцена главного корпуса", items[0].Description)
}
