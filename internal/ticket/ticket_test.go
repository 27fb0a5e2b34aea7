package ticket

import (
	"context"
	"fmt"
	"testing"
	"time"

	"expo_backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "Ошибка открытия тестовой базы")
	require.NoError(t, db.AutoMigrate(&models.Participant{}), "Ошибка миграции тестовой базы")
	return db
}

func registerAlice(t *testing.T, db *gorm.DB) *models.Participant {
	p, err := Register(db, RegisterInput{
		Name:         "Alice",
		OriginSchool: "X",
		Email:        "a@x.com",
		Phone:        "0811",
	})
	require.NoError(t, err, "Ошибка регистрации тестового участника")
	return p
}

func TestRegisterIssuesTicket(t *testing.T) {
	db := setupTestDB(t)

	p := registerAlice(t, db)

	assert.Equal(t, models.StatusRegistered, p.Status)
	assert.Nil(t, p.CheckInTime, "check_in_time должен быть пуст до прохода")
	assert.Len(t, p.TicketCode, 36, "ticket_code должен быть UUID")
	assert.NotZero(t, p.ID)

	second, err := Register(db, RegisterInput{
		Name:         "Bob",
		OriginSchool: "Y",
		Email:        "b@y.com",
		Phone:        "0822",
	})
	require.NoError(t, err)
	assert.NotEqual(t, p.TicketCode, second.TicketCode, "Коды билетов должны быть уникальны")
	assert.NotEqual(t, p.ID, second.ID)
}

func TestRegisterDuplicate(t *testing.T) {
	db := setupTestDB(t)
	registerAlice(t, db)

	// Тот же email, другой телефон
	_, err := Register(db, RegisterInput{Name: "Bob", OriginSchool: "Y", Email: "a@x.com", Phone: "0822"})
	assert.ErrorIs(t, err, ErrDuplicate)

	// Тот же телефон, другой email
	_, err = Register(db, RegisterInput{Name: "Bob", OriginSchool: "Y", Email: "b@y.com", Phone: "0811"})
	assert.ErrorIs(t, err, ErrDuplicate)

	// Дубликат не должен создавать записей
	var count int64
	require.NoError(t, db.Model(&models.Participant{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "Отклонённая регистрация не должна оставлять записей")
}

func TestRegisterDuplicateRace(t *testing.T) {
	db := setupTestDB(t)

	// Конкурент успевает записаться между проверкой дубликатов и INSERT.
	// Конфликт ловит уникальный индекс, ошибка базы превращается в ErrDuplicate.
	err := db.Callback().Create().Before("gorm:create").Register("rival_insert", func(tx *gorm.DB) {
		_, execErr := tx.Statement.ConnPool.ExecContext(context.Background(),
			"INSERT INTO participants (created_at, updated_at, name, origin_school, email, phone, status, ticket_code) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			time.Now(), time.Now(), "Bob", "Y", "a@x.com", "0822", models.StatusRegistered, "rival-code")
		require.NoError(t, execErr, "Не удалось вставить конкурирующую запись")
	})
	require.NoError(t, err)

	_, regErr := Register(db, RegisterInput{Name: "Alice", OriginSchool: "X", Email: "a@x.com", Phone: "0811"})
	assert.ErrorIs(t, regErr, ErrDuplicate)
}

func TestCheckInByTicketCode(t *testing.T) {
	db := setupTestDB(t)
	p := registerAlice(t, db)

	result, err := CheckIn(db, p.TicketCode)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Equal(t, models.StatusCheckedIn, result.Participant.Status)
	require.NotNil(t, result.Participant.CheckInTime)
	firstTime := *result.Participant.CheckInTime

	// Повторное сканирование: ничего не меняется, время прохода исходное
	again, err := CheckIn(db, p.TicketCode)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyUsed, again.Outcome)
	require.NotNil(t, again.Participant.CheckInTime)
	assert.WithinDuration(t, firstTime, *again.Participant.CheckInTime, time.Second,
		"Повторный скан не должен менять check_in_time")
}

func TestCheckInByLegacyID(t *testing.T) {
	db := setupTestDB(t)
	p := registerAlice(t, db)

	// Старый числовой формат
	result, err := CheckIn(db, fmt.Sprintf("%d", p.ID))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Equal(t, p.ID, result.Participant.ID)

	// Префикс EXPO- в любом регистре разрешается в ту же запись
	again, err := CheckIn(db, fmt.Sprintf("  expo-%d ", p.ID))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyUsed, again.Outcome)
	assert.Equal(t, p.ID, again.Participant.ID)
}

func TestCheckInNotFound(t *testing.T) {
	db := setupTestDB(t)
	registerAlice(t, db)

	_, err := CheckIn(db, "no-such-code")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = CheckIn(db, "99999")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = CheckIn(db, "   ")
	assert.ErrorIs(t, err, ErrNotFound)

	// Неудачный поиск ничего не меняет
	var p models.Participant
	require.NoError(t, db.First(&p).Error)
	assert.Equal(t, models.StatusRegistered, p.Status)
}

func TestCheckInRecordVanished(t *testing.T) {
	db := setupTestDB(t)
	p := registerAlice(t, db)

	_, err := CheckIn(db, p.TicketCode)
	require.NoError(t, err)

	// Админ удаляет участника между условным UPDATE и перечитыванием записи
	err = db.Callback().Update().After("gorm:update").Register("participant_vanishes", func(tx *gorm.DB) {
		_, execErr := tx.Statement.ConnPool.ExecContext(context.Background(),
			"DELETE FROM participants WHERE id = ?", p.ID)
		require.NoError(t, execErr, "Не удалось удалить запись участника")
	})
	require.NoError(t, err)

	_, err = CheckIn(db, p.TicketCode)
	assert.ErrorIs(t, err, ErrNotFound, "Исчезнувшая запись отдаётся как ненайденный билет")
}

func TestResolveCertificate(t *testing.T) {
	db := setupTestDB(t)
	p := registerAlice(t, db)

	// До check-in сертификат недоступен даже по валидному коду
	_, err := ResolveCertificate(db, p.TicketCode)
	assert.ErrorIs(t, err, ErrNotEligible)

	_, checkErr := CheckIn(db, p.TicketCode)
	require.NoError(t, checkErr)

	resolved, err := ResolveCertificate(db, p.TicketCode)
	require.NoError(t, err)
	assert.Equal(t, p.ID, resolved.ID)
	assert.Equal(t, models.StatusCheckedIn, resolved.Status)

	// Числовой id на пути сертификата не принимается
	_, err = ResolveCertificate(db, fmt.Sprintf("%d", p.ID))
	assert.ErrorIs(t, err, ErrNotEligible)

	// Несуществующий код неотличим от "ещё не прошёл"
	_, err = ResolveCertificate(db, "no-such-code")
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "42", NormalizeCode(" EXPO-42 "))
	assert.Equal(t, "42", NormalizeCode("expo-42"))
	assert.Equal(t, "abc123", NormalizeCode("abc123"))
	assert.Equal(t, "", NormalizeCode("  EXPO-  "))
	assert.Equal(t, "", NormalizeCode(""))
}

func TestCertificateNumber(t *testing.T) {
	assert.Equal(t, "421.5/000042/SMK.01/2025", CertificateNumber(42, "421.5/[NO]/SMK.01/2025"))
	assert.Equal(t, "CERT-000007", CertificateNumber(7, ""))
	assert.Equal(t, "CERT-000007", CertificateNumber(7, "   "))
	assert.Equal(t, "без номера", CertificateNumber(7, "без номера"))
}
