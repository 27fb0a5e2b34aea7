package ticket

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"expo_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ошибки базовых операций. Хендлеры превращают их в коды API.
var (
	ErrDuplicate   = errors.New("участник с таким email или телефоном уже зарегистрирован")
	ErrNotFound    = errors.New("билет не найден")
	ErrNotEligible = errors.New("сертификат недоступен")
)

// Префикс старого формата кодов ("EXPO-42"), печатался на первых билетах.
const legacyPrefix = "EXPO-"

type RegisterInput struct {
	Name         string
	OriginSchool string
	Email        string
	Phone        string
}

// Register проверяет дубликаты по email/телефону, выпускает новый билет
// и сохраняет участника со статусом REGISTERED.
func Register(db *gorm.DB, in RegisterInput) (*models.Participant, error) {
	var existing models.Participant
	err := db.Where("email = ? OR phone = ?", in.Email, in.Phone).First(&existing).Error
	if err == nil {
		return nil, ErrDuplicate
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	participant := models.Participant{
		Name:         in.Name,
		OriginSchool: in.OriginSchool,
		Email:        in.Email,
		Phone:        in.Phone,
		Status:       models.StatusRegistered,
		TicketCode:   uuid.NewString(),
	}

	if err := db.Create(&participant).Error; err != nil {
		// Две одновременные регистрации с одинаковым email/телефоном
		// разрешаются уникальными индексами на уровне базы.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicate
		}
		return nil, err
	}

	return &participant, nil
}

// NormalizeCode убирает пробелы и срезает устаревший префикс без учёта регистра.
func NormalizeCode(raw string) string {
	code := strings.TrimSpace(raw)
	if len(code) >= len(legacyPrefix) && strings.EqualFold(code[:len(legacyPrefix)], legacyPrefix) {
		code = code[len(legacyPrefix):]
	}
	return strings.TrimSpace(code)
}

// FindByCode находит участника по нормализованному коду: числовой код — это
// старый формат (числовой id), любой другой — ticket_code из QR.
func FindByCode(db *gorm.DB, code string) (*models.Participant, error) {
	if code == "" {
		return nil, ErrNotFound
	}

	if id, convErr := strconv.ParseUint(code, 10, 32); convErr == nil {
		var participant models.Participant
		err := db.First(&participant, uint(id)).Error
		if err == nil {
			return &participant, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	var participant models.Participant
	err := db.Where("ticket_code = ?", code).First(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

type CheckInResult struct {
	Outcome     string // "SUCCESS" либо "ALREADY_USED"
	Participant models.Participant
}

const (
	OutcomeSuccess     = "SUCCESS"
	OutcomeAlreadyUsed = "ALREADY_USED"
)

// CheckIn отмечает участника как прошедшего через гейт. Переход статуса
// выполняется одним условным UPDATE: при одновременном сканировании одного
// билета с двух устройств переход случится не более одного раза, проигравший
// запрос получит ALREADY_USED с исходным временем прохода.
func CheckIn(db *gorm.DB, rawCode string) (*CheckInResult, error) {
	participant, err := FindByCode(db, NormalizeCode(rawCode))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	res := db.Model(&models.Participant{}).
		Where("id = ? AND status = ?", participant.ID, models.StatusRegistered).
		Updates(map[string]interface{}{
			"status":        models.StatusCheckedIn,
			"check_in_time": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		// Билет уже использован. Перечитываем запись ради исходного check_in_time.
		var used models.Participant
		if err := db.First(&used, participant.ID).Error; err != nil {
			// Запись могли удалить между поиском и перечитыванием.
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		return &CheckInResult{Outcome: OutcomeAlreadyUsed, Participant: used}, nil
	}

	participant.Status = models.StatusCheckedIn
	participant.CheckInTime = &now
	return &CheckInResult{Outcome: OutcomeSuccess, Participant: *participant}, nil
}

// ResolveCertificate ищет участника строго по ticket_code: числовой id тут не
// принимается, код сертификата должен быть неподбираемым. Причина отказа
// наружу не различается.
func ResolveCertificate(db *gorm.DB, code string) (*models.Participant, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrNotEligible
	}

	var participant models.Participant
	err := db.Where("ticket_code = ? AND status = ?", code, models.StatusCheckedIn).
		First(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotEligible
	}
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

// CertificateNumber строит номер сертификата по шаблону из настроек,
// подставляя id участника с ведущими нулями вместо [NO].
func CertificateNumber(id uint, format string) string {
	no := fmt.Sprintf("%06d", id)
	format = strings.TrimSpace(format)
	if format == "" {
		return "CERT-" + no
	}
	return strings.ReplaceAll(format, "[NO]", no)
}
