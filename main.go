package main

import (
	"fmt"
	"log"
	"os"

	_ "expo_backend/docs"
	"expo_backend/internal/auth"
	"expo_backend/internal/handlers"
	"expo_backend/internal/models"
	"expo_backend/internal/storage"
	"expo_backend/internal/tasks"
	"expo_backend/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @Title						Регистрация и check-in школьной выставки
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
func main() {
	key := os.Getenv("ENV_CHEK")
	if key == "" {
		fmt.Println("Подключение к .env")
		err := godotenv.Load()
		if err != nil {
			log.Fatal("Ошибка получения .env")
		}
	}

	storage.ConnectDatabase()

	if err := storage.DB.AutoMigrate(
		&models.Participant{},
		&models.Setting{},
		&models.Campus{},
		&models.RundownItem{},
		&models.FaqItem{},
	); err != nil {
		log.Fatal("Ошибка при миграции... ", err.Error())
	}

	storage.InitRedis()

	tasks.InitScheduler()

	go ws.HubInstance.Run()

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/participants", handlers.RegisterParticipantHandler)
		apiGroup.GET("/participants/:id", handlers.GetParticipantHandler)
		apiGroup.GET("/ticket", handlers.GetMyTicketHandler)
		apiGroup.DELETE("/ticket", handlers.ResetMyTicketHandler)
		apiGroup.GET("/certificate/:code", handlers.GetCertificateHandler)
		apiGroup.GET("/settings", handlers.GetSettingsHandler)
		apiGroup.GET("/campuses", handlers.ListCampusesHandler)
		apiGroup.GET("/rundown", handlers.ListRundownHandler)
		apiGroup.GET("/faq", handlers.ListFaqHandler)
		apiGroup.GET("/stats", handlers.GetStatsHandler)
	}

	r.GET("/verify/:code", handlers.VerifyCertificateHandler)

	adminAuth := r.Group("/admin")
	{
		adminAuth.POST("/login", handlers.LoginHandler)
		adminAuth.POST("/refresh", handlers.RefreshTokenHandler)
	}

	admin := r.Group("/admin", auth.AuthMiddleware())
	{
		admin.GET("/me", handlers.MeHandler)
		admin.POST("/change-password", handlers.ChangePasswordHandler)
		admin.GET("/participants", handlers.ListParticipantsHandler)
		admin.GET("/participants/export", handlers.ExportParticipantsHandler)
		admin.POST("/checkin", handlers.CheckInHandler)
		admin.PUT("/settings", handlers.SaveSettingsHandler)
		admin.POST("/campuses", handlers.CreateCampusHandler)
		admin.DELETE("/campuses/:id", handlers.DeleteCampusHandler)
		admin.POST("/rundown", handlers.CreateRundownHandler)
		admin.DELETE("/rundown/:id", handlers.DeleteRundownHandler)
		admin.POST("/faq", handlers.CreateFaqHandler)
		admin.DELETE("/faq/:id", handlers.DeleteFaqHandler)
		admin.GET("/ws", ws.GateWebSocketHandler)
	}

	if err := r.Run(":8080"); err != nil {
		log.Fatal("Ошибка запуска сервера...", err.Error())
	}
}
