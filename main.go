package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"ticket_waitroom/internal/auditdb"
	"ticket_waitroom/internal/auth"
	"ticket_waitroom/internal/handlers"
	"ticket_waitroom/internal/models"
	"ticket_waitroom/internal/redisq"
	"ticket_waitroom/internal/storage"
	"ticket_waitroom/internal/tasks"
	"ticket_waitroom/internal/waitroom"
	"ticket_waitroom/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

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

	if err := storage.DB.AutoMigrate(&models.QueueConfig{}, &models.AdmissionRecord{}); err != nil {
		log.Fatal("Ошибка при миграции... ", err.Error())
	}

	storage.InitRedis()

	// Сборка ядра: Redis — быстрое хранилище, Postgres — журнал допусков.
	fastStore := redisq.NewStore(storage.RedisClient)
	auditStore := auditdb.NewStore(storage.DB)
	locker := redisq.NewLocker(storage.RedisClient)
	resolver := auditdb.NewResolver(storage.DB)

	coordinator := waitroom.NewCoordinator(fastStore, auditStore)
	scheduler := waitroom.NewScheduler(coordinator, fastStore, locker)
	scheduler.OnPromoted = func(queueID, userID uint) {
		ws.HubInstance.BroadcastWSMessage(ws.WSMessage{
			EventType: "user_admitted",
			QueueID:   strconv.Itoa(int(queueID)),
			Data: map[string]interface{}{
				"user_id": userID,
			},
		})
	}
	gate := waitroom.NewGate(resolver, fastStore)
	handlers.Setup(coordinator, gate)

	tasks.InitScheduler(scheduler, auditStore, fastStore)

	go ws.HubInstance.Run()

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	queues := r.Group("/api/queues", auth.IdentityMiddleware())
	{
		queues.POST("/:id/join", handlers.JoinQueueHandler)
		queues.POST("/:id/leave", handlers.LeaveQueueHandler)
		queues.POST("/:id/complete", handlers.CompleteQueueHandler)
		queues.GET("/:id/status", handlers.GetQueueStatusHandler)
		queues.GET("/:id/statistics", handlers.GetQueueStatisticsHandler)
	}

	r.GET("/api/queues/:id/ws", ws.QueueWebSocketHandler)

	performances := r.Group("/api/performances", auth.IdentityMiddleware())
	{
		performances.GET("/:id/enterable", handlers.CheckEnterableHandler)
	}

	if err := r.Run(":8080"); err != nil {
		log.Fatal("Ошибка запуска сервера...", err.Error())
	}
}
