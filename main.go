package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"channelchat/internal/chat"
	"channelchat/internal/config"
	"channelchat/internal/db"
	"channelchat/internal/handlers"
	"channelchat/internal/hub"
	"channelchat/internal/media"
	"channelchat/internal/middleware"
	"channelchat/internal/notify"
	"channelchat/internal/observability"
	"channelchat/internal/presence"
	"channelchat/internal/rabbitmq"
	"channelchat/internal/repositories"
	"channelchat/internal/rooms"
	"channelchat/internal/telemetry"
	"channelchat/internal/ws"
)

func main() {
	cfg := config.Load()

	shutdownTracing, err := observability.InitTracing(context.Background(), cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	userRepo := repositories.NewUserRepo(database)
	roomRepo := repositories.NewRoomRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	heartbeatRepo := repositories.NewHeartbeatRepo(database)

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("publisher mode=%s", rabbitmq.PublisherMode(publisher))

	audit := telemetry.NewAuditEmitter(publisher, "audit.rooms", "channelchat", cfg.Environment)

	var mediaStore media.Store = media.NoopStore{}
	if cfg.MediaBaseURL != "" {
		mediaStore = media.NewHTTPStore(cfg.MediaBaseURL)
	}

	h := hub.New()
	registry := rooms.NewRegistry(roomRepo, userRepo, messageRepo, heartbeatRepo, h, mediaStore, audit)
	gate := notify.NewGate(messageRepo, userRepo, h, publisher, cfg.NotifyDelay)
	pipeline := chat.NewPipeline(roomRepo, messageRepo, h, gate)

	tracker := presence.NewTracker(heartbeatRepo, userRepo, cfg.HeartbeatThreshold)
	sweeper, err := tracker.StartSweeper(cfg.SweepSchedule)
	if err != nil {
		log.Fatalf("failed to start presence sweeper: %v", err)
	}
	defer sweeper.Stop()

	wsHandler := ws.NewHandler(h, registry, pipeline, userRepo, []byte(cfg.JWTSecret), cfg.CookieName)
	roomHandler := handlers.NewRoomHandler(registry, pipeline)
	messageHandler := handlers.NewMessageHandler(pipeline)
	presenceHandler := handlers.NewPresenceHandler(tracker)
	settingsHandler := handlers.NewSettingsHandler(userRepo)

	router := gin.Default()
	router.Use(otelgin.Middleware("channelchat"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware([]byte(cfg.JWTSecret), cfg.CookieName)

	router.POST("/rooms", authMiddleware, roomHandler.Create)
	router.GET("/rooms", authMiddleware, roomHandler.List)
	router.POST("/rooms/:room_id/join", authMiddleware, roomHandler.Join)
	router.POST("/rooms/:room_id/leave", authMiddleware, roomHandler.Leave)
	router.DELETE("/rooms/:room_id", authMiddleware, roomHandler.Delete)
	router.POST("/rooms/:room_id/kick", authMiddleware, roomHandler.Kick)
	router.PUT("/rooms/:room_id/name", authMiddleware, roomHandler.Rename)
	router.GET("/rooms/:room_id/settings", authMiddleware, roomHandler.Settings)

	router.GET("/rooms/:room_id/messages/search", authMiddleware, messageHandler.Search)
	router.POST("/rooms/:room_id/messages/read", authMiddleware, messageHandler.MarkRead)
	router.GET("/rooms/:room_id/messages/last", authMiddleware, messageHandler.LastMessage)
	router.GET("/messages/unread", authMiddleware, messageHandler.Unread)

	router.POST("/heartbeat", authMiddleware, presenceHandler.Heartbeat)
	router.POST("/stop_heartbeat", authMiddleware, presenceHandler.StopHeartbeat)

	router.GET("/settings/notifications", authMiddleware, settingsHandler.GetNotificationSettings)
	router.PUT("/settings/notifications", authMiddleware, settingsHandler.UpdateNotificationSettings)
	router.POST("/device_token", authMiddleware, settingsHandler.RegisterDeviceToken)
	router.DELETE("/device_token", authMiddleware, settingsHandler.ClearDeviceToken)

	router.DELETE("/account", authMiddleware, roomHandler.DeleteAccount)

	// Token checks happen inside the handler so query-param auth works for
	// browser websocket clients.
	router.GET("/ws/rooms/:room_id", wsHandler.Handle)

	log.Printf("chat service listening on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
