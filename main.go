package main

import (
	"context"

	"chatrelay/internal/api"
	"chatrelay/internal/auth"
	"chatrelay/internal/cache"
	"chatrelay/internal/config"
	"chatrelay/internal/redis"
	"chatrelay/internal/session"
	"chatrelay/internal/storage"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = log.With().Str("service", "chatrelay").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	connector := storage.NewConnector(cfg)
	defer connector.Close(context.Background())
	configRepo := storage.NewConfigRepo(connector)
	conversationRepo := storage.NewConversationRepo(connector)

	cacheClient, err := redis.NewClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create redis client")
	}
	defer cacheClient.Close()
	configStore := cache.NewConfigCache(configRepo, cacheClient, cfg.ConfigCacheTTL)

	authService, err := auth.NewService(cfg.AuthUsername, cfg.AuthPassword, cfg.JWTSecret, cfg.JWTAlgorithm, cfg.TokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("init auth service")
	}

	chatModel, err := openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		BaseURL: cfg.OpenAIBaseURL,
		Model:   "gpt-4o-mini",
		APIKey:  cfg.OpenAIAPIKey,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init chat model")
	}

	orchestrator := session.NewOrchestrator(configStore, conversationRepo, chatModel)
	handler := api.NewHandler(configStore, authService, orchestrator, cfg.APIBasePath)

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
	}))
	router.Use(api.RequestLogger())
	handler.RegisterRoutes(router)

	log.Info().Str("addr", cfg.ServerAddress).Msg("starting server")
	if err := router.Run(cfg.ServerAddress); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
