package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/windoze95/chefbot-api/internal/ai"
	"github.com/windoze95/chefbot-api/internal/config"
	"github.com/windoze95/chefbot-api/internal/handlers"
	"github.com/windoze95/chefbot-api/internal/logger"
	"github.com/windoze95/chefbot-api/internal/middleware"
	"github.com/windoze95/chefbot-api/internal/session"
	"github.com/windoze95/chefbot-api/internal/ws"
)

// SetupRouter sets up the Gin router.
func SetupRouter(cfg *config.Config) *gin.Engine {
	// Create default Gin router
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowCredentials = true
	corsConfig.AllowOrigins = []string{
		"https://chefbot.kitchen",
		"https://www.chefbot.kitchen",
		"https://api.chefbot.kitchen",
	}
	r.Use(cors.New(corsConfig))

	// Add request ID middleware for request correlation
	r.Use(logger.RequestIDMiddleware())

	// Ping route for testing
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// AI provider setup
	var textProvider ai.TextProvider
	if cfg.EnvVars.TextProvider == "openai" {
		textProvider = ai.NewOpenAIProvider(cfg.EnvVars.OpenAIAPIKey, cfg.Prompts)
	} else {
		textProvider = ai.NewAnthropicProvider(cfg.EnvVars.AnthropicAPIKey, cfg.Prompts)
	}

	var speechProvider ai.SpeechSynthesisProvider
	var elevenLabs *ai.ElevenLabsProvider
	if cfg.TTSConfigured() {
		elevenLabs = ai.NewElevenLabsProvider(cfg.EnvVars.ElevenLabsAPIKey)
		speechProvider = elevenLabs
	}

	// Session registry
	manager := session.NewManager(
		textProvider,
		speechProvider,
		cfg.EnvVars.DefaultVoiceID,
		cfg.EnvVars.QueryTimeout,
		cfg.EnvVars.SessionIdleTTL,
	)
	sessionHandler := handlers.NewSessionHandler(cfg, manager)
	if elevenLabs != nil {
		sessionHandler.Lister = elevenLabs
	}

	// Group for API routes that don't require token verification
	apiPublic := r.Group("/v1")
	{
		// Start a new chat session (rate limited per IP)
		apiPublic.POST("/sessions",
			middleware.RateLimitByIP(5, 10*time.Minute, time.Hour),
			sessionHandler.CreateSession,
		)
		// List the selectable voices
		apiPublic.GET("/voices", sessionHandler.GetVoices)
	}

	// Group for API routes that require token verification
	apiProtected := r.Group("/v1")
	{
		apiProtected.Use(middleware.VerifyTokenMiddleware(cfg))

		// Get a session's transcript and quick replies
		apiProtected.GET("/sessions/:session_id/messages", sessionHandler.GetMessages)
		// End a session early
		apiProtected.DELETE("/sessions/:session_id", sessionHandler.DeleteSession)
	}

	// WebSocket routes (authenticated via query param token)
	hub := ws.NewHub()
	go hub.Run()
	chatHandler := ws.NewChatHandler(hub, cfg.EnvVars.JwtSecretKey, manager, cfg.EnvVars.QueryTimeout)
	r.GET("/v1/ws/chat/:session_id", chatHandler.HandleChatSession)

	return r
}
