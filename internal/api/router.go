package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/cravequest/backend/internal/app"
	iauth "github.com/cravequest/backend/internal/auth"
	"github.com/cravequest/backend/internal/cache"
	"github.com/cravequest/backend/internal/generator"
	"github.com/cravequest/backend/internal/handlers"
	"github.com/cravequest/backend/internal/middleware"
	"github.com/cravequest/backend/internal/places"
	"github.com/cravequest/backend/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
// The generator, venue searcher and Redis cache are passed in because they
// talk to external systems; everything else is assembled here from the
// database handle.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, gen generator.Generator, searcher places.Searcher, redis *cache.RedisCache) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if gen == nil {
		return nil, fmt.Errorf("generator must be provided")
	}

	preferenceSvc, err := services.NewPreferenceService(db)
	if err != nil {
		return nil, err
	}
	rankSvc, err := services.NewRankService(db, redis)
	if err != nil {
		return nil, err
	}
	profileSvc, err := services.NewProfileService(db, rankSvc)
	if err != nil {
		return nil, err
	}
	sessionSvc, err := services.NewSessionService(db, gen, searcher, preferenceSvc)
	if err != nil {
		return nil, err
	}
	challengeSvc, err := services.NewChallengeService(db, preferenceSvc, rankSvc)
	if err != nil {
		return nil, err
	}
	invitationSvc, err := services.NewInvitationService(db)
	if err != nil {
		return nil, err
	}
	matchmakingSvc, err := services.NewMatchmakingService(db, gen)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	rateRequests := cfg.Server.RateLimit.Requests
	if rateRequests <= 0 {
		rateRequests = 100
	}
	rateWindow := cfg.Server.RateLimit.Window
	if rateWindow <= 0 {
		rateWindow = time.Minute
	}
	r.Use(middleware.RateLimit(rateRequests, rateWindow))

	authHandler := handlers.NewAuthHandler(profileSvc, jwt)
	sessionHandler := handlers.NewSessionHandler(sessionSvc)
	challengeHandler := handlers.NewChallengeHandler(challengeSvc)
	inviteHandler := handlers.NewInviteHandler(invitationSvc, cfg.Server.BaseURL)
	matchHandler := handlers.NewMatchHandler(matchmakingSvc)
	userHandler := handlers.NewUserHandler(profileSvc)
	healthHandler := handlers.NewHealthHandler(db)

	// Health endpoint (public)
	r.GET("/api/health", healthHandler.Health)

	// Public auth routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/login", authHandler.Login)
	}

	// Public invitation landing page and its QR code, served where the
	// generated share links point. Invitees can view an invite before they
	// log in to accept it.
	r.GET("/invite/:token", inviteHandler.View)
	r.GET("/invite/:token/qr", inviteHandler.QRCode)

	// Protected routes
	requireAuth := middleware.Auth(jwt)

	api := r.Group("/api")
	api.Use(requireAuth)

	api.GET("/auth/me", authHandler.Me)

	session := api.Group("/session")
	{
		session.POST("/crave", sessionHandler.Crave)
		session.POST("/select", sessionHandler.Select)
		session.POST("/choose-type", sessionHandler.ChooseType)
	}

	challenge := api.Group("/challenge")
	{
		challenge.POST("/select", challengeHandler.Select)
		challenge.POST("/start", challengeHandler.Start)
		challenge.POST("/complete", challengeHandler.Complete)
	}

	invite := api.Group("/invite")
	{
		invite.POST("/create", inviteHandler.Create)
		invite.POST("/respond", inviteHandler.Respond)
		invite.GET("/status/:id", inviteHandler.Status)
	}

	match := api.Group("/match")
	{
		match.POST("/queue", matchHandler.JoinQueue)
		match.GET("/status/:queueID", matchHandler.Status)
		match.POST("/cancel", matchHandler.Cancel)
	}

	user := api.Group("/user")
	{
		user.GET("/profile", userHandler.GetProfile)
		user.PUT("/profile", userHandler.UpdateProfile)
		user.GET("/history", userHandler.History)
	}

	// Metrics endpoint
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
