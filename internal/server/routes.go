// Package server contain implementation of go-gin-server and each route handlers
package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"Fixer-backend/internal/auth"
	"Fixer-backend/internal/controller/application"
	"Fixer-backend/internal/controller/file"
	"Fixer-backend/internal/controller/job"
	notificationctl "Fixer-backend/internal/controller/notification"
	paymentctl "Fixer-backend/internal/controller/payment"
	"Fixer-backend/internal/middleware"
	"Fixer-backend/internal/model"
	"Fixer-backend/internal/session"

	// Init swagger doc
	_ "Fixer-backend/docs"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Fixer API
// @version 1.0
// @description Local services gig marketplace: jobs, applications, payments and notifications.
// @BasePath /api/v1

// RegisterRoutes will register each http endpoint routes to bound Server instance
func (s *MyServer) RegisterRoutes() http.Handler {
	cfg := s.Config
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(s.Log), middleware.SafeHeader())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		AllowCredentials: true,
	}))

	cookie := session.Cookie{Name: cfg.Auth.SessionCookie, Secure: cfg.App.Environment == "production"}
	authenticator := &auth.Authenticator{
		Tokens:   s.Tokens,
		Sessions: s.Sessions,
		Cookie:   cookie,
		Log:      s.Log,
	}
	gAuth := auth.NewOauthLoginHandler(s.DB, auth.NewGoogleOauthConfig(cfg.Auth), auth.GoogleUserInfoEndpoint, authenticator)
	lAuth := auth.NewLocalAuthHandler(s.DB, authenticator)
	logout := auth.NewLogoutController(s.Blacklist, s.Sessions, cookie, s.Log)

	jobs := job.NewJobController(s.Lifecycle, s.Log)
	applications := application.NewApplicationController(s.Lifecycle, s.Log)
	payments := paymentctl.NewPaymentController(s.Payments, s.Log)
	notifications := notificationctl.NewNotificationController(s.Dispatcher, s.Hub, s.Log)
	files := file.NewFileController(s.Store, s.Storage, cfg.Storage.MaxBytes, cfg.Storage.URLExpiry, s.Log)

	r.GET("/", s.HelloWorldHandler)
	r.GET("/health", s.Monitor.Handler(s.DB.Health))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Gateway callbacks bypass the short circuit; the provider retries on anything but 2xx.
	r.POST("/api/v1/webhook", payments.WebhookHandler)

	v1 := r.Group("/api/v1")
	v1.Use(s.Monitor.ShortCircuit())
	{
		authRoute := v1.Group("/auth")
		{
			authRoute.Use(s.rateLimiter())
			authRoute.POST("google", gAuth.GoogleLoginHandler)
			authRoute.GET("google/callback", gAuth.Callback)

			authRoute.POST("login", lAuth.LoginHandler)
			authRoute.POST("register", lAuth.RegisterHandler)
		}


		// Any routes
		needAuth := v1.Group("")
		{
			needAuth.Use(middleware.RequireAuth(middleware.AuthConfig{
				Users:    s.Store,
				Tokens:   s.Tokens,
				Sessions: s.Sessions,
				Cookie:   cookie,
				Log:      s.Log,
			}))
			if s.Blacklist != nil {
				needAuth.Use(middleware.JwtBlacklistCheck(s.Blacklist, s.Log))
			}
			needAuth.Use(s.rateLimiter())

			needAuth.POST("/auth/logout", logout.LogoutHandler)

			jobRoute := needAuth.Group("/jobs")
			{
				jobRoute.GET("", jobs.ListJobs)
				jobRoute.GET("/:id", jobs.GetJob)
				jobRoute.POST("", middleware.CheckRole(model.RolePoster), jobs.CreateJob)
				jobRoute.PATCH("/:id/start", middleware.CheckRole(model.RoleWorker), jobs.StartJob)
				jobRoute.PATCH("/:id/complete", middleware.CheckRole(model.RoleWorker), jobs.CompleteJob)
				jobRoute.PATCH("/:id/cancel", middleware.CheckRole(model.RolePoster), jobs.CancelJob)
				jobRoute.POST("/:id/release-funds", middleware.CheckRole(model.RolePoster), jobs.ReleaseFunds)

				jobRoute.GET("/:id/applications", applications.ListForJobHandler)

				jobRoute.GET("/:id/attachments", files.ListAttachments)
				jobRoute.GET("/:id/attachments/:attachment_id", files.GetAttachment)
				jobRoute.POST("/:id/attachments", middleware.SizeLimit(cfg.Storage.MaxBytes), files.UploadAttachment)
			}

			applicationRoute := needAuth.Group("/applications")
			{
				applicationRoute.PATCH("/:id/status", middleware.CheckRole(model.RolePoster, model.RoleAdmin), applications.DecideHandler)
				applicationRoute.POST("", middleware.CheckRole(model.RoleWorker), applications.ApplicationHandler)
				applicationRoute.GET("/mine", middleware.CheckRole(model.RoleWorker), applications.ListMineHandler)
			}

			paymentRoute := needAuth.Group("/payments")
			{
				paymentRoute.POST("/intent", middleware.CheckRole(model.RolePoster), payments.CreateIntentHandler)
				paymentRoute.POST("/confirm", middleware.CheckRole(model.RolePoster, model.RoleAdmin), payments.ConfirmHandler)
				paymentRoute.POST("/connect-account", middleware.CheckRole(model.RoleWorker), payments.ConnectAccountHandler)
			}
			needAuth.GET("/earnings", middleware.CheckRole(model.RoleWorker), payments.EarningsHandler)

			notificationRoute := needAuth.Group("/notifications")
			{
				notificationRoute.GET("", notifications.ListHandler)
				notificationRoute.GET("/unread-count", notifications.UnreadCountHandler)
				notificationRoute.PATCH("/read-all", notifications.MarkAllReadHandler)
				notificationRoute.PATCH("/:id/read", notifications.MarkReadHandler)
				notificationRoute.DELETE("/:id", notifications.DeleteHandler)
			}
			needAuth.GET("/ws/notifications", notifications.StreamHandler)
		}
	}

	return r
}

// rateLimiter shares counters through redis when it is configured.
func (s *MyServer) rateLimiter() gin.HandlerFunc {
	var rdb redis.UniversalClient
	if s.Redis != nil {
		rdb = s.Redis
	}
	return middleware.RateLimiterMiddleware(s.Config.RateLimit.RequestsPerSecond, rdb)
}

// HelloWorldHandler handle request by return message "Hello World"
func (s *MyServer) HelloWorldHandler(c *gin.Context) {
	resp := make(map[string]string)
	resp["message"] = "Hello World"

	c.JSON(http.StatusOK, resp)
}
