package routes

import (
	"campusfeed_backend/feed"
	"campusfeed_backend/handlers"
	"campusfeed_backend/middleware"
	"campusfeed_backend/store"
	"campusfeed_backend/ws"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// SetupRoutes configures all the routes for the application
func SetupRoutes(r *gin.Engine, s store.Store, jwtSecret []byte, pending *feed.PendingCounter, hub *ws.Hub) {
	// Initialize the feed engine shared by the handlers
	threads := feed.NewThreadManager(s)
	votes := feed.NewVotingLedger(s)
	moderator := feed.NewModerator(s)
	masks := feed.NewPseudonyms()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(s, jwtSecret)
	postHandler := handlers.NewPostHandler(s, threads)
	voteHandler := handlers.NewVoteHandler(votes)
	commentHandler := handlers.NewCommentHandler(s, threads, masks)
	moderationHandler := handlers.NewModerationHandler(s, moderator, pending)
	userHandler := handlers.NewUserHandler(s)
	healthHandler := handlers.NewHealthHandler()

	writeLimiter := middleware.NewIPRateLimiter(rate.Limit(1), 5)

	// Public routes
	r.GET("/healthz", healthHandler.Check)
	r.POST("/register", authHandler.Register)
	r.POST("/login", authHandler.Login)
	r.POST("/refresh", authHandler.RefreshToken)
	r.GET("/ws", func(c *gin.Context) {
		ws.ServeWs(hub, c.Writer, c.Request)
	})

	// Read routes work with or without a token; a token unlocks the
	// moderator view of the same data.
	public := r.Group("/")
	public.Use(middleware.AuthMiddleware(s, jwtSecret, false))
	{
		public.GET("/feed", postHandler.GetFeed)
		public.GET("/posts/:id", postHandler.GetPost)
		public.GET("/posts/:id/comments", commentHandler.GetComments)
	}

	// Protected routes
	protected := r.Group("/")
	protected.Use(middleware.AuthMiddleware(s, jwtSecret, true))
	{
		writes := protected.Group("/")
		writes.Use(middleware.RateLimitMiddleware(writeLimiter))
		{
			// Post routes
			writes.POST("/posts", postHandler.CreatePost)
			writes.PUT("/posts/:id", postHandler.UpdatePost)
			writes.DELETE("/posts/:id", postHandler.DeletePost)

			// Vote routes
			writes.POST("/posts/:id/like", voteHandler.ToggleLike)
			writes.POST("/posts/:id/dislike", voteHandler.ToggleDislike)

			// Comment routes
			writes.POST("/posts/:id/comments", commentHandler.CreateComment)
			writes.DELETE("/comments/:id", commentHandler.DeleteComment)
		}

		// Logout route
		protected.POST("/logout", authHandler.Logout)

		// User info route
		protected.GET("/userinfo", authHandler.GetUserInfo)

		// Moderator routes
		mod := protected.Group("/")
		mod.Use(middleware.RequireModerator())
		{
			mod.POST("/posts/:id/moderate", moderationHandler.Moderate)
			mod.GET("/moderation/posts", moderationHandler.Queue)
			mod.GET("/moderation/pending-count", moderationHandler.PendingCount)
		}

		// Admin routes
		admin := protected.Group("/")
		admin.Use(middleware.RequireAdmin())
		{
			admin.GET("/users", userHandler.ListUsers)
			admin.POST("/users/:id/role", userHandler.SetRole)
			admin.POST("/users/:id/disable", userHandler.DisableUser)
			admin.POST("/users/:id/enable", userHandler.EnableUser)
		}
	}
}
