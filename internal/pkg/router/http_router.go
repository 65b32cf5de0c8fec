package router

import (
	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/minsukang/gazette/app/controllers"
	"github.com/minsukang/gazette/internal/pkg/database"
	"github.com/minsukang/gazette/internal/pkg/middleware"
	"github.com/minsukang/gazette/internal/pkg/oauth"
	"github.com/minsukang/gazette/internal/pkg/portone"
	"github.com/minsukang/gazette/internal/pkg/session"
	"github.com/minsukang/gazette/internal/pkg/subscription"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// init oauth providers
	oauth.Setup()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	// Wire payment handlers with the store-backed service and the real
	// provider client.
	provider := portone.NewClientFromEnv()
	svc := subscription.NewService(subscription.NewRepository(database.GetDB()), provider)
	controllers.InitializePaymentControllers(svc, provider)

	// Social OAuth
	app.Get("/auth/:provider", gothfiber.BeginAuthHandler)
	app.Get("/auth/:provider/callback", controllers.HandleOAuthCallback)

	// Auth
	app.Post("/logout", middleware.RequireAPISessionAuth, controllers.HandleAuthLogout)

	// Payment provider webhook. Registered outside the /api group so the
	// rate limiter never throttles provider retries.
	app.Post("/api/portone", controllers.HandlePortoneWebhook)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
