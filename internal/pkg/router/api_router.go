package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/minsukang/gazette/app/controllers"
	"github.com/minsukang/gazette/internal/pkg/database"
	"github.com/minsukang/gazette/internal/pkg/middleware"
	"github.com/minsukang/gazette/internal/pkg/portone"
	"github.com/minsukang/gazette/internal/pkg/subscription"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())

	api.Get("/session", controllers.HandleSessionStatus)

	payments := api.Group("/payments", middleware.RequireAPISessionAuth)
	payments.Post("/", controllers.HandleCreatePayment)
	payments.Post("/cancel", controllers.HandleCancelPayment)
	payments.Get("/status", controllers.HandlePaymentStatus)

	// Subscriber-only content behind the subscription guard.
	svc := subscription.NewService(
		subscription.NewRepository(database.GetDB()),
		portone.NewClientFromEnv(),
	)
	api.Get("/magazines", middleware.NewSubscriptionGuard(svc), controllers.HandleMagazineIndex)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
