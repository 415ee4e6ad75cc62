package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"photox_backend/internal/controller"
	"photox_backend/internal/middleware"
	"photox_backend/internal/model"
	"photox_backend/internal/repository"
	"photox_backend/pkg/billing"
	"photox_backend/pkg/config"
	"photox_backend/pkg/cron"
	"photox_backend/pkg/database"
	"photox_backend/pkg/email"
	"photox_backend/pkg/entitlement"
	"photox_backend/pkg/genai"
	"photox_backend/pkg/utils/storage"
)

func setupRoutes(app *fiber.App, store *entitlement.Store) {
	api := app.Group("/api")

	// Auth Routes
	auth := api.Group("/auth")
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)

	// Protected Routes
	protected := api.Group("/", middleware.AuthMiddleware())
	protected.Get("/me", controller.GetMe)

	// Image generation with quota pre-check. The handler claims the unit
	// atomically, this just rejects obviously exhausted users early.
	images := protected.Group("/images")
	images.Post("/generate", middleware.CheckGenerationQuota(store), controller.GenerateImage)
	images.Post("/edit", middleware.CheckGenerationQuota(store), controller.EditImage)
	images.Get("/my", controller.ListMyImages)
	images.Delete("/:id", middleware.CheckImageOwnership(), controller.DeleteImage)

	// Dashboard routes
	dashboard := api.Group("/dashboard", middleware.AuthMiddleware())
	dashboard.Get("/stats", controller.GetDashboardStats)

	// Settings routes
	settings := api.Group("/settings", middleware.AuthMiddleware())
	settings.Get("/profile", controller.GetProfile)
	settings.Put("/profile", controller.UpdateProfile)
	settings.Post("/avatar", controller.UploadAvatar)
	settings.Get("/login-history", controller.GetLoginHistory)

	// Subscription routes
	subscriptions := api.Group("/subscriptions")
	subscriptions.Get("/plans", controller.ListPlans)

	subProtected := subscriptions.Use(middleware.AuthMiddleware())
	subProtected.Get("/usage", controller.GetMyUsage)
	subProtected.Get("/check", controller.CheckSubscription) // Stripe ile senkronize eder
	subProtected.Post("/create-checkout-session", controller.CreateCheckoutSession)
	subProtected.Post("/cancel-subscription", controller.CancelSubscription)

	// Stripe webhook
	api.Post("/webhook", controller.HandleStripeWebhook)
}

func main() {
	cfg := config.Load()

	if err := email.InitEmailService(cfg.Email.ResendAPIKey); err != nil {
		log.Printf("Email service disabled: %v", err)
	}

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is not set in .env")
	}

	database.InitDB(cfg.Database.URL)
	err := database.MigrateDatabase(
		&model.User{},
		&model.UserSubscription{},
		&model.GeneratedImage{},
		&model.LoginHistory{},
	)
	if err != nil {
		log.Printf("Migration warning: %v", err)
	}

	if err := storage.InitStorage(); err != nil {
		log.Fatal("Could not initialize storage:", err)
	}

	repo := repository.NewSubscriptionRepository(database.GetDB())
	catalog := entitlement.DefaultCatalog()
	store := entitlement.NewStore(repo, catalog)
	billingClient := billing.NewClient(cfg.Stripe.SecretKey, cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL)
	reconciler := entitlement.NewReconciler(repo, catalog, billingClient)
	generator := genai.NewClient()

	controller.InitAuthController(store)
	controller.InitImageController(store, generator)
	controller.InitSubscriptionController(store, reconciler, billingClient)
	cron.InitCycleRolloverCron(store)

	app := fiber.New(fiber.Config{
		BodyLimit: 15 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New())

	setupRoutes(app, store)

	log.Printf("Server is running on port %s", cfg.Server.Port)
	log.Fatal(app.Listen(":" + cfg.Server.Port))
}
