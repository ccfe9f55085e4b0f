package server

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/sutenshah/ultra-events/config"
	"github.com/sutenshah/ultra-events/internal/cache"
	"github.com/sutenshah/ultra-events/internal/chat"
	"github.com/sutenshah/ultra-events/internal/handlers"
	"github.com/sutenshah/ultra-events/internal/middleware"
	"github.com/sutenshah/ultra-events/internal/models"
	"github.com/sutenshah/ultra-events/internal/ordering"
	"github.com/sutenshah/ultra-events/internal/payment"
	"github.com/sutenshah/ultra-events/internal/reconcile"
	"github.com/sutenshah/ultra-events/internal/scan"
	"github.com/sutenshah/ultra-events/internal/shortlink"
	"github.com/sutenshah/ultra-events/internal/whatsapp"
)

func Start() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	db, err := config.InitDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %v", err)
	}

	store := buildStore(cfg)
	gateway := payment.NewRazorpayClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret,
		cfg.BaseURL+"/payment/callback")
	notifier := whatsapp.NewClient(cfg.WhatsAppToken, cfg.WhatsAppPhoneNumberID)

	orders := ordering.NewManager(db, gateway, notifier)
	links := shortlink.New(store)
	svc := &middleware.Services{
		Orders:   orders,
		Scanner:  scan.NewEngine(db),
		Chat:     chat.NewMachine(db, notifier, orders, links, cfg.BaseURL),
		Gateway:  gateway,
		Notifier: notifier,
		Links:    links,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reconcile.NewLoop(db, gateway, orders, store).Start(ctx)

	r := gin.Default()

	setupRoutes(r, db, svc)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	return r.Run(":" + port)
}

// buildStore prefers Redis so short links and reconcile counters survive
// restarts; without REDIS_URL a single-process in-memory store serves.
func buildStore(cfg *config.Config) cache.Store {
	if cfg.RedisURL == "" {
		log.Println("REDIS_URL not set, using in-memory store")
		return cache.NewMemory()
	}
	client, err := cache.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Printf("redis unavailable (%v), using in-memory store", err)
		return cache.NewMemory()
	}
	return cache.NewRedis(client)
}

func setupRoutes(r *gin.Engine, db *gorm.DB, svc *middleware.Services) {
	r.Use(middleware.DatabaseMiddleware(db))
	r.Use(middleware.ServicesMiddleware(svc))

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{"success": true, "service": "ultra-events", "status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Inbound integrations and customer-facing pages.
	r.GET("/webhook/whatsapp", handlers.VerifyWhatsAppWebhook)
	r.POST("/webhook/whatsapp", handlers.ReceiveWhatsAppMessage)
	r.POST("/webhook/razorpay", handlers.RazorpayWebhook)
	r.GET("/payment/callback", handlers.PaymentCallback)
	r.GET("/ticket-form", handlers.ShowTicketForm)
	r.POST("/ticket-form", handlers.SubmitTicketForm)
	r.GET("/s/:id", handlers.ResolveShortLink)

	public := r.Group("/api")
	{
		public.GET("/events", handlers.ListEvents)
		public.GET("/events/:id", handlers.GetEvent)
		public.POST("/users", handlers.CreateUser)
		public.POST("/orders/create", handlers.CreateOrder)
		public.POST("/orders/verify", handlers.VerifyOrder)
		public.GET("/orders/:orderNumber", handlers.GetOrder)
		public.GET("/payments/check/:reference", handlers.CheckPayment)
		public.POST("/whatsapp/user-form-submit", handlers.SubmitTicketForm)
		public.POST("/admin/login", handlers.AdminLogin)
	}

	scanner := r.Group("/api")
	scanner.Use(middleware.JWTAuthMiddleware(models.RoleScanner))
	{
		scanner.POST("/scan", handlers.ValidateTicket)
		scanner.POST("/scan/confirm", handlers.ConfirmScan)
		scanner.GET("/admin/me", handlers.AdminMe)
	}

	admin := r.Group("/api/admin")
	admin.Use(middleware.JWTAuthMiddleware(models.RoleAdmin))
	{
		admin.GET("/dashboard", handlers.AdminDashboard)
		admin.GET("/orders", handlers.ListOrders)
		admin.GET("/orders/:orderNumber/ticket", handlers.GetOrderTicket)

		admin.POST("/events", handlers.CreateEvent)
		admin.PUT("/events/:id", handlers.UpdateEvent)
		admin.DELETE("/events/:id", handlers.DeleteEvent)
	}

	super := r.Group("/api/admin")
	super.Use(middleware.JWTAuthMiddleware(models.RoleSuperAdmin))
	{
		super.GET("/accounts", handlers.ListAdmins)
		super.POST("/accounts", handlers.CreateAdmin)
		super.PUT("/accounts/:id", handlers.UpdateAdmin)
		super.DELETE("/accounts/:id", handlers.DeactivateAdmin)
	}
}
