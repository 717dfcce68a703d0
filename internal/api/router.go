package api

import (
	"context"  // Health check deadline
	"net/http" // HTTP status codes
	"time"     // Timeouts

	"clube_beneficios/internal/cashback"      // Cashback split
	"clube_beneficios/internal/domain"        // Roles, permissions and modules
	"clube_beneficios/internal/events"        // Broker messages
	"clube_beneficios/internal/mail"          // Email delivery
	"clube_beneficios/internal/metrics"       // Prometheus collectors
	mw "clube_beneficios/internal/middleware" // Auth, tenant and logging middleware
	"clube_beneficios/internal/reconcile"     // Exchange order sync
	"clube_beneficios/internal/tenant"        // Club databases
	"clube_beneficios/internal/whatsapp"      // Cloud API client

	"github.com/gin-gonic/gin"                                // Gin web framework
	"github.com/prometheus/client_golang/prometheus"          // Metrics registry
	"github.com/prometheus/client_golang/prometheus/promhttp" // Metrics endpoint
	"github.com/redis/go-redis/v9"                            // Redis client
	"gorm.io/gorm"                                            // GORM ORM library
)

// Deps are the collaborators the handlers are built from
type Deps struct {
	Tenants             *tenant.Resolver    // Master DB plus club databases
	Redis               *redis.Client       // Nil disables caching
	Publisher           events.Publisher    // Purchase events
	Split               cashback.Split      // Cashback shares
	Syncer              *reconcile.Syncer   // Nil when no RPC endpoint is configured
	Mailer              *mail.Dispatcher    // Background notification emails
	WhatsApp            *whatsapp.Client    // Cloud API client
	Metrics             *metrics.Metrics    // Nil disables metrics
	Gatherer            prometheus.Gatherer // Served on /metrics
	Tokens              TokenIssuer         // JWT settings
	WhatsAppVerifyToken string              // Webhook subscription token
	WhatsAppAppSecret   string              // Webhook payload signing key
	TrustedProxies      []string            // Proxies allowed to set client IP headers
}

// NewRouter wires every route
func NewRouter(d Deps) (*gin.Engine, error) {
	r := gin.New() // Gin router instance
	r.Use(gin.Recovery(), mw.RequestLogger(d.Metrics))
	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		return nil, err
	}
	master := d.Tenants.Master()
	jwt := mw.JWTAuthMiddleware(d.Tokens.Secret)
	tenantMW := mw.TenantMiddleware(d.Tenants)

	r.GET("/health", HealthHandler(master, d.Redis))
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.POST("/super-admin/login", SuperAdminLoginHandler(master, d.Tokens))
	auth.POST("/club-admin/login", ClubAdminLoginHandler(master, d.Tokens))
	auth.POST("/register", tenantMW, RegisterHandler(d.Tokens)) // Club from X-Club-ID or X-Club-Slug
	auth.POST("/login", tenantMW, LoginHandler(d.Tokens))

	// WhatsApp Cloud API webhooks, one URL per club
	hooks := api.Group("/webhooks/whatsapp/:slug", tenantMW, mw.RequireModule(domain.ModuleWhatsApp))
	hooks.GET("", WhatsAppVerifyHandler(d.WhatsAppVerifyToken))
	hooks.POST("", WhatsAppWebhookHandler(d.WhatsAppAppSecret))

	// Super admin routes
	admin := api.Group("/admin", jwt, mw.SuperAdminOnlyMiddleware(master))
	admin.GET("/clubs", ListClubsHandler(master, d.Redis))
	admin.POST("/clubs", CreateClubHandler(d.Tenants, d.Redis))
	admin.GET("/clubs/:id", GetClubHandler(master))
	admin.PUT("/clubs/:id", UpdateClubHandler(d.Tenants, d.Redis))
	admin.DELETE("/clubs/:id", DeactivateClubHandler(d.Tenants, d.Redis))
	admin.PUT("/clubs/:id/modules/:module", SetModuleHandler(master, d.Redis))
	admin.POST("/clubs/:id/admins", CreateClubAdminHandler(master))
	admin.GET("/users/count", UsersCountHandler(d.Tenants))

	// Club admin routes
	reports := mw.RequirePermission(domain.PermReadReports)
	content := mw.RequirePermission(domain.PermManageContent)
	invest := mw.RequirePermission(domain.PermManageInvest)
	investOn := mw.RequireModule(domain.ModuleInvestments)

	clubAdmin := mw.ClubAdminActiveMiddleware(master)

	club := api.Group("/club", jwt, clubAdmin, tenantMW)
	club.GET("/users", reports, ListClubUsersHandler())
	club.GET("/reports/purchases", reports, PurchasesReportHandler())
	club.GET("/reports/purchases.csv", reports, ExportPurchasesCSVHandler())
	club.GET("/notifications", reports, ListNotificationsHandler())
	club.POST("/notifications", content, mw.RequireModule(domain.ModuleNotifications), CreateNotificationHandler(d.Mailer))
	club.GET("/faqs", reports, ListFAQsHandler(true))
	club.POST("/faqs", content, CreateFAQHandler())
	club.PUT("/faqs/:id", content, UpdateFAQHandler())
	club.DELETE("/faqs/:id", content, DeleteFAQHandler())
	club.GET("/stake-contracts", reports, ListStakeContractsHandler(false))
	club.POST("/stake-contracts", invest, investOn, CreateStakeContractHandler())
	club.PUT("/stake-contracts/:id", invest, investOn, UpdateStakeContractHandler())
	club.POST("/exchange-contracts", invest, investOn, CreateExchangeContractHandler())
	club.POST("/exchange-orders/sync", mw.RequirePermission(domain.PermSyncOrders), investOn, SyncOrdersHandler(d.Syncer))

	wa := api.Group("/whatsapp-messages", jwt, clubAdmin, tenantMW, mw.RequireModule(domain.ModuleWhatsApp))
	wa.POST("", mw.RequirePermission(domain.PermSendMessages), SendWhatsAppHandler(d.WhatsApp))
	wa.GET("/history", reports, WhatsAppHistoryHandler())

	// User routes (protected by JWT, bound to the token's club)
	user := api.Group("", jwt, mw.RequireRoles(domain.RoleUser, domain.RoleMerchant), tenantMW)
	merchant := mw.RequireRoles(domain.RoleMerchant)
	cashbackOn := mw.RequireModule(domain.ModuleCashback)

	user.GET("/me", MeHandler())
	user.GET("/cashback", cashbackOn, CashbackHistoryHandler())
	user.GET("/fees", FeesHandler(d.Split))
	user.GET("/products", ListProductsHandler(d.Redis))
	user.GET("/products/:id", GetProductHandler())
	user.POST("/products", merchant, CreateProductHandler(d.Redis))
	user.PUT("/products/:id", merchant, UpdateProductHandler(d.Redis))
	user.DELETE("/products/:id", merchant, DeleteProductHandler(d.Redis))
	user.POST("/purchases", CreatePurchaseHandler(d.Publisher, d.Redis, d.Metrics))
	user.GET("/purchases", ListPurchasesHandler(d.Redis))
	user.GET("/purchases/:id", GetPurchaseHandler())
	user.POST("/purchases/:id/cancel", CancelPurchaseHandler(d.Redis, d.Metrics))
	user.GET("/faqs", ListFAQsHandler(false))
	user.GET("/notifications", mw.RequireModule(domain.ModuleNotifications), UserNotificationsHandler())
	user.GET("/stake-contracts", investOn, ListStakeContractsHandler(true))
	user.GET("/exchange-orders", investOn, ListMyExchangeOrdersHandler())
	user.POST("/exchange-orders", investOn, CreateExchangeOrderHandler())

	return r, nil
}

// HealthHandler reports whether the master database and Redis answer
func HealthHandler(master *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		checks := gin.H{"database": "ok"}
		healthy := true
		if sqlDB, err := master.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			checks["database"] = "unreachable"
			healthy = false
		}
		if rdb != nil {
			checks["redis"] = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				checks["redis"] = "unreachable" // Caching degrades, the API keeps working
			}
		}
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": checks})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
	}
}
