package handler

import (
	"settlement-ledger/internal/adapter/http/middleware"
	"settlement-ledger/internal/core/domain"
	"settlement-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	SettlementSvc  ports.SettlementService
	AccountSvc     ports.AccountService
	FeeSvc         ports.FeeService
	AuditSvc       ports.AuditService
	TokenSvc       ports.TokenService
	FeeMode        domain.FeeMode
	RateLimiter    ports.RateLimiter // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	OpenAPISpec    []byte
	Mode           string // gin mode; empty = release
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditDenied(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec(deps.OpenAPISpec))
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if a store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Public routes ---
	feeHandler := NewFeeHandler(deps.FeeSvc, deps.FeeMode)
	v1.POST("/fees/quote", rl("fees_quote"), feeHandler.Quote)

	settlementHandler := NewSettlementHandler(deps.SettlementSvc)
	settlements := v1.Group("/settlements")
	{
		settlements.POST("", rl("settlements"), settlementHandler.Settle)
		settlements.GET("/:ref", rl("settlements"), settlementHandler.Get)
	}

	accountHandler := NewAccountHandler(deps.AccountSvc)
	accounts := v1.Group("/accounts")
	{
		accounts.POST("/verify", rl("accounts_verify"), accountHandler.Verify)
		accounts.GET("/:number/balance", rl("accounts"), accountHandler.GetBalance)
		accounts.GET("/:number/entries", rl("accounts"), accountHandler.ListEntries)
	}

	// --- JWT-authenticated admin routes ---
	adminHandler := NewAdminHandler(deps.AccountSvc, deps.AuditSvc)
	admin := v1.Group("/admin", middleware.JWTAuth(deps.TokenSvc, deps.Logger), rl("admin"))
	{
		admin.GET("/fee-schedule", feeHandler.GetSchedule)
		admin.PUT("/fee-schedule", feeHandler.UpdateSchedule)
		admin.GET("/audit-logs", adminHandler.AuditLogs)
		admin.POST("/accounts", adminHandler.OpenAccount)
		admin.POST("/accounts/:number/deactivate", adminHandler.Deactivate)
		admin.GET("/accounts/:number/consistency", adminHandler.Consistency)
	}

	return r
}
