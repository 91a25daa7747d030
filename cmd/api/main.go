package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-retail-ledger/internal/config"
	"go-retail-ledger/internal/fiscal"
	"go-retail-ledger/internal/handler"
	"go-retail-ledger/internal/middleware"
	"go-retail-ledger/internal/model"
	"go-retail-ledger/internal/repository"
	"go-retail-ledger/internal/service"
	"go-retail-ledger/internal/ws"
	"go-retail-ledger/pkg/database"
	"go-retail-ledger/pkg/jwt"
	applog "go-retail-ledger/pkg/logger"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"gorm.io/gorm"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Tracing
	if cfg.Telemetry.OTLPEndpoint != "" {
		tp, err := initTracer(cfg.Telemetry)
		if err != nil {
			log.Printf("Warning: tracing disabled: %v", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(ctx); err != nil {
					log.Printf("Error shutting down tracer provider: %v", err)
				}
			}()
		}
	}

	// 3. Setup Database
	db, err := database.ConnectDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	if err := db.AutoMigrate(
		&model.Tenant{},
		&model.User{},
		&model.Product{},
		&model.StockLocation{},
		&model.Inventory{},
		&model.StockMovement{},
		&model.SaleCounter{},
		&model.Sale{},
		&model.SaleItem{},
		&model.Payment{},
		&model.ProcessedSale{},
		&model.CashSession{},
		&model.CashWithdrawal{},
		&model.AuditLog{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	tokens := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)

	// 4. Seed the first tenant and owner
	bootstrap(db, cfg.Bootstrap, tokens)

	// 5. Print agent hub
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	printHub := ws.NewHub(cfg.Print.QueueSize)
	go printHub.Run(hubCtx)

	fiscalAdapter, err := fiscal.New(cfg.Fiscal)
	if err != nil {
		log.Fatalf("Failed to configure fiscal adapter: %v", err)
	}

	// 6. Dependency Injection (Wiring Layers)
	tenantRepo := repository.NewTenantRepo(db)
	userRepo := repository.NewUserRepo(db)
	productRepo := repository.NewProductRepo(db)
	locationRepo := repository.NewLocationRepo(db)
	inventoryRepo := repository.NewInventoryRepo(db)
	saleRepo := repository.NewSaleRepo(db)
	sessionRepo := repository.NewCashSessionRepo(db)
	auditRepo := repository.NewAuditRepo(db)

	retry := database.DefaultTxOptions()
	retry.MaxRetries = cfg.Retry.MaxRetries

	approvalService := service.NewApprovalService(userRepo)
	ledgerService := service.NewLedgerService(db, inventoryRepo, productRepo, locationRepo)
	catalogService := service.NewCatalogService(productRepo, locationRepo)
	syncService := service.NewSyncService(db, saleRepo, ledgerService, retry, applog.New("[sync] "))
	saleService := service.NewSaleService(db, saleRepo, sessionRepo, productRepo, locationRepo, auditRepo,
		approvalService, ledgerService, fiscalAdapter, printHub, applog.New("[sale] "))
	sessionService := service.NewCashSessionService(db, tenantRepo, sessionRepo, saleRepo, userRepo,
		approvalService, applog.New("[cash] "))
	userService := service.NewUserService(userRepo)

	saleHandler := handler.NewSaleHandler(saleService, syncService)
	sessionHandler := handler.NewCashSessionHandler(sessionService)
	invHandler := handler.NewInventoryHandler(ledgerService, catalogService)
	userHandler := handler.NewUserHandler(userService)

	// 7. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: cfg.Server.AppName,
	})

	// Middleware
	app.Use(logger.New())  // Logging request
	app.Use(recover.New()) // Panic recovery
	app.Use(cors.New())    // CORS

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 8. Routes
	// All routes below require authentication
	api := app.Group("/api/v1", middleware.RequireAuth(tokens, userRepo))
	privileged := middleware.RequireRole(model.PrivilegedRoles...)
	ownerOnly := middleware.RequireRole(model.RoleOwner)

	// Sales
	api.Post("/sales", saleHandler.CreateSale)
	api.Post("/sales/offline-sync", saleHandler.OfflineSync)
	api.Get("/sales/:id", saleHandler.GetSale)
	api.Post("/sales/:id/cancel", saleHandler.CancelSale)

	// Cash sessions
	api.Post("/cash-sessions", sessionHandler.Open)
	api.Get("/cash-sessions", sessionHandler.ListOpen)
	api.Get("/cash-sessions/:id", sessionHandler.Get)
	api.Get("/cash-sessions/:id/report", sessionHandler.Report)
	api.Post("/cash-sessions/:id/withdrawals", sessionHandler.Withdraw)
	api.Post("/cash-sessions/:id/close", sessionHandler.Close)

	// Catalog and inventory
	api.Get("/products", invHandler.GetProducts)
	api.Post("/products", privileged, invHandler.CreateProduct)
	api.Get("/locations", invHandler.GetLocations)
	api.Post("/locations", privileged, invHandler.CreateLocation)
	api.Post("/inventory/credit", invHandler.Credit)
	api.Post("/inventory/debit", invHandler.Debit)
	api.Post("/inventory/adjust", privileged, invHandler.Adjust)
	api.Post("/inventory/transfer", privileged, invHandler.Transfer)
	api.Get("/inventory/movements", invHandler.GetMovements)
	api.Get("/inventory/movements/summary", invHandler.GetMovementSummary)

	// Users
	api.Get("/users", privileged, userHandler.GetUsers)
	api.Get("/users/:id", privileged, userHandler.GetUser)
	api.Post("/users", ownerOnly, userHandler.CreateUser)
	api.Post("/users/:id/pin", ownerOnly, userHandler.SetPIN)

	// Print agent WebSocket
	api.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	api.Get("/ws/print", websocket.New(func(c *websocket.Conn) {
		tenantID, err := uuid.Parse(c.Locals("tenant_id").(string))
		if err != nil {
			c.Close()
			return
		}
		printHub.Attach(tenantID, c)
		defer printHub.Detach(tenantID, c)

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 9. Graceful Shutdown
	go func() {
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Panic(err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

func initTracer(cfg config.TelemetryConfig) (*sdktrace.TracerProvider, error) {
	ctx := context.Background()

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}

// bootstrap creates the configured tenant and owner if they don't exist. With PrintToken
// set it also logs an owner token, so a fresh dev install can be used right away.
func bootstrap(db *gorm.DB, cfg config.BootstrapConfig, tokens *jwt.Manager) {
	if cfg.TenantName == "" || cfg.OwnerEmail == "" || cfg.OwnerPassword == "" {
		return
	}
	ctx := context.Background()
	tenantRepo := repository.NewTenantRepo(db)
	userRepo := repository.NewUserRepo(db)

	// 1. Tenant
	var t model.Tenant
	if err := db.WithContext(ctx).Where("name = ?", cfg.TenantName).First(&t).Error; err != nil {
		t = model.Tenant{Name: cfg.TenantName, IsActive: true, MaxOpenCashSessions: model.DefaultMaxOpenCashSessions}
		if err := tenantRepo.Create(ctx, &t); err != nil {
			log.Printf("Warning: Failed to create tenant: %v", err)
			return
		}
		log.Printf("✅ Tenant created: %s (%s)", t.Name, t.ID)
	}

	// 2. Owner
	owner, err := userRepo.FindByEmail(ctx, t.ID, cfg.OwnerEmail)
	if err != nil {
		owner = &model.User{
			TenantID: t.ID,
			Email:    cfg.OwnerEmail,
			FullName: "Owner",
			Role:     model.RoleOwner,
			IsActive: true,
		}
		if err := owner.SetPassword(cfg.OwnerPassword); err != nil {
			log.Printf("Warning: Failed to hash owner password: %v", err)
			return
		}
		if cfg.OwnerPIN != "" {
			if err := owner.SetPIN(cfg.OwnerPIN); err != nil {
				log.Printf("Warning: Failed to hash owner PIN: %v", err)
				return
			}
		}
		if err := userRepo.Create(ctx, t.ID, owner); err != nil {
			log.Printf("Warning: Failed to create owner: %v", err)
			return
		}
		log.Printf("✅ Owner created: %s", owner.Email)
	}

	// 3. Token
	if !cfg.PrintToken {
		return
	}
	token, err := tokens.GenerateToken(t.ID, owner.ID, owner.FullName, string(owner.Role))
	if err != nil {
		log.Printf("Warning: Failed to issue owner token: %v", err)
		return
	}
	log.Printf("Owner token: %s", token)
}
