package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/zp184764679/jzc-systems-sub003/internal/config"
	"github.com/zp184764679/jzc-systems-sub003/internal/middleware"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/entity"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/handler"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/repository"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/service"
	"github.com/zp184764679/jzc-systems-sub003/internal/shared/classifier"
	"github.com/zp184764679/jzc-systems-sub003/internal/shared/inventory"
	"github.com/zp184764679/jzc-systems-sub003/internal/shared/notify"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting procurement service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// AutoMigrate 采购实体
	if err := db.AutoMigrate(
		&entity.Supplier{},
		&entity.PurchaseRequest{},
		&entity.PRItem{},
		&entity.RFQ{},
		&entity.RFQItem{},
		&entity.SupplierQuote{},
		&entity.PurchaseOrder{},
		&entity.PONumberSeq{},
		&entity.Invoice{},
		&entity.InvoicePOLink{},
		&entity.Receipt{},
		&entity.ReceiptItem{},
		&entity.RFQNotificationTask{},
	); err != nil {
		zapLogger.Warn("AutoMigrate procurement tables warning", zap.Error(err))
	}
	// 扫描类查询的复合索引，AutoMigrate的列级tag覆盖不到
	db.Exec("CREATE INDEX IF NOT EXISTS idx_proc_notify_due ON proc_rfq_notification_tasks(status, next_retry_at)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_proc_invoice_expiry ON proc_invoices(status, due_date)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_proc_po_supplier_status ON proc_purchase_orders(supplier_id, status)")
	zapLogger.Info("Database migration completed")

	// 初始化Redis
	rdb := initRedis(cfg.Redis)

	// 初始化依赖
	repos := repository.NewRepositories(db)

	approvalSvc := service.NewApprovalService(repos, cfg.Procurement.AutoApproveThreshold, cfg.Procurement.PaymentTermsDays)
	rfqSvc := service.NewRFQService(repos)
	settlementSvc := service.NewSettlementService(repos, cfg.Procurement.PaymentTermsDays)
	receivingSvc := service.NewReceivingService(repos)
	notificationSvc := service.NewNotificationService(repos, cfg.Procurement.NotifyMaxRetries, cfg.Procurement.NotifyBackoffBase)
	ratingSvc := service.NewRatingService(repos)
	supplierSvc := service.NewSupplierService(repos)

	// 外部协作系统客户端
	if cfg.Classifier.BaseURL != "" {
		rfqSvc.SetClassifier(classifier.NewClient(cfg.Classifier.BaseURL, cfg.Classifier.Timeout))
		zapLogger.Info("Classifier client initialized")
	}
	if cfg.Notify.BaseURL != "" {
		notificationSvc.SetChannel(notify.NewClient(cfg.Notify.BaseURL, cfg.Notify.AppID, cfg.Notify.AppSecret))
		zapLogger.Info("Notify channel client initialized")
	}
	if cfg.Inventory.BaseURL != "" {
		receivingSvc.SetInventoryPusher(inventory.NewClient(cfg.Inventory.BaseURL, cfg.Inventory.APIKey, cfg.Inventory.Timeout))
		zapLogger.Info("Inventory client initialized")
	}
	notificationSvc.SetRedisClient(rdb)
	ratingSvc.SetRedisClient(rdb)

	// 对象存储（发票扫描件）
	if cfg.MinIO.Endpoint != "" {
		minioClient, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			zapLogger.Warn("Failed to init MinIO client", zap.Error(err))
		} else {
			settlementSvc.SetObjectStorage(minioClient, cfg.MinIO.Bucket)
			zapLogger.Info("MinIO client initialized", zap.String("bucket", cfg.MinIO.Bucket))
		}
	}

	handlers := handler.NewHandlers(supplierSvc, approvalSvc, rfqSvc, settlementSvc, receivingSvc, notificationSvc, ratingSvc)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, cfg)

	// 后台任务
	sweepCtx, stopSweeps := context.WithCancel(context.Background())
	go runNotificationSweeper(sweepCtx, notificationSvc, cfg.Procurement.NotifySweepInterval, zapLogger)
	go runInvoiceSweeper(sweepCtx, settlementSvc, cfg.Procurement.InvoiceSweepInterval, zapLogger)
	go runRatingSweeper(sweepCtx, ratingSvc, cfg.Procurement.RatingSweepInterval, zapLogger)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")
	stopSweeps()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
		// 唯一约束冲突翻译为gorm.ErrDuplicatedKey，服务层依赖它识别重复报价/收货
		TranslateError: true,
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// runNotificationSweeper 周期投递询价通知
func runNotificationSweeper(ctx context.Context, svc *service.NotificationService, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := svc.Sweep(ctx); err != nil {
				logger.Warn("Notification sweep failed", zap.Error(err))
			} else if n > 0 {
				logger.Info("Notification sweep", zap.Int("processed", n))
			}
		}
	}
}

// runInvoiceSweeper 周期作废逾期发票
func runInvoiceSweeper(ctx context.Context, svc *service.SettlementService, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := svc.ExpireOverdueInvoices(ctx); err != nil {
				logger.Warn("Invoice expiry sweep failed", zap.Error(err))
			} else if n > 0 {
				logger.Info("Invoice expiry sweep", zap.Int64("expired", n))
			}
		}
	}
}

// runRatingSweeper 周期重算供应商评分
func runRatingSweeper(ctx context.Context, svc *service.RatingService, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := svc.RecomputeAll(ctx); err != nil {
				logger.Warn("Rating sweep failed", zap.Error(err))
			} else if n > 0 {
				logger.Info("Rating sweep", zap.Int("processed", n))
			}
		}
	}
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// API v1
	v1 := r.Group("/api/v1/procurement")
	v1.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		// 供应商
		suppliers := v1.Group("/suppliers")
		{
			suppliers.GET("", h.Supplier.ListSuppliers)
			suppliers.GET("/:id", h.Supplier.GetSupplier)
			suppliers.POST("", h.Supplier.CreateSupplier)
			suppliers.PUT("/:id", h.Supplier.UpdateSupplier)
			suppliers.POST("/:id/recompute-rating", h.Supplier.RecomputeRating)
			suppliers.POST("/recompute-ratings", middleware.RequireRole("procurement_admin"), h.Supplier.RecomputeAllRatings)
		}

		// 采购申请
		prs := v1.Group("/purchase-requests")
		{
			prs.GET("", h.PR.ListPRs)
			prs.GET("/:id", h.PR.GetPR)
			prs.POST("", h.PR.CreatePR)
			prs.POST("/:id/submit", h.PR.SubmitPR)
			prs.POST("/:id/supervisor-approve", middleware.RequireRole("supervisor"), h.PR.SupervisorApprove)
			prs.POST("/:id/prices", middleware.RequireRole("supervisor"), h.PR.FillPrices)
			prs.POST("/:id/admin-approve", middleware.RequireRole("procurement_admin"), h.PR.AdminApprove)
			prs.POST("/:id/super-admin-approve", middleware.RequireRole("super_admin"), h.PR.SuperAdminApprove)
			prs.POST("/:id/reject", middleware.RequireRole("supervisor", "procurement_admin"), h.PR.RejectPR)
			prs.POST("/:id/cancel", h.PR.CancelPR)
		}

		// 询价
		rfqs := v1.Group("/rfqs")
		{
			rfqs.GET("", h.RFQ.ListRFQs)
			rfqs.GET("/:id", h.RFQ.GetRFQ)
			rfqs.POST("", h.RFQ.CreateRFQ)
			rfqs.POST("/:id/classify", h.RFQ.ClassifyRFQ)
			rfqs.POST("/:id/invite", h.RFQ.InviteSupplier)
			rfqs.POST("/:id/close", h.RFQ.CloseRFQ)
			rfqs.GET("/:id/quotes", h.RFQ.ListQuotes)
			rfqs.GET("/:id/quotes/export", h.RFQ.ExportQuoteComparison)
		}
		v1.GET("/rfq-items/:id/quotes", h.RFQ.RankItemQuotes)
		v1.GET("/notifications/failed", h.RFQ.ListFailedNotifications)

		// 报价
		quotes := v1.Group("/quotes")
		{
			quotes.POST("/:id/respond", h.RFQ.SubmitQuote)
			quotes.POST("/:id/withdraw", h.RFQ.WithdrawQuote)
			quotes.POST("/:id/accept", middleware.RequireRole("procurement_admin"), h.PO.AcceptQuote)
		}

		// 采购订单
		pos := v1.Group("/purchase-orders")
		{
			pos.GET("", h.PO.ListPOs)
			pos.GET("/:id", h.PO.GetPO)
			pos.POST("/:id/submit", h.PO.SubmitPO)
			pos.POST("/:id/admin-confirm", middleware.RequireRole("procurement_admin"), h.PO.ConfirmPOAdmin)
			pos.POST("/:id/super-admin-confirm", middleware.RequireRole("super_admin"), h.PO.ConfirmPOSuperAdmin)
			pos.POST("/:id/cancel", h.PO.CancelPO)
			pos.POST("/:id/invoice-file", h.PO.UploadInvoiceFile)
			pos.POST("/:id/receipt", h.Receipt.SubmitReceipt)
			pos.GET("/:id/receipt", h.Receipt.GetReceiptByPO)
			pos.POST("/:id/complete", h.Receipt.CompletePO)
		}

		// 发票
		invoices := v1.Group("/invoices")
		{
			invoices.GET("", h.Invoice.ListInvoices)
			invoices.GET("/:id", h.Invoice.GetInvoice)
			invoices.POST("", h.Invoice.CreateInvoice)
			invoices.POST("/:id/approve", middleware.RequireRole("procurement_admin"), h.Invoice.ApproveInvoice)
			invoices.POST("/:id/reject", middleware.RequireRole("procurement_admin"), h.Invoice.RejectInvoice)
		}

		// 收货
		receipts := v1.Group("/receipts")
		{
			receipts.GET("", h.Receipt.ListReceipts)
			receipts.GET("/pending-pos", h.Receipt.ListPendingReceiptPOs)
			receipts.GET("/:id", h.Receipt.GetReceipt)
			receipts.POST("/:id/retry-sync", h.Receipt.RetryInventorySync)
		}
	}
}
