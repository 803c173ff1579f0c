package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/cosmiccode/portal/internal/api/http"
	"github.com/cosmiccode/portal/internal/api/http/handlers"
	"github.com/cosmiccode/portal/internal/auth"
	"github.com/cosmiccode/portal/internal/config"
	"github.com/cosmiccode/portal/internal/feed"
	"github.com/cosmiccode/portal/internal/mail"
	"github.com/cosmiccode/portal/internal/observability"
	"github.com/cosmiccode/portal/internal/persistence"
	"github.com/cosmiccode/portal/internal/realtime"
	"github.com/cosmiccode/portal/internal/repository"
	"github.com/cosmiccode/portal/internal/service"
	"github.com/cosmiccode/portal/internal/site"
	"github.com/cosmiccode/portal/internal/storage"
	"github.com/cosmiccode/portal/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var (
		hub         realtime.Hub
		revocations auth.Revocations
	)
	if redis.Enabled() {
		hub = realtime.NewRedisHub(redis.Client, cfg.Feed.SubscriptionBuffer, logger)
		revocations = auth.NewRedisRevocations(redis.Client)
	} else {
		logger.Warn("redis not configured; realtime and revocations are process-local")
		hub = realtime.NewMemoryHub(cfg.Feed.SubscriptionBuffer)
		revocations = auth.NewMemoryRevocations()
	}

	content, err := site.LoadContent(cfg.Site.ContentPath)
	if err != nil {
		logger.Fatal("failed to load site content", zap.Error(err))
	}

	files, err := storage.NewLocalStore(cfg.Storage.Root, cfg.Storage.PublicBaseURL, cfg.Storage.MaxUploadBytes)
	if err != nil {
		logger.Fatal("failed to open file store", zap.Error(err))
	}

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	projectRepo := repository.NewProjectRepository(pool)
	invoiceRepo := repository.NewInvoiceRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)
	ticketRepo := repository.NewSupportTicketRepository(pool)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:    userRepo,
		Revocations: revocations,
		Logger:      logger,
	})
	contactService := service.NewContactService(mail.NewSMTPSender(cfg.Mail, logger), cfg.Mail, logger)
	messageService := service.NewMessageService(service.MessageDependencies{
		MessageRepo: messageRepo,
		ProjectRepo: projectRepo,
		Hub:         hub,
		Logger:      logger,
		FeedOptions: feed.Options{},
	})
	dashboardService := service.NewDashboardService(service.DashboardDependencies{
		ProjectRepo:  projectRepo,
		InvoiceRepo:  invoiceRepo,
		MessageRepo:  messageRepo,
		DocumentRepo: documentRepo,
		TicketRepo:   ticketRepo,
	})
	supportService := service.NewSupportService(service.SupportDependencies{
		TicketRepo:  ticketRepo,
		ProjectRepo: projectRepo,
		Logger:      logger,
	})
	documentService := service.NewDocumentService(service.DocumentDependencies{
		DocumentRepo: documentRepo,
		ProjectRepo:  projectRepo,
		Store:        files,
		Logger:       logger,
	})
	invoiceService := service.NewInvoiceService(invoiceRepo, logger)

	scheduler, err := worker.NewScheduler(logger, metrics)
	if err != nil {
		logger.Fatal("failed to create scheduler", zap.Error(err))
	}
	if err := scheduler.ScheduleInvoiceSweep(invoiceService, cfg.Jobs.InvoiceSweepInterval); err != nil {
		logger.Fatal("failed to schedule invoice sweep", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName:     cfg.App.Name,
		Views:       html.NewFileSystem(http.FS(site.Views()), ".html"),
		ViewsLayout: "layouts/main",
		BodyLimit:   int(cfg.Storage.MaxUploadBytes) + 1<<20,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	routes := httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Site:           handlers.NewSiteHandler(content, content.Hero.Title),
		Session:        handlers.NewSessionHandler(authService, cfg.Auth, logger),
		Contact:        handlers.NewContactHandler(contactService, metrics),
		Dashboard:      handlers.NewDashboardHandler(dashboardService, supportService, messageService),
		Documents:      handlers.NewDocumentsHandler(documentService),
		FeedSocket:     handlers.NewFeedSocketHandler(messageService, cfg.Feed.PingInterval(), logger, metrics),
		SessionGate:    auth.NewSessionGate(authService, userRepo, cfg.Auth.CookieName, logger),
		ContactLimiter: httptransport.NewContactLimiter(cfg.Contact, metrics),
		Metrics:        metrics,
	}
	if strings.HasPrefix(cfg.Storage.PublicBaseURL, "/") {
		routes.FilesPrefix = cfg.Storage.PublicBaseURL
		routes.FilesRoot = files.Root()
	}
	httptransport.RegisterRoutes(app, routes)

	scheduler.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		if err := scheduler.Shutdown(); err != nil {
			logger.Warn("scheduler shutdown", zap.Error(err))
		}
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}
