package app

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "estatecrm/docs"
	"estatecrm/internal/assignment"
	"estatecrm/internal/cache"
	"estatecrm/internal/config"
	"estatecrm/internal/handlers"
	"estatecrm/internal/middleware"
	"estatecrm/internal/notify"
	"estatecrm/internal/pdf"
	"estatecrm/internal/repositories"
	"estatecrm/internal/routes"
	"estatecrm/internal/services"
)

const pdfFontPath = "assets/fonts/DejaVuSans.ttf"

func Run() {
	cfg := config.LoadConfig()
	loc := cfg.Location()

	// === DB ===
	db := openDB(cfg)
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("[app] close db: %v", err)
		}
	}()

	// === Repos ===
	userRepo := repositories.NewUserRepository(db)
	leadRepo := repositories.NewLeadRepository(db)
	propertyRepo := repositories.NewPropertyRepository(db)
	visitRepo := repositories.NewSiteVisitRepository(db)
	resetRepo := repositories.NewPasswordResetRepository(db)

	// === Notifications ===
	direct := directChannels(cfg)
	var assignmentChannel notify.Dispatcher = direct
	if cfg.Notifications.Transport == "queue" {
		pub, err := notify.NewQueuePublisher(cfg.RabbitMQ.URL, topology(cfg), direct)
		if err != nil {
			log.Printf("[app] rabbitmq unavailable, delivering notifications directly: %v", err)
		} else {
			defer pub.Close()
			assignmentChannel = pub
			log.Printf("[app] assignment notifications go through exchange %q", cfg.RabbitMQ.Exchange)
		}
	}
	assignments := assignment.NewNotifier(userRepo, propertyRepo, assignmentChannel)

	// === Report cache ===
	var reportCache *cache.JSON
	if rdb := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); rdb != nil {
		defer rdb.Close()
		reportCache = cache.NewJSON(cache.NewRedisStore(rdb), "reports", cfg.Redis.TTL)
	}

	// PDF генератор: DejaVu when the font is shipped, Helvetica otherwise
	fontPath := ""
	if _, err := os.Stat(pdfFontPath); err == nil {
		fontPath = pdfFontPath
	}
	pdfGen := pdf.NewDocumentGenerator(fontPath)

	// === Services ===
	authService := services.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	emailService := services.NewEmailService(direct, cfg.Email.FrontendURL)
	userService := services.NewUserService(userRepo, emailService, authService)
	resetService := services.NewPasswordResetService(userRepo, resetRepo, emailService, authService)
	propertyService := services.NewPropertyService(propertyRepo)
	leadService := services.NewLeadService(leadRepo, userRepo, assignments)
	visitService := services.NewSiteVisitService(visitRepo, userRepo, authService, assignments, loc)
	reportService := services.NewReportService(leadRepo, userRepo, propertyRepo, reportCache, loc)
	exchangeService := services.NewExchangeService(leadRepo, userRepo, assignments, pdfGen)

	// === Handlers ===
	pages := handlers.Pagination{DefaultSize: cfg.Pagination.DefaultSize, MaxSize: cfg.Pagination.MaxSize}
	h := routes.Handlers{
		Auth:       handlers.NewAuthHandler(authService, userService, resetService),
		Users:      handlers.NewUserHandler(userService, pages),
		Properties: handlers.NewPropertyHandler(propertyService, pages),
		Leads:      handlers.NewLeadHandler(leadService, pages),
		Exchange:   handlers.NewExchangeHandler(exchangeService, cfg.Import.MaxUploadBytes),
		Reports:    handlers.NewReportHandler(reportService),
		SiteVisits: handlers.NewSiteVisitHandler(visitService, pages),
	}

	// === Gin ===
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Роуты (JWT/capabilities — внутри SetupRoutes)
	routes.SetupRoutes(router, authService, h)

	// === Run ===
	listenAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("[app] listening on %s (tz=%s, notifications=%s)", listenAddr, loc, cfg.Notifications.Transport)
	if err := router.Run(listenAddr); err != nil {
		log.Fatal("[app] server stopped: ", err)
	}
}

func openDB(cfg *config.Config) *sql.DB {
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("[app] open db: ", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatal("[app] ping db: ", err)
	}
	return db
}

func topology(cfg *config.Config) notify.QueueTopology {
	return notify.QueueTopology{Exchange: cfg.RabbitMQ.Exchange, Queue: cfg.RabbitMQ.Queue}
}

// directChannels is email plus Telegram when a bot token is configured.
func directChannels(cfg *config.Config) notify.Fanout {
	var out notify.Fanout
	if cfg.Email.SMTPHost != "" {
		out = append(out, notify.NewEmailDispatcher(
			cfg.Email.SMTPHost,
			cfg.Email.SMTPPort,
			cfg.Email.SMTPUser,
			cfg.Email.SMTPPassword,
			cfg.Email.FromEmail,
		))
	} else {
		log.Printf("[app] smtp_host is empty, email notifications are off")
	}
	if cfg.Telegram.BotToken != "" {
		tg, err := notify.NewTelegramDispatcher(cfg.Telegram.BotToken)
		if err != nil {
			log.Printf("[app] telegram disabled: %v", err)
		} else {
			out = append(out, tg)
		}
	}
	return out
}
