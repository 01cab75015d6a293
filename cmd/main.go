/**
 * @description
 * This is the main entry point for the lightning-to-SMS relay. It is
 * responsible for initializing all components of the service, including
 * configuration, database connection, the wallet and SMS clients, the event
 * producer, the reconciler schedule, and the HTTP server. It wires everything
 * together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Redis client for rate limiting.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/wosclient, pkg/twilioclient, pkg/rabbitmq: External service clients.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/internal/api"
	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/internal/app"
	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/internal/config"
	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/internal/store"
	lnrabbit "github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/pkg/rabbitmq"
	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/pkg/twilioclient"
	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/pkg/wosclient"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}

	networkFee, err := decimal.NewFromString(cfg.NetworkFeeBTC)
	if err != nil || networkFee.IsNegative() {
		log.Fatalf("level=fatal component=bootstrap msg=\"invalid network fee\" env=NETWORK_FEE_BTC value=%q", cfg.NetworkFeeBTC)
	}

	log.Printf("level=info component=bootstrap msg=\"starting lnsms relay\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 20
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts behind poolers.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer for lifecycle events. The relay works
	// without it; events degrade to logs.
	var eventProducer lnrabbit.Publisher
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"rabbitmq url missing; lifecycle events disabled\" env=RABBITMQ_URL")
	} else {
		producer, prodErr := lnrabbit.NewEventProducer(cfg.RabbitMQURL)
		if prodErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; lifecycle events disabled\" err=%v", prodErr)
		} else {
			defer producer.Close()
			eventProducer = producer
			log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
		}
	}

	// Initialize the Redis client for rate limiting. The relay works without
	// it; the public endpoints run unthrottled.
	var redisClient *redis.Client
	if cfg.RedisURL == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; rate limiting disabled\" env=REDIS_URL")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; rate limiting disabled\" err=%v", parseErr)
		} else {
			redisClient = redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; rate limiting disabled\" err=%v", pingErr)
				redisClient.Close()
				redisClient = nil
			} else {
				defer redisClient.Close()
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Initialize the external clients.
	walletClient := wosclient.NewClient(cfg.WOSAPIBaseURL, cfg.WOSAPIToken, cfg.WOSAPISecret)
	smsClient := twilioclient.NewClient("", cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioMessagingServiceSID)

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	relayService := app.NewService(repository, walletClient, smsClient, eventProducer, app.Config{
		NetworkFee:           networkFee,
		ClaimBaseURL:         cfg.ClaimBaseURL,
		InvoiceExpirySeconds: cfg.InvoiceExpirySeconds,
		ReconcilePageLimit:   cfg.ReconcilePageLimit,
	})

	// Start the reconciler schedule.
	reconciler, err := app.NewReconciler(relayService, time.Duration(cfg.ReconcileIntervalSeconds)*time.Second)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"reconciler init failed\" err=%v", err)
	}
	reconciler.Start()
	defer reconciler.Stop()
	log.Printf("level=info component=bootstrap msg=\"reconciler started\" interval_seconds=%d", cfg.ReconcileIntervalSeconds)

	var rateLimiter *app.RedisRateLimiter
	if redisClient != nil {
		rateLimiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
	}

	// Set up the HTTP router and the API routes.
	relayHandlers := api.NewRelayHandlers(relayService)
	router := api.RelayRoutes(relayHandlers, api.RouterConfig{
		RateLimiter:     rateLimiter,
		RateLimit:       cfg.ClaimRateLimit,
		RateLimitWindow: time.Duration(cfg.ClaimRateLimitWindowSeconds) * time.Second,
		InternalAPIKey:  cfg.InternalAPIKey,
	})

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
