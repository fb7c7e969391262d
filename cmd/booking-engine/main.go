package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pawa-atelier/glowbook/internal/availability"
	"github.com/pawa-atelier/glowbook/internal/booking"
	"github.com/pawa-atelier/glowbook/internal/catalog"
	"github.com/pawa-atelier/glowbook/internal/consumer"
	"github.com/pawa-atelier/glowbook/internal/handlers"
	"github.com/pawa-atelier/glowbook/internal/identity"
	"github.com/pawa-atelier/glowbook/internal/inbox"
	"github.com/pawa-atelier/glowbook/internal/loyalty"
	"github.com/pawa-atelier/glowbook/internal/model"
	"github.com/pawa-atelier/glowbook/internal/outbox"
	"github.com/pawa-atelier/glowbook/internal/storage"
	"github.com/pawa-atelier/glowbook/libs/auth"
	"github.com/pawa-atelier/glowbook/libs/config"
	"github.com/pawa-atelier/glowbook/libs/db"
	"github.com/pawa-atelier/glowbook/libs/httpx"
	"github.com/pawa-atelier/glowbook/libs/kafkax"
	otelx "github.com/pawa-atelier/glowbook/libs/otel"
	"github.com/pawa-atelier/glowbook/libs/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-engine")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
		MinConns: int32(config.Int("DB_MIN_CONNS", 2)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	var rdb *redis.Client
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
		defer rdb.Close()
	} else {
		logger.Warn("REDIS_ADDR not set; slot caching and redis rate limiting disabled")
	}

	apptRepo := storage.NewAppointmentRepository(pool)
	catalogRepo := storage.NewCatalogRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	ledger := loyalty.NewLedger(pool,
		config.Int("LOYALTY_REDEEM_COST", 100),
		config.Int("LOYALTY_AWARD_POINTS", 5),
	)

	var catalogProvider catalog.Provider = catalogRepo
	if addr := config.String("CATALOG_GRPC_ADDR", ""); addr != "" {
		grpcProvider, err := catalog.NewGRPCProvider(addr)
		if err != nil {
			logger.Error("catalog grpc provider init failed; using local catalog", "err", err)
		} else if grpcProvider != nil {
			catalogProvider = grpcProvider
		}
	}

	slotCacheTTL := time.Duration(config.Int("SLOT_CACHE_TTL_SECONDS", 30)) * time.Second
	slotCache := availability.NewCache(rdb, slotCacheTTL, logger)

	orchestrator := booking.NewOrchestrator(
		pool,
		apptRepo,
		catalogProvider,
		ledger,
		outboxRepo,
		slotCache,
		logger,
		time.Duration(config.Int("SLOT_STEP_MINUTES", 30))*time.Minute,
	)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	startConsumer := func(topic string, handler consumer.Handler) {
		if strings.TrimSpace(topic) == "" {
			return
		}
		eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "booking-engine"),
			Topic:   topic,
		}, handler)
		go eventConsumer.Run(ctx)
	}

	startConsumer(config.String("KAFKA_SERVICE_TOPIC", "catalog.service.upserted.v1"), func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			ServiceID       string  `json:"service_id"`
			Name            string  `json:"name"`
			DurationMinutes int     `json:"duration_minutes"`
			Price           float64 `json:"price"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		if payload.ServiceID == "" || payload.DurationMinutes <= 0 {
			logger.Error("missing required event fields", "topic", msg.Topic)
			return nil
		}
		return catalogRepo.UpsertService(ctx, model.Service{
			ID:              payload.ServiceID,
			Name:            payload.Name,
			DurationMinutes: payload.DurationMinutes,
			Price:           payload.Price,
		})
	})

	startConsumer(config.String("KAFKA_STYLIST_TOPIC", "catalog.stylist.upserted.v1"), func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			StylistID string `json:"stylist_id"`
			Name      string `json:"name"`
			WorkStart string `json:"work_start"`
			WorkEnd   string `json:"work_end"`
			DaysOff   []int  `json:"days_off"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		if payload.StylistID == "" {
			logger.Error("missing required event fields", "topic", msg.Topic)
			return nil
		}
		daysOff := make([]time.Weekday, 0, len(payload.DaysOff))
		for _, d := range payload.DaysOff {
			if d >= 0 && d <= 6 {
				daysOff = append(daysOff, time.Weekday(d))
			}
		}
		return catalogRepo.UpsertStylist(ctx, model.StylistProfile{
			ID:           payload.StylistID,
			Name:         payload.Name,
			WorkingHours: model.WorkingHours{Start: payload.WorkStart, End: payload.WorkEnd},
			DaysOff:      daysOff,
		})
	})

	bookingHandler := handlers.NewBookingHandler(orchestrator, logger)

	jwtSecret := config.String("JWT_SECRET", "")
	var jwksClient *auth.JWKSClient
	if jwksURL := config.String("JWKS_URL", ""); jwksURL != "" {
		jwksClient = auth.NewJWKSClient(jwksURL, 10*time.Minute)
	}
	if jwtSecret == "" && jwksClient == nil {
		logger.Warn("neither JWT_SECRET nor JWKS_URL set; all requests will be rejected")
	}

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	if rdb != nil {
		readyChecks = append(readyChecks, runtime.ReadyCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)

	api := http.NewServeMux()
	api.HandleFunc("/api/v1/slots", bookingHandler.Slots)
	api.HandleFunc("/api/v1/book", bookingHandler.Book)
	api.HandleFunc("/api/v1/appointments", bookingHandler.List)
	api.HandleFunc("/api/v1/appointments/rebook", bookingHandler.Rebook)
	api.HandleFunc("/api/v1/appointments/approve", bookingHandler.Approve)
	api.HandleFunc("/api/v1/appointments/complete", bookingHandler.Complete)
	api.HandleFunc("/api/v1/appointments/cancel", bookingHandler.Cancel)
	api.HandleFunc("/api/v1/loyalty/balance", bookingHandler.Balance)
	mux.Handle("/api/v1/", requireAuth(api, jwtSecret, jwksClient, logger))

	var rateLimit httpx.Middleware
	if rdb != nil {
		rateLimit = httpx.NewRedisRateLimiter(rdb,
			config.Int("RATE_LIMIT_PER_MINUTE", 120), time.Minute, service,
		).Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
	} else {
		rateLimit = httpx.NewRateLimiter(config.Int("RATE_LIMIT_PER_MINUTE", 120), time.Minute).Middleware()
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods:   parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS")),
			AllowedHeaders:   parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id")),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           time.Duration(config.Int("CORS_MAX_AGE_SECONDS", 300)) * time.Second,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(time.Duration(config.Int("REQUEST_TIMEOUT_SECONDS", 15))*time.Second),
		rateLimit,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking-engine")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// requireAuth verifies the bearer token and attaches the caller's identity to
// the request context. RS256 tokens are verified against the JWKS when a
// client is configured; everything else falls back to the shared HS256 secret.
func requireAuth(next http.Handler, jwtSecret string, jwksClient *auth.JWKSClient, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		var claims *auth.Claims
		var err error

		if jwksClient != nil {
			header, herr := auth.ParseHeader(token)
			if herr != nil {
				http.Error(w, "invalid token header", http.StatusUnauthorized)
				return
			}
			if header.Alg == "RS256" && header.Kid != "" {
				pub, kerr := jwksClient.Get(header.Kid)
				if kerr != nil {
					http.Error(w, "invalid token key", http.StatusUnauthorized)
					return
				}
				claims, err = auth.VerifyRS256(token, pub)
			} else {
				claims, err = auth.ParseAndVerifyHS256(token, jwtSecret)
			}
		} else {
			claims, err = auth.ParseAndVerifyHS256(token, jwtSecret)
		}
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		role, ok := identity.ParseRole(claims.Role)
		if !ok {
			logger.Warn("token carries unknown role", "role", claims.Role)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		actor := identity.Actor{ID: claims.Sub, Role: role}
		next.ServeHTTP(w, r.WithContext(identity.WithActor(r.Context(), actor)))
	})
}
