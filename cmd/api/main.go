package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"yaoundeconnect.org/internal/audit"
	"yaoundeconnect.org/internal/auth"
	"yaoundeconnect.org/internal/geo"
	"yaoundeconnect.org/internal/httpapi"
	"yaoundeconnect.org/internal/mail"
	"yaoundeconnect.org/internal/notify"
	"yaoundeconnect.org/internal/obs"
	"yaoundeconnect.org/internal/poi"
	"yaoundeconnect.org/internal/roles"
	"yaoundeconnect.org/internal/store/pg"
	"yaoundeconnect.org/internal/stream"
)

var version = "1.0.0"

func main() {
	// Local development convenience; real deployments set the environment.
	_ = godotenv.Load()

	obs.Init()

	secret := os.Getenv("YC_AUTH_SECRET")
	if secret == "" {
		log.Fatal("YC_AUTH_SECRET is required")
	}
	tokens, err := auth.NewTokenService(secret, "yaoundeconnect")
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	resolver := roles.NewResolver(roles.DefaultHierarchy())
	hub := stream.New()

	// The dispatcher is handed to the stores at construction; sinks are
	// registered below, once the stores they need exist.
	dispatcher := notify.NewDispatcher(envInt("YC_NOTIFY_BUFFER", 256))

	// Persistence: Postgres when a DSN is configured, in-memory otherwise
	// (useful for demos and tests).
	var (
		directory poi.Service
		social    poi.SocialStore
		userStore auth.UserStore
		history   audit.History
		probe     httpapi.ReadyProbe
		closeDB   func() error
	)
	if dsn := os.Getenv("YC_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn, resolver, dispatcher)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		directory = store
		social = store
		userStore = store.Users()
		history = store
		probe = httpapi.ReadyProbe{DB: store.DB()}
		closeDB = store.Close
	} else {
		log.Print("YC_PG_DSN not set, running with in-memory stores")
		auditLog := audit.NewMemory()
		mem := poi.NewInMemory(resolver, auditLog, dispatcher)
		directory = mem
		social = poi.NewInMemorySocial(mem)
		userStore = auth.NewMemoryStore(auditLog)
		history = auditLog
	}

	userSvc, err := auth.NewService(userStore, tokens, resolver, dispatcher)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	// Notification sinks: the stream hub is always on, email and Kafka only
	// when configured.
	dispatcher.Register(notify.NewStreamSink(hub))
	if host := os.Getenv("YC_SMTP_HOST"); host != "" {
		mailer, err := mail.New(mail.Config{
			Host:     host,
			Port:     envOr("YC_SMTP_PORT", "587"),
			Username: os.Getenv("YC_SMTP_USERNAME"),
			Password: os.Getenv("YC_SMTP_PASSWORD"),
			From:     os.Getenv("YC_SMTP_FROM"),
			FromName: envOr("YC_SMTP_FROM_NAME", "yaoundeConnect"),
		})
		if err != nil {
			log.Fatalf("mailer: %v", err)
		}
		lookup := func(ctx context.Context, userID string) (string, error) {
			u, err := userSvc.Get(ctx, userID)
			if err != nil {
				return "", err
			}
			return u.Email, nil
		}
		dispatcher.Register(notify.NewEmailSink(mailer, envOr("YC_APP_URL", "http://localhost:8080"), lookup))
	}
	var kafkaSink *notify.KafkaSink
	if broker := os.Getenv("YC_KAFKA_BROKER"); broker != "" {
		kafkaSink = notify.NewKafkaSink(broker, envOr("YC_KAFKA_TOPIC", "yaoundeconnect.events"))
		dispatcher.Register(kafkaSink)
	}
	dispatcher.Start()

	geocoder := geo.NewClient(geo.WithBaseURL(envOr("YC_NOMINATIM_URL", "")))

	api := httpapi.New(directory, userSvc, tokens, version,
		httpapi.WithSocial(social),
		httpapi.WithHistory(history),
		httpapi.WithGeocoder(geocoder),
		httpapi.WithStream(hub),
		httpapi.WithReadyProbe(probe),
	)

	handler := httpapi.RequestID(
		httpapi.Logging(
			httpapi.SecurityHeaders(
				httpapi.CORS(
					httpapi.RateLimit(
						httpapi.MaxBodyBytes(api.Handler(), 1<<20),
						envInt("YC_RATE_BURST", 20), envInt("YC_RATE_PER_SEC", 10))))))

	srv := &http.Server{
		Addr:              ":" + envOr("YC_HTTP_PORT", "8080"),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      0, // SSE and WebSocket connections stay open
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting yaoundeconnect-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	dispatcher.Close()
	if kafkaSink != nil {
		_ = kafkaSink.Close()
	}
	if closeDB != nil {
		_ = closeDB()
	}
	log.Println("Stopped")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
