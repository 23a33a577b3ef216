package main

import (
	"context"
	"crypto/ed25519"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jaydenbeard/haven/internal/auth"
	"github.com/jaydenbeard/haven/internal/blobstore"
	"github.com/jaydenbeard/haven/internal/config"
	"github.com/jaydenbeard/haven/internal/httpapi"
	"github.com/jaydenbeard/haven/internal/keystore"
	"github.com/jaydenbeard/haven/internal/middleware"
	"github.com/jaydenbeard/haven/internal/registry"
	"github.com/jaydenbeard/haven/internal/relay"
	"github.com/jaydenbeard/haven/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
)

func main() {
	cfg := config.Load()
	config.InitializeKeyManager(cfg.JWTSecret)
	if err := config.ValidateJWTSecret(cfg.JWTSecret); err != nil {
		log.Fatalf("FATAL: JWT secret validation failed: %v", err)
	}

	log.Printf("starting havenserver: %s", cfg.ServerID)

	serverKey := loadServerIdentity()

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisURL,
		Password:     os.Getenv("REDIS_PASSWORD"),
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 5,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Printf("warning: failed to close redis: %v", err)
		}
	}()

	exportStore, err := store.NewPostgresStore(cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	if err := exportStore.Migrate(); err != nil {
		log.Fatalf("failed to migrate export job schema: %v", err)
	}
	defer func() {
		if err := exportStore.Close(); err != nil {
			log.Printf("warning: failed to close postgres: %v", err)
		}
	}()

	blobs, err := blobstore.New(cfg.MinioURL, cfg.MinioKey, cfg.MinioSecret, cfg.MinioBucket, false)
	if err != nil {
		log.Fatalf("failed to connect to minio: %v", err)
	}

	serviceRegistry, err := registry.NewConsulRegistry(cfg.ConsulURL, cfg.ServerID, cfg.ListenAddr)
	if err != nil {
		log.Fatalf("failed to connect to consul: %v", err)
	}
	if err := serviceRegistry.Register(); err != nil {
		log.Fatalf("failed to register with consul: %v", err)
	}
	defer func() {
		if err := serviceRegistry.Deregister(); err != nil {
			log.Printf("warning: failed to deregister from consul: %v", err)
		}
	}()

	authService, err := auth.NewService(cfg.JWTSecret, redisClient)
	if err != nil {
		log.Fatalf("failed to initialize auth service: %v", err)
	}

	inbox := relay.NewInbox(redisClient)
	hub := relay.NewHub(cfg.ServerID, nil, inbox)
	broadcaster := relay.NewRedisBroadcaster(redisClient, cfg.ServerID, hub)
	hub.SetBroadcaster(broadcaster)
	go hub.Run()
	go broadcaster.Subscribe()

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimits, redisClient)

	router := httpapi.NewRouter(&httpapi.Deps{
		Auth:              authService,
		RateLimit:         rateLimiter,
		Store:             exportStore,
		Blobs:             blobs,
		Hub:               hub,
		Inbox:             inbox,
		ServerKey:         serverKey,
		ServerID:          cfg.ServerID,
		MaxAttachmentSize: cfg.AttachmentLimits.MaxAttachmentSize,
		MaxArchiveSize:    cfg.AttachmentLimits.MaxArchiveSize,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           corsHandler.Handler(router),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("havenserver listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("received signal %v, starting graceful shutdown", sig)

	log.Println("deregistering from service discovery")
	if err := serviceRegistry.Deregister(); err != nil {
		log.Printf("warning: failed to deregister: %v", err)
	}

	log.Println("waiting for load balancer to update")
	time.Sleep(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("warning: http server shutdown error: %v", err)
	}

	log.Println("havenserver stopped gracefully")
}

// loadServerIdentity unseals the server's Ed25519 countersigning key
// from the local keystore, generating and sealing a fresh one on first
// run. Vault-backed deployments set KEYSTORE_BACKEND=vault instead.
func loadServerIdentity() ed25519.PrivateKey {
	passphrase := config.MustGetEnv("HAVEN_SERVER_KEY_PASSPHRASE")

	if os.Getenv("KEYSTORE_BACKEND") == "vault" {
		vaultAddr := config.MustGetEnv("VAULT_ADDR")
		vaultToken := config.MustGetEnv("VAULT_TOKEN")
		mountPath := getEnvDefault("VAULT_MOUNT_PATH", "secret")
		secretPath := getEnvDefault("VAULT_SECRET_PATH", "haven-server-identity")

		vs, err := keystore.NewVaultStore(vaultAddr, vaultToken, mountPath, secretPath)
		if err != nil {
			log.Fatalf("failed to build vault keystore: %v", err)
		}
		priv, err := vs.Load()
		if err != nil {
			log.Fatalf("failed to load server identity key from vault: %v", err)
		}
		return priv
	}

	path := getEnvDefault("HAVEN_SERVER_KEY_PATH", "./haven-server.key")
	ls := keystore.NewLocalStore(path)
	if ls.Exists() {
		priv, err := ls.Unseal(passphrase)
		if err != nil {
			log.Fatalf("failed to unseal server identity key: %v", err)
		}
		return priv
	}

	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		log.Fatalf("failed to generate server identity key: %v", err)
	}
	if err := ls.Seal(priv, passphrase); err != nil {
		log.Fatalf("failed to seal new server identity key: %v", err)
	}
	log.Printf("generated new server identity key at %s", path)
	return priv
}

func getEnvDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func allowedOrigins() []string {
	v := os.Getenv("ALLOWED_ORIGINS")
	if v == "" {
		return []string{"http://localhost:3000", "http://localhost:5173"}
	}
	parts := strings.Split(v, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}
