// authority is the reference refresh-token authority the device daemon talks to in development and tests.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/sessioncore/internal/authority/handler"
	"storefront/sessioncore/internal/authority/repository"
	"storefront/sessioncore/internal/authority/service"
	"storefront/sessioncore/internal/config"
	"storefront/sessioncore/internal/db"
	"storefront/sessioncore/internal/security"
	otelsetup "storefront/sessioncore/internal/telemetry/otel"
)

const serviceName = "storefront-authority"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := otelsetup.NewProviders(ctx, otelsetup.Config{
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: serviceName,
		Insecure:    cfg.OTelInsecure,
	})
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	sqlDB, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer sqlDB.Close()

	signer, pub, err := security.ParseKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("authority: JWT keys: %v", err)
	}
	tokens := security.NewTokenProvider(signer, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.RefreshTTL())
	accounts := service.NewAccountService(repository.NewPostgresRepository(sqlDB), tokens)

	api := handler.NewServer(accounts, sqlDB).WithTracer(providers.TracerProvider.Tracer(serviceName))
	srv := &http.Server{
		Addr:              cfg.AuthorityAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("authority listening on %s", cfg.AuthorityAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down authority...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("authority: shutdown: %v", err)
	}
	log.Println("authority stopped")
}
