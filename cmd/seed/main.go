// seed provisions a development account on the reference authority, issues its first refresh token,
// and writes the matching device session. It stands in for the credential exchange, which lives elsewhere.
// Re-running it re-provisions the account and starts a new refresh rotation.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"storefront/sessioncore/internal/authority/repository"
	"storefront/sessioncore/internal/authority/service"
	"storefront/sessioncore/internal/config"
	"storefront/sessioncore/internal/db"
	"storefront/sessioncore/internal/security"
	sessiondomain "storefront/sessioncore/internal/session/domain"
	sessionrepo "storefront/sessioncore/internal/session/repository"
)

const devUserID = "dev-user-001"

func main() {
	userID := flag.String("user", devUserID, "account user id")
	role := flag.String("role", string(sessiondomain.RoleMerchant), "merchant, store_owner, or admin")
	approved := flag.Bool("approved", true, "whether the account is approved")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	r := sessiondomain.Role(*role)
	if !r.Valid() {
		log.Fatalf("seed: unknown role %q", *role)
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	signer, pub, err := security.ParseKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("seed: JWT keys: %v", err)
	}
	tokens := security.NewTokenProvider(signer, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.RefreshTTL())
	accounts := service.NewAccountService(repository.NewPostgresRepository(conn), tokens)

	if _, err := accounts.Provision(ctx, *userID, r, *approved); err != nil {
		log.Fatalf("seed: provision account: %v", err)
	}
	refreshToken, tokenExpiry, err := accounts.Issue(ctx, *userID, cfg.DeviceID)
	if err != nil {
		log.Fatalf("seed: issue refresh token: %v", err)
	}

	sealer, err := security.NewSealerFromHex(cfg.SessionSealKey, cfg.DeviceID)
	if err != nil {
		log.Fatalf("seed: seal key: %v", err)
	}
	store, closeStore, err := sessionrepo.Open(cfg.SessionStoreDriver, cfg.SessionStorePath, sealer)
	if err != nil {
		log.Fatalf("seed: open store: %v", err)
	}
	defer closeStore()

	sess, err := sessiondomain.New(*userID, r, *approved, refreshToken, time.Now(), cfg.SessionTTLDuration())
	if err != nil {
		log.Fatalf("seed: build session: %v", err)
	}
	if err := store.Save(ctx, sess); err != nil {
		log.Fatalf("seed: save session: %v", err)
	}
	log.Printf("seed: account %s (%s, approved=%t) provisioned; session expires %s, refresh token expires %s",
		*userID, r, *approved, sess.ExpiresAt.Format(time.RFC3339), tokenExpiry.Format(time.RFC3339))
}
