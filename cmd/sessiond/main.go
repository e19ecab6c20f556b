// sessiond resolves the device session at launch, keeps it fresh, and sweeps it once it expires.
// SIGHUP re-runs resolution (app resume); SIGINT/SIGTERM stop the daemon.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/sessioncore/internal/authority/client"
	"storefront/sessioncore/internal/config"
	"storefront/sessioncore/internal/policy/engine"
	"storefront/sessioncore/internal/security"
	"storefront/sessioncore/internal/session/repository"
	"storefront/sessioncore/internal/session/service"
	"storefront/sessioncore/internal/telemetry"
	otelsetup "storefront/sessioncore/internal/telemetry/otel"
)

const resolveTimeout = 30 * time.Second

func main() {
	once := flag.Bool("once", false, "resolve the session, print the destination, and exit")
	logout := flag.Bool("logout", false, "clear the stored session and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := otelsetup.NewProviders(ctx, otelsetup.Config{
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.OTelServiceName,
		Insecure:    cfg.OTelInsecure,
	})
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		if cfg.OTelEndpoint != "" {
			time.Sleep(telemetry.ShutdownDrainDuration)
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = providers.Shutdown(shutdownCtx)
	}()
	metrics, err := telemetry.NewMetrics(providers.MeterProvider)
	if err != nil {
		log.Fatalf("telemetry: metrics: %v", err)
	}

	sealer, err := security.NewSealerFromHex(cfg.SessionSealKey, cfg.DeviceID)
	if err != nil {
		log.Fatalf("sessiond: seal key: %v", err)
	}
	store, closeStore, err := repository.Open(cfg.SessionStoreDriver, cfg.SessionStorePath, sealer)
	if err != nil {
		log.Fatalf("sessiond: open store: %v", err)
	}
	defer closeStore()

	authority, err := client.New(cfg.AuthorityURL, cfg.AuthorityTimeoutDuration())
	if err != nil {
		log.Fatalf("sessiond: %v", err)
	}
	router, err := engine.NewOPAEvaluatorFromFile(ctx, cfg.RoutingPolicyFile)
	if err != nil {
		log.Fatalf("sessiond: routing policy: %v", err)
	}

	mgr := service.NewManager(store, authority, cfg.SessionTTLDuration(),
		service.WithEmitter(otelsetup.NewEventEmitter(providers.LoggerProvider)),
		service.WithMetrics(metrics),
	)

	if *logout {
		if err := mgr.Clear(ctx); err != nil {
			log.Fatalf("sessiond: logout: %v", err)
		}
		log.Println("sessiond: session cleared")
		return
	}

	resolve(ctx, mgr, router)
	if *once {
		return
	}

	sweeper := service.NewSweeper(mgr, cfg.CleanupIntervalDuration(), nil)
	sweepDone := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(sweepDone)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	log.Printf("sessiond: running (store=%s, cleanup every %s)", cfg.SessionStoreDriver, cfg.CleanupIntervalDuration())
	for sig := range sigs {
		if sig == syscall.SIGHUP {
			resolve(ctx, mgr, router)
			continue
		}
		log.Println("sessiond: shutting down...")
		cancel()
		<-sweepDone
		log.Println("sessiond: stopped")
		return
	}
}

func resolve(ctx context.Context, mgr *service.Manager, router engine.RoutingEvaluator) {
	rctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()
	verdict, err := mgr.Resolve(rctx)
	if err != nil {
		log.Printf("sessiond: resolve: %v", err)
	}
	dest, err := router.Destination(rctx, verdict)
	if err != nil {
		log.Printf("sessiond: routing: %v", err)
		dest = engine.FallbackDestination(verdict)
	}
	log.Printf("sessiond: verdict=%s destination=%s", verdict, dest)
}
