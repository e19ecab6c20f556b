// migrate runs DB migrations from embedded SQL: the authority's Postgres schema or the device's SQLite session store.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"storefront/sessioncore/internal/config"
	"storefront/sessioncore/internal/db"
	"storefront/sessioncore/internal/db/migrate"
)

func main() {
	target := flag.String("target", "authority", "Schema to migrate: authority (Postgres) or device (SQLite)")
	direction := flag.String("direction", "up", "Migration direction: up or down (authority only)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	switch *target {
	case "authority":
		if cfg.DatabaseURL == "" {
			fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
			os.Exit(1)
		}
		if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				// Already at target version; success.
				return
			}
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
	case "device":
		if cfg.SessionStoreDriver != "sqlite" {
			fmt.Fprintf(os.Stderr, "SESSION_STORE_DRIVER is %q; device migrations apply to the sqlite driver only\n", cfg.SessionStoreDriver)
			os.Exit(1)
		}
		sqlDB, err := db.OpenSQLite(cfg.SessionStorePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "sqlite:", err)
			os.Exit(1)
		}
		defer sqlDB.Close()
		if err := migrate.RunSQLite(sqlDB); err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			sqlDB.Close()
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown target %q (want authority or device)\n", *target)
		os.Exit(1)
	}
}
