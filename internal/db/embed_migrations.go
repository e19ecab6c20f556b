package db

import "embed"

// MigrationFS embeds SQL migrations: migrations/authority for the reference authority's Postgres
// database and migrations/device for the device-local SQLite session store.
//
//go:embed migrations/authority/*.sql migrations/device/*.sql
var MigrationFS embed.FS
