// Command migrate applies or rolls back the users schema embedded in internal/db.
//
//	go run ./cmd/migrate                  # up
//	go run ./cmd/migrate -direction down
//	go run ./cmd/migrate -version
package main

import (
	"flag"
	"fmt"
	"os"

	"edu-platform/backend/internal/config"
	"edu-platform/backend/internal/db/migrate"
	"edu-platform/backend/internal/logging"
)

func main() {
	direction := flag.String("direction", migrate.Up, "up or down")
	showVersion := flag.Bool("version", false, "print the applied schema version and exit")
	dsn := flag.String("database", "", "Postgres DSN; defaults to DATABASE_URL")
	flag.Parse()

	logger, err := logging.New("info", "text", os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging:", err)
		os.Exit(1)
	}

	url := *dsn
	if url == "" {
		url = config.LoadDatabaseURL()
	}
	if url == "" {
		logger.Error("no database configured; set DATABASE_URL or pass -database")
		os.Exit(2)
	}

	if *showVersion {
		v, dirty, err := migrate.Version(url)
		if err != nil {
			logger.Error("read schema version", "error", err)
			os.Exit(1)
		}
		fmt.Printf("version=%d dirty=%t\n", v, dirty)
		return
	}

	before, _, _ := migrate.Version(url)
	if err := migrate.Run(url, *direction); err != nil {
		logger.Error("migrate", "direction", *direction, "error", err)
		os.Exit(1)
	}
	after, dirty, err := migrate.Version(url)
	if err != nil {
		logger.Warn("migrated but version unreadable", "error", err)
		return
	}
	logger.Info("migrate done", "direction", *direction, "from", before, "to", after, "dirty", dirty)
}
