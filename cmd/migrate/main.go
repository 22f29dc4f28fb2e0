package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pratik-mahalle/wiman/internal/config"
	"github.com/pratik-mahalle/wiman/internal/repository/postgres"
	"github.com/pratik-mahalle/wiman/migrations"
)

func main() {
	status := flag.Bool("status", false, "list pending migrations without applying them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	db, err := postgres.New(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Println("Connected to database successfully")

	if *status {
		var versions []string
		// A missing table means nothing was applied yet
		_ = db.Select(&versions, "SELECT version FROM schema_migrations")
		applied := make(map[string]bool, len(versions))
		for _, v := range versions {
			applied[v] = true
		}

		pending, err := postgres.PendingMigrations(migrations.GetFS(), applied)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list migrations: %v\n", err)
			os.Exit(1)
		}
		if len(pending) == 0 {
			fmt.Println("Database is up to date")
			return
		}
		for _, name := range pending {
			fmt.Printf("Pending: %s\n", name)
		}
		return
	}

	n, err := postgres.RunMigrations(db, migrations.GetFS())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Migrations completed successfully (%d applied)\n", n)
}
