package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/balancebook/internal/config"
	"github.com/jask/balancebook/internal/database"
	"github.com/jask/balancebook/internal/ledger"
	"github.com/jask/balancebook/internal/migration"
	"github.com/jask/balancebook/internal/tui"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		log.Fatalf("mkdir db dir: %v", err)
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	legacy, err := migration.Needed(db)
	if err != nil {
		log.Fatalf("inspect schema: %v", err)
	}

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	l, err := ledger.New(db)
	if err != nil {
		log.Fatalf("open ledger: %v", err)
	}

	if legacy {
		rep, err := migration.Run(ctx, l, cfg.Database.Path, cfg.Backup.Dir)
		if err != nil {
			log.Fatalf("legacy upgrade: %v", err)
		}
		log.Printf("upgraded legacy database: %d methods, %d transactions, %d activities (%d skipped), backup at %s",
			rep.Methods, rep.Transactions, rep.Activities, rep.SkippedActivities, rep.BackupPath)
	}

	p := tea.NewProgram(tui.New(ctx, cfg, l), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}
