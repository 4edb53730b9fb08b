package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/chzyer/readline"

	"familyhub/internal/config"
	"familyhub/internal/database"
	"familyhub/internal/repository"
	"familyhub/internal/service"
	"familyhub/migrations"
)

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	shellCmd := flag.NewFlagSet("shell", flag.ExitOnError)

	exportOutput := exportCmd.String("output", "", "Output file path (default: familyhub_YYYYMMDD_HHMMSS.json)")

	importInput := importCmd.String("input", "", "Input file path (required)")
	importClear := importCmd.Bool("clear", false, "Clear existing data before import (WARNING: destructive)")

	shellHistory := shellCmd.String("history", filepath.Join(os.TempDir(), "familyctl_history"), "Shell history file")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		handleExport(ctx, service.NewBackupService(db), *exportOutput)

	case "import":
		importCmd.Parse(os.Args[2:])
		if *importInput == "" {
			fmt.Println("Error: -input flag is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		handleImport(ctx, service.NewBackupService(db), db, *importInput, *importClear)

	case "reconcile":
		handleReconcile(ctx, db)

	case "shell":
		shellCmd.Parse(os.Args[2:])
		handleShell(ctx, db, *shellHistory)

	default:
		printUsage()
		os.Exit(1)
	}
}

func handleExport(ctx context.Context, backupService *service.BackupService, outputPath string) {
	if outputPath == "" {
		timestamp := time.Now().Format("20060102_150405")
		outputPath = fmt.Sprintf("familyhub_%s.json", timestamp)
	}

	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create output directory: %v", err)
		}
	}

	log.Printf("Exporting database to: %s", outputPath)
	if err := backupService.Export(ctx, outputPath); err != nil {
		log.Fatalf("Export failed: %v", err)
	}

	fileInfo, err := os.Stat(outputPath)
	if err == nil {
		log.Printf("Export complete! File size: %.2f MB", float64(fileInfo.Size())/1024/1024)
	}
}

func handleImport(ctx context.Context, backupService *service.BackupService, db *database.DB, inputPath string, clearData bool) {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		log.Fatalf("Input file does not exist: %s", inputPath)
	}

	if clearData {
		fmt.Print("WARNING: This will delete all existing data. Type 'yes' to confirm: ")
		var confirmation string
		fmt.Scanln(&confirmation)
		if confirmation != "yes" {
			log.Println("Import cancelled")
			return
		}

		log.Println("Clearing existing data...")
		if err := clearDatabase(ctx, db); err != nil {
			log.Fatalf("Failed to clear database: %v", err)
		}
	}

	log.Printf("Importing database from: %s", inputPath)
	summary, err := backupService.Import(ctx, inputPath)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	log.Printf("Import complete! %d users, %d families, %d content items, %d invitations (%d skipped)",
		summary.Users, summary.Families, summary.Content, summary.Invitations, summary.Skipped)
}

func handleReconcile(ctx context.Context, db *database.DB) {
	report, err := service.NewReconcileService(repository.NewFamilyRepository(db)).Reconcile(ctx)
	if err != nil {
		log.Fatalf("Reconciliation failed: %v", err)
	}
	for _, l := range report.Removed {
		fmt.Printf("removed %s -> %s\n", l.FamilyID, l.RelatedFamilyID)
	}
	for _, l := range report.Failed {
		fmt.Printf("FAILED  %s -> %s\n", l.FamilyID, l.RelatedFamilyID)
	}
	for _, l := range report.Recent {
		log.Printf("Skipped recent link %s -> %s (linked %s)", l.FamilyID, l.RelatedFamilyID, l.LinkedAt.Format(time.RFC3339))
	}
	log.Printf("Checked %d links: %d removed, %d failed, %d recent", report.Links, len(report.Removed), len(report.Failed), len(report.Recent))
	if len(report.Failed) > 0 {
		os.Exit(1)
	}
}

func handleShell(ctx context.Context, db *database.DB, historyFile string) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "familyhub> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		log.Fatalf("Failed to initialize readline: %v", err)
	}
	defer rl.Close()

	sh := newShell(db, rl.Stdout())
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			fmt.Fprintln(rl.Stdout(), "Use 'exit' to leave the shell.")
			continue
		}
		if err != nil {
			return
		}
		if sh.exec(ctx, line) {
			return
		}
		rl.SetPrompt(sh.prompt())
	}
}

// clearDatabase deletes every row, children before parents
func clearDatabase(ctx context.Context, db *database.DB) error {
	tables := []string{
		"invitations",
		"board_members",
		"content_related_families",
		"content_items",
		"family_silenced",
		"family_related",
		"family_members",
		"families",
		"user_related_families",
		"users",
	}

	return db.WithTx(ctx, func(tx *database.Tx) error {
		for _, table := range tables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear table %s: %w", table, err)
			}
			log.Printf("Cleared table: %s", table)
		}
		return nil
	})
}

func printUsage() {
	fmt.Println("FamilyHub administration tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  familyctl export [options]    Export database to JSON file")
	fmt.Println("  familyctl import [options]    Import database from JSON file")
	fmt.Println("  familyctl reconcile           Remove one-sided related-family links")
	fmt.Println("  familyctl shell [options]     Interactive graph and visibility inspector")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -output <file>    Output file path (default: familyhub_YYYYMMDD_HHMMSS.json)")
	fmt.Println()
	fmt.Println("Import Options:")
	fmt.Println("  -input <file>     Input file path (required)")
	fmt.Println("  -clear            Clear existing data before import (WARNING: destructive)")
	fmt.Println()
	fmt.Println("Shell Options:")
	fmt.Println("  -history <file>   History file")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DATABASE_TYPE    Database type: sqlite, postgres, pgx, or mysql (default: sqlite)")
	fmt.Println("  DB_PATH          SQLite database path (default: ./familyhub.db)")
	fmt.Println("  DATABASE_URL     PostgreSQL or MySQL connection URL")
}
