package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"studytrail/internal/config"
	"studytrail/internal/database"
	"studytrail/internal/logger"
	"studytrail/internal/service"
)

func main() {
	// Define subcommands
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)

	// Export flags
	exportOutput := exportCmd.String("output", "", "Output file path (default: backup_YYYYMMDD_HHMMSS.json)")

	// Import flags
	importInput := importCmd.String("input", "", "Input file path (required)")
	importClear := importCmd.Bool("clear", false, "Clear existing data before import (WARNING: destructive)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(os.Getenv("STUDYTRAIL_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	zapLogger, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx := context.Background()

	// Initialize database
	db, err := database.Open(cfg.Server.Database)
	if err != nil {
		zapLogger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations to ensure schema is up to date
	if _, err := db.RunMigrations(ctx, database.SchemaServer); err != nil {
		zapLogger.Fatal("failed to run migrations", zap.Error(err))
	}

	backupService := service.NewBackupService(db, zapLogger)

	switch os.Args[1] {
	case "export":
		_ = exportCmd.Parse(os.Args[2:])
		handleExport(ctx, zapLogger, backupService, *exportOutput)

	case "import":
		_ = importCmd.Parse(os.Args[2:])
		if *importInput == "" {
			fmt.Println("Error: -input flag is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		handleImport(ctx, zapLogger, backupService, db, *importInput, *importClear)

	default:
		printUsage()
		os.Exit(1)
	}
}

func handleExport(ctx context.Context, logger *zap.Logger, backupService *service.BackupService, outputPath string) {
	if outputPath == "" {
		timestamp := time.Now().Format("20060102_150405")
		outputPath = fmt.Sprintf("backup_%s.json", timestamp)
	}

	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Fatal("failed to create output directory", zap.Error(err))
		}
	}

	f, err := os.Create(outputPath)
	if err != nil {
		logger.Fatal("failed to create output file", zap.Error(err))
	}
	defer f.Close()

	logger.Info("exporting progress", zap.String("path", outputPath))
	backup, err := backupService.Export(ctx, f)
	if err != nil {
		logger.Fatal("export failed", zap.Error(err))
	}

	logger.Info("export complete",
		zap.Int("users", len(backup.Users)),
		zap.Int("records", len(backup.Progress)),
	)
}

func handleImport(ctx context.Context, logger *zap.Logger, backupService *service.BackupService, db *database.DB, inputPath string, clearData bool) {
	f, err := os.Open(inputPath)
	if err != nil {
		logger.Fatal("failed to open input file", zap.String("path", inputPath), zap.Error(err))
	}
	defer f.Close()

	if clearData {
		fmt.Print("WARNING: This will delete all existing users and progress. Type 'yes' to confirm: ")
		confirmation, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if strings.TrimSpace(confirmation) != "yes" {
			logger.Info("import cancelled")
			return
		}

		if err := clearDatabase(ctx, db); err != nil {
			logger.Fatal("failed to clear database", zap.Error(err))
		}
		logger.Info("existing data cleared")
	}

	logger.Info("importing progress", zap.String("path", inputPath))
	report, err := backupService.Import(ctx, f)
	if err != nil {
		logger.Fatal("import failed", zap.Error(err))
	}

	logger.Info("import complete",
		zap.Int("users_created", report.UsersCreated),
		zap.Int("records_created", report.RecordsCreated),
		zap.Int("records_merged", report.RecordsMerged),
		zap.Int("records_skipped", report.RecordsSkipped),
	)
}

func clearDatabase(ctx context.Context, db *database.DB) error {
	// Delete in reverse order of dependencies
	return db.WithinTx(ctx, func(tx *database.Tx) error {
		for _, table := range []string{"progress", "users"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear table %s: %w", table, err)
			}
		}
		return nil
	})
}

func printUsage() {
	fmt.Println("studytrail Progress Backup Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  backup export [options]    Export users and progress to a JSON file")
	fmt.Println("  backup import [options]    Merge users and progress from a JSON file")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -output <file>    Output file path (default: backup_YYYYMMDD_HHMMSS.json)")
	fmt.Println()
	fmt.Println("Import Options:")
	fmt.Println("  -input <file>     Input file path (required)")
	fmt.Println("  -clear            Clear existing data before import (WARNING: destructive)")
	fmt.Println()
	fmt.Println("Imported records are merged into existing ones, so no progress is lost.")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  STUDYTRAIL_CONFIG                  Config file (default: ./config/config.yaml)")
	fmt.Println("  STUDYTRAIL_SERVER_DATABASE_TYPE    sqlite, postgres or mysql (default: sqlite)")
	fmt.Println("  DATABASE_URL                       PostgreSQL or MySQL connection URL")
}
