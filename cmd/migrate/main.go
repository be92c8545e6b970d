package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"

	"github.com/abdallahabusidu/coach-app-be-sub001/pkg/logger"
)

// Applies schema migrations. Reads DB_URL only, so it runs without the
// server's full configuration.
func main() {
	loadErr := godotenv.Load()
	logger.Init(os.Getenv("APP_ENV"))
	if loadErr != nil {
		logger.Info().Msg("No .env file found")
	}

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DB_URL is required")
	}

	migrationsPath, err := findMigrationsDir()
	if err != nil {
		logger.Fatal().Err(err).Msg("Locate migrations directory")
	}

	m, err := migrate.New("file://"+migrationsPath, dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Open migrator")
	}

	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}

	switch direction {
	case "down":
		err = m.Down()
	default:
		direction = "up"
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal().Err(err).Str("direction", direction).Msg("Migration failed")
	}

	logger.Info().Str("direction", direction).Str("path", migrationsPath).Msg("Migrations applied")
}

// findMigrationsDir walks up from the working directory, then looks next to
// the binary, so the tool works from the repo root, a package dir, or a
// deployed artifact.
func findMigrationsDir() (string, error) {
	var candidates []string

	if cwd, err := os.Getwd(); err == nil {
		dir := cwd
		for i := 0; i < 6; i++ {
			candidates = append(candidates, filepath.Join(dir, "migrations"))
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(exeDir, "migrations"),
			filepath.Join(exeDir, "..", "migrations"),
		)
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && info.IsDir() {
			return filepath.Abs(candidate)
		}
	}
	return "", errors.New("migrations directory not found")
}
