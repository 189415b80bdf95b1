package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/seed"
)

var upFile = regexp.MustCompile(`^(\d+)_(.+)\.up\.sql$`)

// migrationFile is one versioned schema step found on disk.
type migrationFile struct {
	Version uint
	Name    string
}

func main() {
	dir := flag.String("path", "migrations", "Path to migration files")
	seedDemo := flag.Bool("seed", false, "After up, seed a demo chain with one entitled student")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat).With().Str("component", "migrate").Logger()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		return
	}

	m, err := migrate.New("file://"+*dir, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("path", *dir).Msg("Migration failed to initialize")
	}
	defer m.Close()

	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Msg("Up failed")
		}
		report(log, m)
		if *seedDemo {
			seedDemoChain(cfg, log)
		}

	case "down":
		// Without a step count every migration is reverted.
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				log.Fatal().Str("steps", args[1]).Msg("down expects a positive step count")
			}
			err = m.Steps(-n)
			if err != nil && !errors.Is(err, migrate.ErrNoChange) {
				log.Fatal().Err(err).Msg("Down failed")
			}
		} else if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Msg("Down failed")
		}
		report(log, m)

	case "version":
		report(log, m)

	case "status":
		files, err := listMigrations(*dir)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read migrations")
		}
		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			log.Fatal().Err(err).Msg("Version failed")
		}
		for _, f := range files {
			mark := "pending"
			if f.Version <= version {
				mark = "applied"
			}
			if dirty && f.Version == version {
				mark = "dirty"
			}
			fmt.Printf("%06d  %-8s %s\n", f.Version, mark, f.Name)
		}

	case "force":
		if len(args) < 2 {
			log.Fatal().Msg("force requires a version argument")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatal().Err(err).Str("version", args[1]).Msg("Invalid version")
		}
		if err := m.Force(v); err != nil {
			log.Fatal().Err(err).Msg("Force failed")
		}
		report(log, m)

	default:
		printUsage()
	}
}

// report logs the schema version the database is at.
func report(log zerolog.Logger, m *migrate.Migrate) {
	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		log.Info().Msg("No migrations applied")
	case err != nil:
		log.Fatal().Err(err).Msg("Version failed")
	default:
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Schema version")
	}
}

// listMigrations returns the up migrations in dir ordered by version.
func listMigrations(dir string) ([]migrationFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var files []migrationFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		match := upFile.FindStringSubmatch(filepath.Base(e.Name()))
		if match == nil {
			continue
		}
		v, err := strconv.ParseUint(match[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse version of %s: %w", e.Name(), err)
		}
		files = append(files, migrationFile{Version: uint(v), Name: match[2]})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

// seedDemoChain creates a three-set chain and one entitled student so a
// freshly migrated database can serve a session right away.
func seedDemoChain(cfg *config.Config, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	res, err := seed.Chain(ctx, pool, seed.ChainSpec{
		Title:           "Demo Tryout",
		Kind:            model.ExamKindChain,
		Sets:            3,
		QuestionsPerSet: 5,
		SetMinutes:      10,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed demo chain")
	}
	ids, err := seed.Students(ctx, pool, res.ExamID, []string{"Demo Student"})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed demo student")
	}
	log.Info().
		Str("exam_id", res.ExamID.String()).
		Int("sets", len(res.SetIDs)).
		Ints("student_ids", ids).
		Msg("Seeded demo chain")
}

func printUsage() {
	fmt.Println("Usage: migrate [flags] <command>")
	fmt.Println("Commands: up, down [steps], status, version, force <version>")
	fmt.Println("Flags:")
	flag.PrintDefaults()
}
