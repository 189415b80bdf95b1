package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/service"
	"golang.org/x/term"
)

// dev-token signs an access token for local testing. Student tokens also
// become the student's active single-device session.
func main() {
	email := flag.String("email", "", "Student email (student tokens)")
	proctorID := flag.Int("proctor", 0, "Proctor ID (issues a proctor token instead)")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	// Prompt for the secret when the environment still carries the default.
	if os.Getenv("JWT_SECRET") == "" && term.IsTerminal(int(syscall.Stdin)) {
		fmt.Print("Enter JWT secret (empty keeps default): ")
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			fmt.Println("Error reading secret")
			os.Exit(1)
		}
		if len(secret) > 0 {
			cfg.JWTSecret = string(secret)
		}
	}

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	authService := service.NewAuthService(cfg, rdb)

	if *proctorID > 0 {
		token, err := authService.IssueToken(ctx, service.TokenTypeProctor, *proctorID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to issue token")
		}
		fmt.Println(token)
		return
	}

	if *email == "" {
		fmt.Println("Error: -email or -proctor is required")
		flag.PrintDefaults()
		os.Exit(2)
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	student, err := repository.NewStudentRepository(pool).GetByEmail(ctx, *email)
	if err != nil {
		log.Fatal().Err(err).Str("email", *email).Msg("Student not found")
	}

	token, err := authService.IssueToken(ctx, service.TokenTypeStudent, student.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue token")
	}
	fmt.Fprintf(os.Stderr, "Token for %s (id %d):\n", student.Name, student.ID)
	fmt.Println(token)
}
