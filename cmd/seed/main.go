package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/seed"
)

var names = []string{
	"Budi Santoso", "Siti Aminah", "Andi Pratama", "Rina Wati", "Joko Susilo",
	"Ayu Lestari", "Dodi Kusuma", "Eka Putri", "Fahri Hamzah", "Gita Savitri",
	"Hendra Gunawan", "Ika Sari", "Jamal Mirdad", "Kiki Fatmala", "Lukman Hakim",
	"Maya Septiana", "Nanda Pratama", "Oki Setiana", "Putri Dian", "Qori Maharani",
}

func main() {
	title := flag.String("title", "Tryout UTBK", "Exam title")
	sets := flag.Int("sets", 7, "Number of sets in the chain")
	questions := flag.Int("questions", 20, "Questions per set")
	minutes := flag.Int("minutes", 30, "Time limit per set in minutes")
	single := flag.Bool("single", false, "Create a standalone exam instead of a chain")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	spec := seed.ChainSpec{
		Title:           *title,
		Kind:            model.ExamKindChain,
		Sets:            *sets,
		QuestionsPerSet: *questions,
		SetMinutes:      *minutes,
	}
	if *single {
		spec.Kind = model.ExamKindSingle
		spec.Sets = 1
	}

	fmt.Printf("=== Seeding %q (%d sets x %d questions) ===\n", spec.Title, spec.Sets, spec.QuestionsPerSet)

	res, err := seed.Chain(ctx, pool, spec)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed exam")
	}
	fmt.Printf("Created exam %s\n", res.ExamID)
	for i, id := range res.SetIDs {
		fmt.Printf("  set %d: %s\n", i+1, id)
	}

	ids, err := seed.Students(ctx, pool, res.ExamID, names)
	if err != nil {
		log.Error().Err(err).Msg("Failed to seed some students")
	}
	fmt.Printf("\nSeed completed! %d/%d students granted access.\n", len(ids), len(names))
}
