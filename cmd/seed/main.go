// Command seed populates the database with demo data.
package main

import (
	"flag"
	"log"

	"keepsake/internal/config"
	"keepsake/internal/database"
	"keepsake/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 10, "Number of generated users to create")
	memories := flag.Int("memories", 20, "Memories per user")
	scrapbooks := flag.Int("scrapbooks", 3, "Scrapbooks per user")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := seed.Seed(db, seed.Options{
		NumUsers:          *numUsers,
		MemoriesPerUser:   *memories,
		ScrapbooksPerUser: *scrapbooks,
		ShouldClean:       *shouldClean,
	}); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
}
