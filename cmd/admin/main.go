package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"roomchat/backend/internal/config"
	"roomchat/backend/internal/filestore"
	"roomchat/backend/internal/retention"
	"roomchat/backend/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <sweep|stats>")
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	db, err := storage.OpenPostgres(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal(err)
	}
	storageSvc := storage.NewStorageService(db, nil) // No redis needed for admin CLI

	command := os.Args[1]

	switch command {
	case "sweep":
		files, closeFiles, err := filestore.Open(ctx, cfg.NATSURL, cfg.NATSBucket, cfg.UploadDir)
		if err != nil {
			log.Fatalf("failed to open file store: %v", err)
		}
		defer closeFiles()

		sweeper := retention.NewSweeper(storageSvc, files, cfg.SweepInterval, cfg.AttachmentRetention, cfg.SweepBackoff)
		report, err := sweeper.SweepOnce(ctx)
		fmt.Printf("Cutoff %s: %d expired, %d deleted, %d already missing on storage.\n",
			report.Cutoff.Format("2006-01-02 15:04:05"), report.Expired, report.Deleted, report.MissingFiles)
		if err != nil {
			log.Fatalf("Sweep finished with errors: %v", err)
		}
	case "stats":
		if err := printStats(ctx, storageSvc); err != nil {
			log.Fatalf("Error reading stats: %v", err)
		}
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

func printStats(ctx context.Context, s storage.Storage) error {
	st, err := s.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Users:       %d\n", st.Users)
	fmt.Printf("Rooms:       %d\n", st.Rooms)
	fmt.Printf("Messages:    %d\n", st.Messages)
	fmt.Printf("Attachments: %d\n", st.Attachments)
	return nil
}
