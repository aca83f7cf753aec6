package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aragora-project/aragora-go/internal/rating"
	"github.com/aragora-project/aragora-go/internal/repo"
	"github.com/aragora-project/aragora-go/internal/similarity"
)

var migrateDataDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the persisted-state schemas",
	Long: `Opens (creating if absent) debates.db, ratings.db, memory.db, and
webhook.db under the data directory, applying each repository's embedded
schema.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.New(os.Stdout, "[aragora-migrate] ", log.LstdFlags)

		if err := godotenv.Load(); err != nil {
			logger.Printf("Warning: error loading .env file: %v", err)
		}
		if err := os.MkdirAll(migrateDataDir, 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}

		archive, err := repo.OpenArchive(filepath.Join(migrateDataDir, "debates.db"))
		if err != nil {
			return fmt.Errorf("debates.db: %w", err)
		}
		defer archive.Close()
		logger.Println("debates.db ready")

		ratingDB, err := rating.Open(filepath.Join(migrateDataDir, "ratings.db"))
		if err != nil {
			return fmt.Errorf("ratings.db: %w", err)
		}
		defer ratingDB.Close()
		logger.Println("ratings.db ready")

		memory, err := repo.OpenMemory(filepath.Join(migrateDataDir, "memory.db"), similarity.NewTokenJaccardBackend())
		if err != nil {
			return fmt.Errorf("memory.db: %w", err)
		}
		defer memory.Close()
		logger.Println("memory.db ready")

		webhooks, err := repo.OpenWebhookStore(filepath.Join(migrateDataDir, "webhook.db"))
		if err != nil {
			return fmt.Errorf("webhook.db: %w", err)
		}
		defer webhooks.Close()
		logger.Println("webhook.db ready")

		fmt.Println("All repository schemas are up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().StringVarP(&migrateDataDir, "data-dir", "d", "data", "Directory holding the persisted repositories")
}
