package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/metrocheck/crb-service/internal/auth"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with demo payments for development, and hash the admin password for configuration.`,
	Run: func(cmd *cobra.Command, args []string) {
		if seedPassword != "" {
			hash, err := auth.HashPassword(seedPassword)
			if err != nil {
				log.Fatalf("failed to hash admin password: %v", err)
			}
			fmt.Println("admin_password_hash:", hash)
			return
		}

		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		demoPhone := "254712345678"
		var exists int
		demoExists := false
		if err := db.QueryRow("SELECT 1 FROM payments WHERE phone_number = $1 LIMIT 1", demoPhone).Scan(&exists); err == nil {
			fmt.Println("demo payment already exists; skipping")
			demoExists = true
		}

		if !demoExists {
			var paymentID int64
			err := db.QueryRow(`INSERT INTO payments (phone_number, amount, bundle_name, status, mpesa_receipt_number, created_at, updated_at)
				VALUES ($1, 299, 'Premium Package', 'completed', 'SEED0000001', now(), now()) RETURNING id`, demoPhone).Scan(&paymentID)
			if err != nil {
				log.Fatalf("failed to insert demo payment: %v", err)
			}

			if _, err := db.Exec(`INSERT INTO access_grants (phone_number, package_tier, payment_id, is_active, created_at)
				VALUES ($1, 'premium', $2, true, now()) ON CONFLICT (payment_id) DO NOTHING`, demoPhone, paymentID); err != nil {
				log.Fatalf("failed to insert demo grant: %v", err)
			}

			fmt.Println("Seeded demo payment and grant for:", demoPhone)
		}
	},
}
