package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "shopctl",
	Short: "Storefront operator tool",
	Long: `shopctl manages the storefront database: it applies the schema, loads
the demo catalog and creates admin accounts. Connection settings come from
the same environment (and .env file) as the API.`,
	SilenceUsage: true,
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func connect(ctx context.Context) (*pgxpool.Pool, error) {
	cfg := config.Load()
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, 2)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return db, nil
}

// service opens the database and returns a shop service without events or cache.
func service(ctx context.Context) (*shop.Service, func(), error) {
	db, err := connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	svc := &shop.Service{Store: postgres.NewStore(db), Hasher: auth.Bcrypt{}}
	return svc, db.Close, nil
}
