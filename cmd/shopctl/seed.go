package main

import (
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/seed"
	"github.com/spf13/cobra"
)

var seedMigrate bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo admin and catalog",
	Long: `Creates admin@ecom.com (password admin123) unless it exists, and the
Phones/Laptops demo catalog when there are no categories yet.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if seedMigrate {
			db, err := connect(ctx)
			if err != nil {
				return err
			}
			err = postgres.Migrate(ctx, db)
			db.Close()
			if err != nil {
				return err
			}
		}
		svc, closeDB, err := service(ctx)
		if err != nil {
			return err
		}
		defer closeDB()

		rep, err := seed.Run(ctx, svc)
		if err != nil {
			return err
		}
		fmt.Printf("admin created: %v, categories: %d, products: %d\n", rep.AdminCreated, rep.Categories, rep.Products)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().BoolVar(&seedMigrate, "migrate", false, "apply the schema first")
}
