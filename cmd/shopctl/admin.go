package main

import (
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/spf13/cobra"
)

var (
	adminEmail    string
	adminName     string
	adminPassword string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeDB, err := service(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		u, err := svc.CreateAdmin(cmd.Context(), shop.NewUser{FullName: adminName, Email: adminEmail, Password: adminPassword})
		if err != nil {
			return err
		}
		fmt.Printf("admin %s created with id %d\n", u.Email, u.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createAdminCmd)
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "login email")
	createAdminCmd.Flags().StringVar(&adminName, "name", "Admin", "full name")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "initial password")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")
}
