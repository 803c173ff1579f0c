package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cosmiccode/portal/internal/auth"
	"github.com/cosmiccode/portal/internal/repository"
	"github.com/cosmiccode/portal/internal/service"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage dashboard accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Provision a client or admin account",
	Long: `Create a dashboard account. There is no self-registration; clients are
provisioned by the studio.

Example:
  portalctl user create --email ana@acme.test --password 's3cretpass' --company "Acme" --contact "Ana"`,
	RunE: runUserCreate,
}

var (
	userEmail    string
	userPassword string
	userRole     string
	userCompany  string
	userContact  string
	userPhone    string
)

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)

	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "login email (required)")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "initial password, at least 8 characters (required)")
	userCreateCmd.Flags().StringVar(&userRole, "role", "client", "client or admin")
	userCreateCmd.Flags().StringVar(&userCompany, "company", "", "company name")
	userCreateCmd.Flags().StringVar(&userContact, "contact", "", "contact person")
	userCreateCmd.Flags().StringVar(&userPhone, "phone", "", "phone number")

	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("password")
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	svc := service.NewAuthService(*e.cfg, service.AuthDependencies{
		UserRepo:    repository.NewUserRepository(e.pg.PoolHandle()),
		Revocations: auth.NewMemoryRevocations(),
		Logger:      e.logger,
	})
	user, err := svc.CreateUser(cmd.Context(), service.CreateUserInput{
		Email:         userEmail,
		Password:      userPassword,
		Role:          userRole,
		CompanyName:   optional(userCompany),
		ContactPerson: optional(userContact),
		Phone:         optional(userPhone),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s user %s\n", user.Role, user.ID)
	return nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
