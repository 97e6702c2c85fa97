package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/talentcontrolhr/talentcontrol/internal/account"
	"github.com/talentcontrolhr/talentcontrol/internal/company"
	"github.com/talentcontrolhr/talentcontrol/internal/config"
	"github.com/talentcontrolhr/talentcontrol/internal/storage"
)

var (
	seedAdminEmail    string
	seedAdminPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed an admin account and a demo company",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedAdminEmail, "admin-email", "admin@talentcontrol.local", "email of the seeded admin")
	seedCmd.Flags().StringVar(&seedAdminPassword, "admin-password", "", "password of the seeded admin (default: $TALENTCONTROL_ADMIN_PASSWORD)")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cfg.Database.Driver == storage.Memory {
		return errors.New("seeding the memory backend has no lasting effect")
	}

	password := seedAdminPassword
	if password == "" {
		password = os.Getenv("TALENTCONTROL_ADMIN_PASSWORD")
	}
	if password == "" {
		return errors.New("an admin password is required (--admin-password or TALENTCONTROL_ADMIN_PASSWORD)")
	}

	ctx := context.Background()
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	logger := slog.Default()
	accounts := account.NewService(b.accounts, logger, cfg.Auth.BcryptCost)
	editor := company.NewEditor(b.companies, accounts, logger, nil)

	admin, err := accounts.Create(ctx, account.CreateInput{
		RegisterInput: account.RegisterInput{
			Username: "admin",
			Name:     "Admin",
			Surnames: "TalentControl",
			Email:    seedAdminEmail,
			Password: password,
		},
		Role: account.RoleAdmin,
	})
	if errors.Is(err, account.ErrDuplicateIdentity) {
		slog.Info("admin account already exists, skipping seed")
		return nil
	}
	if err != nil {
		return fmt.Errorf("creating admin: %w", err)
	}
	slog.Info("created admin", "id", admin.ID)

	demo, err := editor.CreateCompany(ctx, company.CreateInput{
		Name:        "Acme",
		Description: "Demo company",
		Industry:    "Manufacturing",
	})
	if err != nil {
		return fmt.Errorf("creating demo company: %w", err)
	}
	if err := editor.AddCompanyMember(ctx, demo.ID, admin.ID, []string{company.RoleManager}); err != nil {
		return fmt.Errorf("adding admin to demo company: %w", err)
	}
	name := "Engineering"
	team, err := editor.AddTeam(ctx, demo.ID, company.TeamInput{Name: &name})
	if err != nil {
		return fmt.Errorf("creating demo team: %w", err)
	}
	if err := editor.AddTeamMember(ctx, demo.ID, team.ID, admin.ID); err != nil {
		return fmt.Errorf("adding admin to demo team: %w", err)
	}

	fmt.Printf("\n=== Demo Data Seeded ===\n")
	fmt.Printf("Admin:     %s (%s)\n", admin.Username, admin.ID)
	fmt.Printf("Company:   %s (%s)\n", demo.Name, demo.ID)
	fmt.Printf("Team:      %s (%s)\n", team.Name, team.ID)
	fmt.Printf("\nTry it:\n")
	fmt.Printf("  curl -c cookies.txt -H 'Content-Type: application/json' -d '{\"identifier\":\"admin\",\"password\":\"...\"}' http://%s/api/auth/login\n", cfg.Addr())
	fmt.Printf("  curl -b cookies.txt http://%s/api/companies\n", cfg.Addr())

	return nil
}
