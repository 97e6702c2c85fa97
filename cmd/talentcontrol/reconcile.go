package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/talentcontrolhr/talentcontrol/internal/account"
	"github.com/talentcontrolhr/talentcontrol/internal/company"
	"github.com/talentcontrolhr/talentcontrol/internal/config"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Remove memberships that point at deleted accounts",
	RunE:  runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	logger := slog.Default()
	accounts := account.NewService(b.accounts, logger, cfg.Auth.BcryptCost)
	report, err := company.NewEditor(b.companies, accounts, logger, nil).Reconcile(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
