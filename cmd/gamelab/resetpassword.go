package main

import (
	"context"
	"fmt"

	"github.com/gamelab-hdl/gamelab/pkg/api/auth"
	"github.com/gamelab-hdl/gamelab/pkg/api/store"
	"github.com/spf13/cobra"
)

var resetPasswordCmd = &cobra.Command{
	Use:   "reset-password <name> [new-password]",
	Short: "Reset a user's password",
	Long: `Set a new password for the named user. When no password is given a
random one is generated and printed; hand it over privately and ask the
user to change it.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runResetPassword,
}

func init() {
	rootCmd.AddCommand(resetPasswordCmd)
}

func runResetPassword(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	name := args[0]

	password := ""
	if len(args) > 1 {
		password = args[1]
	}

	generated := false

	if password == "" {
		password, err = auth.GeneratePassword(auth.DefaultPasswordLength)
		if err != nil {
			return fmt.Errorf("generating password: %w", err)
		}

		generated = true
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	ctx := context.Background()

	st := store.NewStore(log, &cfg.Database)
	if err := st.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	defer func() { _ = st.Stop() }()

	if err := st.UpdateUserPassword(ctx, name, hash); err != nil {
		return err
	}

	log.WithField("name", name).Info("Password updated")

	if generated {
		fmt.Printf("new password for %s: %s\n", name, password)
	}

	return nil
}
