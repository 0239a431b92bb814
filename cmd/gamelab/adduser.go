package main

import (
	"context"
	"fmt"

	"github.com/gamelab-hdl/gamelab/pkg/api/auth"
	"github.com/gamelab-hdl/gamelab/pkg/api/store"
	"github.com/spf13/cobra"
)

var (
	addUserID       uint
	addUserName     string
	addUserPassword string
)

var addUserCmd = &cobra.Command{
	Use:   "add-user",
	Short: "Provision a single user",
	Long: `Insert one user row with a freshly hashed password. When --password
is omitted a random password is generated and printed.`,
	RunE: runAddUser,
}

func init() {
	addUserCmd.Flags().UintVar(&addUserID, "id", 0,
		"explicit user id (0 = assigned by the database)")
	addUserCmd.Flags().StringVar(&addUserName, "name", "", "user display name")
	addUserCmd.Flags().StringVar(&addUserPassword, "password", "",
		"plaintext password (generated when omitted)")

	_ = addUserCmd.MarkFlagRequired("name")

	rootCmd.AddCommand(addUserCmd)
}

func runAddUser(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()

	st := store.NewStore(log, &cfg.Database)
	if err := st.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	defer func() { _ = st.Stop() }()

	password := addUserPassword
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

	user := &store.User{
		ID:           addUserID,
		Name:         addUserName,
		PasswordHash: hash,
	}

	if err := st.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("adding user %q: %w", addUserName, err)
	}

	log.WithField("id", user.ID).
		WithField("name", user.Name).
		Info("User added")

	if generated {
		fmt.Printf("generated password for %s: %s\n", user.Name, password)
	}

	return nil
}
