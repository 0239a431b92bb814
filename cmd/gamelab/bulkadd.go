package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gamelab-hdl/gamelab/pkg/api/auth"
	"github.com/gamelab-hdl/gamelab/pkg/api/store"
	"github.com/spf13/cobra"
)

var bulkCredentialsFile string

var bulkAddUsersCmd = &cobra.Command{
	Use:   "bulk-add-users <export.json>",
	Short: "Import users from a Bitrix user export",
	Long: `Read a Bitrix-style JSON export ({"result": [{"ID", "NAME",
"LAST_NAME"}, ...]}), create any user that does not exist yet with a
generated password, and write the name/password pairs to a credentials
file for hand-out.`,
	Args: cobra.ExactArgs(1),
	RunE: runBulkAddUsers,
}

func init() {
	bulkAddUsersCmd.Flags().StringVar(&bulkCredentialsFile,
		"credentials-file", "user_credentials.txt",
		"file receiving generated name/password pairs")

	rootCmd.AddCommand(bulkAddUsersCmd)
}

// bitrixExport mirrors the relevant part of a Bitrix user export. IDs
// arrive as strings.
type bitrixExport struct {
	Result []bitrixUser `json:"result"`
}

type bitrixUser struct {
	ID       string `json:"ID"`
	Name     string `json:"NAME"`
	LastName string `json:"LAST_NAME"`
}

func runBulkAddUsers(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading export file: %w", err)
	}

	var export bitrixExport
	if err := json.Unmarshal(data, &export); err != nil {
		return fmt.Errorf("parsing export file: %w", err)
	}

	ctx := context.Background()

	st := store.NewStore(log, &cfg.Database)
	if err := st.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	defer func() { _ = st.Stop() }()

	var (
		credentials []string
		added       int
		skipped     int
	)

	for _, u := range export.Result {
		name := strings.TrimSpace(u.Name + " " + u.LastName)
		if name == "" {
			continue
		}

		if _, err := st.GetUserByName(ctx, name); err == nil {
			log.WithField("name", name).Debug("User already exists")

			skipped++

			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("checking user %q: %w", name, err)
		}

		id, err := strconv.ParseUint(u.ID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q for %q: %w", u.ID, name, err)
		}

		password, err := auth.GeneratePassword(auth.DefaultPasswordLength)
		if err != nil {
			return fmt.Errorf("generating password: %w", err)
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}

		user := &store.User{
			ID:           uint(id),
			Name:         name,
			PasswordHash: hash,
		}

		if err := st.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("adding user %q: %w", name, err)
		}

		credentials = append(credentials, name+": "+password)
		added++
	}

	if len(credentials) > 0 {
		content := strings.Join(credentials, "\n") + "\n"

		// Contains plaintext passwords; keep it private to the operator.
		if err := os.WriteFile(
			bulkCredentialsFile, []byte(content), 0o600,
		); err != nil {
			return fmt.Errorf("writing credentials file: %w", err)
		}
	}

	log.WithField("added", added).
		WithField("skipped", skipped).
		WithField("credentials_file", bulkCredentialsFile).
		Info("Bulk import finished")

	return nil
}
