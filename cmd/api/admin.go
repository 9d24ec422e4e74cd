package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"label-platform/internal/models"
	"label-platform/internal/store"
)

// newCreateAdminCommand is how the first admin gets in; registration only
// makes customers.
func newCreateAdminCommand(a *app) *cobra.Command {
	var email, password, name string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(password) < 8 {
				return errors.New("password must be at least 8 characters")
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			user, err := store.NewUsers(db).Create(ctx, email, string(hash), name, models.RoleAdmin)
			if errors.Is(err, store.ErrConflict) {
				return fmt.Errorf("%s is already registered", email)
			}
			if err != nil {
				return err
			}
			a.logger.Info("Admin created", zap.Int64("user_id", user.ID), zap.String("email", user.Email))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password (8+ characters)")
	cmd.Flags().StringVar(&name, "name", "Admin", "display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
