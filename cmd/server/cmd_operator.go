package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ashureev/agentdesk/internal/domain"
	"github.com/ashureev/agentdesk/internal/identity"
	"github.com/ashureev/agentdesk/internal/store"
)

func init() {
	operatorAddCmd.Flags().String("name", "", "display name of the operator")
	_ = operatorAddCmd.MarkFlagRequired("name")
	operatorCmd.AddCommand(operatorAddCmd)
	rootCmd.AddCommand(operatorCmd)
}

var operatorCmd = &cobra.Command{
	Use:   "operator",
	Short: "Manage operators",
}

var operatorAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an operator and print its API token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("name")
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("--name cannot be empty")
		}

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		repo, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}
		defer repo.Close()

		token, err := identity.GenerateToken()
		if err != nil {
			return err
		}
		op := &domain.Operator{
			ID:        uuid.NewString(),
			Name:      name,
			TokenHash: identity.HashToken(token),
			CreatedAt: time.Now(),
		}
		if err := repo.CreateOperator(context.Background(), op); err != nil {
			return fmt.Errorf("create operator: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Operator created: %s (%s)\n", op.Name, op.ID)
		fmt.Fprintf(out, "Token (shown once): %s\n", token)
		return nil
	},
}
