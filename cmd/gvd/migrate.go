package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gamevault/gamevault/internal/migrate"
	"github.com/gamevault/gamevault/internal/types"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Provision the cluster schema (destructive: drops existing tables)",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, reg, bk, err := buildStack()
		if err != nil {
			return err
		}
		defer bk.CloseAll()

		m := migrate.New(bk, reg, migrate.MySQL())
		if err := m.Run(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Migrations completed successfully")
		return nil
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <node>",
	Short: "Drop one node's tables (master|slave_a|slave_b)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		node := args[0]
		if !types.IsValidNode(node) {
			return fmt.Errorf("invalid node %q", node)
		}
		_, reg, bk, err := buildStack()
		if err != nil {
			return err
		}
		defer bk.CloseAll()

		m := migrate.New(bk, reg, migrate.MySQL())
		if err := m.Rollback(cmd.Context(), node); err != nil {
			return err
		}
		fmt.Printf("Rollback completed for %s\n", node)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(rollbackCmd)
}
