package main

import (
	"github.com/spf13/cobra"

	"github.com/cosmiccode/portal/internal/persistence"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply embedded database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		return persistence.RunMigrations(e.pg.PoolHandle(), e.logger)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
