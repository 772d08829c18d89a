package main

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"

	"resort-booking/internal/config"
	"resort-booking/internal/database/migrations"
	"resort-booking/internal/logger"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func openRunner(log *logger.Logger, seed bool) (*migrations.Runner, *bun.DB, error) {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return nil, nil, err
	}

	sqldb, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := sqldb.Ping(); err != nil {
		sqldb.Close()
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	bunDB := bun.NewDB(sqldb, pgdialect.New())
	return migrations.NewRunner(bunDB, migrations.MigrateOptions{SeedData: seed}, log), bunDB, nil
}

func newRootCmd(log *logger.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply or roll back the resort booking schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var seed bool
	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations (schema only unless --seed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, db, err := openRunner(log, seed)
			if err != nil {
				return err
			}
			defer db.Close()
			return runner.RunMigrations()
		},
	}
	up.Flags().BoolVar(&seed, "seed", false, "also insert the sample catalog")

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, db, err := openRunner(log, false)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := runner.MigrateDown(); err != nil {
				return err
			}
			log.Info("MIGRATE", "All migrations rolled back")
			return nil
		},
	}

	to := &cobra.Command{
		Use:   "to VERSION",
		Short: "Migrate up or down to VERSION",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			runner, db, err := openRunner(log, false)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := runner.MigrateTo(uint(version)); err != nil {
				return err
			}
			log.Info("MIGRATE", fmt.Sprintf("Schema at version %d", version))
			return nil
		},
	}

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, db, err := openRunner(log, false)
			if err != nil {
				return err
			}
			defer db.Close()
			v, dirty, err := runner.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", v, dirty)
			return nil
		},
	}

	root.AddCommand(up, down, to, version)
	return root
}

func main() {
	log := logger.NewWriterLogger(os.Stdout)
	if err := newRootCmd(log).Execute(); err != nil {
		log.Error("MIGRATE", err.Error())
		os.Exit(1)
	}
}
