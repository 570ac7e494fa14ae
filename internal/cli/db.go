package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mpm/stuplan/internal/config"
	"github.com/mpm/stuplan/internal/store"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Conversation database schema commands",
	}

	cmd.AddCommand(newDBVersionCmd())
	cmd.AddCommand(newDBMigrateCmd())
	cmd.AddCommand(newDBRollbackCmd())

	return cmd
}

// openSQLite opens the configured SQLite database without migrating it.
func openSQLite() (*store.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Database.Driver != config.DriverSQLite {
		return nil, fmt.Errorf("schema commands support the %s driver only, configured driver is %s", config.DriverSQLite, cfg.Database.Driver)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return store.Open(cfg.Database.Path)
}

func withSQLite(fn func(db *store.DB) error) error {
	db, err := openSQLite()
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func newDBVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSQLite(func(db *store.DB) error {
				return printSchemaVersion(cmd.Context(), cmd.OutOrStdout(), db)
			})
		},
	}
}

func newDBMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSQLite(func(db *store.DB) error {
				if err := db.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("migrate database: %w", err)
				}
				return printSchemaVersion(cmd.Context(), cmd.OutOrStdout(), db)
			})
		},
	}
}

func newDBRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <version>",
		Short: "Revert migrations newer than version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseSchemaVersion(args[0])
			if err != nil {
				return err
			}
			return withSQLite(func(db *store.DB) error {
				return rollbackSchema(cmd.Context(), cmd.OutOrStdout(), db, version)
			})
		},
	}
}

func parseSchemaVersion(s string) (int, error) {
	version, err := strconv.Atoi(s)
	if err != nil || version < 0 || version > store.LatestVersion() {
		return 0, fmt.Errorf("invalid schema version %q: must be between 0 and %d", s, store.LatestVersion())
	}
	return version, nil
}

func printSchemaVersion(ctx context.Context, w io.Writer, db *store.DB) error {
	current, err := db.Version(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Database: %s\n", db.Path())
	fmt.Fprintf(w, "Schema:   %d of %d\n", current, store.LatestVersion())
	if current < store.LatestVersion() {
		fmt.Fprintln(w, "Pending migrations. Run 'stuplan db migrate'.")
	}
	return nil
}

func rollbackSchema(ctx context.Context, w io.Writer, db *store.DB, version int) error {
	current, err := db.Version(ctx)
	if err != nil {
		return err
	}
	if version >= current {
		fmt.Fprintf(w, "Schema is at version %d, nothing to roll back.\n", current)
		return nil
	}

	if err := db.Rollback(ctx, version); err != nil {
		return fmt.Errorf("rollback database: %w", err)
	}
	fmt.Fprintf(w, "Rolled back %s from version %d to %d.\n", db.Path(), current, version)
	return nil
}
