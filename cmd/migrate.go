package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ollielabs/ollie/internal/store"
)

// migrateCmd exposes the session database's schema management, adapted
// from the teacher's postgres-backed migrate command (which carries
// up/down/version/force against a DSN) to a fixed local sqlite file; the
// migration logic itself lives in internal/store.Migrate/Version/Down/
// Force, with the embedded migrations filesystem standing in for the
// teacher's --migrations-dir/OLLY_MIGRATIONS_DIR resolution.
func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Session database migration management",
	}
	cmd.AddCommand(migrateUpCmd())
	cmd.AddCommand(migrateDownCmd())
	cmd.AddCommand(migrateVersionCmd())
	cmd.AddCommand(migrateForceCmd())
	return cmd
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := dbPath()
			if err != nil {
				return err
			}
			st, err := store.Open(path)
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			defer st.Close()
			fmt.Println("migrations applied")
			return nil
		},
	}
}

func migrateDownCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (default: 1 step)",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := dbPath()
			if err != nil {
				return err
			}
			st, err := store.Open(path)
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			defer st.Close()
			if err := st.MigrateDown(steps); err != nil {
				return err
			}
			fmt.Println("migration rolled back")
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func migrateForceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Force the schema to a version without running migrations (recovers a dirty database)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			path, err := dbPath()
			if err != nil {
				return err
			}
			st, err := store.Open(path)
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			defer st.Close()
			if err := st.MigrateForce(version); err != nil {
				return err
			}
			fmt.Printf("forced schema version to %d\n", version)
			return nil
		},
	}
}

func migrateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := dbPath()
			if err != nil {
				return err
			}
			st, err := store.Open(path)
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			defer st.Close()
			v, err := st.SchemaVersion()
			if err != nil {
				return fmt.Errorf("get version: %w", err)
			}
			fmt.Printf("version: %d\n", v)
			return nil
		},
	}
}
