package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/notewriter/internal/config"
	"github.com/ehr/notewriter/internal/domain/catalog"
	"github.com/ehr/notewriter/internal/domain/note"
	"github.com/ehr/notewriter/internal/domain/selection"
	"github.com/ehr/notewriter/internal/platform/db"
	"github.com/ehr/notewriter/internal/platform/templatesrc"
)

func renderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Compose a note from a selections file",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("templates")
			file, _ := cmd.Flags().GetString("selections")
			section, _ := cmd.Flags().GetString("section")

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read selections: %w", err)
			}
			space, err := selection.Decode(data)
			if err != nil {
				return err
			}

			var src templatesrc.Source
			if dir != "" {
				src = templatesrc.DirSource{Dir: dir}
			}
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)
			cat, err := templatesrc.NewLoader(src, 0, logger).Catalog(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), cat, space, section)
		},
	}
	cmd.Flags().String("templates", "", "Directory of template documents (defaults to the built-in set)")
	cmd.Flags().String("selections", "", "JSON selection space to render")
	cmd.Flags().String("section", "", "Render a single section, as MODE:Title")
	_ = cmd.MarkFlagRequired("selections")
	return cmd
}

func render(w io.Writer, cat *catalog.Catalog, space *selection.Space, section string) error {
	a := note.NewAssembler(cat, space)
	if section == "" {
		_, err := fmt.Fprintln(w, a.Note())
		return err
	}
	mode, title, err := parseSection(section)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, a.SectionText(mode, title))
	return err
}

func parseSection(s string) (catalog.Mode, string, error) {
	raw, title, ok := strings.Cut(s, ":")
	if !ok || strings.TrimSpace(title) == "" {
		return "", "", fmt.Errorf("section must look like MODE:Title, got %q", s)
	}
	mode, ok := catalog.ParseMode(raw)
	if !ok {
		return "", "", fmt.Errorf("unknown mode %q", raw)
	}
	return mode, strings.TrimSpace(title), nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations (postgres store only)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printStatus(cmd.OutOrStdout(), statuses)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(ctx context.Context, fn func(context.Context, *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrations")
	}
	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, db.NewMigrator(pool, nil))
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Version, s.Name, status, appliedAt)
	}
	tw.Flush()
}

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect stored note sessions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")
			return withStore(cmd.Context(), func(ctx context.Context, st *store) error {
				items, total, err := st.repo.List(ctx, limit, offset)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tLABEL\tVERSION\tUPDATED")
				for _, s := range items {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.ID, s.Label, s.VersionID, s.UpdatedAt.Format("2006-01-02 15:04:05"))
				}
				tw.Flush()
				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d session(s)\n", len(items), total)
				return nil
			})
		},
	}
	list.Flags().Int("limit", 20, "Maximum sessions to show")
	list.Flags().Int("offset", 0, "Sessions to skip")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, st *store) error {
				n, err := st.repo.DeleteAll(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d session(s).\n", n)
				return nil
			})
		},
	})

	return cmd
}

func withStore(ctx context.Context, fn func(context.Context, *store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.StoreDriver == config.DriverMemory {
		return fmt.Errorf("STORE_DRIVER is %q; nothing is stored between runs", cfg.StoreDriver)
	}
	logger := newLogger(cfg, os.Stderr)
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()
	return fn(ctx, st)
}
