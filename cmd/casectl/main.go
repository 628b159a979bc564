// Command casectl is the operator tool for the case service: it applies
// migrations and prints SLA and audit reports straight from the database.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/api/dto"
	"github.com/spec-kit/case-service/internal/app"
	"github.com/spec-kit/case-service/internal/config"
	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/observability"
	"github.com/spec-kit/case-service/internal/persistence"
	"github.com/spec-kit/case-service/internal/repository"
)

// operator is the acting identity for reports; it sees every case.
var operator = &domain.User{ID: "casectl", Name: "casectl", Role: domain.RoleAdmin, Active: true}

type env struct {
	cfg      *config.Config
	logger   *zap.Logger
	pg       *persistence.Postgres
	backend  app.Backend
	services *app.Services
}

type openFunc func(ctx context.Context) (*env, func(), error)

func main() {
	if err := rootCmd(openEnv).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd(open openFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "casectl",
		Short:         "Operate the case lifecycle service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(migrateCmd(open), slaReportCmd(open), trailCmd(open), tokenCmd(open))
	return cmd
}

func migrateCmd(open openFunc) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations to the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			if dir == "" {
				dir = e.cfg.Postgres.MigrationsDir
			}
			applied, err := persistence.RunMigrations(cmd.Context(), e.pg.Pool, dir, e.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s) from %s\n", applied, dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Migrations directory (default POSTGRES_MIGRATIONS_DIR)")
	return cmd
}

func slaReportCmd(open openFunc) *cobra.Command {
	var (
		asJSON  bool
		onlyDue bool
	)
	cmd := &cobra.Command{
		Use:   "sla-report",
		Short: "Classify every open case against its SLA deadline",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			board, err := e.services.Cases.SLADashboard(cmd.Context())
			if err != nil {
				return err
			}
			resp := dto.NewSLADashboardResponse(board)
			if onlyDue {
				rows := resp.Cases[:0]
				for _, row := range resp.Cases {
					if row.SLAStatus != "on_track" {
						rows = append(rows, row)
					}
				}
				resp.Cases = rows
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			return writeSLAReport(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	cmd.Flags().BoolVar(&onlyDue, "due", false, "Only list at-risk and overdue cases")
	return cmd
}

func trailCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "trail <case-id|case-code>",
		Short: "Print the audit trail of a case, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			caseID := args[0]
			if strings.HasPrefix(strings.ToUpper(caseID), "CASE-") {
				c, err := e.backend.Cases.GetByCode(cmd.Context(), strings.ToUpper(caseID))
				if err != nil {
					if errors.Is(err, repository.ErrNotFound) {
						return fmt.Errorf("case %s not found", args[0])
					}
					return err
				}
				caseID = c.ID
			}

			entries, err := e.services.Audit.Trail(cmd.Context(), operator, caseID)
			if err != nil {
				return err
			}
			return writeTrail(cmd.OutOrStdout(), entries)
		},
	}
}

func tokenCmd(open openFunc) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "token <email>",
		Short: "Issue an access token for an active user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("CASECTL_PASSWORD")
			}
			if password == "" {
				return errors.New("password required (--password or CASECTL_PASSWORD)")
			}
			e, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			user, token, exp, err := e.services.Auth.Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			e.logger.Info("token issued", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
			fmt.Fprintf(cmd.OutOrStdout(), "%s\nrole: %s\nexpires: %s\n", token, user.Role, exp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (default CASECTL_PASSWORD)")
	return cmd
}

func writeSLAReport(w io.Writer, resp dto.SLADashboardResponse) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "open cases: %d\ton_track: %d\tat_risk: %d\toverdue: %d\n",
		resp.Total, resp.BySLA["on_track"], resp.BySLA["at_risk"], resp.BySLA["overdue"])
	fmt.Fprintln(tw, "CODE\tPRIORITY\tSTATUS\tDUE\tSLA\tTITLE")
	for _, row := range resp.Cases {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			row.Code, row.Priority, row.Status, row.SLADueAt.Format(time.RFC3339), row.SLAStatus, row.Title)
	}
	return tw.Flush()
}

func writeTrail(w io.Writer, entries []domain.AuditTrailEntry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tWHEN\tACTION\tCHANGE\tBY\tDETAILS")
	for _, e := range entries {
		details, err := json.Marshal(e.Details)
		if err != nil {
			return err
		}
		by := e.PerformerEmail
		if by == "" {
			by = e.PerformedBy
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.Seq, e.CreatedAt.Format(time.RFC3339), e.Action, describeChange(e.AuditEntry), by, details)
	}
	return tw.Flush()
}

func describeChange(e domain.AuditEntry) string {
	switch {
	case e.PreviousStatus != nil && e.NewStatus != nil:
		return fmt.Sprintf("%s -> %s", *e.PreviousStatus, *e.NewStatus)
	case e.NewStatus != nil:
		return string(*e.NewStatus)
	case e.NewAssignee != nil:
		prev := "-"
		if e.PreviousAssignee != nil {
			prev = *e.PreviousAssignee
		}
		return fmt.Sprintf("%s -> %s", prev, *e.NewAssignee)
	default:
		return ""
	}
}

// openEnv connects to Postgres using the service's environment configuration.
// Every subcommand needs the database, so a missing DSN fails here.
func openEnv(ctx context.Context) (*env, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return nil, nil, err
	}
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		pg.Close()
		_ = logger.Sync()
	}
	if !pg.Enabled() {
		closeFn()
		return nil, nil, errors.New("casectl requires POSTGRES_DSN")
	}

	backend := app.PostgresBackend(pg.Pool)
	return &env{
		cfg:      cfg,
		logger:   logger,
		pg:       pg,
		backend:  backend,
		services: app.NewServices(cfg, backend, app.Options{Logger: logger}),
	}, closeFn, nil
}
