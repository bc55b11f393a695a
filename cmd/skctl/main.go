// Command skctl is the operator CLI for term lifecycle maintenance.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/sk-governance-api/internal/app"
	"github.com/noah-isme/sk-governance-api/internal/governance"
	"github.com/noah-isme/sk-governance-api/internal/models"
	"github.com/noah-isme/sk-governance-api/internal/service"
	"github.com/noah-isme/sk-governance-api/pkg/config"
	"github.com/noah-isme/sk-governance-api/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

const cliAgent = "skctl"

// backend is the part of the application the CLI drives.
type backend interface {
	List(ctx context.Context, filter models.TermFilter) ([]service.TermView, *models.Pagination, error)
	Validate(ctx context.Context, req service.ValidateTermRequest) (*governance.ValidationResult, error)
	ReconcileOverdue(ctx context.Context, actor models.Actor) (*service.ReconcileResult, error)
	TermStatistics(ctx context.Context, termID string, fresh bool) (*service.TermStatisticsResult, error)
}

type tokenIssuer interface {
	IssueToken(userID string, role models.UserRole, ttl time.Duration) (string, time.Time, error)
}

// deps are resolved lazily so offline commands never touch the database.
type deps struct {
	open   func() (backend, func(), error)
	tokens tokenIssuer
	logger *zap.Logger
}

type containerBackend struct {
	*service.TermService
	*service.StatisticsService
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	d := deps{
		tokens: service.NewAuthService(logr, app.AuthConfig(cfg)),
		logger: logr,
		open: func() (backend, func(), error) {
			container, err := app.New(cfg, logr)
			if err != nil {
				return nil, nil, err
			}
			return containerBackend{container.Terms, container.Statistics}, container.Close, nil
		},
	}

	cmd := newRootCommand(d)
	cmd.SetOut(out)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func newRootCommand(d deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "skctl",
		Short:         "SK term lifecycle and capacity operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}
	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")
	root.PersistentFlags().StringP("output", "o", "json", "output format (json|yaml)")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		format, _ := cmd.Flags().GetString("output")
		if format != "json" && format != "yaml" {
			return fmt.Errorf("unsupported output format %q", format)
		}
		if d.logger != nil {
			d.logger.Debug("command invocation", zap.String("command", cmd.Name()))
		}
		return nil
	}

	root.AddCommand(
		newTermsCommand(d),
		newValidateCommand(d),
		newReconcileCommand(d),
		newStatsCommand(d),
		newTokenCommand(d),
	)
	return root
}

func withBackend(d deps, fn func(b backend) error) error {
	if d.open == nil {
		return errors.New("backend is not configured")
	}
	b, closeFn, err := d.open()
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	if closeFn != nil {
		defer closeFn()
	}
	return fn(b)
}

func newTermsCommand(d deps) *cobra.Command {
	var (
		status string
		search string
		page   int
		size   int
	)
	cmd := &cobra.Command{
		Use:   "terms",
		Short: "List terms with their derived status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(d, func(b backend) error {
				views, pagination, err := b.List(cmd.Context(), models.TermFilter{
					Status:   models.TermStatus(status),
					Search:   search,
					Page:     page,
					PageSize: size,
				})
				if err != nil {
					return err
				}
				return render(cmd, map[string]interface{}{"terms": views, "pagination": pagination})
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by derived status (upcoming|active|completed)")
	cmd.Flags().StringVar(&search, "search", "", "filter by term name")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&size, "limit", 20, "page size")
	return cmd
}

func newValidateCommand(d deps) *cobra.Command {
	var req service.ValidateTermRequest
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a term candidate against the lifecycle rules without saving it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(d, func(b backend) error {
				result, err := b.Validate(cmd.Context(), req)
				if err != nil {
					return err
				}
				if err := render(cmd, result); err != nil {
					return err
				}
				if !result.Valid {
					return errors.New("candidate term is invalid")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "term name")
	cmd.Flags().StringVar(&req.StartDate, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&req.EndDate, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&req.ExcludeTermID, "exclude", "", "term id to ignore when checking overlaps")
	return cmd
}

func newReconcileCommand(d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Complete every active term whose end date has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(d, func(b backend) error {
				result, err := b.ReconcileOverdue(cmd.Context(), models.Actor{UserAgent: cliAgent})
				if err != nil {
					return err
				}
				return render(cmd, result)
			})
		},
	}
}

func newStatsCommand(d deps) *cobra.Command {
	var fresh bool
	cmd := &cobra.Command{
		Use:   "stats <term-id>",
		Short: "Show seat occupancy statistics for a term",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(d, func(b backend) error {
				result, err := b.TermStatistics(cmd.Context(), args[0], fresh)
				if err != nil {
					return err
				}
				return render(cmd, result)
			})
		},
	}
	cmd.Flags().BoolVar(&fresh, "fresh", false, "bypass the snapshot and cache")
	return cmd
}

func newTokenCommand(d deps) *cobra.Command {
	var (
		user string
		role string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for an operator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if d.tokens == nil {
				return errors.New("token issuer is not configured")
			}
			if strings.TrimSpace(user) == "" {
				return errors.New("--user is required")
			}
			r := models.UserRole(strings.ToUpper(role))
			if !r.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			token, expires, err := d.tokens.IssueToken(user, r, ttl)
			if err != nil {
				return err
			}
			return render(cmd, map[string]interface{}{
				"access_token": token,
				"expires_at":   expires.UTC().Format(time.RFC3339),
				"role":         r,
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "subject user id")
	cmd.Flags().StringVar(&role, "role", string(models.RoleAdmin), "role claim (SUPERADMIN|ADMIN|STAFF)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, defaults to the configured expiry")
	return cmd
}

// render writes v in the requested format. YAML goes through JSON first so both formats
// share the API field names.
func render(cmd *cobra.Command, v interface{}) error {
	format, _ := cmd.Flags().GetString("output")
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if format != "yaml" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
		return err
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}
