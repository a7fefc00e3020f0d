package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/apimprobe/internal/config"
	"github.com/systmms/apimprobe/internal/credentials"
	aperrors "github.com/systmms/apimprobe/internal/errors"
)

// Check statuses.
const (
	checkOK    = "ok"
	checkWarn  = "warn"
	checkError = "error"
)

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	var (
		verbose bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, tenant keys and secret service access",
		Long: `Verify that apimprobe is ready to run.

This command checks:
- Configuration file validity and environment overrides
- A starting key for every configured tenant
- Rotation fallback settings
- Secret service instance and session (when rotation fallback is enabled)
- Rotation metadata for every tenant (when the session is ready)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Logger.Info("Checking apimprobe configuration...")
			p, err := newProbe(cfg)
			if err != nil {
				cfg.Logger.Error("Configuration error: %v", err)
				return err
			}
			cfg.Logger.Info("Configuration loaded successfully")

			def := cfg.Definition
			results := []CheckResult{{
				Name:    "gateway",
				Status:  checkOK,
				Message: fmt.Sprintf("%s (%s header)", def.Gateway.BaseURL, def.Gateway.Header),
			}}

			if len(def.Tenants) == 0 {
				results = append(results, CheckResult{
					Name:       "tenants",
					Status:     checkError,
					Message:    "no tenants configured",
					Suggestion: fmt.Sprintf("Add tenants to apimprobe.yaml or set %s", config.EnvTenants),
				})
			}
			for _, tenant := range def.TenantNames() {
				result := CheckResult{Name: "tenant " + tenant, Status: checkOK, Message: "starting key loaded"}
				cred, err := p.store.Get(tenant)
				switch {
				case err != nil:
					result.Status = checkError
					result.Message = err.Error()
				case cred.Material == "":
					result.Status = checkWarn
					result.Message = "no starting key"
					result.Suggestion = fmt.Sprintf("Export %s or store the key in the OS keyring", def.Tenants[tenant].KeyEnv)
				}
				results = append(results, result)
			}

			results = append(results, checkRotation(cmd.Context(), p, timeout)...)

			displayCheckResults(cmd.OutOrStdout(), results, verbose)

			failed := 0
			for _, r := range results {
				if r.Status == checkError {
					failed++
				}
			}
			if failed > 0 {
				return aperrors.UserError{
					Message:    fmt.Sprintf("%d of %d checks failed", failed, len(results)),
					Suggestion: "Run 'apimprobe doctor --verbose' for suggestions",
				}
			}

			cfg.Logger.Info("All checks passed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show suggestions for failing checks")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "Timeout for the secret service session check")

	return cmd
}

// CheckResult is one line of doctor output.
type CheckResult struct {
	Name       string
	Status     string // ok, warn, error
	Message    string
	Suggestion string
}

func checkRotation(ctx context.Context, p *probe, timeout time.Duration) []CheckResult {
	rc := p.cfg.Definition.Rotation
	if !rc.FallbackEnabled {
		return []CheckResult{{
			Name:       "rotation",
			Status:     checkWarn,
			Message:    "fallback disabled; a 401 will not trigger key rotation",
			Suggestion: aperrors.Suggest(aperrors.ErrFallbackDisabled),
		}}
	}

	results := []CheckResult{{Name: "rotation", Status: checkOK, Message: "fallback enabled (" + rc.Backend + ")"}}

	if p.vault.Instance() == "" {
		return append(results, CheckResult{
			Name:       "secret service",
			Status:     checkError,
			Message:    aperrors.ErrUnconfigured.Error(),
			Suggestion: aperrors.Suggest(aperrors.ErrUnconfigured),
		})
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.vault.CheckSession(ctx); err != nil {
		return append(results, CheckResult{
			Name:       "secret service",
			Status:     checkError,
			Message:    fmt.Sprintf("%s: %v", aperrors.ErrUnauthenticated, err),
			Suggestion: aperrors.Suggest(aperrors.ErrUnauthenticated),
		})
	}
	results = append(results, CheckResult{
		Name:    "secret service",
		Status:  checkOK,
		Message: fmt.Sprintf("%s %s session ready", p.vault.Name(), p.vault.Instance()),
	})

	for _, tenant := range p.cfg.Definition.TenantNames() {
		results = append(results, checkRotationMetadata(ctx, p, tenant))
	}
	return results
}

// checkRotationMetadata reports which slot Refresh would try first. Missing
// or malformed metadata is a warning: Refresh then tries primary first.
func checkRotationMetadata(ctx context.Context, p *probe, tenant string) CheckResult {
	name := credentials.RotationMetadataName(tenant)
	result := CheckResult{Name: "metadata " + tenant}

	raw, err := p.vault.GetSecret(ctx, name)
	if err != nil {
		result.Status = checkWarn
		result.Message = fmt.Sprintf("%s unavailable; primary slot tried first", name)
		result.Suggestion = fmt.Sprintf("Store {\"safe_slot\": \"primary\"} as %s in %s", name, p.vault.Instance())
		return result
	}

	md, err := credentials.ParseRotationMetadata(tenant, raw)
	if err != nil {
		result.Status = checkWarn
		result.Message = fmt.Sprintf("%s is malformed; primary slot tried first", name)
		result.Suggestion = err.Error()
		return result
	}

	result.Status = checkOK
	if md.SafeSlot == nil {
		result.Message = "no safe slot advised; primary slot tried first"
	} else {
		result.Message = fmt.Sprintf("%s slot tried first", *md.SafeSlot)
	}
	return result
}

// displayCheckResults shows check results in a formatted table
func displayCheckResults(out io.Writer, results []CheckResult, verbose bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "CHECK\tSTATUS\tMESSAGE\n")
	_, _ = fmt.Fprintf(w, "-----\t------\t-------\n")

	for _, result := range results {
		status := result.Status
		switch result.Status {
		case checkOK:
			status = "✓ " + status
		case checkWarn:
			status = "⚠ " + status
		default:
			status = "✗ " + status
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", result.Name, status, result.Message)
	}

	_ = w.Flush()

	if verbose {
		for _, result := range results {
			if result.Status != checkOK && result.Suggestion != "" {
				_, _ = fmt.Fprintf(out, "\n%s:\n  • %s\n", result.Name, result.Suggestion)
			}
		}
	}
}
