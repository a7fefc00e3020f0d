package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/systmms/apimprobe/internal/classify"
	"github.com/systmms/apimprobe/internal/config"
)

func NewClassifyCommand(cfg *config.Config) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "classify [value...]",
		Short: "Check values for personal data and redaction markers",
		Long: `Report for each value whether it looks like personal data (email, phone
number, 3-2-4 digit identifier) and whether it carries a redaction marker
(asterisk run, [REDACTED], XXXXX).

With no arguments, values are read one per line from stdin.

Examples:
  apimprobe classify test@example.com '***-**-****'
  jq -r '.items[].email' response.json | apimprobe classify --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			values := args
			if len(values) == 0 {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					values = append(values, scanner.Text())
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
			}

			verdicts := make([]classify.Verdict, 0, len(values))
			for _, v := range values {
				verdicts = append(verdicts, classify.Classify(v))
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(verdicts); err != nil {
					return fmt.Errorf("failed to encode JSON: %w", err)
				}
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "VALUE\tPII\tREDACTED\n")
			_, _ = fmt.Fprintf(w, "-----\t---\t--------\n")
			for _, v := range verdicts {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", v.Value, yesNo(v.PII), yesNo(v.Redacted))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
