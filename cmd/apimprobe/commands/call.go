package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/apimprobe/internal/config"
	aperrors "github.com/systmms/apimprobe/internal/errors"
	"github.com/systmms/apimprobe/internal/gateway"
)

// Values accepted by --content-type.
const (
	contentJSON      = "json"
	contentBinary    = "binary"
	contentPDF       = "pdf"
	contentMultipart = "multipart"
)

func NewCallCommand(cfg *config.Config) *cobra.Command {
	var (
		method       string
		data         string
		file         string
		contentType  string
		field        string
		legacyHeader bool
		follow       bool
		maxWait      time.Duration
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "call <tenant> <path>",
		Short: "Call a tenant API through the gateway",
		Long: `Issue one authenticated call to {gateway}/{tenant}{path}.

Transport failures and 429 responses are retried. A 401 triggers one
rotation to the key in the secret service (when rotation fallback is
enabled) and one more attempt. The response body is printed to stdout.

Examples:
  # Simple GET
  apimprobe call wlrs /health

  # JSON POST
  apimprobe call wlrs /chat/completions --data '{"messages":[]}'

  # Upload a PDF and wait for the analysis operation
  apimprobe call docs /analyze --file invoice.pdf --content-type pdf --poll`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, path := args[0], args[1]

			payload, err := buildPayload(data, file, contentType, field)
			if err != nil {
				return err
			}
			if method == "" {
				method = http.MethodGet
				if data != "" || file != "" {
					method = http.MethodPost
				}
			}

			p, err := newProbe(cfg)
			if err != nil {
				return err
			}
			if err := p.checkTenant(tenant); err != nil {
				return err
			}

			req := gateway.Request{
				Method:  strings.ToUpper(method),
				Tenant:  tenant,
				Path:    path,
				Payload: payload,
			}
			if legacyHeader {
				req.Scheme = gateway.SchemeSubscriptionKey
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			env, err := p.coordinator.Do(ctx, req)
			if err != nil {
				return err
			}
			cfg.Logger.Info("%s %s -> %s", req.Method, p.executor.URL(tenant, path), env.Status())

			var pollErr error
			if follow && env.StatusCode == http.StatusAccepted {
				location := operationLocation(env)
				if location == "" {
					cfg.Logger.Warn("202 response carried no Operation-Location or Location header")
				} else {
					if maxWait <= 0 {
						maxWait = cfg.Definition.Poll.MaxWait
					}
					var op gateway.Operation
					op, pollErr = p.poller.Poll(ctx, tenant, location, maxWait)
					if op.Body != "" {
						env = gateway.Envelope{StatusCode: http.StatusOK, Body: op.Body}
					}
					cfg.Logger.Info("Operation %s: %s", location, op.Status)
				}
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				if err := writeEnvelopeJSON(out, env); err != nil {
					return err
				}
			} else if env.Body != "" {
				_, _ = fmt.Fprintln(out, env.Body)
			}

			if pollErr != nil {
				return pollErr
			}

			if !env.Success() {
				return aperrors.UserError{
					Message:    fmt.Sprintf("Gateway returned %s for %s %s", env.Status(), req.Method, path),
					Suggestion: statusSuggestion(env),
					Err:        env.Err,
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&method, "method", "X", "", "HTTP method (default GET, or POST with --data/--file)")
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON body, @file or @- for stdin")
	cmd.Flags().StringVar(&file, "file", "", "File to upload as the request body")
	cmd.Flags().StringVar(&contentType, "content-type", contentJSON, "Body kind: json, binary, pdf or multipart")
	cmd.Flags().StringVar(&field, "field", "file", "Form field name for multipart uploads")
	cmd.Flags().BoolVar(&legacyHeader, "legacy-header", false, "Send the key as Ocp-Apim-Subscription-Key")
	cmd.Flags().BoolVar(&follow, "poll", false, "Follow the operation location of a 202 response")
	cmd.Flags().DurationVar(&maxWait, "max-wait", 0, "Maximum time to poll (default from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print status, headers and body as JSON")

	return cmd
}

func buildPayload(data, file, contentType, field string) (gateway.Payload, error) {
	if data != "" && file != "" {
		return gateway.Payload{}, aperrors.UserError{
			Message:    "Cannot use --data and --file together",
			Suggestion: "Use --data for JSON bodies and --file for uploads",
		}
	}

	switch contentType {
	case contentJSON:
		if file != "" {
			data = "@" + file
		}
		if data == "" {
			return gateway.Payload{}, nil
		}
		body, err := readData(data)
		if err != nil {
			return gateway.Payload{}, err
		}
		if !json.Valid(body) {
			return gateway.Payload{}, aperrors.UserError{
				Message:    "Request body is not valid JSON",
				Suggestion: "Check quoting of --data or use --content-type binary for non-JSON bodies",
			}
		}
		return gateway.JSONPayload(json.RawMessage(body)), nil

	case contentBinary, contentPDF, contentMultipart:
		if file == "" {
			return gateway.Payload{}, aperrors.UserError{
				Message:    fmt.Sprintf("--content-type %s requires --file", contentType),
				Suggestion: "Pass the path of the file to upload with --file",
			}
		}
		body, err := os.ReadFile(file)
		if err != nil {
			return gateway.Payload{}, fmt.Errorf("failed to read %s: %w", file, err)
		}
		switch contentType {
		case contentBinary:
			return gateway.BinaryPayload(body), nil
		case contentPDF:
			return gateway.PDFPayload(body), nil
		default:
			return gateway.MultipartPayload(field, filepath.Base(file), body), nil
		}

	default:
		return gateway.Payload{}, aperrors.UserError{
			Message:    fmt.Sprintf("Unknown content type %q", contentType),
			Suggestion: "Use one of: json, binary, pdf, multipart",
		}
	}
}

func operationLocation(env gateway.Envelope) string {
	if env.Header == nil {
		return ""
	}
	if loc := env.Header.Get("Operation-Location"); loc != "" {
		return loc
	}
	return env.Header.Get("Location")
}

func statusSuggestion(env gateway.Envelope) string {
	switch {
	case env.TransportFailed():
		return "Check the gateway URL and network connectivity"
	case env.StatusCode == http.StatusUnauthorized:
		return "Check the tenant key, or enable rotation fallback with ENABLE_ROTATION_FALLBACK=true"
	case env.StatusCode == http.StatusTooManyRequests:
		return "The tenant is rate limited; raise APIM_MAX_RETRIES or APIM_RETRY_DELAY"
	case env.StatusCode == http.StatusNotFound:
		return "Check the tenant name and path"
	default:
		return ""
	}
}

type envelopeOutput struct {
	Status string              `json:"status"`
	Header map[string][]string `json:"header,omitempty"`
	Body   json.RawMessage     `json:"body,omitempty"`
	Text   string              `json:"text,omitempty"`
	Error  string              `json:"error,omitempty"`
}

func writeEnvelopeJSON(w io.Writer, env gateway.Envelope) error {
	output := envelopeOutput{
		Status: env.Status(),
		Header: env.Header,
	}
	if env.Err != nil {
		output.Error = env.Err.Error()
	}
	if json.Valid([]byte(env.Body)) {
		output.Body = json.RawMessage(env.Body)
	} else {
		output.Text = env.Body
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
