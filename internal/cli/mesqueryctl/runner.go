package mesqueryctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

// requestError marks failures that happened after the command line was
// accepted.
type requestError struct {
	err error
}

func (e *requestError) Error() string {
	return e.err.Error()
}

func (e *requestError) Unwrap() error {
	return e.err
}

type runner struct {
	client   *Client
	stdout   io.Writer
	jsonOnly bool
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	root := newRootCommand(defaults, stdout)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		_, _ = fmt.Fprintln(stderr, reqErr.Error())
		return ExitFailure
	}
	_, _ = fmt.Fprintf(stderr, "%v\n\n", err)
	_, _ = fmt.Fprint(stderr, root.UsageString())
	return ExitUsage
}

func newRootCommand(defaults Options, stdout io.Writer) *cobra.Command {
	r := &runner{stdout: stdout}
	var (
		baseURL string
		apiKey  string
		timeout time.Duration
	)

	root := &cobra.Command{
		Use:           "mesqueryctl",
		Short:         "Command line client for the mesquery API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			httpClient := defaults.HTTPClient
			if httpClient == nil {
				httpClient = &http.Client{Timeout: timeout}
			}
			r.client = &Client{BaseURL: baseURL, APIKey: apiKey, HTTP: httpClient}
			return nil
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&baseURL, "base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "mesquery API base URL")
	flags.StringVar(&apiKey, "api-key", defaults.APIKey, "API key for authenticated requests")
	flags.DurationVar(&timeout, "timeout", durationOr(defaults.Timeout, 60*time.Second), "HTTP timeout (e.g. 30s)")
	flags.BoolVar(&r.jsonOnly, "json", false, "print raw JSON responses")

	root.AddCommand(
		r.rawCommand("health", "Show API liveness", http.MethodGet, "/v1/health"),
		r.rawCommand("ready", "Check API dependencies", http.MethodGet, "/v1/ready"),
		r.intentCommand(),
		r.explainCommand(),
		r.askCommand(),
		r.executeCommand(),
		r.validateCommand(),
		r.recommendationsCommand(),
		r.metadataCommand(),
		r.refreshCommand(),
		r.exportCommand(),
	)
	return root
}

func (r *runner) rawCommand(use, short, method, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := r.client.Do(cmd.Context(), method, path, nil, nil)
			if err != nil {
				return &requestError{err: err}
			}
			return r.printJSON(raw)
		},
	}
}

func (r *runner) printJSON(raw []byte) error {
	if pretty, ok := prettyJSON(raw); ok {
		_, err := fmt.Fprintln(r.stdout, pretty)
		return err
	}
	if len(raw) > 0 {
		_, err := fmt.Fprintln(r.stdout, string(raw))
		return err
	}
	return nil
}

// call sends the request and renders either raw JSON or the decoded value.
func (r *runner) call(ctx context.Context, method, path string, body, out any, render func() error) error {
	raw, err := r.client.Do(ctx, method, path, body, out)
	if err != nil {
		return &requestError{err: err}
	}
	if r.jsonOnly {
		return r.printJSON(raw)
	}
	return render()
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
