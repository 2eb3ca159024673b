package mesqueryctl

import (
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/duckmesh/mesquery/internal/annotation"
	"github.com/duckmesh/mesquery/internal/export"
	"github.com/duckmesh/mesquery/internal/intent"
	"github.com/duckmesh/mesquery/internal/query"
)

var errSQLRequired = errors.New("--sql is required")

type recognizeResponse struct {
	intent.FrontendIntent
	Backend struct {
		RecognizedIntent string   `json:"recognizedIntent"`
		MethodsUsed      []string `json:"methodsUsed"`
		Reasoning        string   `json:"reasoning"`
	} `json:"_backend"`
}

type processResponse struct {
	QueryPlan   query.QueryPlan    `json:"query_plan"`
	QueryResult *query.QueryResult `json:"query_result"`
}

type executeResponse struct {
	QueryResult query.QueryResult `json:"query_result"`
}

type validateResponse struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

type recommendation struct {
	Title           string `json:"title"`
	NaturalLanguage string `json:"natural_language"`
	Category        string `json:"category"`
}

type schemaResponse struct {
	Summary   annotation.Summary `json:"summary"`
	UpdatedAt *time.Time         `json:"updated_at"`
}

func (r *runner) intentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "intent <question>",
		Short: "Classify a question without generating SQL",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp recognizeResponse
			body := map[string]string{"query": joinArgs(args)}
			return r.call(cmd.Context(), http.MethodPost, "/v1/intent/recognize", body, &resp, func() error {
				return renderIntent(r.stdout, resp)
			})
		},
	}
}

func (r *runner) explainCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "explain <question>",
		Short: "Generate and explain SQL for a question without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp processResponse
			body := map[string]string{"natural_language": joinArgs(args)}
			return r.call(cmd.Context(), http.MethodPost, "/v1/query/explain", body, &resp, func() error {
				return renderPlan(r.stdout, resp.QueryPlan)
			})
		},
	}
}

func (r *runner) askCommand() *cobra.Command {
	var execute bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Plan a question and optionally execute the generated SQL",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := query.ModeExplain
			if execute {
				mode = query.ModeExecute
			}
			var resp processResponse
			body := map[string]string{"natural_language": joinArgs(args), "execution_mode": string(mode)}
			return r.call(cmd.Context(), http.MethodPost, "/v1/query/process", body, &resp, func() error {
				if err := renderPlan(r.stdout, resp.QueryPlan); err != nil {
					return err
				}
				if resp.QueryResult == nil {
					return nil
				}
				return renderResult(r.stdout, *resp.QueryResult)
			})
		},
	}
	cmd.Flags().BoolVar(&execute, "execute", false, "run the generated SQL")
	return cmd
}

func (r *runner) executeCommand() *cobra.Command {
	var sql string
	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Run reviewed SQL against the row store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sql == "" {
				return errSQLRequired
			}
			var resp executeResponse
			return r.call(cmd.Context(), http.MethodPost, "/v1/query/execute", map[string]string{"sql": sql}, &resp, func() error {
				return renderResult(r.stdout, resp.QueryResult)
			})
		},
	}
	cmd.Flags().StringVar(&sql, "sql", "", "SQL statement to run")
	return cmd
}

func (r *runner) validateCommand() *cobra.Command {
	var sql string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check SQL before running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sql == "" {
				return errSQLRequired
			}
			var resp validateResponse
			return r.call(cmd.Context(), http.MethodPost, "/v1/query/validate", map[string]string{"sql": sql}, &resp, func() error {
				return renderValidation(r.stdout, resp)
			})
		},
	}
	cmd.Flags().StringVar(&sql, "sql", "", "SQL statement to validate")
	return cmd
}

func (r *runner) recommendationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "recommendations",
		Short: "List suggested questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp struct {
				Recommendations []recommendation `json:"recommendations"`
			}
			return r.call(cmd.Context(), http.MethodGet, "/v1/query/recommendations", nil, &resp, func() error {
				return renderRecommendations(r.stdout, resp.Recommendations)
			})
		},
	}
}

func (r *runner) metadataCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "metadata",
		Short: "Show the cached schema metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp schemaResponse
			return r.call(cmd.Context(), http.MethodGet, "/v1/schema/metadata", nil, &resp, func() error {
				return renderSchema(r.stdout, resp)
			})
		},
	}
}

func (r *runner) refreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reload schema metadata from the annotation store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp schemaResponse
			return r.call(cmd.Context(), http.MethodPost, "/v1/schema/refresh", nil, &resp, func() error {
				return renderSchema(r.stdout, resp)
			})
		},
	}
}

func (r *runner) exportCommand() *cobra.Command {
	var sql string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Run SQL and store the result as a parquet export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sql == "" {
				return errSQLRequired
			}
			var resp export.Summary
			return r.call(cmd.Context(), http.MethodPost, "/v1/query/export", map[string]string{"sql": sql}, &resp, func() error {
				return renderExport(r.stdout, resp)
			})
		},
	}
	cmd.Flags().StringVar(&sql, "sql", "", "SQL statement to export")
	return cmd
}
