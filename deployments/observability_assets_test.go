package deployments

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/duckmesh/mesquery/internal/observability"
)

type ruleFile struct {
	Groups []struct {
		Name  string `yaml:"name"`
		Rules []struct {
			Alert       string            `yaml:"alert"`
			Expr        string            `yaml:"expr"`
			For         string            `yaml:"for"`
			Labels      map[string]string `yaml:"labels"`
			Annotations map[string]string `yaml:"annotations"`
		} `yaml:"rules"`
	} `yaml:"groups"`
}

var metricNamePattern = regexp.MustCompile(`mesquery_[a-z_]+`)

func TestPrometheusRulesParseAndCarrySeverity(t *testing.T) {
	rules := loadRules(t)

	seen := map[string]bool{}
	for _, group := range rules.Groups {
		for _, rule := range group.Rules {
			if rule.Alert == "" || strings.TrimSpace(rule.Expr) == "" {
				t.Fatalf("group %s has a rule without alert or expr", group.Name)
			}
			if seen[rule.Alert] {
				t.Fatalf("duplicate alert %q", rule.Alert)
			}
			seen[rule.Alert] = true
			switch rule.Labels["severity"] {
			case "critical", "warning":
			default:
				t.Fatalf("alert %s severity = %q", rule.Alert, rule.Labels["severity"])
			}
			if rule.Annotations["summary"] == "" {
				t.Fatalf("alert %s has no summary", rule.Alert)
			}
			if rule.For != "" {
				if _, err := time.ParseDuration(rule.For); err != nil {
					t.Fatalf("alert %s for = %q: %v", rule.Alert, rule.For, err)
				}
			}
		}
	}

	for _, alert := range []string{
		"MesqueryHTTPErrorRateHigh",
		"MesqueryLLMFailuresHigh",
		"MesquerySQLFallbackDominant",
		"MesqueryQueryExecutionFailuresHigh",
		"MesquerySchemaMetadataRefreshFailing",
		"MesquerySchemaMetadataEmpty",
		"MesqueryExportFailures",
	} {
		if !seen[alert] {
			t.Fatalf("rules missing alert %q", alert)
		}
	}
}

func TestPrometheusRulesReferenceExportedMetrics(t *testing.T) {
	exported := exportedMetricNames(t)
	rules := loadRules(t)

	for _, group := range rules.Groups {
		for _, rule := range group.Rules {
			for _, name := range metricNamePattern.FindAllString(rule.Expr, -1) {
				base := strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(name, "_bucket"), "_sum"), "_count")
				if !exported[base] {
					t.Fatalf("alert %s references unknown metric %q", rule.Alert, name)
				}
			}
		}
	}
}

func TestPrometheusScrapeExampleContainsMetricsPathAndRules(t *testing.T) {
	content, err := os.ReadFile(filepath.Join(repoRoot(t), "deployments", "observability", "prometheus", "prometheus-scrape.example.yaml"))
	if err != nil {
		t.Fatalf("read scrape example: %v", err)
	}

	var scrape struct {
		RuleFiles     []string `yaml:"rule_files"`
		ScrapeConfigs []struct {
			JobName     string `yaml:"job_name"`
			MetricsPath string `yaml:"metrics_path"`
		} `yaml:"scrape_configs"`
	}
	if err := yaml.Unmarshal(content, &scrape); err != nil {
		t.Fatalf("parse scrape example: %v", err)
	}
	if len(scrape.RuleFiles) != 1 || scrape.RuleFiles[0] != "mesquery_rules.yaml" {
		t.Fatalf("rule_files = %v", scrape.RuleFiles)
	}
	if len(scrape.ScrapeConfigs) != 1 || scrape.ScrapeConfigs[0].JobName != "mesquery-api" || scrape.ScrapeConfigs[0].MetricsPath != "/v1/metrics" {
		t.Fatalf("scrape_configs = %+v", scrape.ScrapeConfigs)
	}
}

func loadRules(t *testing.T) ruleFile {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(repoRoot(t), "deployments", "observability", "prometheus", "mesquery_rules.yaml"))
	if err != nil {
		t.Fatalf("read rules file: %v", err)
	}
	var rules ruleFile
	if err := yaml.Unmarshal(content, &rules); err != nil {
		t.Fatalf("parse rules file: %v", err)
	}
	if len(rules.Groups) == 0 {
		t.Fatal("rules file has no groups")
	}
	return rules
}

// exportedMetricNames touches every metric family so that vectors without
// children still show up in the gathered output.
func exportedMetricNames(t *testing.T) map[string]bool {
	t.Helper()
	observability.ObserveIntentRecognition("query_oee", "rule")
	observability.ObserveLLMRequest("deployments-test", "success", time.Millisecond)
	observability.ObserveSQLGeneration("llm")
	observability.ObserveQueryPlan("planned")
	observability.ObserveQueryExecution(true, 1, 1)
	observability.ObserveMetadataRefresh(nil, 1, 1)
	observability.ObserveExport(errors.New("deployments test"))

	handler := observability.MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := map[string]bool{}
	for _, family := range families {
		names[family.GetName()] = true
	}
	return names
}

func repoRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), ".."))
}
