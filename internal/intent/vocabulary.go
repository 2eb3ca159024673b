package intent

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultVocabularyYAML []byte

// Vocabulary holds the locale-specific keyword and pattern tables used by the
// rule stage. The algorithm is fixed; the tables are data.
type Vocabulary struct {
	intents       []IntentSpec
	timeRanges    []timeRangePattern
	relativeTime  *regexp.Regexp
	table         *regexp.Regexp
	limit         *regexp.Regexp
	equipment     *regexp.Regexp
	productLine   *regexp.Regexp
	metrics       []MetricKeyword
	unclearPrompt string
}

type IntentSpec struct {
	Name        Name          `yaml:"name"`
	Description string        `yaml:"description"`
	Keywords    []string      `yaml:"keywords"`
	Entities    []string      `yaml:"entities"`
	Required    []Requirement `yaml:"required"`
}

// Requirement is satisfied when any of the listed entity keys is present.
type Requirement struct {
	AnyOf  []string `yaml:"any_of"`
	Prompt string   `yaml:"prompt"`
}

type MetricKeyword struct {
	Keyword string `yaml:"keyword"`
	Code    string `yaml:"code"`
}

type timeRangePattern struct {
	pattern *regexp.Regexp
	value   string
}

type vocabularyFile struct {
	UnclearPrompt string       `yaml:"unclear_prompt"`
	Intents       []IntentSpec `yaml:"intents"`
	Entities      struct {
		TimeRanges []struct {
			Pattern string `yaml:"pattern"`
			Value   string `yaml:"value"`
		} `yaml:"time_ranges"`
		RelativeTime string          `yaml:"relative_time"`
		Table        string          `yaml:"table"`
		Limit        string          `yaml:"limit"`
		Equipment    string          `yaml:"equipment"`
		ProductLine  string          `yaml:"product_line"`
		Metrics      []MetricKeyword `yaml:"metrics"`
	} `yaml:"entities"`
}

// DefaultVocabulary returns the embedded vocabulary.
func DefaultVocabulary() (*Vocabulary, error) {
	return ParseVocabulary(defaultVocabularyYAML)
}

// LoadVocabulary reads a vocabulary file, or the embedded default when path is empty.
func LoadVocabulary(path string) (*Vocabulary, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultVocabulary()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary %s: %w", path, err)
	}
	vocab, err := ParseVocabulary(data)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary %s: %w", path, err)
	}
	return vocab, nil
}

func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var file vocabularyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode vocabulary: %w", err)
	}
	if len(file.Intents) == 0 {
		return nil, fmt.Errorf("vocabulary declares no intents")
	}

	seen := make(map[Name]bool, len(file.Intents))
	for _, spec := range file.Intents {
		if !spec.Name.Valid() || spec.Name == Other {
			return nil, fmt.Errorf("vocabulary intent %q is not a recognized intent", spec.Name)
		}
		if seen[spec.Name] {
			return nil, fmt.Errorf("vocabulary intent %q declared twice", spec.Name)
		}
		seen[spec.Name] = true
		if len(spec.Keywords) == 0 {
			return nil, fmt.Errorf("vocabulary intent %q has no keywords", spec.Name)
		}
		for _, req := range spec.Required {
			if len(req.AnyOf) == 0 || strings.TrimSpace(req.Prompt) == "" {
				return nil, fmt.Errorf("vocabulary intent %q has an incomplete requirement", spec.Name)
			}
		}
	}

	vocab := &Vocabulary{
		intents:       file.Intents,
		metrics:       file.Entities.Metrics,
		unclearPrompt: strings.TrimSpace(file.UnclearPrompt),
	}
	if vocab.unclearPrompt == "" {
		return nil, fmt.Errorf("vocabulary unclear_prompt is required")
	}
	for _, tr := range file.Entities.TimeRanges {
		re, err := regexp.Compile(tr.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile time range pattern %q: %w", tr.Pattern, err)
		}
		vocab.timeRanges = append(vocab.timeRanges, timeRangePattern{pattern: re, value: tr.Value})
	}

	captures := []struct {
		name   string
		expr   string
		groups int
		dst    **regexp.Regexp
	}{
		{name: "relative_time", expr: file.Entities.RelativeTime, groups: 2, dst: &vocab.relativeTime},
		{name: "table", expr: file.Entities.Table, groups: 1, dst: &vocab.table},
		{name: "limit", expr: file.Entities.Limit, groups: 1, dst: &vocab.limit},
		{name: "equipment", expr: file.Entities.Equipment, groups: 1, dst: &vocab.equipment},
		{name: "product_line", expr: file.Entities.ProductLine, groups: 1, dst: &vocab.productLine},
	}
	for _, c := range captures {
		if c.expr == "" {
			continue
		}
		re, err := regexp.Compile(c.expr)
		if err != nil {
			return nil, fmt.Errorf("compile %s pattern: %w", c.name, err)
		}
		if re.NumSubexp() != c.groups {
			return nil, fmt.Errorf("%s pattern must have %d capture group(s), has %d", c.name, c.groups, re.NumSubexp())
		}
		*c.dst = re
	}
	return vocab, nil
}

// Intents returns the intent table in declaration order.
func (v *Vocabulary) Intents() []IntentSpec {
	out := make([]IntentSpec, len(v.intents))
	copy(out, v.intents)
	return out
}

func (v *Vocabulary) spec(name Name) (IntentSpec, bool) {
	for _, spec := range v.intents {
		if spec.Name == name {
			return spec, true
		}
	}
	return IntentSpec{}, false
}
