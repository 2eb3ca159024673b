package httpstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/duckmesh/mesquery/internal/annotation"
)

// Store reads approved metadata from a schema service that publishes
// {"metadata": {"tables": {...}, "columns": {...}}}.
type Store struct {
	url    string
	client *http.Client
}

type Config struct {
	URL     string
	Timeout time.Duration
}

func New(cfg Config) (*Store, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, fmt.Errorf("annotation url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Store{url: url, client: &http.Client{Timeout: timeout}}, nil
}

type wireTable struct {
	NameCN          string `json:"name_cn"`
	DescriptionCN   string `json:"description_cn"`
	DescriptionEN   string `json:"description_en"`
	BusinessMeaning string `json:"business_meaning"`
	UseCase         string `json:"use_case"`
}

type wireColumn struct {
	NameCN          string `json:"name_cn"`
	DataType        string `json:"data_type"`
	DescriptionCN   string `json:"description_cn"`
	DescriptionEN   string `json:"description_en"`
	Example         string `json:"example"`
	BusinessMeaning string `json:"business_meaning"`
	Range           string `json:"range"`
}

type wireResponse struct {
	Metadata struct {
		Tables  map[string]wireTable             `json:"tables"`
		Columns map[string]map[string]wireColumn `json:"columns"`
	} `json:"metadata"`
}

func (s *Store) FetchApprovedMetadata(ctx context.Context) (annotation.Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return annotation.Metadata{}, fmt.Errorf("build metadata request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return annotation.Metadata{}, fmt.Errorf("request metadata: %w: %w", annotation.ErrStoreUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return annotation.Metadata{}, fmt.Errorf("read metadata body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return annotation.Metadata{}, fmt.Errorf("metadata request failed status=%d: %w", resp.StatusCode, annotation.ErrStoreUnavailable)
	}

	var parsed wireResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return annotation.Metadata{}, fmt.Errorf("decode metadata response: %w", err)
	}

	builder := annotation.NewBuilder()
	tables := make([]annotation.TableMeta, 0, len(parsed.Metadata.Tables))
	for name, t := range parsed.Metadata.Tables {
		tables = append(tables, annotation.TableMeta{
			Name:            name,
			NameCN:          t.NameCN,
			DescriptionCN:   t.DescriptionCN,
			DescriptionEN:   t.DescriptionEN,
			BusinessMeaning: t.BusinessMeaning,
			UseCase:         t.UseCase,
		})
	}
	for _, table := range annotation.SortedTables(tables) {
		builder.AddTable(table)
	}

	tableNames := make([]string, 0, len(parsed.Metadata.Columns))
	for name := range parsed.Metadata.Columns {
		tableNames = append(tableNames, name)
	}
	sort.Strings(tableNames)
	for _, table := range tableNames {
		columns := parsed.Metadata.Columns[table]
		columnNames := make([]string, 0, len(columns))
		for name := range columns {
			columnNames = append(columnNames, name)
		}
		sort.Strings(columnNames)
		for _, name := range columnNames {
			c := columns[name]
			builder.AddColumn(table, annotation.ColumnMeta{
				Name:            name,
				NameCN:          c.NameCN,
				DataType:        c.DataType,
				DescriptionCN:   c.DescriptionCN,
				DescriptionEN:   c.DescriptionEN,
				Example:         c.Example,
				BusinessMeaning: c.BusinessMeaning,
				Range:           c.Range,
			})
		}
	}
	return builder.Metadata(), nil
}
