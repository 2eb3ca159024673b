package annotation

import (
	"context"
	"errors"
	"sort"
	"strings"
)

var ErrStoreUnavailable = errors.New("annotation store unavailable")

// Store exposes human-approved schema annotations. Filtering to approved
// entries is the store's responsibility.
type Store interface {
	FetchApprovedMetadata(ctx context.Context) (Metadata, error)
}

type TableMeta struct {
	Name            string `json:"name"`
	NameCN          string `json:"name_cn,omitempty"`
	DescriptionCN   string `json:"description_cn,omitempty"`
	DescriptionEN   string `json:"description_en,omitempty"`
	BusinessMeaning string `json:"business_meaning,omitempty"`
	UseCase         string `json:"use_case,omitempty"`
}

type ColumnMeta struct {
	Name            string `json:"name"`
	NameCN          string `json:"name_cn,omitempty"`
	DataType        string `json:"data_type,omitempty"`
	DescriptionCN   string `json:"description_cn,omitempty"`
	DescriptionEN   string `json:"description_en,omitempty"`
	Example         string `json:"example,omitempty"`
	BusinessMeaning string `json:"business_meaning,omitempty"`
	Range           string `json:"range,omitempty"`
}

// Metadata is a point-in-time copy of approved annotations. Tables keep the
// order the store returned them in.
type Metadata struct {
	Tables  []TableMeta             `json:"tables"`
	Columns map[string][]ColumnMeta `json:"columns"`
}

type Summary struct {
	Tables             int            `json:"tables"`
	Columns            int            `json:"columns"`
	TableNames         []string       `json:"table_names"`
	ColumnCountByTable map[string]int `json:"column_count_by_table"`
}

func (m Metadata) Empty() bool {
	return len(m.Tables) == 0
}

func (m Metadata) Table(name string) (TableMeta, bool) {
	for _, table := range m.Tables {
		if table.Name == name {
			return table, true
		}
	}
	return TableMeta{}, false
}

func (m Metadata) TableNames() []string {
	names := make([]string, 0, len(m.Tables))
	for _, table := range m.Tables {
		names = append(names, table.Name)
	}
	return names
}

func (m Metadata) ColumnsOf(table string) []ColumnMeta {
	return m.Columns[table]
}

// TableByLocalizedName matches the localized display name exactly, ignoring
// surrounding whitespace.
func (m Metadata) TableByLocalizedName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	for _, table := range m.Tables {
		if table.NameCN == name {
			return table.Name, true
		}
	}
	return "", false
}

func (m Metadata) ColumnByLocalizedName(table, name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	for _, column := range m.Columns[table] {
		if column.NameCN == name {
			return column.Name, true
		}
	}
	return "", false
}

func (m Metadata) Summary() Summary {
	summary := Summary{
		Tables:             len(m.Tables),
		TableNames:         m.TableNames(),
		ColumnCountByTable: make(map[string]int, len(m.Columns)),
	}
	for table, columns := range m.Columns {
		summary.Columns += len(columns)
		summary.ColumnCountByTable[table] = len(columns)
	}
	return summary
}

// Clone returns a deep copy so cached metadata can be handed out safely.
func (m Metadata) Clone() Metadata {
	out := Metadata{
		Tables:  append([]TableMeta(nil), m.Tables...),
		Columns: make(map[string][]ColumnMeta, len(m.Columns)),
	}
	for table, columns := range m.Columns {
		out.Columns[table] = append([]ColumnMeta(nil), columns...)
	}
	return out
}

// Builder accumulates rows from a store in arrival order.
type Builder struct {
	md   Metadata
	seen map[string]bool
}

func NewBuilder() *Builder {
	return &Builder{md: Metadata{Columns: map[string][]ColumnMeta{}}, seen: map[string]bool{}}
}

func (b *Builder) AddTable(table TableMeta) {
	if table.Name == "" || b.seen[table.Name] {
		return
	}
	b.seen[table.Name] = true
	b.md.Tables = append(b.md.Tables, table)
}

func (b *Builder) AddColumn(table string, column ColumnMeta) {
	if table == "" || column.Name == "" {
		return
	}
	b.md.Columns[table] = append(b.md.Columns[table], column)
}

func (b *Builder) Metadata() Metadata {
	return b.md
}

// StaticStore serves fixed metadata. An empty StaticStore stands in when no
// annotation source is configured.
type StaticStore struct {
	Metadata Metadata
}

func (s StaticStore) FetchApprovedMetadata(context.Context) (Metadata, error) {
	return s.Metadata.Clone(), nil
}

// SortedTables orders tables by name; used by sources whose wire format has
// no inherent order.
func SortedTables(tables []TableMeta) []TableMeta {
	out := append([]TableMeta(nil), tables...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
