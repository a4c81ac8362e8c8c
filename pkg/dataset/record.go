package dataset

import (
	"time"
)

const (
	StatusUnloaded = "unloaded"
	StatusLoaded   = "loaded"

	DefaultTitle       = "Без названия"
	DefaultDescription = "Нет описания"
)

// Column types inferred at load time
const (
	ColumnTypeInteger = "integer"
	ColumnTypeFloat   = "float"
	ColumnTypeText    = "text"
	ColumnTypeEmpty   = "empty"
)

// Record is one normalized support measure. Title and Description are never
// empty; source-specific columns stay available through Fields.
type Record struct {
	ID          int               `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Fields      map[string]string `json:"fields"`
}

// Get returns the raw value of a source column.
func (r Record) Get(column string) string {
	return r.Fields[column]
}

func (r Record) clone() Record {
	out := r
	out.Fields = make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	return out
}

// ColumnsInfo is metadata derived from the loaded table.
type ColumnsInfo struct {
	TotalRows         int               `json:"total_rows"`
	TotalColumns      int               `json:"total_columns"`
	ColumnNames       []string          `json:"column_names"`
	ColumnTypes       map[string]string `json:"column_types"`
	TextColumns       []string          `json:"text_columns"`
	IDColumn          string            `json:"id_column,omitempty"`
	TitleColumn       string            `json:"title_column,omitempty"`
	DescriptionColumn string            `json:"description_column,omitempty"`
	CategoryColumn    string            `json:"category_column,omitempty"`
}

// Snapshot is an immutable view of one successful load. It is replaced
// wholesale on reload and must not be mutated by readers.
type Snapshot struct {
	Records   []Record    `json:"records"`
	LoadedAt  time.Time   `json:"loaded_at"`
	Columns   ColumnsInfo `json:"columns_info"`
	Source    Source      `json:"source"`
	Synthetic bool        `json:"synthetic"`
}

// Find resolves a record by id.
func (s *Snapshot) Find(id int) (Record, bool) {
	for _, r := range s.Records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// Categories returns the distinct non-empty category values in load order.
func (s *Snapshot) Categories() []string {
	if s.Columns.CategoryColumn == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, r := range s.Records {
		v := r.Fields[s.Columns.CategoryColumn]
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Info summarizes the store state for status and stats screens.
type Info struct {
	Status     string      `json:"status"`
	Rows       int         `json:"rows"`
	Columns    int         `json:"columns"`
	LastLoaded *time.Time  `json:"last_loaded,omitempty"`
	Categories int         `json:"categories"`
	Synthetic  bool        `json:"synthetic"`
	Source     SourceKind  `json:"source,omitempty"`
	Details    ColumnsInfo `json:"columns_info"`
}

// Loaded reports whether a snapshot is available.
func (i Info) Loaded() bool {
	return i.Status == StatusLoaded
}

func infoFor(s *Snapshot) Info {
	if s == nil {
		return Info{Status: StatusUnloaded}
	}
	loadedAt := s.LoadedAt
	return Info{
		Status:     StatusLoaded,
		Rows:       len(s.Records),
		Columns:    s.Columns.TotalColumns,
		LastLoaded: &loadedAt,
		Categories: len(s.Categories()),
		Synthetic:  s.Synthetic,
		Source:     s.Source.Kind,
		Details:    s.Columns,
	}
}
