package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	idAliases          = []string{"id", "№", "номер"}
	titleAliases       = []string{"title", "name", "название", "наименование"}
	descriptionAliases = []string{"description", "описание"}
	categoryAliases    = []string{"category", "категория"}
)

// normalize cleans a raw table into a snapshot: fully empty rows are dropped,
// title and description are defaulted, ids are made stable and column
// metadata is derived.
func normalize(t table, src Source, loadedAt time.Time) (*Snapshot, int) {
	header := normalizeHeader(t.Header)

	rows := make([][]string, 0, len(t.Rows))
	dropped := 0
	for _, raw := range t.Rows {
		row := make([]string, len(header))
		empty := true
		for i := range header {
			if i < len(raw) {
				row[i] = strings.TrimSpace(raw[i])
			}
			if row[i] != "" {
				empty = false
			}
		}
		if empty {
			dropped++
			continue
		}
		rows = append(rows, row)
	}

	info := ColumnsInfo{
		TotalRows:         len(rows),
		TotalColumns:      len(header),
		ColumnNames:       header,
		ColumnTypes:       make(map[string]string, len(header)),
		IDColumn:          findColumn(header, idAliases),
		TitleColumn:       findColumn(header, titleAliases),
		DescriptionColumn: findColumn(header, descriptionAliases),
		CategoryColumn:    findColumn(header, categoryAliases),
	}

	ids := assignIDs(header, rows, info.IDColumn)

	records := make([]Record, 0, len(rows))
	for n, row := range rows {
		fields := make(map[string]string, len(header))
		for i, col := range header {
			fields[col] = row[i]
		}

		rec := Record{
			ID:          ids[n],
			Title:       fields[info.TitleColumn],
			Description: fields[info.DescriptionColumn],
			Fields:      fields,
		}
		if rec.Title == "" {
			rec.Title = DefaultTitle
			if info.TitleColumn != "" {
				fields[info.TitleColumn] = DefaultTitle
			}
		}
		if rec.Description == "" {
			rec.Description = DefaultDescription
			if info.DescriptionColumn != "" {
				fields[info.DescriptionColumn] = DefaultDescription
			}
		}
		records = append(records, rec)
	}

	for _, col := range header {
		info.ColumnTypes[col] = inferType(records, col)
		if info.ColumnTypes[col] == ColumnTypeText && col != info.IDColumn {
			info.TextColumns = append(info.TextColumns, col)
		}
	}

	return &Snapshot{
		Records:  records,
		LoadedAt: loadedAt,
		Columns:  info,
		Source:   src,
	}, dropped
}

// normalizeHeader trims names, names blank columns and de-duplicates. A
// renamed duplicate never takes a name that is already in use.
func normalizeHeader(raw []string) []string {
	out := make([]string, len(raw))
	used := make(map[string]struct{}, len(raw))
	for i, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if _, taken := used[name]; taken {
			for n := 2; ; n++ {
				cand := fmt.Sprintf("%s_%d", name, n)
				if _, taken := used[cand]; !taken {
					name = cand
					break
				}
			}
		}
		used[name] = struct{}{}
		out[i] = name
	}
	return out
}

func findColumn(header []string, aliases []string) string {
	for _, alias := range aliases {
		for _, col := range header {
			if strings.EqualFold(col, alias) {
				return col
			}
		}
	}
	return ""
}

// assignIDs uses the source id column only when every row carries a distinct
// non-negative integer; otherwise ids are 1-based row positions.
func assignIDs(header []string, rows [][]string, idColumn string) []int {
	ids := make([]int, len(rows))
	for i := range rows {
		ids[i] = i + 1
	}
	if idColumn == "" {
		return ids
	}

	col := -1
	for i, name := range header {
		if name == idColumn {
			col = i
		}
	}

	fromSource := make([]int, len(rows))
	seen := make(map[int]struct{}, len(rows))
	for i, row := range rows {
		id, ok := parseID(row[col])
		if !ok {
			return ids
		}
		if _, dup := seen[id]; dup {
			return ids
		}
		seen[id] = struct{}{}
		fromSource[i] = id
	}
	return fromSource
}

func parseID(v string) (int, bool) {
	if id, err := strconv.Atoi(v); err == nil && id >= 0 {
		return id, true
	}
	// Spreadsheets often render integer ids as "3.0".
	if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f == float64(int(f)) {
		return int(f), true
	}
	return 0, false
}

func inferType(records []Record, col string) string {
	kind := ColumnTypeEmpty
	for _, r := range records {
		v := r.Fields[col]
		if v == "" {
			continue
		}
		switch {
		case isInteger(v):
			if kind == ColumnTypeEmpty {
				kind = ColumnTypeInteger
			}
		case isFloat(v):
			if kind == ColumnTypeEmpty || kind == ColumnTypeInteger {
				kind = ColumnTypeFloat
			}
		default:
			return ColumnTypeText
		}
	}
	return kind
}

func isInteger(v string) bool {
	_, err := strconv.ParseInt(v, 10, 64)
	return err == nil
}

func isFloat(v string) bool {
	_, err := strconv.ParseFloat(strings.Replace(v, ",", ".", 1), 64)
	return err == nil
}
