package dataset

import (
	"fmt"
	"strings"
)

type SourceKind string

const (
	SourceRemote SourceKind = "remote"
	SourceLocal  SourceKind = "local"
)

// ParseSourceKind accepts "local", "remote" and the legacy "google_sheets".
func ParseSourceKind(s string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local":
		return SourceLocal, nil
	case "remote", "google_sheets":
		return SourceRemote, nil
	default:
		return "", fmt.Errorf("unknown data source %q", s)
	}
}

// Source describes where the dataset comes from. Only the fields of the
// selected kind are meaningful.
type Source struct {
	Kind      SourceKind `json:"kind"`
	SheetID   string     `json:"sheet_id,omitempty"`
	SheetName string     `json:"sheet_name,omitempty"`
	FilePath  string     `json:"file_path,omitempty"`
}

func RemoteSource(sheetID, sheetName string) Source {
	return Source{Kind: SourceRemote, SheetID: sheetID, SheetName: sheetName}
}

func LocalSource(filePath string) Source {
	return Source{Kind: SourceLocal, FilePath: filePath}
}

func (s Source) String() string {
	switch s.Kind {
	case SourceRemote:
		return fmt.Sprintf("remote(%s/%s)", s.SheetID, s.SheetName)
	case SourceLocal:
		return fmt.Sprintf("local(%s)", s.FilePath)
	default:
		return "unconfigured"
	}
}
