// Package transfer encodes the task collection for export and decodes
// import files.
package transfer

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hiroki-koketsu/go-tasklist/internal/model"
	"github.com/hiroki-koketsu/go-tasklist/internal/settings"
)

// FormatVersion is written to every JSON export.
const FormatVersion = 1

// ErrInvalidImport is the single error reported for any unusable import
// file. Nothing is imported when it is returned.
var ErrInvalidImport = errors.New("import file is not a valid task export")

// CSVHeader lists the fixed CSV export columns.
var CSVHeader = []string{"id", "title", "description", "priority", "dueAt", "completedAt", "tags", "starred", "createdAt"}

// Document is the JSON export shape.
type Document struct {
	Version    int               `json:"version"`
	ExportedAt time.Time         `json:"exportedAt"`
	Tasks      []model.Task      `json:"tasks"`
	Settings   settings.Settings `json:"settings"`
}

// WriteJSON writes a full export document.
func WriteJSON(w io.Writer, tasks []model.Task, s settings.Settings, now time.Time) error {
	if tasks == nil {
		tasks = []model.Task{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Document{
		Version:    FormatVersion,
		ExportedAt: now,
		Tasks:      tasks,
		Settings:   s,
	})
}

// WriteCSV writes one row per task under CSVHeader. Tags are joined with
// ';' and unset times are empty cells.
func WriteCSV(w io.Writer, tasks []model.Task) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, t := range tasks {
		row := []string{
			t.ID,
			t.Title,
			t.Description,
			string(t.Priority),
			formatTime(t.DueAt),
			formatTime(t.CompletedAt),
			strings.Join(t.Tags, ";"),
			strconv.FormatBool(t.Starred),
			t.CreatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// DecodeImport accepts either an export document or a bare array of tasks.
// Every task must carry an id and a title.
func DecodeImport(data []byte) ([]model.Task, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidImport
	}

	root := gjson.ParseBytes(data)
	var raw string
	switch {
	case root.IsArray():
		raw = root.Raw
	case root.IsObject() && root.Get("tasks").IsArray():
		raw = root.Get("tasks").Raw
	default:
		return nil, ErrInvalidImport
	}

	var tasks []model.Task
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	for i := range tasks {
		tasks[i].Normalize()
		if tasks[i].ID == "" || tasks[i].Title == "" {
			return nil, fmt.Errorf("%w: task %d is missing an id or title", ErrInvalidImport, i)
		}
	}
	return tasks, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
