// Package export writes the final ordered record list to its sinks: a
// structured JSON file and a human-readable console table.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"bookmark-extract/lib/recordset"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Sink accepts an ordered list of records and performs one write.
type Sink interface {
	Write(ctx context.Context, records []recordset.Record) error
}

// JSONFile writes records as an indented JSON array.
type JSONFile struct {
	Filename string
}

func (s JSONFile) Write(ctx context.Context, records []recordset.Record) error {
	serialized, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	err = os.WriteFile(s.Filename, serialized, 0600)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", s.Filename, err)
	}
	return nil
}

// Console renders records as a table. Out defaults to stdout.
type Console struct {
	Out io.Writer
}

const maxTextWidth = 72

func (s Console) Write(ctx context.Context, records []recordset.Record) error {
	out := s.Out
	if out == nil {
		out = os.Stdout
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Text", WidthMax: maxTextWidth},
	})

	t.AppendHeader(table.Row{"#", "Author", "Text", "Link"})
	for i, r := range records {
		t.AppendRow(table.Row{i + 1, r.Author, r.Text, r.Link})
	}
	t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d bookmarks", len(records))})
	t.Render()
	return nil
}
