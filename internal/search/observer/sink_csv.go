package observer

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
)

// CSVSink is the default tabular trace backend: one header row
// (concatenated input and output names), then one row per evaluation.
type CSVSink struct {
	Path string
}

func NewCSVSink(path string) *CSVSink { return &CSVSink{Path: path} }

func (s *CSVSink) Write(_ context.Context, inputNames, outputNames []string, rows []Row) error {
	f, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("csv sink: create %s: %w", s.Path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := append(append([]string(nil), inputNames...), outputNames...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("csv sink: header: %w", err)
	}
	for _, row := range rows {
		rec := make([]string, 0, len(row.Inputs)+len(row.Outputs))
		for _, v := range row.Inputs {
			rec = append(rec, fmt.Sprintf("%v", v))
		}
		for _, v := range row.Outputs {
			rec = append(rec, fmt.Sprintf("%v", v))
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("csv sink: row: %w", err)
		}
	}
	return w.Error()
}

var _ Sink = (*CSVSink)(nil)
