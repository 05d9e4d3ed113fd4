package observer

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"tunecore/internal/objectstore"
)

// S3Sink writes the trace as a CSV object in an ObjectStore bucket, the
// other pluggable record_search:io_format backend: the same tabular shape
// as CSVSink but shipped off-box instead of written to local disk.
type S3Sink struct {
	store objectstore.ObjectStore
	key   string
}

func NewS3Sink(store objectstore.ObjectStore, key string) *S3Sink {
	return &S3Sink{store: store, key: key}
}

func (s *S3Sink) Write(ctx context.Context, inputNames, outputNames []string, rows []Row) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := append(append([]string(nil), inputNames...), outputNames...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("s3 sink: header: %w", err)
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
			return fmt.Errorf("s3 sink: row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	_, err := s.store.Put(ctx, s.key, bytes.NewReader(buf.Bytes()), objectstore.PutOptions{ContentType: "text/csv"})
	if err != nil {
		return fmt.Errorf("s3 sink: put %s: %w", s.key, err)
	}
	return nil
}

var _ Sink = (*S3Sink)(nil)
