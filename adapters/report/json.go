package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"lakeattr/domain/attribution"
	"lakeattr/domain/geometry"
	"lakeattr/internal/errors"
	"lakeattr/ports"
)

// JSONWriter writes attribution.json and geometry.json.
type JSONWriter struct {
	dir    string
	logger *zap.Logger
}

var _ ports.ReportWriterPort = (*JSONWriter)(nil)

func NewJSONWriter(dir string, logger *zap.Logger) *JSONWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONWriter{dir: dir, logger: logger.Named("report")}
}

func (w *JSONWriter) WriteAttribution(ctx context.Context, r *attribution.Report) ([]string, error) {
	return w.write(ctx, "attribution.json", r)
}

func (w *JSONWriter) WriteGeometry(ctx context.Context, g *geometry.Geometry) ([]string, error) {
	return w.write(ctx, "geometry.json", g)
}

func (w *JSONWriter) write(ctx context.Context, name string, v interface{}) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode report")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, errors.IOError("failed to create output directory", err)
	}
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return nil, errors.IOError(fmt.Sprintf("failed to write %s", path), err)
	}
	w.logger.Info("report written", zap.String("json", path))
	return []string{path}, nil
}
