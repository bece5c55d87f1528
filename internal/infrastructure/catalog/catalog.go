package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/lexgrove/caselaw-search/internal/core/domain"
)

// FileCatalog reads the metadata catalog from a single file. The format is
// chosen by extension: .json, .yaml/.yml, or .xlsx with a header row.
type FileCatalog struct {
	path   string
	logger *slog.Logger
}

func NewFileCatalog(path string, logger *slog.Logger) *FileCatalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileCatalog{path: path, logger: logger}
}

// Load returns catalog records keyed by their filename field. Records without
// a filename cannot be matched to a corpus document and are skipped.
func (c *FileCatalog) Load(ctx context.Context) (map[string]map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		records []map[string]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(c.path)) {
	case ".json":
		records, err = c.loadJSON()
	case ".yaml", ".yml":
		records, err = c.loadYAML()
	case ".xlsx":
		records, err = c.loadXLSX()
	default:
		return nil, domain.WrapError(domain.ErrConfiguration, "load catalog",
			fmt.Errorf("unsupported catalog format: %s", c.path))
	}
	if err != nil {
		return nil, err
	}

	out := make(map[string]map[string]string, len(records))
	for _, rec := range records {
		filename := strings.TrimSpace(rec["filename"])
		if filename == "" {
			c.logger.Warn("catalog_record_skipped", "reason", "missing filename field")
			continue
		}
		rec["filename"] = filename
		out[filename] = rec
	}
	c.logger.Info("catalog_loaded", "path", c.path, "records", len(out))
	return out, nil
}

func (c *FileCatalog) loadJSON() ([]map[string]string, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var entries []map[string]any
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse json catalog: %w", err)
	}
	return normalizeAll(entries), nil
}

func (c *FileCatalog) loadYAML() ([]map[string]string, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var entries []map[string]any
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse yaml catalog: %w", err)
	}
	return normalizeAll(entries), nil
}

func (c *FileCatalog) loadXLSX() ([]map[string]string, error) {
	f, err := excelize.OpenFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx catalog: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx catalog has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read xlsx rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	header := rows[0]
	out := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(map[string]string, len(header))
		for i, field := range header {
			field = strings.TrimSpace(field)
			if field == "" || i >= len(row) {
				continue
			}
			rec[field] = strings.TrimSpace(row[i])
		}
		if len(rec) > 0 {
			out = append(out, rec)
		}
	}
	return out, nil
}

func normalizeAll(entries []map[string]any) []map[string]string {
	out := make([]map[string]string, 0, len(entries))
	for _, entry := range entries {
		rec := make(map[string]string, len(entry))
		for k, v := range entry {
			rec[k] = scalarString(v)
		}
		out = append(out, rec)
	}
	return out
}

func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}
