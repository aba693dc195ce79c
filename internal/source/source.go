// Package source reads the wide bank export (one row per transaction, joined with
// customer, account, and loan columns) and splits it into the four entity tables.
package source

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/custseg/internal/models"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Format is the file format of an export.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat returns override when set, otherwise the format implied by the file extension.
func DetectFormat(path, override string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(override))
	if name == "" {
		name = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch name {
	case "csv":
		return FormatCSV, nil
	case "xlsx", "xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: unsupported input format %q", models.ErrInvalidInput, name)
	}
}

// Reader loads exports from disk.
type Reader struct {
	logger *zap.Logger
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithLogger sets the logger used to report coerced values.
func WithLogger(l *zap.Logger) ReaderOption {
	return func(r *Reader) { r.logger = l }
}

// NewReader creates a Reader.
func NewReader(opts ...ReaderOption) *Reader {
	r := &Reader{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadFile reads the export at path and returns the entity tables.
func (r *Reader) ReadFile(path string, format Format) (models.Tables, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return models.Tables{}, fmt.Errorf("read input: %w", err)
	}
	var rows [][]string
	switch format {
	case FormatCSV:
		rows, err = ReadCSV(bytes.NewReader(content))
	case FormatXLSX:
		rows, err = ReadXLSX(bytes.NewReader(content))
	default:
		err = fmt.Errorf("%w: unsupported input format %q", models.ErrInvalidInput, format)
	}
	if err != nil {
		return models.Tables{}, err
	}

	tables, stats, err := split(rows)
	if err != nil {
		return models.Tables{}, err
	}
	r.logger.Info("input loaded",
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.Int("rows", len(rows)-1),
		zap.Int("customers", len(tables.Customers)),
		zap.Int("accounts", len(tables.Accounts)),
		zap.Int("transactions", len(tables.Transactions)),
		zap.Int("loans", len(tables.Loans)))
	if stats.coercedDates > 0 {
		r.logger.Warn("unparsable dates set to zero", zap.Int("count", stats.coercedDates))
	}
	return tables, nil
}

// ReadCSV returns every record of a CSV export, header included.
func ReadCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parse CSV: %v", models.ErrInvalidInput, err)
	}
	return rows, nil
}

// ReadXLSX returns every row of the first sheet of a workbook, header included.
func ReadXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open Excel: %v", models.ErrInvalidInput, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", models.ErrInvalidInput)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}
