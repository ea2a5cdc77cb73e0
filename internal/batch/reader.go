package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/invisible-tech/autopilot-remediation/internal/types"
)

// Reader decodes EventRecords from CSV with a header row.
type Reader struct {
	csv    *csv.Reader
	header []string
	row    int
}

// NewReader reads the header from src.
func NewReader(src io.Reader) (*Reader, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("input has no header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	return &Reader{csv: cr, header: header}, nil
}

// Next returns the next record. Rows that fail validation yield a
// *types.ValidationError carrying the 1-based data row; the reader stays usable.
// io.EOF marks the end of input; other errors are fatal.
func (r *Reader) Next() (types.EventRecord, error) {
	fields, err := r.csv.Read()
	if err != nil {
		return types.EventRecord{}, err
	}
	r.row++
	row := make(map[string]string, len(r.header))
	for i, name := range r.header {
		if i < len(fields) {
			row[name] = fields[i]
		}
	}
	rec, err := types.ParseEventRecord(row)
	if err != nil {
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			verr.Row = r.row
		}
		return types.EventRecord{}, err
	}
	return rec, nil
}

// Row returns the number of data rows read so far.
func (r *Reader) Row() int {
	return r.row
}
