package batch

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/invisible-tech/autopilot-remediation/internal/types"
)

// Header is the decision output column order.
var Header = []string{"event_id", "service_name", "status", "recommended_action", "reason", "severity"}

// Writer encodes decisions as CSV rows under Header.
type Writer struct {
	csv         *csv.Writer
	wroteHeader bool
}

// NewWriter creates a Writer on dst.
func NewWriter(dst io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(dst)}
}

// Write appends one decision row, writing the header first if needed.
func (w *Writer) Write(d types.Decision) error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	return w.csv.Write([]string{
		strconv.FormatInt(d.EventID, 10),
		d.ServiceName,
		string(d.Status),
		string(d.Action),
		d.Reason,
		string(d.Severity),
	})
}

func (w *Writer) writeHeader() error {
	if w.wroteHeader {
		return nil
	}
	w.wroteHeader = true
	return w.csv.Write(Header)
}

// Flush writes buffered rows. An empty batch still gets a header.
func (w *Writer) Flush() error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	w.csv.Flush()
	return w.csv.Error()
}
