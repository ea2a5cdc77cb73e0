package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Column names of the event interchange format. Legacy exports use the
// alternate names listed in aliases.
const (
	ColEventID       = "event_id"
	ColServiceName   = "service_name"
	ColRegion        = "region"
	ColStatus        = "status"
	ColCPUPercent    = "cpu_percent"
	ColMemoryPercent = "memory_percent"
	ColDiskPercent   = "disk_percent"
	ColErrorRate     = "error_rate"
	ColLatencyMs     = "latency_ms"
	ColTrafficLevel  = "traffic_level"
	ColRestartCount  = "restart_count"

	colErrorRatePercent = "error_rate_percent"
)

var aliases = map[string][]string{
	ColLatencyMs:    {"response_time_ms"},
	ColRestartCount: {"previous_restarts"},
}

// ParseEventRecord builds an EventRecord from one row of named fields. Every
// missing or malformed field is reported in a single *ValidationError.
func ParseEventRecord(row map[string]string) (EventRecord, error) {
	p := &rowParser{row: row}
	rec := EventRecord{
		EventID:       p.int64(ColEventID, true),
		ServiceName:   p.str(ColServiceName, true),
		Region:        p.str(ColRegion, false),
		CPUPercent:    p.float(ColCPUPercent, true),
		MemoryPercent: p.float(ColMemoryPercent, false),
		DiskPercent:   p.float(ColDiskPercent, true),
		LatencyMs:     p.float(ColLatencyMs, true),
		RestartCount:  int(p.int64(ColRestartCount, true)),
	}
	rec.ErrorRate = p.errorRate()
	if v, ok := p.lookup(ColStatus, true); ok {
		st, err := ParseStatus(v)
		if err != nil {
			p.errs = append(p.errs, field.NotSupported(field.NewPath(ColStatus), v,
				[]string{string(StatusOK), string(StatusWarning), string(StatusCritical)}))
		}
		rec.Status = st
	}
	if v, ok := p.lookup(ColTrafficLevel, true); ok {
		lvl, err := ParseTrafficLevel(v)
		if err != nil {
			p.errs = append(p.errs, field.Invalid(field.NewPath(ColTrafficLevel), v, err.Error()))
		}
		rec.TrafficLevel = lvl
	}

	// Range checks run even after a parse failure so one error lists every
	// bad field; fields that already failed to parse are not reported twice.
	errs := p.errs
	reported := make(map[string]bool, len(errs))
	for _, fe := range errs {
		reported[fe.Field] = true
	}
	for _, fe := range rec.validate() {
		if !reported[fe.Field] {
			errs = append(errs, fe)
		}
	}
	if len(errs) > 0 {
		return EventRecord{}, &ValidationError{EventID: strings.TrimSpace(row[ColEventID]), Errs: errs}
	}
	return rec, nil
}

// ParseEventJSON decodes one JSON object with the same required fields,
// legacy aliases and error reporting as ParseEventRecord. Values may be JSON
// strings, numbers or booleans; null counts as missing. Keys are matched
// case-insensitively.
func ParseEventJSON(data []byte) (EventRecord, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return EventRecord{}, err
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	row := make(map[string]string, len(raw))
	var bad field.ErrorList
	for _, k := range keys {
		name := strings.ToLower(strings.TrimSpace(k))
		v, err := jsonScalar(raw[k])
		if err != nil {
			bad = append(bad, field.Invalid(field.NewPath(name), string(raw[k]), err.Error()))
			continue
		}
		row[name] = v
	}

	rec, err := ParseEventRecord(row)
	if len(bad) == 0 {
		return rec, err
	}
	verr := &ValidationError{EventID: strings.TrimSpace(row[ColEventID]), Errs: bad}
	var perr *ValidationError
	if errors.As(err, &perr) {
		seen := make(map[string]bool, len(bad))
		for _, fe := range bad {
			seen[fe.Field] = true
		}
		for _, fe := range perr.Errs {
			if !seen[fe.Field] {
				verr.Errs = append(verr.Errs, fe)
			}
		}
	}
	return EventRecord{}, verr
}

func jsonScalar(v json.RawMessage) (string, error) {
	t := bytes.TrimSpace(v)
	if len(t) == 0 || string(t) == "null" {
		return "", nil
	}
	switch t[0] {
	case '"':
		var s string
		if err := json.Unmarshal(t, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", errors.New("must be a string, number or boolean")
	}
	return string(t), nil
}

type rowParser struct {
	row  map[string]string
	errs field.ErrorList
}

func (p *rowParser) lookup(name string, required bool) (string, bool) {
	for _, key := range append([]string{name}, aliases[name]...) {
		if v, ok := p.row[key]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	if required {
		p.errs = append(p.errs, field.Required(field.NewPath(name), ""))
	}
	return "", false
}

func (p *rowParser) str(name string, required bool) string {
	v, _ := p.lookup(name, required)
	return v
}

func (p *rowParser) float(name string, required bool) float64 {
	v, ok := p.lookup(name, required)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, field.Invalid(field.NewPath(name), v, "not a number"))
		return 0
	}
	return f
}

func (p *rowParser) int64(name string, required bool) int64 {
	v, ok := p.lookup(name, required)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.errs = append(p.errs, field.Invalid(field.NewPath(name), v, "not an integer"))
		return 0
	}
	return n
}

// errorRate reads error_rate as a fraction, falling back to the legacy
// error_rate_percent column.
func (p *rowParser) errorRate() float64 {
	if _, ok := p.row[ColErrorRate]; ok {
		return p.float(ColErrorRate, true)
	}
	if _, ok := p.row[colErrorRatePercent]; ok {
		return p.float(colErrorRatePercent, true) / 100
	}
	p.errs = append(p.errs, field.Required(field.NewPath(ColErrorRate), ""))
	return 0
}
