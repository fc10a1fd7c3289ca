package awslambda

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Report holds the figures of a Lambda invocation report, read from either
// the REPORT log line or a JSON platform.report record. Durations are in
// milliseconds, memory in megabytes.
type Report struct {
	RequestID      string
	Duration       float64
	BilledDuration float64
	InitDuration   float64
	MemorySize     int
	MaxMemoryUsed  int
}

// reportField matches "Key: value" pairs at the start of a tab-separated
// field, so "Restore Duration" never reads as "Duration".
var reportField = regexp.MustCompile(`(?:^REPORT |\t)(RequestId|Duration|Billed Duration|Init Duration|Memory Size|Max Memory Used): ([^\t]*)`)

// ParseReport extracts the last report of a log tail. Both log formats are
// read: the plain-text REPORT line and the JSON platform.report record of
// functions logging in JSON. ok is false when the tail has no report with a
// duration.
func ParseReport(tail string) (r Report, ok bool) {
	lines := strings.Split(tail, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		switch {
		case strings.HasPrefix(line, "REPORT "):
			return parseTextReport(line)
		case strings.HasPrefix(line, "{"):
			if r, found, ok := parseJSONReport(line); found {
				return r, ok
			}
		}
	}
	return Report{}, false
}

func parseTextReport(line string) (r Report, hasDuration bool) {
	for _, m := range reportField.FindAllStringSubmatch(line, -1) {
		v := strings.TrimSpace(m[2])
		v = strings.TrimSuffix(strings.TrimSuffix(v, " ms"), " MB")
		switch m[1] {
		case "RequestId":
			r.RequestID = v
		case "Duration":
			r.Duration, hasDuration = parseFloat(v)
		case "Billed Duration":
			r.BilledDuration, _ = parseFloat(v)
		case "Init Duration":
			r.InitDuration, _ = parseFloat(v)
		case "Memory Size":
			r.MemorySize, _ = strconv.Atoi(v)
		case "Max Memory Used":
			r.MaxMemoryUsed, _ = strconv.Atoi(v)
		}
	}
	return r, hasDuration
}

// platformRecord is a JSON-format platform log event.
type platformRecord struct {
	Type   string `json:"type"`
	Record struct {
		RequestID string `json:"requestId"`
		Metrics   struct {
			DurationMs       *float64 `json:"durationMs"`
			BilledDurationMs float64  `json:"billedDurationMs"`
			InitDurationMs   float64  `json:"initDurationMs"`
			MemorySizeMB     int      `json:"memorySizeMB"`
			MaxMemoryUsedMB  int      `json:"maxMemoryUsedMB"`
		} `json:"metrics"`
	} `json:"record"`
}

// parseJSONReport decodes a platform.report record. found is false for any
// other line, including application JSON logs and lines cut off by the tail.
func parseJSONReport(line string) (r Report, found, ok bool) {
	var rec platformRecord
	if err := json.Unmarshal([]byte(line), &rec); err != nil || rec.Type != "platform.report" {
		return Report{}, false, false
	}
	m := rec.Record.Metrics
	r = Report{
		RequestID:      rec.Record.RequestID,
		BilledDuration: m.BilledDurationMs,
		InitDuration:   m.InitDurationMs,
		MemorySize:     m.MemorySizeMB,
		MaxMemoryUsed:  m.MaxMemoryUsedMB,
	}
	if m.DurationMs == nil {
		return r, true, false
	}
	r.Duration = *m.DurationMs
	return r, true, true
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}
