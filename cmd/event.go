package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
)

// defaultPayload is sent when no event file applies to a function.
var defaultPayload = []byte(`{}`)

// eventSources maps functions to JSON event files. An entry under "*" (or a
// bare --event path) applies to every function without its own entry.
type eventSources map[string]string

// parseEventSources merges the events section of the config file with
// --event flags ("path" or "function=path"); flags win.
func parseEventSources(specs []string, fromFile map[string]string) (eventSources, error) {
	src := eventSources{}
	for fn, path := range fromFile {
		src[fn] = path
	}
	for _, spec := range specs {
		fn, path := "*", spec
		if i := strings.Index(spec, "="); i >= 0 {
			fn, path = spec[:i], spec[i+1:]
		}
		if fn == "" || path == "" {
			return nil, fmt.Errorf("invalid --event %q: want PATH or FUNCTION=PATH", spec)
		}
		src[fn] = path
	}
	return src, nil
}

// payloads reads the event of every function in names. Files are read once
// and must contain valid JSON.
func (src eventSources) payloads(names []string) (map[string][]byte, error) {
	for fn := range src {
		if fn == "*" {
			continue
		}
		if !slices.Contains(names, fn) {
			return nil, fmt.Errorf("event given for %q, which is not being tuned", fn)
		}
	}
	read := map[string][]byte{}
	out := make(map[string][]byte, len(names))
	for _, fn := range names {
		path, ok := src[fn]
		if !ok {
			path, ok = src["*"]
		}
		if !ok {
			out[fn] = defaultPayload
			continue
		}
		if data, seen := read[path]; seen {
			out[fn] = data
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read event for %s: %w", fn, err)
		}
		if !json.Valid(data) {
			return nil, fmt.Errorf("event file %s is not valid JSON", path)
		}
		read[path] = data
		out[fn] = data
	}
	return out, nil
}
