package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ChangeFilter selects change events. Empty Type matches every operation.
// Filter has the form "column=eq.value" and is applied to the new row for
// inserts and updates and to the old row for deletes.
type ChangeFilter struct {
	Type   ChangeType
	Schema string
	Table  string
	Filter string
}

func (f ChangeFilter) topic() string { return ChangeTopic(f.Schema, f.Table) }

func (f ChangeFilter) parse() (column, value string, err error) {
	if f.Table == "" {
		return "", "", fmt.Errorf("%w: table is required", ErrInvalidFilter)
	}
	switch f.Type {
	case "", Insert, Update, Delete:
	default:
		return "", "", fmt.Errorf("%w: unknown type %q", ErrInvalidFilter, f.Type)
	}
	if f.Filter == "" {
		return "", "", nil
	}
	column, rest, ok := strings.Cut(f.Filter, "=")
	if !ok || column == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidFilter, f.Filter)
	}
	value, ok = strings.CutPrefix(rest, "eq.")
	if !ok {
		return "", "", fmt.Errorf("%w: only eq is supported in %q", ErrInvalidFilter, f.Filter)
	}
	return column, value, nil
}

type changeBinding struct {
	filter  ChangeFilter
	topic   string
	column  string
	value   string
	handler ChangeHandler
}

func (b changeBinding) matches(ev ChangeEvent) bool {
	if b.filter.Type != "" && b.filter.Type != ev.Type {
		return false
	}
	if ChangeTopic(ev.Schema, ev.Table) != b.topic {
		return false
	}
	if b.column == "" {
		return true
	}

	var row map[string]any
	if err := json.Unmarshal(ev.Row(), &row); err != nil {
		return false
	}
	v, ok := row[b.column]
	if !ok || v == nil {
		return false
	}
	return fmt.Sprint(v) == b.value
}
