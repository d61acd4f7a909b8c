package store

import (
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Layouts seen for timestamps read back from SQL drivers as text.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

func timeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return parseTime(v)
	case []byte:
		return parseTime(string(v))
	}
	return data, nil
}

func bytesToStringHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if b, ok := data.([]byte); ok && to.Kind() == reflect.String {
		return string(b), nil
	}
	return data, nil
}

// Decode copies a row into out, a pointer to a struct tagged with `mapstructure`.
// Input is weakly typed: SQLite returns booleans as integers and some drivers
// return text for timestamps.
func Decode(row Row, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(bytesToStringHook, timeHook),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("store: decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(row)); err != nil {
		return fmt.Errorf("store: decode row: %w", err)
	}
	return nil
}
