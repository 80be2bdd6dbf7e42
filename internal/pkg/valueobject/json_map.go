// Package valueobject holds small value types shared by storage and transport.
package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

var ErrScanValueNotBytes = errors.New("valueobject: unsupported JSONMap scan source")

// JSONMap is a free-form JSON object stored in a jsonb column.
// @swaggertype object
type JSONMap map[string]any

func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return []byte("{}"), nil
	}

	return json.Marshal(j)
}

func (j *JSONMap) Scan(src any) error {
	var raw []byte

	switch v := src.(type) {
	case nil:
		*j = JSONMap{}
		return nil
	case map[string]any:
		*j = v
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return ErrScanValueNotBytes
	}

	out := JSONMap{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*j = out

	return nil
}

// GetString returns the string under key, or "".
func (j JSONMap) GetString(key string) string {
	s, _ := j[key].(string)
	return s
}

// SetIfNotEmpty stores value unless it is the empty string.
func (j JSONMap) SetIfNotEmpty(key, value string) {
	if value != "" {
		j[key] = value
	}
}
