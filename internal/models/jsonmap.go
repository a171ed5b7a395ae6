package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONMap maps a jsonb column to a Go map.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("jsonmap: unsupported source type")
	}
	return json.Unmarshal(b, m)
}
