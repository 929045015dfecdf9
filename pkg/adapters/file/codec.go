package file

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the serialization used by a chart file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// listKeys are the top-level keys accepted when a document wraps its records in an object.
var listKeys = []string{"positions", "entries", "puestos"}

// FormatFor picks the format from the file extension. Anything that is not JSON is read as YAML.
func FormatFor(path string) Format {
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		return FormatJSON
	}
	return FormatYAML
}

// decodeRecords accepts either a bare list of records or an object holding
// the list under one of listKeys.
func decodeRecords(data []byte, format Format) ([]map[string]any, error) {
	var doc any
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	}

	var list []any
	switch v := doc.(type) {
	case nil:
		return nil, nil
	case []any:
		list = v
	case map[string]any:
		for _, key := range listKeys {
			if inner, ok := v[key].([]any); ok {
				list = inner
				break
			}
		}
		if list == nil {
			return nil, fmt.Errorf("no record list found (expected one of %v)", listKeys)
		}
	default:
		return nil, fmt.Errorf("unexpected document root %T", doc)
	}

	records := make([]map[string]any, 0, len(list))
	for i, item := range list {
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("record %d: expected an object, got %T", i, item)
		}
		records = append(records, rec)
	}
	return records, nil
}

func encodeRecords(records []map[string]any, format Format) ([]byte, error) {
	doc := map[string]any{"positions": records}
	if records == nil {
		doc["positions"] = []map[string]any{}
	}

	switch format {
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	default:
		return yaml.Marshal(doc)
	}
}
