package output

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

func ParseFormat(v string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format %q (expected table, json, or yaml)", v)
	}
}

// WriteStructured renders payload as JSON or YAML. YAML goes through the
// JSON encoding first so both formats use the API's field names.
func WriteStructured(w io.Writer, format Format, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json output: %w", err)
	}

	switch format {
	case FormatJSON:
		data = append(data, '\n')
		_, err = w.Write(data)
		return err
	case FormatYAML:
		var generic any
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&generic); err != nil {
			return fmt.Errorf("normalize yaml output: %w", err)
		}
		out, err := yaml.Marshal(yamlNumbers(generic))
		if err != nil {
			return fmt.Errorf("encode yaml output: %w", err)
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("structured output is only supported for json/yaml")
	}
}

// yamlNumbers turns json.Number leaves into int64 or float64 so YAML prints
// them as numbers instead of quoted strings.
func yamlNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = yamlNumbers(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = yamlNumbers(child)
		}
		return t
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}
