package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"": FormatTable, "table": FormatTable, "JSON": FormatJSON, "yaml": FormatYAML, "yml": FormatYAML}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) got=%q err=%v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("expected invalid format error")
	}
}

type snapshotLike struct {
	PageViews  int64   `json:"pageViews"`
	BounceRate float64 `json:"bounceRate"`
	Country    *string `json:"country"`
}

func TestWriteStructuredUsesJSONFieldNames(t *testing.T) {
	payload := snapshotLike{PageViews: 3, BounceRate: 50.5}

	jsonOut := &bytes.Buffer{}
	if err := WriteStructured(jsonOut, FormatJSON, payload); err != nil {
		t.Fatalf("WriteStructured(JSON) error = %v", err)
	}
	if !strings.Contains(jsonOut.String(), `"pageViews": 3`) {
		t.Fatalf("unexpected json output: %s", jsonOut.String())
	}

	yamlOut := &bytes.Buffer{}
	if err := WriteStructured(yamlOut, FormatYAML, payload); err != nil {
		t.Fatalf("WriteStructured(YAML) error = %v", err)
	}
	got := yamlOut.String()
	for _, want := range []string{"pageViews: 3\n", "bounceRate: 50.5\n", "country: null\n"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in yaml output: %s", want, got)
		}
	}
}

func TestWriteTable(t *testing.T) {
	out := &bytes.Buffer{}
	err := WriteTable(out, []string{"ID", "DOMAIN"}, [][]string{{"demo", "localhost"}})
	if err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}
	if !strings.Contains(out.String(), "DOMAIN") || !strings.Contains(out.String(), "localhost") {
		t.Fatalf("unexpected table output: %s", out.String())
	}
	if err := WriteTable(out, []string{"A", "B"}, [][]string{{"only-one"}}); err == nil {
		t.Fatalf("expected column count error")
	}
}

func TestValueFormatting(t *testing.T) {
	if got := Percent(12.5); got != "12.5%" {
		t.Fatalf("Percent() = %q", got)
	}
	if got := Trend(20); got != "+20%" {
		t.Fatalf("Trend(20) = %q", got)
	}
	if got := Trend(-7.25); got != "-7.25%" {
		t.Fatalf("Trend(-7.25) = %q", got)
	}
	if got := Seconds(42.4); got != "42s" {
		t.Fatalf("Seconds(42.4) = %q", got)
	}
	if got := Seconds(65); got != "1m05s" {
		t.Fatalf("Seconds(65) = %q", got)
	}
	if got := Truncate("https://example.com/very/long/path", 12); got != "https://e..." {
		t.Fatalf("Truncate() = %q", got)
	}
}
