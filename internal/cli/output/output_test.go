package output

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

type sample struct {
	Name    string    `json:"name" yaml:"name"`
	Entries int       `json:"entries" yaml:"entries"`
	Since   time.Time `json:"since" yaml:"since"`
	Empty   string    `json:"empty,omitempty" yaml:"empty,omitempty"`
	hidden  string
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"", FormatTable, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = (%q, %v)", tt.in, got, err)
		}
	}
}

func TestTableFormatter_Struct(t *testing.T) {
	var buf bytes.Buffer
	data := sample{Name: "filekv", Entries: 3, hidden: "x"}

	if err := NewFormatter(FormatTable).Format(&buf, &data); err != nil {
		t.Fatalf("Format: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"FIELD", "name", "filekv", "entries", "3", "since", "-"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hidden") {
		t.Error("unexported field rendered")
	}
}

func TestTableFormatter_StringAndTable(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{}

	if err := f.Format(&buf, `{"a":1}`); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "{\"a\":1}\n" {
		t.Errorf("string output = %q", buf.String())
	}

	buf.Reset()
	tbl := &Table{Headers: []string{"KEY", "RESULT"}}
	tbl.AddRow("user1", "ok")
	if err := f.Format(&buf, tbl); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "user1") {
		t.Errorf("table output = %q", buf.String())
	}

	buf.Reset()
	if err := f.Format(&buf, 42); err == nil {
		t.Error("Format(int) expected error")
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatJSON).Format(&buf, sample{Name: "a"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"name": "a"`) {
		t.Errorf("json output = %s", buf.String())
	}
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatYAML).Format(&buf, sample{Name: "a", Entries: 2}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "name: a") || !strings.Contains(out, "entries: 2") {
		t.Errorf("yaml output = %s", out)
	}
	if strings.Contains(out, "empty") {
		t.Error("omitempty ignored")
	}
}
