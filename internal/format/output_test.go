package format

import (
	"bytes"
	"strings"
	"testing"
)

type rows struct{}

func (rows) TableHeaders() []string { return []string{"ID", "RANK"} }
func (rows) TableRows() [][]string  { return [][]string{{"t1", "1000"}, {"t2", "2000"}} }

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, map[string]int{"a": 1}, "", false); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.String() != "{\"a\":1}\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
	buf.Reset()
	if err := Write(&buf, map[string]int{"a": 1}, "json", true); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.String() != "{\n  \"a\": 1\n}\n" {
		t.Fatalf("unexpected pretty output %q", buf.String())
	}
}

func TestWrite_Table(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, rows{}, "table", false); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"ID", "RANK", "t1", "2000"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := Write(&buf, map[string]int{"a": 1}, "table", false); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "\"a\": 1") {
		t.Fatalf("expected JSON fallback, got %q", buf.String())
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, 1, "edn", false); err == nil {
		t.Fatalf("expected error")
	}
}
