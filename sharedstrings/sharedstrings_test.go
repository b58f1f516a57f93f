package sharedstrings_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xlsxstream/xlsxstream/sharedstrings"
	"github.com/xlsxstream/xlsxstream/xlsxerr"
)

func TestReadBasic(t *testing.T) {
	xml := `<?xml version="1.0" encoding="UTF-8"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" count="2" uniqueCount="2">
<si><t>hello</t></si>
<si><t xml:space="preserve">  padded  </t></si>
</sst>`
	table, err := sharedstrings.New(strings.NewReader(xml))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", table.Len())
	}
	got, err := table.Get(0)
	if err != nil || got != "hello" {
		t.Errorf("Get(0) = %q, %v, want \"hello\", nil", got, err)
	}
	got, err = table.Get(1)
	if err != nil || got != "  padded  " {
		t.Errorf("Get(1) = %q, %v, want \"  padded  \", nil", got, err)
	}
}

func TestGetOutOfRange(t *testing.T) {
	table, err := sharedstrings.New(strings.NewReader(`<sst/>`))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := table.Get(0); !errors.Is(err, xlsxerr.ErrInvalidSharedStringIndex) {
		t.Errorf("Get(0) error = %v, want ErrInvalidSharedStringIndex", err)
	}
}

func TestWriterInternDedup(t *testing.T) {
	w := sharedstrings.NewWriter()
	i1 := w.Intern("apple")
	i2 := w.Intern("banana")
	i3 := w.Intern("apple")
	if i1 != i3 {
		t.Errorf("Intern(\"apple\") returned different indices: %d vs %d", i1, i3)
	}
	if i2 == i1 {
		t.Errorf("Intern(\"banana\") collided with Intern(\"apple\")")
	}
	if w.Len() != 2 {
		t.Errorf("Len() = %d, want 2", w.Len())
	}
}

func TestWriterReadRoundTrip(t *testing.T) {
	w := sharedstrings.NewWriter()
	w.Intern("hello")
	w.Intern("  leading space")
	w.Intern("trailing space  ")

	var buf bytes.Buffer
	if err := w.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo() error: %v", err)
	}

	table, err := sharedstrings.New(&buf)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if table.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", table.Len())
	}
	want := []string{"hello", "  leading space", "trailing space  "}
	for i, w := range want {
		got, err := table.Get(i)
		if err != nil {
			t.Fatalf("Get(%d) error: %v", i, err)
		}
		if got != w {
			t.Errorf("Get(%d) = %q, want %q", i, got, w)
		}
	}
}
