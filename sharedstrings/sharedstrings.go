// Package sharedstrings parses and builds the xl/sharedStrings.xml part: the
// insertion-ordered table of string values interned out of cell content so
// repeated strings are stored once.
package sharedstrings

import (
	"fmt"
	"io"
	"strings"

	"github.com/xlsxstream/xlsxstream/internal/xmlstream"
	"github.com/xlsxstream/xlsxstream/xlsxerr"
)

// Table holds the shared strings parsed from xl/sharedStrings.xml, indexed
// by appearance order.
type Table struct {
	strings []string
}

// New reads every <si> entry from r and returns a populated Table. r must
// be positioned at the start of the sharedStrings.xml document.
func New(r io.Reader) (*Table, error) {
	t := &Table{}
	d := xmlstream.NewDecoder(r)

	var (
		inSI        bool
		inT         bool
		preserve    bool
		current     strings.Builder
		haveCurrent bool
	)
	for {
		ev, err := d.Next()
		if err != nil {
			return nil, fmt.Errorf("sharedstrings: %w", err)
		}
		switch ev.Kind {
		case xmlstream.EOF:
			if inSI {
				t.strings = append(t.strings, current.String())
			}
			return t, nil
		case xmlstream.StartElement:
			switch localName(ev.Name) {
			case "si":
				inSI = true
				haveCurrent = true
				current.Reset()
			case "t":
				inT = true
				preserve = false
				if v, ok := ev.Attr("space"); ok && v == "preserve" {
					preserve = true
				}
			}
		case xmlstream.EndElement:
			switch localName(ev.Name) {
			case "si":
				t.strings = append(t.strings, current.String())
				inSI = false
				haveCurrent = false
			case "t":
				inT = false
			}
		case xmlstream.CharData:
			if inT && haveCurrent {
				text := ev.Text
				if !preserve {
					text = strings.TrimSpace(text)
				}
				current.WriteString(text)
			}
		}
	}
}

// Get returns the shared string at index idx. It fails with
// xlsxerr.ErrInvalidSharedStringIndex if idx is out of range, including
// when called on a nil Table (a workbook with no xl/sharedStrings.xml
// part has no valid index at all).
func (t *Table) Get(idx int) (string, error) {
	if t == nil || idx < 0 || idx >= len(t.strings) {
		return "", fmt.Errorf("sharedstrings: index %d: %w", idx, xlsxerr.ErrInvalidSharedStringIndex)
	}
	return t.strings[idx], nil
}

// Len returns the total number of shared strings loaded. A nil Table has
// length 0.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.strings)
}

func localName(qname string) string {
	if i := strings.IndexByte(qname, ':'); i >= 0 {
		return qname[i+1:]
	}
	return qname
}

// Writer builds an insertion-ordered shared-strings table for output.
// Intern is append-only: once a string is interned it keeps its index for
// the writer's lifetime.
type Writer struct {
	index map[string]int
	order []string
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{index: make(map[string]int)}
}

// Intern returns the index of text, appending it if this is the first time
// it has been seen.
func (w *Writer) Intern(text string) int {
	if idx, ok := w.index[text]; ok {
		return idx
	}
	idx := len(w.order)
	w.index[text] = idx
	w.order = append(w.order, text)
	return idx
}

// Len returns the number of distinct strings interned so far.
func (w *Writer) Len() int {
	return len(w.order)
}

// WriteTo serialises the table as xl/sharedStrings.xml in index order.
func (w *Writer) WriteTo(sink io.Writer) error {
	xw := xmlstream.NewWriter(sink)
	if err := xw.ProcessingInstruction("xml", `version="1.0" encoding="UTF-8" standalone="yes"`); err != nil {
		return err
	}
	count := fmt.Sprintf("%d", len(w.order))
	if err := xw.Open("sst", []xmlstream.Attr{
		{Name: "xmlns", Value: "http://schemas.openxmlformats.org/spreadsheetml/2006/main"},
		{Name: "count", Value: count},
		{Name: "uniqueCount", Value: count},
	}); err != nil {
		return err
	}
	for _, s := range w.order {
		if err := xw.Open("si", nil); err != nil {
			return err
		}
		attrs := []xmlstream.Attr(nil)
		if needsPreserve(s) {
			attrs = []xmlstream.Attr{{Name: "xml:space", Value: "preserve"}}
		}
		if err := xw.Open("t", attrs); err != nil {
			return err
		}
		if err := xw.Text(s); err != nil {
			return err
		}
		if err := xw.Close("t"); err != nil {
			return err
		}
		if err := xw.Close("si"); err != nil {
			return err
		}
	}
	return xw.Close("sst")
}

func needsPreserve(s string) bool {
	return strings.TrimSpace(s) != s
}
