// Package styles holds the resolved number-format metadata parsed from
// xl/styles.xml. It is a deliberately small, import-cycle-free package so
// that both workbook/ and worksheet/ can depend on it without introducing
// circular imports.
//
// Only date detection is implemented here — rendering a number format to a
// display string is out of scope for this codec.
package styles

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/nfp"

	"github.com/xlsxstream/xlsxstream/internal/xmlstream"
)

// XF holds the resolved formatting information for one cell-format index as
// read from the <cellXfs> table in xl/styles.xml.
type XF struct {
	// NumFmtID is the numFmtId attribute. Values 0-163 are built-in Excel
	// formats; values >= 164 are custom formats defined by a <numFmt>
	// entry in the same part.
	NumFmtID int
	// FormatStr is the custom format string for NumFmtID, resolved from
	// <numFmts>. It is empty for built-in IDs with no custom override.
	FormatStr string
}

// Table maps XF index to XF. The slice index is the 0-based style index
// stored on a cell (the `s` attribute).
type Table []XF

// IsDate reports whether the XF at index s represents a date or datetime
// number format. It returns false when s is out of range or the table is
// empty, matching the "missing styles.xml means all cells are General"
// behaviour this codec falls back to.
func (t Table) IsDate(s int) bool {
	if s < 0 || s >= len(t) {
		return false
	}
	return IsDateFormatID(t[s].NumFmtID, t[s].FormatStr)
}

// FmtStr returns the custom format string for style index s, or an empty
// string when s is out of range.
func (t Table) FmtStr(s int) string {
	if s < 0 || s >= len(t) {
		return ""
	}
	return t[s].FormatStr
}

// IsDateFormatID reports whether the given numFmtId (and optional custom
// format string) represents a date or datetime format.
//
// Built-in date/time ranges: 14-22, 27-36, 45-47, 50-58, 71-81 (the last
// range covers the localized date/time built-ins ECMA-376 §18.8.30 reserves
// above the legacy BIFF8 set). For custom formats (id >= 164), the format
// string is parsed once with xuri/nfp and classified a date format if any
// section contains a date/time or elapsed-date/time token — replacing the
// quote/bracket-aware character scan the underlying BIFF12 reader this
// package is descended from used to hand-roll for the same purpose.
func IsDateFormatID(id int, formatStr string) bool {
	switch {
	case id >= 14 && id <= 22:
		return true
	case id >= 27 && id <= 36:
		return true
	case id >= 45 && id <= 47:
		return true
	case id >= 50 && id <= 58:
		return true
	case id >= 71 && id <= 81:
		return true
	}
	if id < 164 || formatStr == "" {
		return false
	}
	return scanCustomFormatForDateTokens(formatStr)
}

func scanCustomFormatForDateTokens(formatStr string) bool {
	sections := nfp.NumberFormatParser().Parse(formatStr)
	for _, sec := range sections {
		for _, tok := range sec.Items {
			if tok.TType == nfp.TokenTypeDateTimes || tok.TType == nfp.TokenTypeElapsedDateTimes {
				return true
			}
		}
	}
	return false
}

// Read parses xl/styles.xml: the <numFmts> custom-format definitions and
// the <cellXfs> ordered list of cell formats. r must be positioned at the
// start of the styles.xml document.
func Read(r io.Reader) (Table, error) {
	d := xmlstream.NewDecoder(r)

	customFmts := map[int]string{}
	var table Table
	var inCellXfs bool

	for {
		ev, err := d.Next()
		if err != nil {
			return nil, fmt.Errorf("styles: %w", err)
		}
		switch ev.Kind {
		case xmlstream.EOF:
			return table, nil
		case xmlstream.StartElement:
			switch localName(ev.Name) {
			case "numFmt":
				idStr, _ := ev.Attr("numFmtId")
				id, err := strconv.Atoi(idStr)
				if err != nil {
					continue
				}
				code, _ := ev.Attr("formatCode")
				customFmts[id] = code
			case "cellXfs":
				inCellXfs = true
			case "xf":
				if !inCellXfs {
					continue
				}
				numFmtID := 0
				if v, ok := ev.Attr("numFmtId"); ok {
					if n, err := strconv.Atoi(v); err == nil {
						numFmtID = n
					}
				}
				table = append(table, XF{
					NumFmtID:  numFmtID,
					FormatStr: customFmts[numFmtID],
				})
			}
		case xmlstream.EndElement:
			if localName(ev.Name) == "cellXfs" {
				inCellXfs = false
			}
		}
	}
}

func localName(qname string) string {
	if i := strings.IndexByte(qname, ':'); i >= 0 {
		return qname[i+1:]
	}
	return qname
}

// Writer builds a minimal xl/styles.xml for output: a fixed index-0
// non-date style plus a fixed index-1 date style. WriteTo always emits both,
// whether or not any date cell was written.
type Writer struct {
	dateStyleIndex int
	hasDateStyle   bool
}

// NewWriter returns a Writer whose styles part holds the General style at
// index 0 and the date style at index 1.
func NewWriter() *Writer {
	return &Writer{}
}

// DateStyleIndex returns the style index to use for a date cell; it is
// always 1.
func (w *Writer) DateStyleIndex() int {
	if !w.hasDateStyle {
		w.dateStyleIndex = 1
		w.hasDateStyle = true
	}
	return w.dateStyleIndex
}

// NonDateStyleIndex returns the style index for any non-date cell.
func (w *Writer) NonDateStyleIndex() int {
	return 0
}

// WriteTo serialises the styles part.
func (w *Writer) WriteTo(sink io.Writer) error {
	xw := xmlstream.NewWriter(sink)
	if err := xw.ProcessingInstruction("xml", `version="1.0" encoding="UTF-8" standalone="yes"`); err != nil {
		return err
	}
	if err := xw.Open("styleSheet", []xmlstream.Attr{
		{Name: "xmlns", Value: "http://schemas.openxmlformats.org/spreadsheetml/2006/main"},
	}); err != nil {
		return err
	}

	if err := xw.Open("numFmts", []xmlstream.Attr{{Name: "count", Value: "1"}}); err != nil {
		return err
	}
	if err := xw.Empty("numFmt", []xmlstream.Attr{
		{Name: "numFmtId", Value: "164"},
		{Name: "formatCode", Value: "yyyy-mm-dd\\ hh:mm:ss"},
	}); err != nil {
		return err
	}
	if err := xw.Close("numFmts"); err != nil {
		return err
	}

	if err := xw.Open("fonts", []xmlstream.Attr{{Name: "count", Value: "1"}}); err != nil {
		return err
	}
	if err := xw.Empty("font", nil); err != nil {
		return err
	}
	if err := xw.Close("fonts"); err != nil {
		return err
	}

	if err := xw.Open("fills", []xmlstream.Attr{{Name: "count", Value: "1"}}); err != nil {
		return err
	}
	if err := xw.Empty("fill", nil); err != nil {
		return err
	}
	if err := xw.Close("fills"); err != nil {
		return err
	}

	if err := xw.Open("borders", []xmlstream.Attr{{Name: "count", Value: "1"}}); err != nil {
		return err
	}
	if err := xw.Empty("border", nil); err != nil {
		return err
	}
	if err := xw.Close("borders"); err != nil {
		return err
	}

	if err := xw.Open("cellXfs", []xmlstream.Attr{{Name: "count", Value: "2"}}); err != nil {
		return err
	}
	if err := xw.Empty("xf", []xmlstream.Attr{{Name: "numFmtId", Value: "0"}}); err != nil {
		return err
	}
	if err := xw.Empty("xf", []xmlstream.Attr{
		{Name: "numFmtId", Value: "164"},
		{Name: "applyNumberFormat", Value: "1"},
	}); err != nil {
		return err
	}
	if err := xw.Close("cellXfs"); err != nil {
		return err
	}

	return xw.Close("styleSheet")
}
