// Package worksheet implements the sheet read pipeline: given a sheet
// part's buffered XML, it yields typed rows joined against the shared
// strings table and style table, as a restartable lazy sequence.
package worksheet

import (
	"bytes"
	"fmt"
	"iter"
	"strconv"
	"time"

	"github.com/xlsxstream/xlsxstream/cellref"
	"github.com/xlsxstream/xlsxstream/cellvalue"
	"github.com/xlsxstream/xlsxstream/internal/xmlstream"
	"github.com/xlsxstream/xlsxstream/serialdate"
	"github.com/xlsxstream/xlsxstream/sharedstrings"
	"github.com/xlsxstream/xlsxstream/styles"
)

// Warning describes a non-fatal anomaly noticed while reading a row: a
// cell's r attribute disagreeing with the column position that follows
// from the strictly-increasing order of the cells already read in the
// row. The r attribute is trusted and the read continues.
type Warning struct {
	Row         int // 1-based row index
	Col         int // the column this codec used, taken from r
	PreviousCol int // the previous cell's column index in this row, or -1
}

func (w Warning) String() string {
	return fmt.Sprintf("malformed sheet: cell %s disagrees with declared column position (previous column %d)",
		cellref.CellRef(w.Row, w.Col), w.PreviousCol)
}

// Sheet is one worksheet part, ready for (repeated) row iteration.
type Sheet struct {
	name          string
	data          []byte
	strings       *sharedstrings.Table
	styles        styles.Table
	date1904      bool
	skipEmptyRows bool
	warnings      []Warning
}

// New constructs a Sheet from the buffered XML of a worksheet part. data is
// retained and re-read from the start on every call to Rows, which is what
// makes sheet iteration restartable.
func New(name string, data []byte, strs *sharedstrings.Table, sty styles.Table, date1904 bool, skipEmptyRows bool) *Sheet {
	return &Sheet{
		name:          name,
		data:          data,
		strings:       strs,
		styles:        sty,
		date1904:      date1904,
		skipEmptyRows: skipEmptyRows,
	}
}

// Name returns the sheet's display name.
func (s *Sheet) Name() string { return s.name }

// Warnings returns the MalformedSheet anomalies observed during the most
// recently completed or abandoned call to Rows.
func (s *Sheet) Warnings() []Warning { return s.warnings }

// Rows returns a restartable lazy sequence of this sheet's rows, joined
// against shared strings and styles. Each call to Rows re-parses the
// sheet's XML from the start. A non-nil error terminates the sequence.
func (s *Sheet) Rows() iter.Seq2[cellvalue.Row, error] {
	return func(yield func(cellvalue.Row, error) bool) {
		s.warnings = nil
		d := xmlstream.NewDecoder(bytes.NewReader(s.data))

		var (
			inRow       bool
			rowIndex    int
			cells       []cellvalue.Cell
			inCell      bool
			cellCol     int
			cellStyle   int
			cellType    string
			vText       string
			inV         bool
			inInlineT   bool
			inlineText  string
			havePrevCol bool
			prevCol     int
		)

		emitRow := func() bool {
			if s.skipEmptyRows && allEmpty(cells) {
				return true
			}
			return yield(cellvalue.NewRow(rowIndex, cells), nil)
		}

		for {
			ev, err := d.Next()
			if err != nil {
				yield(cellvalue.Row{}, fmt.Errorf("worksheet: %q: %w", s.name, err))
				return
			}
			switch ev.Kind {
			case xmlstream.EOF:
				return
			case xmlstream.StartElement:
				switch localName(ev.Name) {
				case "row":
					inRow = true
					cells = nil
					havePrevCol = false
					if r, ok := ev.Attr("r"); ok {
						if n, err := strconv.Atoi(r); err == nil {
							rowIndex = n
						} else {
							rowIndex++
						}
					} else {
						rowIndex++
					}
				case "c":
					if !inRow {
						continue
					}
					inCell = true
					cellType = ""
					cellStyle = 0
					vText = ""
					inlineText = ""
					if t, ok := ev.Attr("t"); ok {
						cellType = t
					}
					if sVal, ok := ev.Attr("s"); ok {
						if n, err := strconv.Atoi(sVal); err == nil {
							cellStyle = n
						}
					}
					if r, ok := ev.Attr("r"); ok {
						if _, col, err := cellref.ParseCellRef(r); err == nil {
							if havePrevCol && col <= prevCol {
								s.warnings = append(s.warnings, Warning{Row: rowIndex, Col: col, PreviousCol: prevCol})
							}
							cellCol = col
						} else if havePrevCol {
							cellCol = prevCol + 1
						} else {
							cellCol = 0
						}
					} else if havePrevCol {
						cellCol = prevCol + 1
					} else {
						cellCol = 0
					}
				case "v":
					inV = true
				case "t":
					if cellType == "inlineStr" {
						inInlineT = true
					}
				}
			case xmlstream.CharData:
				if inV {
					vText += ev.Text
				} else if inInlineT {
					inlineText += ev.Text
				}
			case xmlstream.EndElement:
				switch localName(ev.Name) {
				case "v":
					inV = false
				case "t":
					inInlineT = false
				case "c":
					if inCell {
						val, err := materializeCell(cellType, vText, inlineText, cellStyle, s.styles, s.strings, s.date1904)
						if err != nil {
							yield(cellvalue.Row{}, fmt.Errorf("worksheet: %q: %w", s.name, err))
							return
						}
						cells = append(cells, cellvalue.NewCell(cellCol, val, cellStyle))
						prevCol = cellCol
						havePrevCol = true
						inCell = false
					}
				case "row":
					if inRow {
						inRow = false
						if !emitRow() {
							return
						}
					}
				}
			}
		}
	}
}

func allEmpty(cells []cellvalue.Cell) bool {
	for _, c := range cells {
		if !c.Value.IsEmpty() {
			return false
		}
	}
	return true
}

func materializeCell(t, vText, inlineText string, style int, sty styles.Table, strs *sharedstrings.Table, date1904 bool) (cellvalue.Value, error) {
	switch t {
	case "", "n":
		if vText == "" {
			return cellvalue.Empty, nil
		}
		f, err := strconv.ParseFloat(vText, 64)
		if err != nil {
			return cellvalue.Value{}, fmt.Errorf("parsing numeric cell value %q: %w", vText, err)
		}
		if sty.IsDate(style) {
			epoch := serialdate.Epoch1900
			if date1904 {
				epoch = serialdate.Epoch1904
			}
			return cellvalue.Date(serialdate.ToInstant(f, epoch)), nil
		}
		return cellvalue.Number(f), nil
	case "s":
		idx, err := strconv.Atoi(vText)
		if err != nil {
			return cellvalue.Value{}, fmt.Errorf("parsing shared string index %q: %w", vText, err)
		}
		s, err := strs.Get(idx)
		if err != nil {
			return cellvalue.Value{}, err
		}
		return cellvalue.String(s), nil
	case "str":
		return cellvalue.String(vText), nil
	case "inlineStr":
		return cellvalue.InlineString(inlineText), nil
	case "b":
		return cellvalue.Boolean(vText == "1"), nil
	case "e":
		return cellvalue.Error(vText), nil
	case "d":
		instant, err := time.Parse(time.RFC3339, vText)
		if err != nil {
			return cellvalue.Value{}, fmt.Errorf("parsing ISO-8601 date cell %q: %w", vText, err)
		}
		return cellvalue.Date(instant), nil
	default:
		return cellvalue.Empty, nil
	}
}

func localName(qname string) string {
	for i := len(qname) - 1; i >= 0; i-- {
		if qname[i] == ':' {
			return qname[i+1:]
		}
	}
	return qname
}
