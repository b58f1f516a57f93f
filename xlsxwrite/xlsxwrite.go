// Package xlsxwrite implements the sheet write pipeline and package
// finalisation: a Writer streams each sheet's rows straight through to a
// ZIP entry as they are pulled from a lazy row sequence, then emits the
// shared strings, styles, workbook, and package-manifest parts on Close.
package xlsxwrite

import (
	"bytes"
	"fmt"
	"io"
	"iter"
	"strconv"

	"github.com/xlsxstream/xlsxstream/cellref"
	"github.com/xlsxstream/xlsxstream/cellvalue"
	"github.com/xlsxstream/xlsxstream/internal/xmlstream"
	"github.com/xlsxstream/xlsxstream/internal/zipstream"
	"github.com/xlsxstream/xlsxstream/serialdate"
	"github.com/xlsxstream/xlsxstream/sharedstrings"
	"github.com/xlsxstream/xlsxstream/styles"
	"github.com/xlsxstream/xlsxstream/xlsxerr"
)

const mainNS = "http://schemas.openxmlformats.org/spreadsheetml/2006/main"
const relNS = "http://schemas.openxmlformats.org/package/2006/relationships"
const relsDocNS = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

// WriteOptions controls how a package is written.
type WriteOptions struct {
	// Epoch selects the date system written to xl/workbook.xml's
	// date1904 attribute and used to convert date cells to serials.
	Epoch serialdate.Epoch
}

// DefaultWriteOptions returns the 1900 epoch, matching the default most
// spreadsheet applications assume in the absence of a date1904 attribute.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{Epoch: serialdate.Epoch1900}
}

// Writer streams a new .xlsx package to w. Call WriteSheet once per sheet,
// in order, then Close.
type Writer struct {
	zw         *zipstream.Writer
	sst        *sharedstrings.Writer
	sty        *styles.Writer
	opts       WriteOptions
	sheetNames []string
	closed     bool
	err        error
}

// NewWriter returns a Writer that streams package output to w.
func NewWriter(w io.Writer, opts WriteOptions) *Writer {
	return &Writer{
		zw:   zipstream.NewWriter(w),
		sst:  sharedstrings.NewWriter(),
		sty:  styles.NewWriter(),
		opts: opts,
	}
}

// WriteSheet streams one sheet's worth of rows to the archive. rows is
// drained lazily: each row is pulled, translated to SpreadsheetML, and
// written to the entry before the next row is requested. Sheets must be
// added in the order they should appear in the workbook.
func (w *Writer) WriteSheet(name string, rows iter.Seq2[cellvalue.Row, error]) error {
	if w.err != nil {
		return w.err
	}
	if w.closed {
		return fmt.Errorf("xlsxwrite: WriteSheet %q: writer already closed", name)
	}

	idx := len(w.sheetNames) + 1
	path := fmt.Sprintf("xl/worksheets/sheet%d.xml", idx)

	var streamErr error
	stream := func(yield func([]byte) bool) {
		sink := &chunkSink{yield: yield}
		xw := xmlstream.NewWriter(sink)
		if err := xw.ProcessingInstruction("xml", `version="1.0" encoding="UTF-8" standalone="yes"`); err != nil {
			streamErr = err
			return
		}
		if err := xw.Open("worksheet", []xmlstream.Attr{{Name: "xmlns", Value: mainNS}}); err != nil {
			streamErr = err
			return
		}
		if err := xw.Open("sheetData", nil); err != nil {
			streamErr = err
			return
		}
		nextIndex := 1
		for row, err := range rows {
			if err != nil {
				streamErr = err
				return
			}
			rowIndex := row.Index
			if rowIndex == 0 {
				rowIndex = nextIndex
			}
			if err := w.writeRow(xw, rowIndex, row.Cells); err != nil {
				streamErr = err
				return
			}
			nextIndex = rowIndex + 1
		}
		if err := xw.Close("sheetData"); err != nil {
			streamErr = err
			return
		}
		if err := xw.Close("worksheet"); err != nil {
			streamErr = err
			return
		}
	}

	if err := w.zw.WriteEntry(path, stream); err != nil {
		w.err = err
		return err
	}
	if streamErr != nil {
		w.err = streamErr
		return streamErr
	}
	w.sheetNames = append(w.sheetNames, name)
	return nil
}

func (w *Writer) writeRow(xw *xmlstream.Writer, rowIndex int, cells []cellvalue.Cell) error {
	if rowIndex < 1 {
		return fmt.Errorf("xlsxwrite: row index %d: %w", rowIndex, xlsxerr.ErrInvalidCellReference)
	}
	if err := xw.Open("row", []xmlstream.Attr{{Name: "r", Value: strconv.Itoa(rowIndex)}}); err != nil {
		return err
	}
	for _, cell := range cells {
		if err := w.writeCell(xw, rowIndex, cell); err != nil {
			return err
		}
	}
	return xw.Close("row")
}

func (w *Writer) writeCell(xw *xmlstream.Writer, rowIndex int, cell cellvalue.Cell) error {
	ref, err := cellref.TryCellRef(rowIndex, cell.Col)
	if err != nil {
		return fmt.Errorf("xlsxwrite: %w", err)
	}
	switch cell.Value.Kind {
	case cellvalue.KindEmpty:
		return xw.Empty("c", []xmlstream.Attr{{Name: "r", Value: ref}})
	case cellvalue.KindString:
		idx := w.sst.Intern(cell.Value.Text)
		return w.writeValueCell(xw, ref, "s", strconv.Itoa(idx), 0)
	case cellvalue.KindInlineString:
		return w.writeInlineStringCell(xw, ref, cell.Value.Text)
	case cellvalue.KindNumber:
		return w.writeValueCell(xw, ref, "", formatFloat(cell.Value.Number), w.sty.NonDateStyleIndex())
	case cellvalue.KindBoolean:
		v := "0"
		if cell.Value.Bool {
			v = "1"
		}
		return w.writeValueCell(xw, ref, "b", v, 0)
	case cellvalue.KindDate:
		serial := serialdate.ToSerial(cell.Value.Date, w.opts.Epoch)
		return w.writeValueCell(xw, ref, "", formatFloat(serial), w.sty.DateStyleIndex())
	case cellvalue.KindError:
		return w.writeValueCell(xw, ref, "e", cell.Value.Text, 0)
	default:
		return fmt.Errorf("xlsxwrite: cell %s: unknown value kind %v", ref, cell.Value.Kind)
	}
}

func (w *Writer) writeValueCell(xw *xmlstream.Writer, ref, t, v string, style int) error {
	attrs := []xmlstream.Attr{{Name: "r", Value: ref}}
	if style != 0 {
		attrs = append(attrs, xmlstream.Attr{Name: "s", Value: strconv.Itoa(style)})
	}
	if t != "" {
		attrs = append(attrs, xmlstream.Attr{Name: "t", Value: t})
	}
	if err := xw.Open("c", attrs); err != nil {
		return err
	}
	if err := xw.Open("v", nil); err != nil {
		return err
	}
	if err := xw.Text(v); err != nil {
		return err
	}
	if err := xw.Close("v"); err != nil {
		return err
	}
	return xw.Close("c")
}

func (w *Writer) writeInlineStringCell(xw *xmlstream.Writer, ref, text string) error {
	if err := xw.Open("c", []xmlstream.Attr{{Name: "r", Value: ref}, {Name: "t", Value: "inlineStr"}}); err != nil {
		return err
	}
	if err := xw.Open("is", nil); err != nil {
		return err
	}
	var tAttrs []xmlstream.Attr
	if needsPreserve(text) {
		tAttrs = []xmlstream.Attr{{Name: "xml:space", Value: "preserve"}}
	}
	if err := xw.Open("t", tAttrs); err != nil {
		return err
	}
	if err := xw.Text(text); err != nil {
		return err
	}
	if err := xw.Close("t"); err != nil {
		return err
	}
	if err := xw.Close("is"); err != nil {
		return err
	}
	return xw.Close("c")
}

// Close finishes the sheet entries already written, emits the shared
// strings, styles, workbook, and package-manifest parts, then closes the
// underlying archive.
func (w *Writer) Close() error {
	if w.closed {
		return w.err
	}
	w.closed = true
	if w.err != nil {
		return w.err
	}

	steps := []func() error{
		w.writeSharedStrings,
		w.writeStyles,
		w.writeWorkbook,
		w.writeWorkbookRels,
		w.writeContentTypes,
		w.writeRootRels,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			w.err = err
			return err
		}
	}
	if err := w.zw.Close(); err != nil {
		w.err = err
		return err
	}
	return nil
}

func (w *Writer) writeSharedStrings() error {
	var buf bytes.Buffer
	if err := w.sst.WriteTo(&buf); err != nil {
		return fmt.Errorf("xlsxwrite: shared strings: %w", err)
	}
	return w.zw.WriteEntry("xl/sharedStrings.xml", staticStream(buf.Bytes()))
}

func (w *Writer) writeStyles() error {
	var buf bytes.Buffer
	if err := w.sty.WriteTo(&buf); err != nil {
		return fmt.Errorf("xlsxwrite: styles: %w", err)
	}
	return w.zw.WriteEntry("xl/styles.xml", staticStream(buf.Bytes()))
}

func (w *Writer) writeWorkbook() error {
	var buf bytes.Buffer
	xw := xmlstream.NewWriter(&buf)
	if err := xw.ProcessingInstruction("xml", `version="1.0" encoding="UTF-8" standalone="yes"`); err != nil {
		return err
	}
	attrs := []xmlstream.Attr{
		{Name: "xmlns", Value: mainNS},
		{Name: "xmlns:r", Value: relsDocNS},
	}
	if err := xw.Open("workbook", attrs); err != nil {
		return err
	}
	if w.opts.Epoch == serialdate.Epoch1904 {
		if err := xw.Empty("workbookPr", []xmlstream.Attr{{Name: "date1904", Value: "1"}}); err != nil {
			return err
		}
	}
	if err := xw.Open("sheets", nil); err != nil {
		return err
	}
	for i, name := range w.sheetNames {
		idx := i + 1
		if err := xw.Empty("sheet", []xmlstream.Attr{
			{Name: "name", Value: name},
			{Name: "sheetId", Value: strconv.Itoa(idx)},
			{Name: "r:id", Value: sheetRelID(idx)},
		}); err != nil {
			return err
		}
	}
	if err := xw.Close("sheets"); err != nil {
		return err
	}
	if err := xw.Close("workbook"); err != nil {
		return err
	}
	return w.zw.WriteEntry("xl/workbook.xml", staticStream(buf.Bytes()))
}

func (w *Writer) writeWorkbookRels() error {
	var buf bytes.Buffer
	xw := xmlstream.NewWriter(&buf)
	if err := xw.ProcessingInstruction("xml", `version="1.0" encoding="UTF-8" standalone="yes"`); err != nil {
		return err
	}
	if err := xw.Open("Relationships", []xmlstream.Attr{{Name: "xmlns", Value: relNS}}); err != nil {
		return err
	}
	for i := range w.sheetNames {
		idx := i + 1
		if err := xw.Empty("Relationship", []xmlstream.Attr{
			{Name: "Id", Value: sheetRelID(idx)},
			{Name: "Type", Value: relsDocNS + "/worksheet"},
			{Name: "Target", Value: fmt.Sprintf("worksheets/sheet%d.xml", idx)},
		}); err != nil {
			return err
		}
	}
	if err := xw.Close("Relationships"); err != nil {
		return err
	}
	return w.zw.WriteEntry("xl/_rels/workbook.xml.rels", staticStream(buf.Bytes()))
}

func (w *Writer) writeContentTypes() error {
	var buf bytes.Buffer
	xw := xmlstream.NewWriter(&buf)
	if err := xw.ProcessingInstruction("xml", `version="1.0" encoding="UTF-8" standalone="yes"`); err != nil {
		return err
	}
	if err := xw.Open("Types", []xmlstream.Attr{
		{Name: "xmlns", Value: "http://schemas.openxmlformats.org/package/2006/content-types"},
	}); err != nil {
		return err
	}
	if err := xw.Empty("Default", []xmlstream.Attr{
		{Name: "Extension", Value: "rels"},
		{Name: "ContentType", Value: "application/vnd.openxmlformats-package.relationships+xml"},
	}); err != nil {
		return err
	}
	if err := xw.Empty("Default", []xmlstream.Attr{
		{Name: "Extension", Value: "xml"},
		{Name: "ContentType", Value: "application/xml"},
	}); err != nil {
		return err
	}
	if err := xw.Empty("Override", []xmlstream.Attr{
		{Name: "PartName", Value: "/xl/workbook.xml"},
		{Name: "ContentType", Value: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"},
	}); err != nil {
		return err
	}
	if err := xw.Empty("Override", []xmlstream.Attr{
		{Name: "PartName", Value: "/xl/styles.xml"},
		{Name: "ContentType", Value: "application/vnd.openxmlformats-officedocument.spreadsheetml.styles+xml"},
	}); err != nil {
		return err
	}
	if err := xw.Empty("Override", []xmlstream.Attr{
		{Name: "PartName", Value: "/xl/sharedStrings.xml"},
		{Name: "ContentType", Value: "application/vnd.openxmlformats-officedocument.spreadsheetml.sharedStrings+xml"},
	}); err != nil {
		return err
	}
	for i := range w.sheetNames {
		idx := i + 1
		if err := xw.Empty("Override", []xmlstream.Attr{
			{Name: "PartName", Value: fmt.Sprintf("/xl/worksheets/sheet%d.xml", idx)},
			{Name: "ContentType", Value: "application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"},
		}); err != nil {
			return err
		}
	}
	if err := xw.Close("Types"); err != nil {
		return err
	}
	return w.zw.WriteEntry("[Content_Types].xml", staticStream(buf.Bytes()))
}

func (w *Writer) writeRootRels() error {
	var buf bytes.Buffer
	xw := xmlstream.NewWriter(&buf)
	if err := xw.ProcessingInstruction("xml", `version="1.0" encoding="UTF-8" standalone="yes"`); err != nil {
		return err
	}
	if err := xw.Open("Relationships", []xmlstream.Attr{{Name: "xmlns", Value: relNS}}); err != nil {
		return err
	}
	if err := xw.Empty("Relationship", []xmlstream.Attr{
		{Name: "Id", Value: "rId1"},
		{Name: "Type", Value: relsDocNS + "/officeDocument"},
		{Name: "Target", Value: "xl/workbook.xml"},
	}); err != nil {
		return err
	}
	if err := xw.Close("Relationships"); err != nil {
		return err
	}
	return w.zw.WriteEntry("_rels/.rels", staticStream(buf.Bytes()))
}

func sheetRelID(idx int) string {
	return "rId" + strconv.Itoa(idx)
}

func staticStream(b []byte) func(yield func([]byte) bool) {
	return func(yield func([]byte) bool) {
		if len(b) == 0 {
			return
		}
		yield(b)
	}
}

func needsPreserve(s string) bool {
	if s == "" {
		return false
	}
	return s[0] == ' ' || s[0] == '\t' || s[len(s)-1] == ' ' || s[len(s)-1] == '\t'
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// chunkSink adapts the per-chunk yield callback of a bytestream producer
// to an io.Writer so xmlstream.Writer can write through it.
type chunkSink struct {
	yield   func([]byte) bool
	stopped bool
}

func (c *chunkSink) Write(p []byte) (int, error) {
	if c.stopped {
		return 0, io.ErrClosedPipe
	}
	if !c.yield(append([]byte(nil), p...)) {
		c.stopped = true
		return 0, io.ErrClosedPipe
	}
	return len(p), nil
}
