// Package workbook opens an .xlsx package (a ZIP archive) and exposes its
// sheets, shared strings, and styles.
package workbook

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xlsxstream/xlsxstream/bytestream"
	"github.com/xlsxstream/xlsxstream/internal/rels"
	"github.com/xlsxstream/xlsxstream/internal/xmlstream"
	"github.com/xlsxstream/xlsxstream/internal/zipstream"
	"github.com/xlsxstream/xlsxstream/sharedstrings"
	"github.com/xlsxstream/xlsxstream/styles"
	"github.com/xlsxstream/xlsxstream/worksheet"
	"github.com/xlsxstream/xlsxstream/xlsxerr"
)

// Visibility is a worksheet's tab visibility state.
type Visibility int

const (
	// Visible sheets show their tab normally.
	Visible Visibility = iota
	// Hidden sheets can be unhidden by the user through Excel's UI.
	Hidden
	// VeryHidden sheets can only be unhidden programmatically.
	VeryHidden
)

func (v Visibility) String() string {
	switch v {
	case Hidden:
		return "hidden"
	case VeryHidden:
		return "veryHidden"
	default:
		return "visible"
	}
}

// ReadOptions controls how a workbook is opened.
type ReadOptions struct {
	// SkipEmptyRows drops rows with no non-empty cells from sheet iteration.
	SkipEmptyRows bool
	// Use1904Dates overrides the workbook's own date1904 flag when non-nil.
	// When nil, the flag is read from xl/workbook.xml.
	Use1904Dates *bool
}

// DefaultReadOptions returns the options a caller gets by not specifying
// any: skip empty rows, auto-detect the date epoch from the workbook.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{SkipEmptyRows: true}
}

// sheetEntry holds the display name and resolved zip path for one sheet.
type sheetEntry struct {
	name       string
	zipPath    string
	visibility Visibility
}

// Workbook is an open .xlsx package.
type Workbook struct {
	closer   io.Closer // non-nil when opened by file name
	zr       *zipstream.Reader
	sheets   []sheetEntry
	strings  *sharedstrings.Table
	styles   styles.Table
	date1904 bool
	opts     ReadOptions
}

// Open opens the named .xlsx file and parses its package structure. The
// caller must call Close when done.
func Open(name string, opts ReadOptions) (*Workbook, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("workbook: open %q: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("workbook: stat %q: %w", name, err)
	}
	zr, err := zipstream.Open(f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("workbook: %q: %w", name, err)
	}
	wb := &Workbook{closer: f, zr: zr, opts: opts}
	if err := wb.parse(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return wb, nil
}

// OpenReader parses an .xlsx package from an in-memory ReaderAt. size must
// be the total byte size of the ZIP data.
func OpenReader(r io.ReaderAt, size int64, opts ReadOptions) (*Workbook, error) {
	zr, err := zipstream.Open(r, size)
	if err != nil {
		return nil, fmt.Errorf("workbook: open reader: %w", err)
	}
	wb := &Workbook{zr: zr, opts: opts}
	if err := wb.parse(); err != nil {
		return nil, err
	}
	return wb, nil
}

// Sheets returns the display names of all sheets in document order.
func (wb *Workbook) Sheets() []string {
	names := make([]string, len(wb.sheets))
	for i, s := range wb.sheets {
		names[i] = s.name
	}
	return names
}

// Date1904 reports whether this workbook uses the 1904 date epoch.
func (wb *Workbook) Date1904() bool { return wb.date1904 }

// Sheet returns the worksheet at the given 1-based index.
func (wb *Workbook) Sheet(idx int) (*worksheet.Sheet, error) {
	if idx < 1 || idx > len(wb.sheets) {
		return nil, fmt.Errorf("workbook: sheet index %d out of range [1, %d]: %w", idx, len(wb.sheets), xlsxerr.ErrSheetNotFound)
	}
	return wb.openSheet(wb.sheets[idx-1])
}

// SheetByName returns the worksheet with the given name (case-insensitive).
func (wb *Workbook) SheetByName(name string) (*worksheet.Sheet, error) {
	lower := strings.ToLower(name)
	for _, s := range wb.sheets {
		if strings.ToLower(s.name) == lower {
			return wb.openSheet(s)
		}
	}
	return nil, fmt.Errorf("workbook: sheet %q: %w", name, xlsxerr.ErrSheetNotFound)
}

// SheetVisibility returns the visibility of the named sheet (case-
// insensitive). It fails with xlsxerr.ErrSheetNotFound for an unknown name.
func (wb *Workbook) SheetVisibility(name string) (Visibility, error) {
	lower := strings.ToLower(name)
	for _, s := range wb.sheets {
		if strings.ToLower(s.name) == lower {
			return s.visibility, nil
		}
	}
	return Visible, fmt.Errorf("workbook: sheet %q: %w", name, xlsxerr.ErrSheetNotFound)
}

// Close releases the underlying file handle. It is a no-op when the
// workbook was opened via OpenReader.
func (wb *Workbook) Close() error {
	if wb.closer != nil {
		return wb.closer.Close()
	}
	return nil
}

// ── internal ─────────────────────────────────────────────────────────────

func (wb *Workbook) parse() error {
	if err := wb.checkContentTypes(); err != nil {
		return err
	}
	workbookPath, err := wb.resolveWorkbookPart()
	if err != nil {
		return err
	}
	if err := wb.parseWorkbookXML(workbookPath); err != nil {
		return err
	}
	if err := wb.parseSharedStrings(); err != nil {
		return err
	}
	if err := wb.parseStyles(); err != nil {
		return err
	}
	if wb.opts.Use1904Dates != nil {
		wb.date1904 = *wb.opts.Use1904Dates
	}
	return nil
}

// checkContentTypes confirms the mandatory [Content_Types].xml part is
// present; its contents are not otherwise inspected.
func (wb *Workbook) checkContentTypes() error {
	if _, ok := wb.zr.ByName("[Content_Types].xml"); !ok {
		return fmt.Errorf("workbook: %w", xlsxerr.ErrMissingRequiredPart)
	}
	return nil
}

// resolveWorkbookPart reads _rels/.rels to find the workbook part's path
// (normally xl/workbook.xml).
func (wb *Workbook) resolveWorkbookPart() (string, error) {
	data, err := wb.readZipEntry("_rels/.rels")
	if err != nil {
		return "", fmt.Errorf("workbook: %w", xlsxerr.ErrMissingRequiredPart)
	}
	rs, err := rels.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("workbook: parsing _rels/.rels: %w", err)
	}
	for _, r := range rs {
		if strings.HasSuffix(r.Type, "/officeDocument") {
			return resolvePartPath("", r.Target), nil
		}
	}
	return "", fmt.Errorf("workbook: no officeDocument relationship in _rels/.rels: %w", xlsxerr.ErrMissingRequiredPart)
}

// parseWorkbookXML reads the workbook part for the date1904 flag and the
// ordered sheet list, then resolves each sheet's relationship id to its
// part path via the workbook's own .rels part.
func (wb *Workbook) parseWorkbookXML(workbookPath string) error {
	data, err := wb.readZipEntry(workbookPath)
	if err != nil {
		return fmt.Errorf("workbook: reading %q: %w", workbookPath, xlsxerr.ErrMissingRequiredPart)
	}

	relsPath := relsPathFor(workbookPath)
	var sheetRels map[string]rels.Relationship
	if relsData, err := wb.readZipEntry(relsPath); err == nil {
		sheetRels, err = rels.Parse(bytes.NewReader(relsData))
		if err != nil {
			return fmt.Errorf("workbook: parsing %q: %w", relsPath, err)
		}
	}

	d := xmlstream.NewDecoder(bytes.NewReader(data))
	base := partDir(workbookPath)
	for {
		ev, err := d.Next()
		if err != nil {
			return fmt.Errorf("workbook: parsing %q: %w", workbookPath, err)
		}
		switch ev.Kind {
		case xmlstream.EOF:
			return nil
		case xmlstream.StartElement:
			switch localName(ev.Name) {
			case "workbookPr":
				if v, ok := ev.Attr("date1904"); ok {
					wb.date1904 = parseXSDBool(v)
				}
			case "sheet":
				name, _ := ev.Attr("name")
				rID, _ := ev.Attr("id") // r:id local-name fallback
				if rID == "" {
					rID, _ = ev.Attr("r:id")
				}
				visibility := Visible
				if state, ok := ev.Attr("state"); ok {
					switch state {
					case "hidden":
						visibility = Hidden
					case "veryHidden":
						visibility = VeryHidden
					}
				}
				rel, ok := sheetRels[rID]
				if !ok {
					return fmt.Errorf("workbook: sheet %q: no relationship for id %q: %w", name, rID, xlsxerr.ErrMissingRequiredPart)
				}
				wb.sheets = append(wb.sheets, sheetEntry{
					name:       name,
					zipPath:    resolvePartPath(base, rel.Target),
					visibility: visibility,
				})
			}
		}
	}
}

// parseSharedStrings reads xl/sharedStrings.xml if present; it is
// optional. A missing part leaves wb.strings nil, which worksheet.New
// accepts: reading any t="s" cell against it then fails with
// xlsxerr.ErrInvalidSharedStringIndex instead of panicking.
func (wb *Workbook) parseSharedStrings() error {
	data, err := wb.readZipEntry("xl/sharedStrings.xml")
	if err != nil {
		return nil
	}
	t, err := sharedstrings.New(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("workbook: shared strings: %w", err)
	}
	wb.strings = t
	return nil
}

// parseStyles reads xl/styles.xml. A missing styles.xml degrades to an
// empty Table ("all cells General"), matching the resolved Open Question
// for this codec, rather than failing the whole open.
func (wb *Workbook) parseStyles() error {
	data, err := wb.readZipEntry("xl/styles.xml")
	if err != nil {
		return nil
	}
	t, err := styles.Read(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("workbook: styles: %w", err)
	}
	wb.styles = t
	return nil
}

// openSheet reads the sheet part and hands the buffered bytes to
// worksheet.New. The sheet's own .rels part is not read.
func (wb *Workbook) openSheet(entry sheetEntry) (*worksheet.Sheet, error) {
	data, err := wb.readZipEntry(entry.zipPath)
	if err != nil {
		return nil, fmt.Errorf("workbook: opening sheet %q: %w", entry.name, xlsxerr.ErrSheetNotFound)
	}
	return worksheet.New(entry.name, data, wb.strings, wb.styles, wb.date1904, wb.opts.SkipEmptyRows), nil
}

// readZipEntry reads the full contents of a named archive entry.
func (wb *Workbook) readZipEntry(name string) ([]byte, error) {
	e, ok := wb.zr.ByName(name)
	if !ok {
		return nil, fmt.Errorf("workbook: %q: %w", name, xlsxerr.ErrEntryNotFound)
	}
	payload, err := wb.zr.Open(e)
	if err != nil {
		return nil, err
	}
	data := bytestream.ChunksToBuffer(payload.Chunks())
	if err := payload.Err(); err != nil {
		return nil, err
	}
	return data, nil
}

func localName(qname string) string {
	if i := strings.IndexByte(qname, ':'); i >= 0 {
		return qname[i+1:]
	}
	return qname
}

// resolvePartPath resolves a relationship Target against the directory of
// the part that referenced it. Targets beginning with "/" are package-
// rooted; everything else is relative to base.
func resolvePartPath(base, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	if base == "" {
		return target
	}
	return base + "/" + target
}

// partDir returns the directory portion of a part path, or "" for a
// package-root part.
func partDir(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[:i]
	}
	return ""
}

// relsPathFor returns the .rels part path for a given part, e.g.
// "xl/workbook.xml" → "xl/_rels/workbook.xml.rels".
func relsPathFor(path string) string {
	dir := partDir(path)
	base := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		base = path[i+1:]
	}
	if dir == "" {
		return "_rels/" + base + ".rels"
	}
	return dir + "/_rels/" + base + ".rels"
}

// parseXSDBool accepts the XSD boolean lexical forms SpreadsheetML uses:
// "1"/"true" or any other non-zero integer for true, anything else for
// false.
func parseXSDBool(s string) bool {
	if s == "1" || s == "true" {
		return true
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n != 0
	}
	return false
}
