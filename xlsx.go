// Package xlsx provides a streaming reader and writer for Microsoft Excel
// SpreadsheetML (.xlsx) workbook packages. No cgo is required.
//
// # Quick start
//
//	wb, err := xlsx.Open("Book1.xlsx", xlsx.DefaultReadOptions())
//	if err != nil { ... }
//	defer wb.Close()
//
//	fmt.Println(wb.Sheets()) // [Sheet1 Sheet2]
//
//	sheet, err := wb.Sheet(1)
//	if err != nil { ... }
//
//	for row, err := range sheet.Rows() {
//	    if err != nil { ... }
//	    for _, cell := range row.Cells {
//	        fmt.Printf("(%d,%d) = %v\n", row.Index, cell.Col, cell.Value)
//	    }
//	}
//
// # Cell values
//
// [worksheet.Sheet.Rows] yields fully typed cells: a [cellvalue.Value] is
// exactly one of string, number, boolean, date, error-code, inline-string,
// or empty — already resolved against the workbook's shared-strings table
// and style-driven date detection. There is no separate formatting step;
// rendering a number format to a display string is out of scope for this
// codec.
//
// # Dates
//
// Excel stores dates as floating-point serial numbers under either the
// 1900 or 1904 date system. The read pipeline converts date-formatted
// numeric cells to [cellvalue.Value] of kind date automatically, using
// [workbook.Workbook.Date1904] to pick the epoch. Writers needing the raw
// serial conversion directly can call [serialdate.ToInstant] /
// [serialdate.ToSerial].
//
// # Writing
//
// [Create] returns an [xlsxwrite.Writer] that streams a new package
// directly to an [io.Writer] as sheets are written, registering shared
// strings and the date/non-date style pair as cells are emitted and
// finalising the package's metadata parts on Close.
package xlsx

import (
	"io"

	"github.com/xlsxstream/xlsxstream/serialdate"
	"github.com/xlsxstream/xlsxstream/workbook"
	"github.com/xlsxstream/xlsxstream/xlsxwrite"
)

// Version is the current version of this module.
const Version = "1.0.0"

// ReadOptions controls how a package is opened for reading. See
// [workbook.ReadOptions].
type ReadOptions = workbook.ReadOptions

// DefaultReadOptions returns the default read options: empty rows are
// skipped, and the 1900-vs-1904 epoch is auto-detected from the workbook's
// own <workbookPr date1904="..."/> declaration.
func DefaultReadOptions() ReadOptions {
	return workbook.DefaultReadOptions()
}

// WriteOptions controls how a package is written. See
// [xlsxwrite.WriteOptions].
type WriteOptions = xlsxwrite.WriteOptions

// DefaultWriteOptions returns the default write options: the 1900 date
// epoch.
func DefaultWriteOptions() WriteOptions {
	return xlsxwrite.DefaultWriteOptions()
}

// Epoch selects the workbook date system for writing. See
// [serialdate.Epoch].
type Epoch = serialdate.Epoch

const (
	Epoch1900 = serialdate.Epoch1900
	Epoch1904 = serialdate.Epoch1904
)

// Open opens the named .xlsx file for streaming reads. The caller must
// call Close on the returned Workbook when done.
func Open(name string, opts ReadOptions) (*workbook.Workbook, error) {
	return workbook.Open(name, opts)
}

// OpenReader reads an .xlsx workbook from an arbitrary [io.ReaderAt].
// size must equal the total byte length of the data.
func OpenReader(r io.ReaderAt, size int64, opts ReadOptions) (*workbook.Workbook, error) {
	return workbook.OpenReader(r, size, opts)
}

// Create returns a [xlsxwrite.Writer] that streams a new .xlsx package to
// w. Call WriteSheet once per sheet, in order, then Close to finalise the
// package's metadata parts.
func Create(w io.Writer, opts WriteOptions) *xlsxwrite.Writer {
	return xlsxwrite.NewWriter(w, opts)
}
