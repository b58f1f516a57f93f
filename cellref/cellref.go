// Package cellref implements the bijective base-26 column-letter grammar
// SpreadsheetML uses for cell references ("A1", "AZ17", "AAA1", ...).
//
// Columns are 0-based internally (column 0 is "A"); rows are 1-based,
// matching the convention cell references use on the wire.
package cellref

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/xlsxstream/xlsxstream/xlsxerr"
)

var refPattern = regexp.MustCompile(`^[A-Z]+[0-9]+$`)

// IndexToLetter converts a 0-based column index to its bijective base-26
// letter form: 0 → "A", 25 → "Z", 26 → "AA", 701 → "ZZ", 702 → "AAA".
func IndexToLetter(i int) string {
	if i < 0 {
		panic("cellref: negative column index")
	}
	var buf [8]byte
	pos := len(buf)
	for i >= 0 {
		pos--
		buf[pos] = byte('A' + i%26)
		i = i/26 - 1
	}
	return string(buf[pos:])
}

// LetterToIndex converts a column-letter string back to its 0-based index.
// letters must be non-empty and uppercase A-Z; anything else fails.
func LetterToIndex(letters string) (int, error) {
	if letters == "" {
		return 0, fmt.Errorf("cellref: letter-to-index: %w", xlsxerr.ErrInvalidCellReference)
	}
	i := 0
	for _, c := range letters {
		if c < 'A' || c > 'Z' {
			return 0, fmt.Errorf("cellref: letter-to-index %q: %w", letters, xlsxerr.ErrInvalidCellReference)
		}
		i = i*26 + int(c-'A'+1)
	}
	return i - 1, nil
}

// CellRef formats (row, col) as a cell reference such as "A1". row must be
// ≥ 1 and col must be ≥ 0.
func CellRef(row, col int) string {
	if row < 1 {
		panic("cellref: row must be >= 1")
	}
	if col < 0 {
		panic("cellref: col must be >= 0")
	}
	return IndexToLetter(col) + strconv.Itoa(row)
}

// TryCellRef is the fallible form of CellRef, for callers that receive row
// and col from outside this package's own invariants (e.g. a caller-
// supplied row index on the write path) and must report a bad value as an
// error rather than panic.
func TryCellRef(row, col int) (string, error) {
	if row < 1 {
		return "", fmt.Errorf("cellref: cell-ref: row %d: %w", row, xlsxerr.ErrInvalidCellReference)
	}
	if col < 0 {
		return "", fmt.Errorf("cellref: cell-ref: col %d: %w", col, xlsxerr.ErrInvalidCellReference)
	}
	return IndexToLetter(col) + strconv.Itoa(row), nil
}

// ParseCellRef parses a cell reference of the form "[A-Z]+[0-9]+" into its
// 1-based row and 0-based column. Anything else — empty, lowercase,
// digits-before-letters, trailing garbage — fails.
func ParseCellRef(text string) (row, col int, err error) {
	if !refPattern.MatchString(text) {
		return 0, 0, fmt.Errorf("cellref: parse-cell-ref %q: %w", text, xlsxerr.ErrInvalidCellReference)
	}
	split := 0
	for split < len(text) && text[split] >= 'A' && text[split] <= 'Z' {
		split++
	}
	col, err = LetterToIndex(text[:split])
	if err != nil {
		return 0, 0, fmt.Errorf("cellref: parse-cell-ref %q: %w", text, xlsxerr.ErrInvalidCellReference)
	}
	row, err = strconv.Atoi(text[split:])
	if err != nil || row < 1 {
		return 0, 0, fmt.Errorf("cellref: parse-cell-ref %q: %w", text, xlsxerr.ErrInvalidCellReference)
	}
	return row, col, nil
}
