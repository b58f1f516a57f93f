// Package xlsxerr defines the sentinel error kinds shared across the
// codec. Callers use errors.Is to test which kind wraps a returned error;
// every exported function in this module wraps one of these sentinels with
// fmt.Errorf("%w", ...) rather than returning it bare, so the chain keeps
// its call-site context.
package xlsxerr

import "errors"

// Input-structure errors.
var (
	ErrUnexpectedEOF          = errors.New("xlsx: unexpected end of input")
	ErrCorruptArchive         = errors.New("xlsx: corrupt archive")
	ErrUnsupportedCompression = errors.New("xlsx: unsupported compression method")
	ErrEntryNotFound          = errors.New("xlsx: entry not found")
	ErrBadEntity              = errors.New("xlsx: undeclared XML entity")
	ErrMalformedXML           = errors.New("xlsx: malformed XML")
	ErrDecode                 = errors.New("xlsx: invalid UTF-8")
)

// Semantic errors.
var (
	ErrSheetNotFound            = errors.New("xlsx: sheet not found")
	ErrMissingRequiredPart      = errors.New("xlsx: missing required part")
	ErrInvalidCellReference     = errors.New("xlsx: invalid cell reference")
	ErrInvalidSharedStringIndex = errors.New("xlsx: invalid shared string index")
	ErrInvalidStyleIndex        = errors.New("xlsx: invalid style index")
	ErrDuplicateEntry           = errors.New("xlsx: duplicate entry")
)

// Policy errors.
var (
	ErrUnsupportedFeature = errors.New("xlsx: unsupported feature")
)
