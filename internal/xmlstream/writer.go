package xmlstream

import (
	"fmt"
	"io"
	"strings"
)

// Writer emits well-formed XML element markup to an underlying io.Writer.
// Attribute order follows the caller's emission order; no canonicalisation
// or attribute sorting is performed.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter wraps w for element-at-a-time XML output.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// ProcessingInstruction writes a "<?target text?>" declaration.
func (xw *Writer) ProcessingInstruction(target, text string) error {
	return xw.writeRaw(fmt.Sprintf("<?%s %s?>", target, text))
}

// Open writes a start tag "<name attr="value" ...>".
func (xw *Writer) Open(name string, attrs []Attr) error {
	var sb strings.Builder
	sb.WriteByte('<')
	sb.WriteString(name)
	for _, a := range attrs {
		sb.WriteByte(' ')
		sb.WriteString(a.Name)
		sb.WriteString(`="`)
		sb.WriteString(escapeAttr(a.Value))
		sb.WriteByte('"')
	}
	sb.WriteByte('>')
	return xw.writeRaw(sb.String())
}

// Empty writes a self-closing element "<name attr="value" .../>".
func (xw *Writer) Empty(name string, attrs []Attr) error {
	var sb strings.Builder
	sb.WriteByte('<')
	sb.WriteString(name)
	for _, a := range attrs {
		sb.WriteByte(' ')
		sb.WriteString(a.Name)
		sb.WriteString(`="`)
		sb.WriteString(escapeAttr(a.Value))
		sb.WriteByte('"')
	}
	sb.WriteString("/>")
	return xw.writeRaw(sb.String())
}

// Text writes escaped character data.
func (xw *Writer) Text(s string) error {
	return xw.writeRaw(escapeText(s))
}

// Close writes an end tag "</name>".
func (xw *Writer) Close(name string) error {
	return xw.writeRaw("</" + name + ">")
}

func (xw *Writer) writeRaw(s string) error {
	if xw.err != nil {
		return xw.err
	}
	_, err := io.WriteString(xw.w, s)
	if err != nil {
		xw.err = fmt.Errorf("xmlstream: writing output: %w", err)
	}
	return xw.err
}

// escapeAttr escapes the characters that must not appear literally inside a
// double-quoted attribute value, plus control characters below 0x20 (other
// than tab/lf/cr) as numeric character references.
func escapeAttr(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '&':
			sb.WriteString("&amp;")
		case '<':
			sb.WriteString("&lt;")
		case '>':
			sb.WriteString("&gt;")
		case '"':
			sb.WriteString("&quot;")
		case '\t', '\n', '\r':
			sb.WriteRune(r)
		default:
			if r < 0x20 {
				fmt.Fprintf(&sb, "&#x%X;", r)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	return sb.String()
}

// escapeText escapes character data: '&', '<', '>', plus the same control
// character handling as escapeAttr.
func escapeText(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '&':
			sb.WriteString("&amp;")
		case '<':
			sb.WriteString("&lt;")
		case '>':
			sb.WriteString("&gt;")
		case '\t', '\n', '\r':
			sb.WriteRune(r)
		default:
			if r < 0x20 {
				fmt.Fprintf(&sb, "&#x%X;", r)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	return sb.String()
}
