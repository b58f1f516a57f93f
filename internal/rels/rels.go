// Package rels parses OPC relationship parts (".rels" files): a flat list
// of <Relationship Id="..." Type="..." Target="..."/> elements mapping a
// relationship id to a part path.
//
// Both the package-root (_rels/.rels) and workbook relationship parts route
// through this one parser — the teacher's own version of this package existed for the
// same reason but went unused, with workbook.go and worksheet.go each
// keeping a private, slightly different copy of the same parsing logic
// instead of calling it.
package rels

import (
	"fmt"
	"io"
	"strings"

	"github.com/xlsxstream/xlsxstream/internal/xmlstream"
)

// Relationship is one entry of a .rels part.
type Relationship struct {
	ID     string
	Type   string
	Target string
}

// Parse reads a .rels document and returns its relationships indexed by
// Id.
func Parse(r io.Reader) (map[string]Relationship, error) {
	d := xmlstream.NewDecoder(r)
	out := make(map[string]Relationship)
	for {
		ev, err := d.Next()
		if err != nil {
			return nil, fmt.Errorf("rels: %w", err)
		}
		if ev.Kind == xmlstream.EOF {
			return out, nil
		}
		if ev.Kind != xmlstream.StartElement || localName(ev.Name) != "Relationship" {
			continue
		}
		id, _ := ev.Attr("Id")
		typ, _ := ev.Attr("Type")
		target, _ := ev.Attr("Target")
		out[id] = Relationship{ID: id, Type: typ, Target: target}
	}
}

func localName(qname string) string {
	if i := strings.IndexByte(qname, ':'); i >= 0 {
		return qname[i+1:]
	}
	return qname
}
