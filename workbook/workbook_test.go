package workbook_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xlsxstream/xlsxstream/internal/zipstream"
	"github.com/xlsxstream/xlsxstream/workbook"
	"github.com/xlsxstream/xlsxstream/xlsxerr"
)

const contentTypesXML = `<?xml version="1.0"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`

const rootRelsXML = `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="xl/workbook.xml"/>
</Relationships>`

const workbookXML = `<?xml version="1.0"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"
          xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<sheets>
<sheet name="Visible" sheetId="1" r:id="rId1"/>
<sheet name="Secret" sheetId="2" r:id="rId2" state="hidden"/>
</sheets>
</workbook>`

const workbookRelsXML = `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet2.xml"/>
</Relationships>`

const sheet1XML = `<?xml version="1.0"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
<sheetData>
<row r="1"><c r="A1"><v>1</v></c></row>
</sheetData>
</worksheet>`

func buildPackage(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zipstream.NewWriter(&buf)
	for name, content := range files {
		if err := w.WriteEntry(name, func(yield func([]byte) bool) { yield([]byte(content)) }); err != nil {
			t.Fatalf("WriteEntry(%q): %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func testPackage(t *testing.T) []byte {
	return buildPackage(t, map[string]string{
		"[Content_Types].xml":           contentTypesXML,
		"_rels/.rels":                   rootRelsXML,
		"xl/workbook.xml":               workbookXML,
		"xl/_rels/workbook.xml.rels":    workbookRelsXML,
		"xl/worksheets/sheet1.xml":      sheet1XML,
		"xl/worksheets/sheet2.xml":      sheet1XML,
	})
}

func TestOpenReaderSheetsAndVisibility(t *testing.T) {
	data := testPackage(t)
	wb, err := workbook.OpenReader(bytes.NewReader(data), int64(len(data)), workbook.DefaultReadOptions())
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer wb.Close()

	names := wb.Sheets()
	if len(names) != 2 || names[0] != "Visible" || names[1] != "Secret" {
		t.Fatalf("Sheets() = %v, want [Visible Secret]", names)
	}

	vis, err := wb.SheetVisibility("Visible")
	if err != nil || vis != workbook.Visible {
		t.Errorf("SheetVisibility(Visible) = %v, %v", vis, err)
	}
	vis, err = wb.SheetVisibility("Secret")
	if err != nil || vis != workbook.Hidden {
		t.Errorf("SheetVisibility(Secret) = %v, %v", vis, err)
	}
}

func TestSheetByNameNotFound(t *testing.T) {
	data := testPackage(t)
	wb, err := workbook.OpenReader(bytes.NewReader(data), int64(len(data)), workbook.DefaultReadOptions())
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer wb.Close()

	_, err = wb.SheetByName("NoSuchSheet")
	if !errors.Is(err, xlsxerr.ErrSheetNotFound) {
		t.Errorf("SheetByName error = %v, want ErrSheetNotFound", err)
	}
}

func TestSheetReadsRows(t *testing.T) {
	data := testPackage(t)
	wb, err := workbook.OpenReader(bytes.NewReader(data), int64(len(data)), workbook.DefaultReadOptions())
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer wb.Close()

	sh, err := wb.SheetByName("Visible")
	if err != nil {
		t.Fatalf("SheetByName: %v", err)
	}
	var count int
	for row, err := range sh.Rows() {
		if err != nil {
			t.Fatalf("Rows: %v", err)
		}
		count++
		if row.Index != 1 {
			t.Errorf("row.Index = %d, want 1", row.Index)
		}
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestMissingContentTypes(t *testing.T) {
	data := buildPackage(t, map[string]string{
		"_rels/.rels":      rootRelsXML,
		"xl/workbook.xml":  workbookXML,
	})
	_, err := workbook.OpenReader(bytes.NewReader(data), int64(len(data)), workbook.DefaultReadOptions())
	if !errors.Is(err, xlsxerr.ErrMissingRequiredPart) {
		t.Errorf("error = %v, want ErrMissingRequiredPart", err)
	}
}

func TestMissingStylesDegradesGracefully(t *testing.T) {
	data := testPackage(t)
	wb, err := workbook.OpenReader(bytes.NewReader(data), int64(len(data)), workbook.DefaultReadOptions())
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer wb.Close()
	if wb.Date1904() {
		t.Error("Date1904() = true, want false (default epoch, no workbookPr)")
	}
}
