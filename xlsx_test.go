package xlsx_test

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/xlsxstream/xlsxstream"
	"github.com/xlsxstream/xlsxstream/cellref"
	"github.com/xlsxstream/xlsxstream/cellvalue"
	"github.com/xlsxstream/xlsxstream/worksheet"
)

func rowSeq(rs ...cellvalue.Row) func(yield func(cellvalue.Row, error) bool) {
	return func(yield func(cellvalue.Row, error) bool) {
		for _, r := range rs {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// S1: basic round trip of strings and numbers.
func TestScenarioBasicRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := xlsx.Create(&buf, xlsx.DefaultWriteOptions())

	sheet := rowSeq(
		cellvalue.NewRow(1, []cellvalue.Cell{
			cellvalue.NewCell(0, cellvalue.String("Name"), 0),
			cellvalue.NewCell(1, cellvalue.String("Age"), 0),
		}),
		cellvalue.NewRow(2, []cellvalue.Cell{
			cellvalue.NewCell(0, cellvalue.String("Alice"), 0),
			cellvalue.NewCell(1, cellvalue.Number(30), 0),
		}),
		cellvalue.NewRow(3, []cellvalue.Cell{
			cellvalue.NewCell(0, cellvalue.String("Bob"), 0),
			cellvalue.NewCell(1, cellvalue.Number(25), 0),
		}),
	)
	if err := w.WriteSheet("Data", sheet); err != nil {
		t.Fatalf("WriteSheet: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data := buf.Bytes()
	wb, err := xlsx.OpenReader(bytes.NewReader(data), int64(len(data)), xlsx.DefaultReadOptions())
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer wb.Close()

	sh, err := wb.SheetByName("Data")
	if err != nil {
		t.Fatalf("SheetByName: %v", err)
	}
	var rows []cellvalue.Row
	for row, err := range sh.Rows() {
		if err != nil {
			t.Fatalf("Rows: %v", err)
		}
		rows = append(rows, row)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}

	check := func(row cellvalue.Row, col int, kind cellvalue.Kind) cellvalue.Cell {
		for _, c := range row.Cells {
			if c.Col == col {
				if c.Value.Kind != kind {
					t.Errorf("row %d col %d kind = %v, want %v", row.Index, col, c.Value.Kind, kind)
				}
				return c
			}
		}
		t.Fatalf("row %d has no cell at col %d", row.Index, col)
		return cellvalue.Cell{}
	}

	if c := check(rows[0], 0, cellvalue.KindString); c.Value.Text != "Name" {
		t.Errorf("row1 col0 = %q, want Name", c.Value.Text)
	}
	check(rows[0], 1, cellvalue.KindString)
	check(rows[1], 0, cellvalue.KindString)
	if c := check(rows[1], 1, cellvalue.KindNumber); c.Value.Number != 30 {
		t.Errorf("row2 col1 = %v, want 30", c.Value.Number)
	}
	if c := check(rows[2], 1, cellvalue.KindNumber); c.Value.Number != 25 {
		t.Errorf("row3 col1 = %v, want 25", c.Value.Number)
	}
}

// S2: auto-assigned row indices (sequential from the previous row + 1) with
// a leading empty row, plus one explicit index on the final row, read with
// skip-empty-rows disabled.
func TestScenarioExplicitRowIndicesWithEmptyRow(t *testing.T) {
	var buf bytes.Buffer
	w := xlsx.Create(&buf, xlsx.DefaultWriteOptions())

	sheet := rowSeq(
		cellvalue.NewRow(0, nil),
		cellvalue.NewRow(0, []cellvalue.Cell{cellvalue.NewCell(0, cellvalue.String("Solo"), 0)}),
		cellvalue.NewRow(0, []cellvalue.Cell{cellvalue.NewCell(0, cellvalue.Number(7), 0)}),
		cellvalue.NewRow(4, []cellvalue.Cell{
			cellvalue.NewCell(0, cellvalue.String("Mixed"), 0),
			cellvalue.NewCell(1, cellvalue.Number(100), 0),
			cellvalue.NewCell(2, cellvalue.String("End"), 0),
		}),
	)
	if err := w.WriteSheet("Sheet1", sheet); err != nil {
		t.Fatalf("WriteSheet: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data := buf.Bytes()
	opts := xlsx.DefaultReadOptions()
	opts.SkipEmptyRows = false
	wb, err := xlsx.OpenReader(bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer wb.Close()

	sh, err := wb.Sheet(1)
	if err != nil {
		t.Fatalf("Sheet: %v", err)
	}
	var rows []cellvalue.Row
	for row, err := range sh.Rows() {
		if err != nil {
			t.Fatalf("Rows: %v", err)
		}
		rows = append(rows, row)
	}
	if len(rows) != 4 {
		t.Fatalf("len(rows) = %d, want 4", len(rows))
	}
	if len(rows[0].Cells) != 0 {
		t.Errorf("row 1 cells = %v, want none", rows[0].Cells)
	}
	if rows[0].Index != 1 {
		t.Errorf("row 1 index = %d, want 1 (auto-assigned)", rows[0].Index)
	}
	if rows[1].Index != 2 {
		t.Errorf("row 2 index = %d, want 2 (auto-assigned)", rows[1].Index)
	}
	if rows[2].Index != 3 {
		t.Errorf("row 3 index = %d, want 3 (auto-assigned)", rows[2].Index)
	}
	if rows[3].Index != 4 {
		t.Errorf("row 4 index = %d, want 4 (explicit)", rows[3].Index)
	}
}

// S3: a 1900-epoch date cell round-trips to the expected calendar date.
func TestScenarioDateRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := xlsx.Create(&buf, xlsx.WriteOptions{Epoch: xlsx.Epoch1900})

	when := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	sheet := rowSeq(cellvalue.NewRow(1, []cellvalue.Cell{cellvalue.NewCell(0, cellvalue.Date(when), 0)}))
	if err := w.WriteSheet("Sheet1", sheet); err != nil {
		t.Fatalf("WriteSheet: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data := buf.Bytes()
	opts := xlsx.DefaultReadOptions()
	use1904 := false
	opts.Use1904Dates = &use1904
	wb, err := xlsx.OpenReader(bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer wb.Close()

	sh, err := wb.Sheet(1)
	if err != nil {
		t.Fatalf("Sheet: %v", err)
	}
	var got cellvalue.Value
	for row, err := range sh.Rows() {
		if err != nil {
			t.Fatalf("Rows: %v", err)
		}
		got = row.Cells[0].Value
	}
	if got.Kind != cellvalue.KindDate {
		t.Fatalf("kind = %v, want date", got.Kind)
	}
	if got.Date.Year() != 2024 || got.Date.Month() != time.January || got.Date.Day() != 15 {
		t.Errorf("date = %v, want 2024-01-15", got.Date)
	}
}

// S4: streaming a large row count, confirming every row arrives intact.
func TestScenarioStreamManyRows(t *testing.T) {
	const n = 100
	polled := 0
	source := func(yield func(cellvalue.Row, error) bool) {
		for i := 0; i < n; i++ {
			polled++
			row := cellvalue.NewRow(i+1, []cellvalue.Cell{
				cellvalue.NewCell(0, cellvalue.String(fmt.Sprintf("Row%d", i)), 0),
				cellvalue.NewCell(1, cellvalue.Number(float64(i)), 0),
			})
			if !yield(row, nil) {
				return
			}
		}
	}

	var buf bytes.Buffer
	w := xlsx.Create(&buf, xlsx.DefaultWriteOptions())
	if err := w.WriteSheet("Sheet1", source); err != nil {
		t.Fatalf("WriteSheet: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if polled != n {
		t.Fatalf("polled = %d, want %d", polled, n)
	}

	data := buf.Bytes()
	wb, err := xlsx.OpenReader(bytes.NewReader(data), int64(len(data)), xlsx.DefaultReadOptions())
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer wb.Close()

	sh, err := wb.Sheet(1)
	if err != nil {
		t.Fatalf("Sheet: %v", err)
	}
	var rows []cellvalue.Row
	for row, err := range sh.Rows() {
		if err != nil {
			t.Fatalf("Rows: %v", err)
		}
		rows = append(rows, row)
	}
	if len(rows) != n {
		t.Fatalf("len(rows) = %d, want %d", len(rows), n)
	}
	if rows[0].Cells[0].Value.Text != "Row0" || rows[0].Cells[1].Value.Number != 0 {
		t.Errorf("row 0 = %+v, want Row0/0", rows[0])
	}
	if rows[n-1].Cells[0].Value.Text != "Row99" || rows[n-1].Cells[1].Value.Number != 99 {
		t.Errorf("row %d = %+v, want Row99/99", n-1, rows[n-1])
	}
}

// S5: multiple sheets, read twice, structurally identical both times.
func TestScenarioMultiSheetRestartable(t *testing.T) {
	var buf bytes.Buffer
	w := xlsx.Create(&buf, xlsx.DefaultWriteOptions())

	for _, name := range []string{"First", "Second", "Third"} {
		sheet := rowSeq(
			cellvalue.NewRow(1, []cellvalue.Cell{cellvalue.NewCell(0, cellvalue.String(name), 0)}),
			cellvalue.NewRow(2, nil),
			cellvalue.NewRow(3, []cellvalue.Cell{cellvalue.NewCell(0, cellvalue.Number(1), 0)}),
		)
		if err := w.WriteSheet(name, sheet); err != nil {
			t.Fatalf("WriteSheet(%s): %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data := buf.Bytes()
	opts := xlsx.DefaultReadOptions()
	opts.SkipEmptyRows = false
	wb, err := xlsx.OpenReader(bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer wb.Close()

	names := wb.Sheets()
	if len(names) != 3 || names[0] != "First" || names[1] != "Second" || names[2] != "Third" {
		t.Fatalf("Sheets() = %v", names)
	}

	for _, name := range names {
		sh, err := wb.SheetByName(name)
		if err != nil {
			t.Fatalf("SheetByName(%s): %v", name, err)
		}
		first := collectRows(t, sh)
		second := collectRows(t, sh)
		if len(first) != 3 || len(second) != 3 {
			t.Fatalf("%s: len(first)=%d len(second)=%d, want 3 and 3", name, len(first), len(second))
		}
		for i := range first {
			if first[i].Index != second[i].Index {
				t.Errorf("%s row %d: index mismatch %d vs %d", name, i, first[i].Index, second[i].Index)
			}
		}
	}
}

func collectRows(t *testing.T, sh *worksheet.Sheet) []cellvalue.Row {
	t.Helper()
	var rows []cellvalue.Row
	for row, err := range sh.Rows() {
		if err != nil {
			t.Fatalf("Rows: %v", err)
		}
		rows = append(rows, row)
	}
	return rows
}

// S6: column-letter law.
func TestScenarioColumnLetterLaw(t *testing.T) {
	cases := []struct {
		idx  int
		want string
	}{
		{0, "A"},
		{25, "Z"},
		{26, "AA"},
		{51, "AZ"},
		{52, "BA"},
		{702, "AAA"},
	}
	for _, c := range cases {
		if got := cellref.IndexToLetter(c.idx); got != c.want {
			t.Errorf("IndexToLetter(%d) = %q, want %q", c.idx, got, c.want)
		}
	}
}
