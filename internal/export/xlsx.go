package export

import (
	"io"

	"github.com/xuri/excelize/v2"

	"bidmatch/internal"
)

// WriteXLSX renders the analyzed rows as a single-sheet workbook with the
// same columns as the CSV export.
func WriteXLSX(w io.Writer, rows []internal.AnalyzedProduct) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	for i, h := range Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, deref(row.ID))
		set(2, row.Name)
		set(3, deref(row.Specification))
		set(4, deref(row.Unit))
		set(5, deref(row.Quantity))
		set(6, row.Price)
		set(7, row.Provider)
		set(8, row.Origin)
		set(9, row.Type)
	}

	return f.Write(w)
}
