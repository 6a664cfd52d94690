// Package export serializes analyzed rows into downloadable artifacts.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"bidmatch/internal"
)

// Header is the fixed column order of both export formats.
var Header = []string{"ID", "Product Name", "Specification", "Unit", "Quantity", "Price", "Provider", "Origin", "Type"}

// EncodeCSV renders the analyzed rows as CSV text. The name and
// specification columns are always quoted with internal quotes doubled; any
// other field is quoted only when it contains a comma, quote or newline.
// Rows are joined with a single newline and the output carries no trailing
// row separator.
func EncodeCSV(rows []internal.AnalyzedProduct) string {
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, strings.Join(Header, ","))
	for _, row := range rows {
		fields := []string{
			field(deref(row.ID), false),
			field(row.Name, true),
			field(deref(row.Specification), true),
			field(deref(row.Unit), false),
			field(deref(row.Quantity), false),
			field(row.Price, false),
			field(row.Provider, false),
			field(row.Origin, false),
			field(row.Type, false),
		}
		lines = append(lines, strings.Join(fields, ","))
	}
	return strings.Join(lines, "\n")
}

func WriteCSV(w io.Writer, rows []internal.AnalyzedProduct) error {
	_, err := io.WriteString(w, EncodeCSV(rows))
	return err
}

// FileName returns the download name for a CSV export, stamped with the
// ISO date.
func FileName(now time.Time) string {
	return fmt.Sprintf("product_analysis_%s.csv", now.Format("2006-01-02"))
}

func field(value string, forceQuote bool) string {
	needsQuote := forceQuote || strings.ContainsAny(value, ",\"\n")
	if !needsQuote {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
