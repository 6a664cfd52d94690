package session

import (
	"io"

	"bidmatch/internal/export"
)

// WriteCSV streams the analyzed rows as CSV. Fails with a toast when there
// is nothing to download.
func (s *Store) WriteCSV(w io.Writer) error {
	rows := s.Analyzed()
	if len(rows) == 0 {
		s.notify(NoteError, "toast.noAnalysis")
		return ErrNoAnalysis
	}
	if err := export.WriteCSV(w, rows); err != nil {
		return err
	}
	s.notify(NoteSuccess, "toast.csvDownloaded")
	return nil
}

// WriteXLSX streams the analyzed rows as an XLSX workbook.
func (s *Store) WriteXLSX(w io.Writer) error {
	rows := s.Analyzed()
	if len(rows) == 0 {
		s.notify(NoteError, "toast.noAnalysis")
		return ErrNoAnalysis
	}
	return export.WriteXLSX(w, rows)
}
