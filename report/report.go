// Package report exports ledger documents as XLSX workbooks: invoices,
// school statements and school year comparisons.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/types"
)

// ContentType is the MIME type of every workbook produced here.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const dateLayout = "02/01/2006"

// Write streams f to w and closes it.
func Write(f *excelize.File, w io.Writer) error {
	defer f.Close() //nolint:errcheck // nothing left to flush after Write
	if err := f.Write(w); err != nil {
		return fmt.Errorf("cahiers/report: write workbook: %w", err)
	}
	return nil
}

// StatusLabel is the printed form of a sale status.
func StatusLabel(s sale.Status) string {
	switch s {
	case sale.StatusSettled:
		return "Soldé"
	case sale.StatusOverdue:
		return "En retard"
	case sale.StatusInProgress:
		return "En cours"
	default:
		return string(s)
	}
}

// styles are the cell formats shared by a workbook.
type styles struct {
	title  int
	header int
	label  int
	date   int
	money  int
	total  int
}

func newStyles(f *excelize.File, currency types.Money) (styles, error) {
	moneyFmt := "#,##0"
	if d := currency.Decimals(); d > 0 {
		moneyFmt += "." + strings.Repeat("0", int(d))
	}
	if sym := currency.Symbol(); sym != "" {
		moneyFmt += ` "` + sym + `"`
	}
	dateFmt := "dd/mm/yyyy"

	var (
		st  styles
		err error
	)
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&st.title, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}},
		{&st.header, &excelize.Style{
			Font:      &excelize.Font{Bold: true},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		}},
		{&st.label, &excelize.Style{Font: &excelize.Font{Bold: true}}},
		{&st.date, &excelize.Style{CustomNumFmt: &dateFmt}},
		{&st.money, &excelize.Style{CustomNumFmt: &moneyFmt}},
		{&st.total, &excelize.Style{Font: &excelize.Font{Bold: true}, CustomNumFmt: &moneyFmt}},
	}
	for _, d := range defs {
		if *d.dst, err = f.NewStyle(d.style); err != nil {
			return styles{}, fmt.Errorf("cahiers/report: style: %w", err)
		}
	}
	return st, nil
}

// cell is a value with an optional style.
type cell struct {
	value any
	style int
}

func text(s string) cell { return cell{value: s} }

// sheet writes rows top to bottom. The first error sticks and later
// writes are skipped.
type sheet struct {
	f    *excelize.File
	name string
	st   styles
	row  int
	err  error
}

func newSheet(f *excelize.File, name string, st styles) *sheet {
	s := &sheet{f: f, name: name, st: st, row: 1}
	idx, err := f.GetSheetIndex(name)
	switch {
	case err != nil:
		s.err = err
	case idx < 0:
		idx, s.err = f.NewSheet(name)
	}
	if s.err == nil {
		f.SetActiveSheet(idx)
	}
	return s
}

func (s *sheet) money(m types.Money) cell { return cell{value: m.Amount.InexactFloat64(), style: s.st.money} }
func (s *sheet) total(m types.Money) cell { return cell{value: m.Amount.InexactFloat64(), style: s.st.total} }
func (s *sheet) date(t time.Time) cell    { return cell{value: t, style: s.st.date} }
func (s *sheet) label(v string) cell      { return cell{value: v, style: s.st.label} }

// line writes cells on the current row and moves to the next one.
func (s *sheet) line(cells ...cell) {
	for i, c := range cells {
		if s.err != nil {
			return
		}
		if c.value == nil {
			continue
		}
		name, err := excelize.CoordinatesToCellName(i+1, s.row)
		if err != nil {
			s.err = err
			return
		}
		if s.err = s.f.SetCellValue(s.name, name, c.value); s.err != nil {
			return
		}
		if c.style != 0 {
			s.err = s.f.SetCellStyle(s.name, name, name, c.style)
		}
	}
	s.row++
}

// headers writes a styled header row.
func (s *sheet) headers(titles ...string) {
	cells := make([]cell, len(titles))
	for i, t := range titles {
		cells[i] = cell{value: t, style: s.st.header}
	}
	s.line(cells...)
}

func (s *sheet) skip() { s.row++ }

// widths sets column widths starting at column A.
func (s *sheet) widths(w ...float64) {
	for i, width := range w {
		if s.err != nil {
			return
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			s.err = err
			return
		}
		s.err = s.f.SetColWidth(s.name, col, col, width)
	}
}

// finish drops the default sheet when another one was written.
func finish(f *excelize.File, s *sheet) (*excelize.File, error) {
	if s.err != nil {
		f.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("cahiers/report: %s: %w", s.name, s.err)
	}
	if s.name != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			f.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("cahiers/report: %w", err)
		}
	}
	return f, nil
}
