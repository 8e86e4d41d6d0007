package export

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/shivortex/lead-scraper/internal/model"
	"github.com/shivortex/lead-scraper/internal/scorer"
)

// SheetName is the worksheet XLSX exports write to.
const SheetName = "Leads"

// WriteXLSX writes leads to a single-sheet workbook. Coordinates and the
// quality score are numeric cells; everything else is text.
func WriteXLSX(ctx context.Context, src Source, w io.Writer) (int, error) {
	leads, err := collect(ctx, src)
	if err != nil {
		return 0, err
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return 0, eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, c := range Columns {
		header.AddCell().SetString(c)
	}

	for _, l := range leads {
		r := sheet.AddRow()
		r.AddCell().SetInt64(l.ID)
		for _, s := range []*string{l.Name, l.Category, l.Address, l.City, l.Website, l.Phone, l.Email} {
			r.AddCell().SetString(model.Deref(s))
		}
		for _, v := range []*float64{l.Latitude, l.Longitude} {
			cell := r.AddCell()
			if v != nil {
				cell.SetFloat(*v)
			}
		}
		r.AddCell().SetString(model.Deref(l.SourceURL))
		q := scorer.Quality(l)
		r.AddCell().SetFloat(q.Score)
		r.AddCell().SetString(q.Tier)
	}

	if err := f.Write(w); err != nil {
		return 0, eris.Wrap(err, "xlsx: write workbook")
	}
	return len(leads), nil
}
