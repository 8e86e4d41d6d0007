package fetcher

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// maxXLSXSize bounds how much of a workbook is buffered; XLSX is a zip
// archive and cannot be parsed incrementally.
const maxXLSXSize = 64 << 20

// XLSXOptions configures the XLSX parser.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	HeaderRow  int    // 0-based index of the header row; rows above it are skipped
}

// StreamXLSX reads a workbook and sends each row below the header row as a
// Record keyed by normalized header name. Blank rows are skipped. Both
// channels are closed when processing completes.
func StreamXLSX(ctx context.Context, r io.Reader, opts XLSXOptions) (<-chan Record, <-chan error) {
	recCh := make(chan Record, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(recCh)
		defer close(errCh)

		data, err := io.ReadAll(io.LimitReader(r, maxXLSXSize+1))
		if err != nil {
			errCh <- eris.Wrap(err, "xlsx: read workbook")
			return
		}
		if len(data) > maxXLSXSize {
			errCh <- eris.Errorf("xlsx: workbook exceeds %d bytes", maxXLSXSize)
			return
		}

		f, err := xlsx.OpenBinary(data)
		if err != nil {
			errCh <- eris.Wrap(err, "xlsx: open workbook")
			return
		}

		sheet, err := getSheet(f, opts)
		if err != nil {
			errCh <- err
			return
		}
		if opts.HeaderRow >= len(sheet.Rows) {
			return
		}

		cols := normalizeHeaders(rowToStrings(sheet.Rows[opts.HeaderRow]))
		for i := opts.HeaderRow + 1; i < len(sheet.Rows); i++ {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}

			cells := rowToStrings(sheet.Rows[i])
			if blank(cells) {
				continue
			}

			select {
			case recCh <- Record{Line: i + 1, Fields: zipRow(cols, cells)}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}
		}
	}()

	return recCh, errCh
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func blank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
