package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/shivortex/lead-scraper/internal/model"
)

// WriteCSV streams leads as CSV with a Columns header row.
func WriteCSV(ctx context.Context, src Source, w io.Writer) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return 0, eris.Wrap(err, "csv: write header")
	}

	n := 0
	err := src.Each(ctx, func(l model.Lead) error {
		if err := cw.Write(row(l)); err != nil {
			return eris.Wrapf(err, "csv: write lead %d", l.ID)
		}
		n++
		return nil
	})
	if err != nil {
		return n, eris.Wrap(err, "csv: export")
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return n, eris.Wrap(err, "csv: flush")
	}
	return n, nil
}

// WriteJSON streams leads as a JSON array in the API's lead shape.
func WriteJSON(ctx context.Context, src Source, w io.Writer) (int, error) {
	if _, err := io.WriteString(w, "["); err != nil {
		return 0, eris.Wrap(err, "json: write")
	}

	enc := json.NewEncoder(w)
	n := 0
	err := src.Each(ctx, func(l model.Lead) error {
		if n > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return eris.Wrap(err, "json: write")
			}
		}
		if err := enc.Encode(l); err != nil {
			return eris.Wrapf(err, "json: encode lead %d", l.ID)
		}
		n++
		return nil
	})
	if err != nil {
		return n, eris.Wrap(err, "json: export")
	}

	if _, err := io.WriteString(w, "]\n"); err != nil {
		return n, eris.Wrap(err, "json: write")
	}
	return n, nil
}
