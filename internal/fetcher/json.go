package fetcher

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// Item is one decoded element of a streamed JSON array. Err is set instead
// of Value when the element was well-formed JSON but did not decode into T.
type Item[T any] struct {
	Value T
	Err   error
}

// StreamJSONArrayField decodes the array stored under field in a top-level
// JSON object, sending each element to a channel without buffering the whole
// document. Other top-level fields are skipped. A missing field yields an
// empty stream. Both channels are closed when processing completes.
func StreamJSONArrayField[T any](ctx context.Context, r io.Reader, field string) (<-chan Item[T], <-chan error) {
	outCh := make(chan Item[T], 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		dec := json.NewDecoder(r)
		if err := expectDelim(dec, '{'); err != nil {
			errCh <- err
			return
		}

		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				errCh <- eris.Wrap(err, "json: read key")
				return
			}
			key, _ := tok.(string)
			if key != field {
				var skip json.RawMessage
				if err := dec.Decode(&skip); err != nil {
					errCh <- eris.Wrapf(err, "json: skip field %q", key)
					return
				}
				continue
			}

			if err := expectDelim(dec, '['); err != nil {
				errCh <- err
				return
			}
			for dec.More() {
				if ctx.Err() != nil {
					errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
					return
				}

				var raw json.RawMessage
				if err := dec.Decode(&raw); err != nil {
					errCh <- eris.Wrap(err, "json: decode element")
					return
				}
				var item Item[T]
				if err := json.Unmarshal(raw, &item.Value); err != nil {
					item.Err = eris.Wrap(err, "json: malformed element")
				}

				select {
				case outCh <- item:
				case <-ctx.Done():
					errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
					return
				}
			}
			// Consume closing bracket
			if _, err := dec.Token(); err != nil {
				errCh <- eris.Wrap(err, "json: read closing token")
				return
			}
		}
	}()

	return outCh, errCh
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return eris.Wrapf(err, "json: read opening %q", want)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return eris.Errorf("json: expected %q, got %v", want, tok)
	}
	return nil
}

// DecodeJSONObject decodes a single JSON object from a reader.
func DecodeJSONObject[T any](r io.Reader) (*T, error) {
	var obj T
	if err := json.NewDecoder(r).Decode(&obj); err != nil {
		return nil, eris.Wrap(err, "json: decode object")
	}
	return &obj, nil
}
