package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/live-labs/labkeys/internal/crypto"
)

// EncryptDocument encrypts every top-level value of doc independently.
// String values are encrypted as their text; any other value is encrypted as
// its compact JSON. Nested objects are one opaque value.
//
// Fields run in parallel since each one pays for its own key derivation.
func EncryptDocument(ctx context.Context, doc *Document, password []byte) (*Document, error) {
	fields := doc.Fields()
	blobs := make([]string, len(fields))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, f := range fields {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			text, err := f.Text()
			if err != nil {
				return fmt.Errorf("field %q: %w", f.Key, err)
			}

			blob, err := crypto.EncryptText(text, password)
			if err != nil {
				return fmt.Errorf("field %q: %w", f.Key, err)
			}
			blobs[i] = blob
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := NewDocument()
	for i, f := range fields {
		if err := out.SetString(f.Key, blobs[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Decrypter turns one blob into plain text. crypto.DecryptText and
// crypto.DecryptLegacyText both qualify.
type Decrypter func(blob string, password []byte) (string, error)

// DecryptDocument reverses EncryptDocument with the current blob format.
func DecryptDocument(ctx context.Context, doc *Document, password []byte) (*Document, error) {
	return DecryptDocumentWith(ctx, doc, password, crypto.DecryptText)
}

// DecryptDocumentWith decrypts every value of doc with decrypt. A decrypted
// value that parses as JSON is stored as that JSON, so the string "42"
// comes back as the number 42; anything else is stored as a string.
//
// The first failing field cancels the others and its error is returned;
// no partial document is produced.
func DecryptDocumentWith(ctx context.Context, doc *Document, password []byte, decrypt Decrypter) (*Document, error) {
	fields := doc.Fields()
	values := make([]json.RawMessage, len(fields))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, f := range fields {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			if len(f.Value) == 0 || f.Value[0] != '"' {
				return fmt.Errorf("field %q: %w", f.Key, ErrValueNotString)
			}
			blob, err := f.Text()
			if err != nil {
				return fmt.Errorf("field %q: %w", f.Key, err)
			}

			text, err := decrypt(blob, password)
			if err != nil {
				return fmt.Errorf("field %q: %w", f.Key, err)
			}

			value, err := typedValue(text)
			if err != nil {
				return fmt.Errorf("field %q: %w", f.Key, err)
			}
			values[i] = value
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := NewDocument()
	for i, f := range fields {
		out.Set(f.Key, values[i])
	}
	return out, nil
}

func typedValue(text string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace([]byte(text))
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return trimmed, nil
	}
	return marshalString(text)
}
