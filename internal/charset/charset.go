// Package charset converts text read from media containers in to UTF-8,
// the canonical text encoding of the catalog.
package charset

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

var ErrInvalidText = errors.New("text is not valid in the source charset")

type (
	// Converter converts text from a fixed source charset in to UTF-8
	Converter struct {
		name    string
		decoder *encoding.Decoder
	}
)

// New returns a Converter which decodes text from the charset named. Names
// are resolved using the WHATWG encoding index (e.g. 'utf-8',
// 'iso-8859-1', 'windows-1252', 'shift_jis'); an empty name means UTF-8.
func New(name string) (*Converter, error) {
	if name == "" {
		name = "utf-8"
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown charset '%s': %w", name, err)
	}

	canonical, err := htmlindex.Name(enc)
	if err != nil {
		return nil, fmt.Errorf("unknown charset '%s': %w", name, err)
	}

	if strings.EqualFold(canonical, "utf-8") {
		return &Converter{name: canonical}, nil
	}

	return &Converter{name: canonical, decoder: enc.NewDecoder()}, nil
}

// Convert returns the UTF-8 representation of the input text. When the
// source charset is UTF-8 the input is validated and returned as-is.
func (c *Converter) Convert(text string) (string, error) {
	if c.decoder == nil {
		if !utf8.ValidString(text) {
			return "", ErrInvalidText
		}

		return text, nil
	}

	out, _, err := transform.String(c.decoder, text)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidText, err.Error())
	}

	return out, nil
}

func (c *Converter) Name() string { return c.name }
