package transcript

import (
	"errors"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decoder turns a sequence of byte chunks into text. A multi-byte character
// split across two chunks is held back until the rest of it arrives.
type Decoder struct {
	t       transform.Transformer
	pending []byte
}

// NewDecoder returns a lenient UTF-8 decoder: invalid sequences become U+FFFD.
func NewDecoder() *Decoder {
	return &Decoder{t: unicode.UTF8.NewDecoder()}
}

// NewStrictDecoder returns a decoder that fails on invalid UTF-8.
func NewStrictDecoder() *Decoder {
	return &Decoder{t: encoding.UTF8Validator}
}

// Decode consumes chunk and returns the text it completes. When final is
// true any held-back bytes are resolved as well.
func (d *Decoder) Decode(chunk []byte, final bool) (string, error) {
	src := make([]byte, 0, len(d.pending)+len(chunk))
	src = append(src, d.pending...)
	src = append(src, chunk...)
	d.pending = nil

	var out strings.Builder
	dst := make([]byte, 3*len(src)+4)
	for {
		nDst, nSrc, err := d.t.Transform(dst, src, final)
		out.Write(dst[:nDst])
		src = src[nSrc:]

		switch {
		case err == nil:
			if final {
				d.t.Reset()
			}
			return out.String(), nil
		case errors.Is(err, transform.ErrShortDst):
			if nDst == 0 && nSrc == 0 {
				dst = make([]byte, 2*len(dst))
			}
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append(d.pending, src...)
			return out.String(), nil
		default:
			d.t.Reset()
			return out.String(), err
		}
	}
}

// Pending reports how many bytes are held back waiting for the rest of a
// character.
func (d *Decoder) Pending() int {
	return len(d.pending)
}
