// Package marker finds and removes the cursor marker from source text.
package marker

import (
	"bytes"
	"errors"

	"github.com/jward/compeval/internal/evalerr"
)

// Token is the literal marker placed in corpus sources where completion is
// requested.
const Token = "<CURSOR>"

// Result is the outcome of scanning a buffer.
type Result struct {
	// Data is the input with the marker removed. When Found is false it is
	// the input itself.
	Data []byte
	// Offset is where the marker started in the input, which is also where
	// the removed text began in Data.
	Offset int
	Found  bool
}

// Scan removes the single occurrence of token from data.
//
// A buffer without the token is not an error: Found is false and Data is
// data unchanged. Two or more occurrences fail with
// *evalerr.MultipleMarkersError and a zero Result.
func Scan(data, token []byte) (Result, error) {
	if len(token) == 0 {
		return Result{}, errors.New("marker: empty token")
	}
	first := bytes.Index(data, token)
	if first < 0 {
		return Result{Data: data}, nil
	}
	rest := first + len(token)
	if next := bytes.Index(data[rest:], token); next >= 0 {
		return Result{}, &evalerr.MultipleMarkersError{
			Marker: string(token),
			First:  first,
			Second: rest + next,
		}
	}

	out := make([]byte, 0, len(data)-len(token))
	out = append(out, data[:first]...)
	out = append(out, data[rest:]...)
	return Result{Data: out, Offset: first, Found: true}, nil
}
