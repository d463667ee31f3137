// Package truth loads the expected answer and settings for a corpus entry.
package truth

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/jward/compeval/internal/evalerr"
)

// FileName is the truth file expected in every corpus entry directory.
const FileName = "completion.toml"

// Truth is the recorded expectation for a single completion test.
type Truth struct {
	Answer   Answer   `toml:"answer"`
	Settings Settings `toml:"settings"`
}

// Answer is the completion a perfect provider ranks first.
type Answer struct {
	Symbol string `toml:"symbol"`
	// Module is the module the symbol must come from. Nil means any origin
	// is acceptable.
	Module *string `toml:"module"`
}

// Settings are forwarded to the completion provider.
type Settings struct {
	AutoImport bool `toml:"auto-import"`
}

// Load reads and parses FileName in dir.
//
// Unknown keys are rejected so that misspelled settings do not silently fall
// back to their defaults.
func Load(dir string) (*Truth, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &evalerr.MissingTruthFileError{Path: path, Err: err}
		}
		return nil, &evalerr.IOError{Op: "read", Path: path, Err: err}
	}
	return Parse(path, data)
}

// Parse decodes truth data. path is only used in error messages.
func Parse(path string, data []byte) (*Truth, error) {
	var t Truth
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		return nil, &evalerr.TruthParseError{Path: path, Err: err}
	}
	if t.Answer.Symbol == "" {
		return nil, &evalerr.TruthParseError{
			Path: path,
			Err:  errors.New("missing required key `answer.symbol`"),
		}
	}
	return &t, nil
}

// String renders the answer the way it is printed after each test.
func (a Answer) String() string {
	s := "symbol=" + strconv.Quote(a.Symbol)
	if a.Module != nil {
		s += " module=" + strconv.Quote(*a.Module)
	}
	return s
}
