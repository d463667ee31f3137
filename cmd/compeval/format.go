package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/jward/compeval"
)

// resultWriter prints each Result as soon as the harness emits it.
type resultWriter struct {
	w      io.Writer
	format string
	enc    *json.Encoder
}

func newResultWriter(w io.Writer, format string) *resultWriter {
	rw := &resultWriter{w: w, format: format}
	if format == "json" {
		rw.enc = json.NewEncoder(w)
	}
	return rw
}

func (rw *resultWriter) write(r *compeval.Result) error {
	if rw.enc != nil {
		return rw.enc.Encode(toJSONResult(r))
	}
	return formatResultText(rw.w, r)
}

// formatResultText writes the test header, one line per candidate in rank
// order, then the expected answer.
func formatResultText(w io.Writer, r *compeval.Result) error {
	if _, err := fmt.Fprintf(w, "test: %s\n", r.Name); err != nil {
		return err
	}
	if r.Err != nil {
		if _, err := fmt.Fprintf(w, "error: [%s] %s\n", compeval.ClassOf(r.Err), r.Err); err != nil {
			return err
		}
	}
	for _, c := range r.Completions {
		line := c.Name
		if c.Import != nil {
			line += " import " + strconv.Quote(c.Import.Content)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if r.Answer.Symbol == "" {
		return nil
	}
	_, err := fmt.Fprintf(w, "answer: %s\n", r.Answer)
	return err
}

type jsonAnswer struct {
	Symbol string  `json:"symbol"`
	Module *string `json:"module,omitempty"`
}

type jsonError struct {
	Class   string `json:"class"`
	Message string `json:"message"`
}

type jsonResult struct {
	Test        string                `json:"test"`
	Completions []compeval.Completion `json:"completions"`
	Answer      *jsonAnswer           `json:"answer,omitempty"`
	Error       *jsonError            `json:"error,omitempty"`
}

func toJSONResult(r *compeval.Result) jsonResult {
	out := jsonResult{Test: r.Name, Completions: r.Completions}
	if out.Completions == nil {
		out.Completions = []compeval.Completion{}
	}
	if r.Answer.Symbol != "" {
		out.Answer = &jsonAnswer{Symbol: r.Answer.Symbol, Module: r.Answer.Module}
	}
	if r.Err != nil {
		out.Error = &jsonError{Class: string(compeval.ClassOf(r.Err)), Message: r.Err.Error()}
	}
	return out
}
