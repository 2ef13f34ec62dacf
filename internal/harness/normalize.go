package harness

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
)

// Actions kept by [Normalize].
const (
	ActionPass = "pass"
	ActionFail = "fail"
	ActionSkip = "skip"
)

// Outcome of a single conformance test.
type Record struct {
	Action string `json:"Action"` // One of pass, fail, skip.
	Test   string `json:"Test"`   // Test name, including subtest path.
}

// Counts of the records written by [Normalize].
type Summary struct {
	Pass      int // Passed tests.
	Fail      int // Failed tests.
	Skip      int // Skipped tests.
	Discarded int // Lines dropped: other actions, no test name, or not JSON.
}

// Returns the number of records written.
func (s Summary) Total() int {
	return s.Pass + s.Fail + s.Skip
}

// Event of the go test JSON stream. Only the fields the filter needs.
type event struct {
	Action string  `json:"Action"`
	Test   *string `json:"Test"`
}

// Filters a go test JSON event stream down to sorted test outcomes.
//
// Events whose action is pass, fail, or skip and whose test name is present
// and non-empty become one {"Action","Test"} line each. Duplicate records
// (for example from retried tests) are kept. Lines are sorted by their full
// text, so the output is identical regardless of the order tests finished
// in. Lines that are not JSON objects are discarded. Running Normalize over
// its own output reproduces it exactly.
func Normalize(r io.Reader, w io.Writer) (Summary, error) {
	var (
		sum   Summary
		lines [][]byte
	)

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			rec, ok := project(line)
			if !ok {
				sum.Discarded++
			} else {
				out, merr := encode(rec)
				if merr != nil {
					return sum, merr
				}
				lines = append(lines, out)
				sum.count(rec.Action)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, fmt.Errorf("%w: %w", ErrOutput, err)
		}
	}

	slices.SortFunc(lines, bytes.Compare)

	bw := bufio.NewWriter(w)
	for _, line := range lines {
		bw.Write(line)
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return sum, fmt.Errorf("%w: %w", ErrOutput, err)
	}
	return sum, nil
}

// Projects one event line to a record. Returns false if the line is
// filtered out.
func project(line []byte) (Record, bool) {
	var ev event
	if err := json.Unmarshal(line, &ev); err != nil {
		return Record{}, false
	}
	if ev.Test == nil || *ev.Test == "" {
		return Record{}, false
	}
	switch ev.Action {
	case ActionPass, ActionFail, ActionSkip:
		return Record{Action: ev.Action, Test: *ev.Test}, true
	}
	return Record{}, false
}

// Encodes a record as a single JSON line without the trailing newline.
// Test names are written as-is, without HTML escaping.
func encode(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Counts a kept record.
func (s *Summary) count(action string) {
	switch action {
	case ActionPass:
		s.Pass++
	case ActionFail:
		s.Fail++
	case ActionSkip:
		s.Skip++
	}
}
