// Package corpus summarises the fixtures in the cache directory. The summary
// is informational: a file the parser rejects is reported, not failed, since
// rejecting odd input is the library's call, not the harness's.
package corpus

import (
	"bytes"
	"fmt"
	"io"
	"text/tabwriter"

	ics "github.com/arran4/golang-ical"
	"github.com/dustin/go-humanize"
	"github.com/icalgate/icalgate/pkg/store"
)

// Summary describes one cached fixture.
type Summary struct {
	Path       string `json:"path"`
	Size       uint64 `json:"size"`
	Digest     string `json:"digest"`
	Components int    `json:"components"`
	Events     int    `json:"events"`
	// ParseError is set when the document could not be parsed.
	ParseError string `json:"parseError,omitempty"`
}

// Inspect parses every file in st, in List order.
func Inspect(st store.Store) ([]Summary, error) {
	files, err := st.List()
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", st.Root(), err)
	}

	summaries := make([]Summary, 0, len(files))
	for _, f := range files {
		s, err := inspectFile(st, f)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

func inspectFile(st store.Store, path string) (Summary, error) {
	data, err := st.ReadFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("reading %s: %w", path, err)
	}
	digest, err := st.Digest(path)
	if err != nil {
		return Summary{}, fmt.Errorf("hashing %s: %w", path, err)
	}

	s := Summary{Path: path, Size: uint64(len(data)), Digest: digest}
	cal, err := ics.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		s.ParseError = err.Error()
		return s, nil
	}
	s.Components = len(cal.Components)
	s.Events = len(cal.Events())
	return s, nil
}

// Print writes summaries as an aligned table.
func Print(w io.Writer, summaries []Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSIZE\tCOMPONENTS\tEVENTS\tDIGEST")
	for _, s := range summaries {
		if s.ParseError != "" {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t%s\n", s.Path, humanize.Bytes(s.Size), s.Digest)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", s.Path, humanize.Bytes(s.Size), s.Components, s.Events, s.Digest)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, s := range summaries {
		if s.ParseError != "" {
			fmt.Fprintf(w, "\n%s: parse error: %s\n", s.Path, s.ParseError)
		}
	}
	return nil
}
