package format

import (
	"encoding/json"
	"io"

	"github.com/tidwall/pretty"
)

// Formatter abstracts output formatting.
type Formatter interface {
	Write(w io.Writer, payload any) error
}

// JSONFormatter writes JSON output. Compact output is a single line, which
// keeps piping results into line-oriented tools simple.
type JSONFormatter struct {
	Indent bool
	Color  bool
}

// Write writes JSON payload to a writer.
func (f JSONFormatter) Write(w io.Writer, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if f.Indent {
		data = pretty.Pretty(data)
	} else {
		data = append(pretty.Ugly(data), '\n')
	}
	if f.Color {
		data = pretty.Color(data, nil)
	}

	_, err = w.Write(data)
	return err
}
