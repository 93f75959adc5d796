package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/adamsim/internal/model"
)

// Format selects how run output is written.
type Format string

// Output formats.
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat resolves an output format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown output format %q", name)
	}
}

// WriteRun writes out in the given format. Table output includes per-trial
// rows only when raw is set; structured formats carry them when present in
// out.Results.
func WriteRun(w io.Writer, format Format, out model.RunOutput, raw bool) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		if err := RenderSummaries(w, out); err != nil {
			return err
		}
		if !raw {
			return nil
		}
		if _, err := fmt.Fprintln(w, ""); err != nil {
			return err
		}
		return RenderTrials(w, out.Results)
	}
}
