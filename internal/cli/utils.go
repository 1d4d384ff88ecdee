// Package cli formats command output for the gamescout CLI.
package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/hyperjump/gamescout/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json" (case-insensitive); empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(OutputText):
		return OutputText, nil
	case string(OutputJSON):
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteRecommendations writes a recommendation response. Unknown formats fall back to text.
func WriteRecommendations(w io.Writer, resp *models.RecommendResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	if len(resp.Recommendations) == 0 {
		fmt.Fprintln(w, "No recommendations.")
	} else {
		fmt.Fprintf(w, "\nRecommended games (%d):\n\n", len(resp.Recommendations))
		for i, name := range resp.Recommendations {
			fmt.Fprintf(w, "%3d. %s\n", i+1, name)
		}
	}
	if len(resp.UnresolvedTitles) > 0 {
		fmt.Fprintln(w, "\nNot in the catalog:")
		for _, title := range resp.UnresolvedTitles {
			if sugg := resp.Suggestions[title]; len(sugg) > 0 {
				fmt.Fprintf(w, "  %s (did you mean: %s?)\n", title, strings.Join(sugg, ", "))
				continue
			}
			fmt.Fprintf(w, "  %s\n", title)
		}
	}
	fmt.Fprintln(w)
	return nil
}

// WriteAnswer writes a chat answer.
func WriteAnswer(w io.Writer, resp *models.ChatResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	_, err := fmt.Fprintln(w, resp.Answer)
	return err
}

// WriteSearch writes catalog title search results.
func WriteSearch(w io.Writer, resp *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\nFound %d titles matching %q\n\n", len(resp.Results), resp.Query)
	for _, name := range resp.Results {
		fmt.Fprintf(w, "  %s\n", name)
	}
	if len(resp.Suggestions) > 0 {
		fmt.Fprintf(w, "Did you mean: %s?\n", strings.Join(resp.Suggestions, ", "))
	}
	fmt.Fprintln(w)
	return nil
}

// WriteStatus writes the server status summary.
func WriteStatus(w io.Writer, st *models.StatusResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	rows := [][2]string{
		{"Catalog size", fmt.Sprint(st.CatalogSize)},
		{"Dimensions", fmt.Sprint(st.Dimensions)},
		{"Index", fmt.Sprintf("%s (%d vectors)", st.IndexType, st.IndexSize)},
		{"Document store", st.DocumentStore},
		{"Documents", fmt.Sprint(st.Documents)},
		{"Chunks", fmt.Sprint(st.Chunks)},
		{"Generator", st.Generator},
	}
	if st.GeneratorCircuit != "" {
		rows = append(rows, [2]string{"Generator circuit", st.GeneratorCircuit})
	}
	if st.DiskUsageBytes > 0 {
		rows = append(rows, [2]string{"Disk usage", FormatBytes(st.DiskUsageBytes)})
	}
	if len(st.WatchDirectories) > 0 {
		dirs := append([]string(nil), st.WatchDirectories...)
		sort.Strings(dirs)
		rows = append(rows, [2]string{"Watching", strings.Join(dirs, ", ")})
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r[0]))
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%-*s  %s\n", width+1, r[0]+":", r[1])
	}
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
