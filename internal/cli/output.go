package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vitorvargasdev/streamfluency/internal/subtitle"
	"github.com/vitorvargasdev/streamfluency/internal/translate"
	"github.com/vitorvargasdev/streamfluency/internal/vocabulary"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printLookup(w io.Writer, l translate.Lookup) {
	fmt.Fprintf(w, "%s\n", l.Text)
	if t := l.Translation; t != nil {
		if t.Error != "" {
			fmt.Fprintf(w, "  translation failed: %s\n", t.Error)
		} else {
			fmt.Fprintf(w, "  %s (%s)\n", t.TranslatedText, t.Service)
		}
	}
	if d := l.Definition; d != nil {
		if d.Error != "" {
			fmt.Fprintf(w, "  %s\n", d.Error)
		}
		if d.Phonetic != "" {
			fmt.Fprintf(w, "  %s\n", d.Phonetic)
		}
		for _, m := range d.Meanings {
			if m.PartOfSpeech != "" {
				fmt.Fprintf(w, "  [%s] %s\n", m.PartOfSpeech, m.Definition)
			} else {
				fmt.Fprintf(w, "  %s\n", m.Definition)
			}
			if m.Example != "" {
				fmt.Fprintf(w, "      e.g. %s\n", m.Example)
			}
		}
	}
}

func printItems(w io.Writer, items []vocabulary.Item) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No saved words")
		return
	}
	for _, item := range items {
		line := fmt.Sprintf("%s  %s", item.ID, item.Text)
		if item.Translation != "" {
			line += " = " + item.Translation
		}
		if item.VideoTitle != "" {
			line += "  [" + item.VideoTitle
			if item.VideoTimestamp != nil {
				line += " @ " + subtitle.FormatTime(*item.VideoTimestamp)
			}
			line += "]"
		}
		fmt.Fprintln(w, line)
		if item.Context != nil && *item.Context != "" {
			fmt.Fprintf(w, "    %q\n", *item.Context)
		}
	}
}

// renders the combined view, the current row marked with >
func printRows(w io.Writer, rows []subtitle.CombinedRow) {
	for _, row := range rows {
		marker := " "
		if row.IsCurrent {
			marker = ">"
		}
		var parts []string
		if row.LearningText != nil {
			parts = append(parts, *row.LearningText)
		}
		if row.NativeText != nil {
			parts = append(parts, "("+*row.NativeText+")")
		}
		fmt.Fprintf(w, "%s %s  %s\n", marker, subtitle.FormatTime(row.Time), strings.Join(parts, " "))
	}
}
