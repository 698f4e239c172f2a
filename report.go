package batchcount

import (
	"io"
	"strconv"
	"strings"

	runewidth "github.com/mattn/go-runewidth"
)

// WriteTable renders ranked entries as a two column text table. Column
// widths account for wide runes so tokens in any script stay aligned.
func WriteTable(w io.Writer, ranked []TokenCount) error {
	keyHeader, valueHeader := "Key", "Value"

	keyWidth := runewidth.StringWidth(keyHeader)
	valueWidth := runewidth.StringWidth(valueHeader)
	values := make([]string, len(ranked))
	for i, tc := range ranked {
		values[i] = strconv.FormatInt(tc.Count, 10)
		keyWidth = max(keyWidth, runewidth.StringWidth(tc.Token))
		valueWidth = max(valueWidth, len(values[i]))
	}

	border := "+" + strings.Repeat("-", keyWidth+2) + "+" + strings.Repeat("-", valueWidth+2) + "+\n"

	var sb strings.Builder
	sb.WriteString(border)
	writeRow(&sb, keyHeader, keyWidth, valueHeader, valueWidth)
	sb.WriteString(border)
	for i, tc := range ranked {
		writeRow(&sb, tc.Token, keyWidth, values[i], valueWidth)
	}
	sb.WriteString(border)

	_, err := io.WriteString(w, sb.String())
	return err
}

// writeRow writes one row with the key left-aligned and the value centered.
func writeRow(sb *strings.Builder, key string, keyWidth int, value string, valueWidth int) {
	sb.WriteString("| ")
	sb.WriteString(runewidth.FillRight(key, keyWidth))
	sb.WriteString(" | ")
	sb.WriteString(center(value, valueWidth))
	sb.WriteString(" |\n")
}

func center(s string, width int) string {
	pad := width - runewidth.StringWidth(s)
	if pad <= 0 {
		return s
	}
	left := pad / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
}
