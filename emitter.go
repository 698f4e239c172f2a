package batchcount

import (
	"io"
	"strconv"
	"strings"
)

// Result objects hold one "token:count" record per line.
const (
	recordSeparator = "\n"
	fieldSeparator  = ":"
)

// resultEmitter writes token:count records and counts the bytes written.
type resultEmitter struct {
	writer       io.Writer
	writtenBytes int64
}

func newResultEmitter(writer io.Writer) *resultEmitter {
	return &resultEmitter{writer: writer}
}

// Emit writes one record.
func (e *resultEmitter) Emit(token string, count int64) error {
	n, err := io.WriteString(e.writer, token+fieldSeparator+strconv.FormatInt(count, 10)+recordSeparator)
	e.writtenBytes += int64(n)
	return err
}

// EmitRanked writes records in the given order.
func (e *resultEmitter) EmitRanked(ranked []TokenCount) error {
	for _, tc := range ranked {
		if err := e.Emit(tc.Token, tc.Count); err != nil {
			return err
		}
	}
	return nil
}

func (e *resultEmitter) bytesWritten() int64 {
	return e.writtenBytes
}

// parseRecord parses a token:count line. A line is valid only if it has
// exactly one separator and an integer count.
func parseRecord(line string) (token string, count int64, ok bool) {
	parts := strings.Split(line, fieldSeparator)
	if len(parts) != 2 {
		return "", 0, false
	}
	count, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return "", 0, false
	}
	return parts[0], count, true
}
