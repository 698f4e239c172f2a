package batchcount

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultEmitter(t *testing.T) {
	buf := new(bytes.Buffer)
	emitter := newResultEmitter(buf)

	err := emitter.Emit("key", 3)
	assert.Nil(t, err)

	assert.Equal(t, "key:3\n", buf.String())
	assert.Equal(t, int64(6), emitter.bytesWritten())
}

func TestResultEmitterRanked(t *testing.T) {
	table := NewFrequencyTable()
	for _, token := range strings.Split("b a a c a b", " ") {
		table.Add(token, 1)
	}

	buf := new(bytes.Buffer)
	emitter := newResultEmitter(buf)
	assert.Nil(t, emitter.EmitRanked(table.Ranked()))
	assert.Equal(t, "a:3\nb:2\nc:1\n", buf.String())
	assert.Equal(t, int64(buf.Len()), emitter.bytesWritten())
}

func TestParseRecord(t *testing.T) {
	var parseTests = []struct {
		line          string
		expectedToken string
		expectedCount int64
		expectedOk    bool
	}{
		{"cat:5", "cat", 5, true},
		{"cat: 5 ", "cat", 5, true},
		{":2", "", 2, true},
		{"neg:-1", "neg", -1, true},
		{"noColon", "", 0, false},
		{"a:b:c", "", 0, false},
		{"x:notanumber", "", 0, false},
		{"x:", "", 0, false},
		{"", "", 0, false},
	}

	for _, test := range parseTests {
		token, count, ok := parseRecord(test.line)
		assert.Equal(t, test.expectedOk, ok, test.line)
		assert.Equal(t, test.expectedToken, token, test.line)
		assert.Equal(t, test.expectedCount, count, test.line)
	}
}
