package render

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeup-rs/nodeup/internal/errs"
)

func TestParseModeRejectsUnknown(t *testing.T) {
	_, err := ParseMode("xml")
	require.Error(t, err)
	assert.Equal(t, errs.InvalidInput, errs.KindOf(err))
}

func TestValueHumanMode(t *testing.T) {
	var buf bytes.Buffer
	Value(&buf, Human, 42, func(v interface{}) string { return "the answer is 42" })
	assert.Equal(t, "the answer is 42\n", buf.String())
}

func TestValueJSONMode(t *testing.T) {
	var buf bytes.Buffer
	Value(&buf, JSON, map[string]int{"x": 1}, nil)

	var decoded map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 1, decoded["x"])
}

func TestErrorHumanMode(t *testing.T) {
	var buf bytes.Buffer
	Error(&buf, Human, errs.New(errs.NotFound, "missing thing"))
	assert.Equal(t, "error: missing thing\n", buf.String())
}

func TestErrorJSONModeIncludesKind(t *testing.T) {
	var buf bytes.Buffer
	Error(&buf, JSON, errs.New(errs.Conflict, "dirty tree"))

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "dirty tree", decoded["error"])
	assert.Equal(t, "conflict", decoded["kind"])
}
