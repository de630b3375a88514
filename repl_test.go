package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"plain tokens", "a b c", []string{"a", "b", "c"}},
		{"extra whitespace", "  a\t b  ", []string{"a", "b"}},
		{"quoted token with spaces", `key "a value with spaces"`, []string{"key", "a value with spaces"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := splitArgs(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitArgsEmptyLine(t *testing.T) {
	got, err := splitArgs("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSplitArgsUnterminatedQuote(t *testing.T) {
	_, err := splitArgs(`key "unterminated`)
	assert.Error(t, err)
}

func TestUnescapeValue(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []byte
	}{
		{"plain value", "hello", []byte("hello")},
		{"newline escape", `line1\nline2`, []byte("line1\nline2")},
		{"tab escape", `a\tb`, []byte("a\tb")},
		{"hex escape", `\x00\x01`, []byte{0x00, 0x01}},
		{"escaped backslash", `a\\b`, []byte(`a\b`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := unescapeValue(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnescapeValueBadEscape(t *testing.T) {
	_, err := unescapeValue(`bad\q`)
	assert.Error(t, err)
}

func TestParseSetArgs(t *testing.T) {
	kvs, err := parseSetArgs([]string{"k1", "v1", "k2", `a\nb`})
	require.NoError(t, err)
	assert.Equal(t, []KeyValue{
		{Key: "k1", Value: []byte("v1")},
		{Key: "k2", Value: []byte("a\nb")},
	}, kvs)
}

func TestParseSetArgsOddCount(t *testing.T) {
	_, err := parseSetArgs([]string{"k1", "v1", "k2"})
	assert.ErrorIs(t, err, ErrMismatchedArgs)
}

func TestParseSetArgsEmpty(t *testing.T) {
	_, err := parseSetArgs(nil)
	assert.ErrorIs(t, err, ErrNoArgs)
}
