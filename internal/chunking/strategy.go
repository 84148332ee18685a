package chunking

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// sniffLen is how much of a file is checked for NUL bytes.
const sniffLen = 8000

// Strategy picks a splitter per file and wraps the pieces as fragments.
type Strategy struct {
	registry *Registry
}

// NewStrategy creates a Strategy over registry.
func NewStrategy(registry *Registry) *Strategy {
	return &Strategy{registry: registry}
}

// Registry returns the underlying registry.
func (s *Strategy) Registry() *Registry {
	return s.registry
}

// Split fragments content. Recognized languages go through their language-aware splitter,
// everything else through the fixed window. Blank content yields no fragments.
func (s *Strategy) Split(path, content string) []Fragment {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	lang, ok := s.registry.LanguageFor(path)
	if !ok {
		lang = LangNone
	}
	pieces := s.registry.SplitterFor(lang).Split(content)

	out := make([]Fragment, 0, len(pieces))
	for _, p := range pieces {
		out = append(out, Fragment{Path: path, Language: lang, Text: p})
	}
	return out
}

// SplitFile decodes data and splits it. Binary or non-UTF-8 data returns ErrNotText.
func (s *Strategy) SplitFile(path string, data []byte) ([]Fragment, error) {
	text, err := DecodeText(data)
	if err != nil {
		return nil, err
	}
	return s.Split(path, text), nil
}

// DecodeText returns data as a string when it looks like text.
func DecodeText(data []byte) (string, error) {
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if bytes.IndexByte(head, 0) >= 0 || !utf8.Valid(data) {
		return "", ErrNotText
	}
	return string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))), nil
}
