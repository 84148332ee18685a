//go:build cgo

package chunking

import (
	"context"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/html"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/lua"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/protobuf"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/scala"
	"github.com/smacker/go-tree-sitter/swift"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// grammar returns the tree-sitter grammar for lang, or nil.
func grammar(lang Language) *sitter.Language {
	switch lang {
	case LangC:
		return c.GetLanguage()
	case LangCPP:
		return cpp.GetLanguage()
	case LangCSharp:
		return csharp.GetLanguage()
	case LangGo:
		return golang.GetLanguage()
	case LangHTML:
		return html.GetLanguage()
	case LangJava:
		return java.GetLanguage()
	case LangJS:
		return javascript.GetLanguage()
	case LangKotlin:
		return kotlin.GetLanguage()
	case LangLua:
		return lua.GetLanguage()
	case LangPHP:
		return php.GetLanguage()
	case LangProto:
		return protobuf.GetLanguage()
	case LangPython:
		return python.GetLanguage()
	case LangRuby:
		return ruby.GetLanguage()
	case LangRust:
		return rust.GetLanguage()
	case LangScala:
		return scala.GetLanguage()
	case LangSwift:
		return swift.GetLanguage()
	case LangTS:
		return typescript.GetLanguage()
	case LangTSX:
		return tsx.GetLanguage()
	default:
		return nil
	}
}

// SyntaxSplitter cuts along syntax-tree node boundaries. A node that fits in Size runes is
// kept whole; larger nodes are split into their children; an oversized leaf is hard-cut.
// Adjacent spans are then merged up to Size.
type SyntaxSplitter struct {
	lang     *sitter.Language
	size     int
	fallback Splitter
	pool     sync.Pool
}

func newSyntaxSplitter(lang Language, size int, fallback Splitter) Splitter {
	g := grammar(lang)
	if g == nil {
		return nil
	}
	s := &SyntaxSplitter{lang: g, size: size, fallback: fallback}
	s.pool.New = func() any {
		p := sitter.NewParser()
		p.SetLanguage(g)
		return p
	}
	return s
}

// Split implements Splitter. Parse failures fall back to the separator splitter.
func (s *SyntaxSplitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if runeLen(text) <= s.size {
		return []string{strings.TrimSpace(text)}
	}

	src := []byte(text)
	parser := s.pool.Get().(*sitter.Parser)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	s.pool.Put(parser)
	if err != nil || tree == nil {
		return s.fallback.Split(text)
	}
	defer tree.Close()

	var spans [][2]int
	s.collect(tree.RootNode(), text, &spans)
	return mergePieces(s.segments(text, spans), s.size)
}

// collect appends byte ranges of the smallest nodes that still fit.
func (s *SyntaxSplitter) collect(n *sitter.Node, text string, spans *[][2]int) {
	start, end := int(n.StartByte()), int(n.EndByte())
	if start >= end {
		return
	}
	if runeLen(text[start:end]) <= s.size {
		*spans = append(*spans, [2]int{start, end})
		return
	}
	count := int(n.ChildCount())
	if count == 0 {
		off := start
		for _, piece := range hardCut(text[start:end], s.size) {
			*spans = append(*spans, [2]int{off, off + len(piece)})
			off += len(piece)
		}
		return
	}
	for i := 0; i < count; i++ {
		if child := n.Child(i); child != nil {
			s.collect(child, text, spans)
		}
	}
}

// segments turns node spans into contiguous pieces covering the whole text. Text between
// nodes is attached to the following node unless that would push it over the limit.
func (s *SyntaxSplitter) segments(text string, spans [][2]int) []string {
	var out []string
	cursor := 0
	for _, sp := range spans {
		if sp[0] < cursor {
			sp[0] = cursor
		}
		if sp[1] <= cursor {
			continue
		}
		if runeLen(text[cursor:sp[1]]) > s.size && sp[0] > cursor {
			out = append(out, text[cursor:sp[0]])
			cursor = sp[0]
		}
		out = append(out, text[cursor:sp[1]])
		cursor = sp[1]
	}
	if cursor < len(text) {
		out = append(out, text[cursor:])
	}
	return out
}
