// Package chunking splits source files into bounded fragments for embedding.
package chunking

import "errors"

// Language identifies a registered language. The empty Language means none was detected.
type Language string

const (
	LangNone     Language = ""
	LangC        Language = "c"
	LangCPP      Language = "cpp"
	LangCSharp   Language = "csharp"
	LangCOBOL    Language = "cobol"
	LangGo       Language = "go"
	LangHaskell  Language = "haskell"
	LangHTML     Language = "html"
	LangJava     Language = "java"
	LangJS       Language = "js"
	LangKotlin   Language = "kotlin"
	LangLaTeX    Language = "latex"
	LangLua      Language = "lua"
	LangMarkdown Language = "markdown"
	LangPerl     Language = "perl"
	LangPHP      Language = "php"
	LangProto    Language = "proto"
	LangPython   Language = "python"
	LangRST      Language = "rst"
	LangRuby     Language = "ruby"
	LangRust     Language = "rust"
	LangScala    Language = "scala"
	LangSolidity Language = "solidity"
	LangSwift    Language = "swift"
	LangTS       Language = "ts"
	LangTSX      Language = "tsx"
)

// Fragment is a bounded span of one file's text. Embedding is filled in by the ingestor.
type Fragment struct {
	Path      string    `json:"path"`
	Language  Language  `json:"language,omitempty"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
}

// Splitter cuts text into ordered pieces. Implementations must be safe for concurrent use.
type Splitter interface {
	Split(text string) []string
}

// ErrNotText is returned for content that is binary or not valid UTF-8.
var ErrNotText = errors.New("content is not UTF-8 text")
