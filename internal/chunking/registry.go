package chunking

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultExtensions maps file extensions (without the dot) to languages.
var DefaultExtensions = map[string]Language{
	"c":     LangC,
	"cob":   LangCOBOL,
	"cpp":   LangCPP,
	"cs":    LangCSharp,
	"go":    LangGo,
	"hs":    LangHaskell,
	"html":  LangHTML,
	"java":  LangJava,
	"js":    LangJS,
	"kt":    LangKotlin,
	"lua":   LangLua,
	"md":    LangMarkdown,
	"php":   LangPHP,
	"pl":    LangPerl,
	"proto": LangProto,
	"py":    LangPython,
	"rb":    LangRuby,
	"rs":    LangRust,
	"rst":   LangRST,
	"scala": LangScala,
	"sol":   LangSolidity,
	"swift": LangSwift,
	"tex":   LangLaTeX,
	"ts":    LangTS,
}

// Options sizes the splitters a Registry builds.
type Options struct {
	FixedSize         int
	FixedOverlap      int
	LanguageChunkSize int
}

// DefaultOptions returns 100/20 for the fixed window and 4000 for language-aware splitting.
func DefaultOptions() Options {
	return Options{FixedSize: 100, FixedOverlap: 20, LanguageChunkSize: 4000}
}

// Registry maps extensions to languages and languages to splitters. The fallback splitter
// handles everything else. Configure it before sharing; lookups are read-only.
type Registry struct {
	extensions map[string]Language
	splitters  map[Language]Splitter
	fallback   Splitter
}

// NewRegistry builds a registry with the built-in extension table. Languages with a
// tree-sitter grammar get a syntax splitter when cgo is available; the rest split on
// language-specific separators.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		extensions: make(map[string]Language, len(DefaultExtensions)),
		splitters:  make(map[Language]Splitter, len(languageSeparators)),
		fallback:   FixedWindow{Size: opts.FixedSize, Overlap: opts.FixedOverlap},
	}
	for ext, lang := range DefaultExtensions {
		r.extensions[ext] = lang
	}
	for lang, seps := range languageSeparators {
		textual := SeparatorSplitter{Separators: seps, Size: opts.LanguageChunkSize}
		if syn := newSyntaxSplitter(lang, opts.LanguageChunkSize, textual); syn != nil {
			r.splitters[lang] = syn
			continue
		}
		r.splitters[lang] = textual
	}
	return r
}

// Register sets the splitter for lang, adding the language if needed.
func (r *Registry) Register(lang Language, s Splitter) {
	r.splitters[lang] = s
}

// MapExtension maps ext (with or without the dot) to a registered language.
func (r *Registry) MapExtension(ext string, lang Language) error {
	if _, ok := r.splitters[lang]; !ok {
		return fmt.Errorf("unknown language %q for extension %q", lang, ext)
	}
	r.extensions[normalizeExt(ext)] = lang
	return nil
}

// LanguageFor returns the language registered for path's extension.
func (r *Registry) LanguageFor(path string) (Language, bool) {
	lang, ok := r.extensions[normalizeExt(filepath.Ext(path))]
	return lang, ok
}

// SplitterFor returns the splitter for lang, or the fallback.
func (r *Registry) SplitterFor(lang Language) Splitter {
	if s, ok := r.splitters[lang]; ok && lang != LangNone {
		return s
	}
	return r.fallback
}

// Fallback returns the splitter used for unrecognized files.
func (r *Registry) Fallback() Splitter {
	return r.fallback
}

// LanguageInfo describes one registry entry.
type LanguageInfo struct {
	Language   Language `json:"language"`
	Extensions []string `json:"extensions"`
	Splitter   string   `json:"splitter"`
}

// Languages lists every registered language with its extensions, sorted by name.
func (r *Registry) Languages() []LanguageInfo {
	byLang := make(map[Language][]string)
	for ext, lang := range r.extensions {
		byLang[lang] = append(byLang[lang], ext)
	}
	out := make([]LanguageInfo, 0, len(r.splitters))
	for lang, s := range r.splitters {
		exts := byLang[lang]
		sort.Strings(exts)
		out = append(out, LanguageInfo{Language: lang, Extensions: exts, Splitter: splitterKind(s)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Language < out[j].Language })
	return out
}

func splitterKind(s Splitter) string {
	switch s.(type) {
	case FixedWindow:
		return "fixed"
	case SeparatorSplitter:
		return "separators"
	default:
		return "syntax"
	}
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// languageFile is the TOML layout of a language override file:
//
//	[extensions]
//	mjs = "js"
//	h = "c"
type languageFile struct {
	Extensions map[string]string `toml:"extensions"`
}

// LoadLanguageFile applies extension overrides from a TOML file.
func (r *Registry) LoadLanguageFile(path string) error {
	var lf languageFile
	if _, err := toml.DecodeFile(path, &lf); err != nil {
		return fmt.Errorf("failed to read language file %s: %w", path, err)
	}
	exts := make([]string, 0, len(lf.Extensions))
	for ext := range lf.Extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		if err := r.MapExtension(ext, Language(lf.Extensions[ext])); err != nil {
			return err
		}
	}
	return nil
}
