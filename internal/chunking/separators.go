package chunking

import (
	"strings"
	"unicode/utf8"
)

// SeparatorSplitter splits on a priority list of separators, recursing into pieces that
// are still too large, then greedily merges neighbours up to Size runes. The empty
// separator means a hard cut. Separators stay attached to the start of the piece they open.
type SeparatorSplitter struct {
	Separators []string
	Size       int
}

// Split implements Splitter.
func (s SeparatorSplitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	seps := s.Separators
	if len(seps) == 0 {
		seps = defaultSeparators
	}
	return mergePieces(s.split(text, seps), s.Size)
}

func (s SeparatorSplitter) split(text string, seps []string) []string {
	if runeLen(text) <= s.Size {
		return []string{text}
	}

	sep, rest := "", []string(nil)
	for i, candidate := range seps {
		if candidate == "" || strings.Contains(text, candidate) {
			sep, rest = candidate, seps[i+1:]
			break
		}
	}
	if sep == "" {
		return hardCut(text, s.Size)
	}

	var out []string
	for _, part := range splitKeepingSeparator(text, sep) {
		if runeLen(part) <= s.Size {
			out = append(out, part)
			continue
		}
		out = append(out, s.split(part, rest)...)
	}
	return out
}

// splitKeepingSeparator splits text before every occurrence of sep.
func splitKeepingSeparator(text, sep string) []string {
	var out []string
	for len(text) > 1 {
		idx := strings.Index(text[1:], sep)
		if idx < 0 {
			return append(out, text)
		}
		idx++
		out = append(out, text[:idx])
		text = text[idx:]
	}
	return append(out, text)
}

// mergePieces concatenates adjacent pieces while they fit in size, trims each result and
// drops empty ones.
func mergePieces(pieces []string, size int) []string {
	var (
		out    []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if t := strings.TrimSpace(cur.String()); t != "" {
			out = append(out, t)
		}
		cur.Reset()
		curLen = 0
	}
	for _, p := range pieces {
		n := runeLen(p)
		if curLen > 0 && curLen+n > size {
			flush()
		}
		cur.WriteString(p)
		curLen += n
	}
	flush()
	return out
}

func hardCut(text string, size int) []string {
	if size <= 0 {
		return []string{text}
	}
	runes := []rune(text)
	out := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

func withTail(seps ...string) []string {
	return append(seps, defaultSeparators...)
}

// languageSeparators holds the boundary hints per language, strongest first.
var languageSeparators = map[Language][]string{
	LangC:   withTail("\nstruct ", "\nvoid ", "\nint ", "\nfloat ", "\ndouble ", "\nif ", "\nfor ", "\nwhile ", "\nswitch ", "\ncase "),
	LangCPP: withTail("\nclass ", "\nnamespace ", "\nvoid ", "\nint ", "\nfloat ", "\ndouble ", "\nif ", "\nfor ", "\nwhile ", "\nswitch ", "\ncase "),
	LangCSharp: withTail("\ninterface ", "\nenum ", "\nimplements ", "\ndelegate ", "\nevent ", "\nclass ", "\nabstract ",
		"\npublic ", "\nprotected ", "\nprivate ", "\nstatic ", "\nreturn ", "\nif ", "\ncontinue ", "\nfor ", "\nforeach ",
		"\nwhile ", "\nswitch ", "\nbreak ", "\ncase ", "\nelse ", "\ntry ", "\nthrow ", "\nfinally ", "\ncatch "),
	LangCOBOL: withTail("\nIDENTIFICATION DIVISION.", "\nENVIRONMENT DIVISION.", "\nDATA DIVISION.", "\nPROCEDURE DIVISION.",
		"\nWORKING-STORAGE SECTION.", "\nLINKAGE SECTION.", "\nFILE SECTION.", "\nINPUT-OUTPUT SECTION.", "\nOPEN ", "\nCLOSE ",
		"\nREAD ", "\nWRITE ", "\nIF ", "\nELSE ", "\nMOVE ", "\nPERFORM ", "\nUNTIL ", "\nVARYING ", "\nACCEPT ", "\nDISPLAY ",
		"\nSTOP RUN."),
	LangGo:      withTail("\nfunc ", "\nvar ", "\nconst ", "\ntype ", "\nif ", "\nfor ", "\nswitch ", "\ncase "),
	LangHaskell: withTail("\nmain :: ", "\nmain = ", "\nlet ", "\nin ", "\ndo ", "\nwhere ", "\n:: ", "\n= ", "\ndata ", "\nnewtype ", "\ntype ", "\nmodule ", "\nimport ", "\nclass ", "\ninstance ", "\ncase ", "\n| "),
	LangHTML: {"<body", "<div", "<p", "<br", "<li", "<h1", "<h2", "<h3", "<h4", "<h5", "<h6", "<span", "<table", "<tr", "<td", "<th",
		"<ul", "<ol", "<header", "<footer", "<nav", "<head", "<style", "<script", "<meta", "<title", ""},
	LangJava:     withTail("\nclass ", "\npublic ", "\nprotected ", "\nprivate ", "\nstatic ", "\nif ", "\nfor ", "\nwhile ", "\nswitch ", "\ncase "),
	LangJS:       withTail("\nfunction ", "\nconst ", "\nlet ", "\nvar ", "\nclass ", "\nif ", "\nfor ", "\nwhile ", "\nswitch ", "\ncase ", "\ndefault "),
	LangKotlin:   withTail("\nclass ", "\npublic ", "\nprotected ", "\nprivate ", "\ninternal ", "\ncompanion ", "\nfun ", "\nval ", "\nvar ", "\nif ", "\nfor ", "\nwhile ", "\nwhen ", "\ncase ", "\nelse "),
	LangLaTeX:    {"\n\\chapter{", "\n\\section{", "\n\\subsection{", "\n\\subsubsection{", "\n\\begin{enumerate}", "\n\\begin{itemize}", "\n\\begin{description}", "\n\\begin{list}", "\n\\begin{quote}", "\n\\begin{quotation}", "\n\\begin{verse}", "\n\\begin{verbatim}", "\n\\begin{align}", "$$", "$", " ", ""},
	LangLua:      withTail("\nlocal ", "\nfunction ", "\nif ", "\nfor ", "\nwhile ", "\nrepeat "),
	LangMarkdown: withTail("\n# ", "\n## ", "\n### ", "\n#### ", "\n##### ", "\n###### ", "```\n", "\n***\n", "\n---\n", "\n___\n"),
	LangPerl:     withTail("\nsub ", "\npackage ", "\nmy ", "\nour ", "\nif ", "\nunless ", "\nforeach ", "\nwhile "),
	LangPHP:      withTail("\nfunction ", "\nclass ", "\nif ", "\nforeach ", "\nwhile ", "\ndo ", "\nswitch ", "\ncase "),
	LangProto:    withTail("\nmessage ", "\nservice ", "\nenum ", "\noption ", "\nimport ", "\nsyntax "),
	LangPython:   withTail("\nclass ", "\ndef ", "\n\tdef "),
	LangRST:      withTail("\n===", "\n---", "\n***", "\n.. "),
	LangRuby:     withTail("\ndef ", "\nclass ", "\nif ", "\nunless ", "\nwhile ", "\nfor ", "\ndo ", "\nbegin ", "\nrescue "),
	LangRust:     withTail("\nfn ", "\nconst ", "\nlet ", "\nif ", "\nwhile ", "\nfor ", "\nloop ", "\nmatch "),
	LangScala:    withTail("\nclass ", "\nobject ", "\ndef ", "\nval ", "\nvar ", "\nif ", "\nfor ", "\nwhile ", "\nmatch ", "\ncase "),
	LangSolidity: withTail("\npragma ", "\nusing ", "\ncontract ", "\ninterface ", "\nlibrary ", "\nconstructor ", "\ntype ", "\nfunction ", "\nevent ", "\nmodifier ", "\nerror ", "\nstruct ", "\nenum ", "\nif ", "\nfor ", "\nwhile ", "\ndo while ", "\nassembly "),
	LangSwift:    withTail("\nfunc ", "\nclass ", "\nstruct ", "\nenum ", "\nif ", "\nfor ", "\nwhile ", "\ndo ", "\nswitch ", "\ncase "),
	LangTS:       withTail("\nenum ", "\ninterface ", "\nnamespace ", "\ntype ", "\nclass ", "\nfunction ", "\nconst ", "\nlet ", "\nvar ", "\nif ", "\nfor ", "\nwhile ", "\nswitch ", "\ncase ", "\ndefault "),
}

func init() {
	languageSeparators[LangTSX] = languageSeparators[LangTS]
}
