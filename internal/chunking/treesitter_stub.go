//go:build !cgo

package chunking

// Without cgo there are no tree-sitter grammars; registries use separator splitters only.
func newSyntaxSplitter(Language, int, Splitter) Splitter {
	return nil
}
