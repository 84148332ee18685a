package chunking

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRegistry_BuiltinExtensions(t *testing.T) {
	r := NewRegistry(DefaultOptions())

	tests := []struct {
		path string
		want Language
		ok   bool
	}{
		{"main.go", LangGo, true},
		{"pkg/a.py", LangPython, true},
		{"App.KT", LangKotlin, true},
		{"lib.rs", LangRust, true},
		{"contract.sol", LangSolidity, true},
		{"README.md", LangMarkdown, true},
		{"paper.tex", LangLaTeX, true},
		{"notes.txt", LangNone, false},
		{"Makefile", LangNone, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := r.LanguageFor(tt.path)
			if ok != tt.ok || got != tt.want {
				t.Errorf("LanguageFor(%q) = (%q, %v), want (%q, %v)", tt.path, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestRegistry_EveryBuiltinLanguageHasSplitter(t *testing.T) {
	r := NewRegistry(DefaultOptions())
	for ext, lang := range DefaultExtensions {
		if _, isFixed := r.SplitterFor(lang).(FixedWindow); isFixed {
			t.Errorf("extension %q (%s) resolved to the fallback splitter", ext, lang)
		}
	}
	if _, ok := r.SplitterFor(LangNone).(FixedWindow); !ok {
		t.Error("LangNone should use the fixed window fallback")
	}
}

func TestRegistry_RegisterIsDataChange(t *testing.T) {
	r := NewRegistry(DefaultOptions())
	r.Register("toml", SeparatorSplitter{Separators: []string{"\n[", "\n", ""}, Size: 50})

	if err := r.MapExtension(".toml", "toml"); err != nil {
		t.Fatalf("MapExtension() error = %v", err)
	}
	lang, ok := r.LanguageFor("Cargo.toml")
	if !ok || lang != "toml" {
		t.Errorf("LanguageFor(Cargo.toml) = (%q, %v)", lang, ok)
	}
	if err := r.MapExtension("x", "klingon"); err == nil {
		t.Error("mapping to an unknown language should fail")
	}
}

func TestRegistry_LoadLanguageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "languages.toml")
	content := "[extensions]\nmjs = \"js\"\nh = \"c\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry(DefaultOptions())
	if err := r.LoadLanguageFile(path); err != nil {
		t.Fatalf("LoadLanguageFile() error = %v", err)
	}
	if lang, _ := r.LanguageFor("x.mjs"); lang != LangJS {
		t.Errorf("mjs -> %q, want js", lang)
	}
	if lang, _ := r.LanguageFor("x.h"); lang != LangC {
		t.Errorf("h -> %q, want c", lang)
	}
}

func TestRegistry_LoadLanguageFileRejectsUnknown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "languages.toml")
	if err := os.WriteFile(path, []byte("[extensions]\nfoo = \"nope\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := NewRegistry(DefaultOptions()).LoadLanguageFile(path); err == nil {
		t.Error("expected error for unknown language")
	}
}

func TestRegistry_Languages(t *testing.T) {
	infos := NewRegistry(DefaultOptions()).Languages()
	if len(infos) < len(DefaultExtensions) {
		t.Fatalf("got %d languages, want at least %d", len(infos), len(DefaultExtensions))
	}
	for i := 1; i < len(infos); i++ {
		if infos[i-1].Language >= infos[i].Language {
			t.Fatalf("languages not sorted: %q before %q", infos[i-1].Language, infos[i].Language)
		}
	}
}
