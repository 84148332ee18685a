package chunking

import (
	"strings"
	"testing"
)

func TestSeparatorSplitter_SmallTextIsOnePiece(t *testing.T) {
	s := SeparatorSplitter{Separators: languageSeparators[LangPython], Size: 4000}
	got := s.Split("def f():\n    return 1\n")
	if len(got) != 1 || got[0] != "def f():\n    return 1" {
		t.Errorf("Split() = %q", got)
	}
}

func TestSeparatorSplitter_PrefersDefinitionBoundaries(t *testing.T) {
	src := "import os\n\ndef alpha():\n    return 1\n\ndef beta():\n    return 2\n\nclass Gamma:\n    pass\n"
	s := SeparatorSplitter{Separators: languageSeparators[LangPython], Size: 40}

	got := s.Split(src)
	if len(got) < 2 {
		t.Fatalf("expected several fragments, got %q", got)
	}
	for _, frag := range got {
		if runeLen(frag) > 40 {
			t.Errorf("fragment exceeds bound: %q", frag)
		}
	}
	var sawBeta bool
	for _, frag := range got {
		if strings.HasPrefix(frag, "def beta():") {
			sawBeta = true
		}
	}
	if !sawBeta {
		t.Errorf("expected a fragment starting at def beta(), got %q", got)
	}
}

func TestSeparatorSplitter_HardCutWithoutBoundary(t *testing.T) {
	s := SeparatorSplitter{Separators: []string{"\n", ""}, Size: 10}
	got := s.Split(strings.Repeat("z", 25))

	want := []string{strings.Repeat("z", 10), strings.Repeat("z", 10), strings.Repeat("z", 5)}
	if len(got) != len(want) {
		t.Fatalf("Split() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("piece %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitKeepingSeparator(t *testing.T) {
	got := splitKeepingSeparator("a\nfunc b\nfunc c", "\nfunc ")
	want := []string{"a", "\nfunc b", "\nfunc c"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSeparatorSplitter_Blank(t *testing.T) {
	if got := (SeparatorSplitter{Size: 10}).Split(" \n\t "); got != nil {
		t.Errorf("Split(blank) = %q, want nil", got)
	}
}
