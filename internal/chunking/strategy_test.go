package chunking

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestStrategy() *Strategy {
	return NewStrategy(NewRegistry(DefaultOptions()))
}

func TestStrategy_RecognizedSmallFileIsOneFragment(t *testing.T) {
	content := "def main():\n    print('hello, a.py!!!')\n"
	if len(content) != 40 {
		t.Fatalf("fixture length = %d, want 40", len(content))
	}

	got := newTestStrategy().Split("a.py", content)

	want := []Fragment{{Path: "a.py", Language: LangPython, Text: strings.TrimSpace(content)}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Split() mismatch (-want +got):\n%s", diff)
	}
}

func TestStrategy_UnrecognizedUsesFixedWindow(t *testing.T) {
	content := strings.Repeat("r", 250)

	got := newTestStrategy().Split("docs/readme.txt", content)
	if len(got) != 3 {
		t.Fatalf("got %d fragments, want 3", len(got))
	}
	for _, f := range got {
		if f.Path != "docs/readme.txt" || f.Language != LangNone {
			t.Errorf("fragment metadata = (%q, %q)", f.Path, f.Language)
		}
	}
}

func TestStrategy_LargeRecognizedFileStaysBounded(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("func handler")
		b.WriteString(strings.Repeat("X", i%7))
		b.WriteString("() int {\n\treturn 1\n}\n\n")
	}
	opts := DefaultOptions()
	opts.LanguageChunkSize = 300

	got := NewStrategy(NewRegistry(opts)).Split("big.go", "package big\n\n"+b.String())
	if len(got) < 2 {
		t.Fatalf("expected several fragments, got %d", len(got))
	}
	for _, f := range got {
		if n := len([]rune(f.Text)); n > 300 {
			t.Errorf("fragment of %d runes exceeds bound", n)
		}
		if strings.TrimSpace(f.Text) == "" {
			t.Error("blank fragment emitted")
		}
	}
}

func TestStrategy_BlankContent(t *testing.T) {
	s := newTestStrategy()
	if got := s.Split("a.py", ""); len(got) != 0 {
		t.Errorf("Split(empty) = %v", got)
	}
	if got := s.Split("x.txt", "  \n\n "); len(got) != 0 {
		t.Errorf("Split(whitespace) = %v", got)
	}
}

func TestStrategy_SplitFileRejectsBinary(t *testing.T) {
	s := newTestStrategy()

	tests := []struct {
		name string
		data []byte
	}{
		{"nul byte", []byte("PNG\x00\x01\x02")},
		{"invalid utf8", []byte{0xff, 0xfe, 'a'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.SplitFile("blob.bin", tt.data)
			if !errors.Is(err, ErrNotText) {
				t.Errorf("SplitFile() error = %v, want ErrNotText", err)
			}
		})
	}
}

func TestDecodeText_StripsBOM(t *testing.T) {
	got, err := DecodeText([]byte("\xef\xbb\xbfhello"))
	if err != nil || got != "hello" {
		t.Errorf("DecodeText() = (%q, %v)", got, err)
	}
}
