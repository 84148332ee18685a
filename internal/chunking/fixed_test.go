package chunking

import (
	"strings"
	"testing"
)

func TestFixedWindow_ChunkCountLaw(t *testing.T) {
	w := FixedWindow{Size: 100, Overlap: 20}

	for _, l := range []int{1, 19, 20, 21, 99, 100, 101, 180, 181, 250, 1000, 4321} {
		text := strings.Repeat("x", l)
		got := len(w.Split(text))

		want := 1
		if l > 20 {
			want = (l - 20 + 79) / 80
		}
		if want < 1 {
			want = 1
		}
		if got != want {
			t.Errorf("L=%d: got %d fragments, want %d", l, got, want)
		}
	}
}

func TestFixedWindow_Offsets(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 250; i++ {
		b.WriteByte(byte('a' + i%26))
	}
	text := b.String()

	got := FixedWindow{Size: 100, Overlap: 20}.Split(text)
	if len(got) != 3 {
		t.Fatalf("got %d fragments, want 3", len(got))
	}
	wants := []string{text[0:100], text[80:180], text[160:250]}
	for i, want := range wants {
		if got[i] != want {
			t.Errorf("fragment %d = %q, want %q", i, got[i], want)
		}
	}
	if len(got[2]) != 90 {
		t.Errorf("last fragment length = %d, want 90", len(got[2]))
	}
}

func TestFixedWindow_CountsRunes(t *testing.T) {
	text := strings.Repeat("é", 150)
	got := FixedWindow{Size: 100, Overlap: 20}.Split(text)
	if len(got) != 2 {
		t.Fatalf("got %d fragments, want 2", len(got))
	}
	if n := len([]rune(got[0])); n != 100 {
		t.Errorf("first fragment has %d runes, want 100", n)
	}
}

func TestFixedWindow_Empty(t *testing.T) {
	if got := (FixedWindow{Size: 100, Overlap: 20}).Split(""); got != nil {
		t.Errorf("Split(\"\") = %v, want nil", got)
	}
}
