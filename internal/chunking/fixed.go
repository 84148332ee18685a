package chunking

// FixedWindow is the sliding-window splitter used for unrecognized files.
// Window i starts at rune offset i*(Size-Overlap) and spans Size runes, clipped to the end.
type FixedWindow struct {
	Size    int
	Overlap int
}

// Split returns max(1, ceil((L-Overlap)/(Size-Overlap))) windows for non-empty text
// and nothing for empty text.
func (w FixedWindow) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := w.Size - w.Overlap
	if w.Size <= 0 || step <= 0 {
		return []string{text}
	}

	var out []string
	for start := 0; ; start += step {
		end := start + w.Size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			return out
		}
	}
}
