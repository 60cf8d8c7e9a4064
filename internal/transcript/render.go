package transcript

import "strings"

// Options controls transcript rendering for terminal and log output.
type Options struct {
	SpeakerLabels bool
}

// Render joins entries one per line.
func Render(entries []Entry, opts Options) string {
	if len(entries) == 0 {
		return ""
	}

	var b strings.Builder
	for _, entry := range entries {
		text := cleanText(entry.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		if opts.SpeakerLabels {
			b.WriteString(string(entry.Speaker))
			b.WriteString(": ")
		}
		b.WriteString(text)
	}
	return b.String()
}
