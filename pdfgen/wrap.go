package pdfgen

import "strings"

// wrapText breaks text into lines no wider than width according to
// measure. Paragraph breaks are kept; words wider than a whole line are
// split by rune.
func wrapText(measure func(string) float64, text string, width float64) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\t", "    ")

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		line := ""
		for _, w := range words {
			candidate := w
			if line != "" {
				candidate = line + " " + w
			}
			if measure(candidate) <= width {
				line = candidate
				continue
			}
			if line != "" {
				lines = append(lines, line)
			}
			if measure(w) <= width {
				line = w
				continue
			}
			chunks := splitWord(measure, w, width)
			lines = append(lines, chunks[:len(chunks)-1]...)
			line = chunks[len(chunks)-1]
		}
		lines = append(lines, line)
	}

	for len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func splitWord(measure func(string) float64, w string, width float64) []string {
	var chunks []string
	var cur []rune
	for _, r := range w {
		next := append(cur, r)
		if len(cur) > 0 && measure(string(next)) > width {
			chunks = append(chunks, string(cur))
			cur = []rune{r}
			continue
		}
		cur = next
	}
	return append(chunks, string(cur))
}

// fitLine shortens s with a trailing ellipsis until it fits width.
func fitLine(measure func(string) float64, s string, width float64) string {
	if measure(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		if c := string(runes) + "..."; measure(c) <= width {
			return c
		}
	}
	return ""
}
