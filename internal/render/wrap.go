package render

import (
	"strings"
)

// wrapText breaks text into lines no wider than maxWidth as measured by
// measure. Paragraph breaks are kept as empty lines. Every word is
// sanitized; words with nothing drawable left are passed to skipped and
// left out. A single word wider than the line is split across lines.
func wrapText(text string, maxWidth float64, measure func(string) float64, skipped func(word string)) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		var line string
		for _, raw := range words {
			word := strings.TrimSpace(Sanitize(raw))
			if word == "" {
				if skipped != nil {
					skipped(raw)
				}
				continue
			}

			candidate := word
			if line != "" {
				candidate = line + " " + word
			}
			if measure(candidate) <= maxWidth {
				line = candidate
				continue
			}
			if line != "" {
				lines = append(lines, line)
				line = ""
			}
			for measure(word) > maxWidth {
				head, rest := splitToWidth(word, maxWidth, measure)
				lines = append(lines, head)
				word = rest
			}
			line = word
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return trimBlankEdges(lines)
}

// splitToWidth returns the longest prefix of word that fits, at least one rune.
func splitToWidth(word string, maxWidth float64, measure func(string) float64) (string, string) {
	runes := []rune(word)
	n := 1
	for n < len(runes) && measure(string(runes[:n+1])) <= maxWidth {
		n++
	}
	return string(runes[:n]), string(runes[n:])
}

func trimBlankEdges(lines []string) []string {
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil
	}
	return lines
}
