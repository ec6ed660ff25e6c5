// Package text provides helpers for fitting messages into Telegram limits.
package text

import "strings"

// DefaultMaxBytes keeps chunks under Telegram's 4096-character message limit
// with headroom for multi-byte runes and entity markup.
const DefaultMaxBytes = 3800

// SplitHTML splits a message into chunks that fit within maxBytes of UTF-8.
// The input is assumed to be HTML-safe already, so splitting on line
// boundaries won't break entity parsing. Lines are kept intact unless a
// single line alone exceeds the budget, in which case it is split by runes.
func SplitHTML(s string, maxBytes int) []string {
	if len(s) <= maxBytes {
		return []string{s}
	}

	var chunks []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
		}
	}

	for _, line := range splitKeepNewlines(s) {
		if line == "" {
			continue
		}

		if len(line) > maxBytes {
			flush()
			var buf strings.Builder
			for _, r := range line {
				if buf.Len()+len(string(r)) > maxBytes {
					chunks = append(chunks, strings.TrimRight(buf.String(), "\n"))
					buf.Reset()
				}
				buf.WriteRune(r)
			}
			if buf.Len() > 0 {
				chunks = append(chunks, strings.TrimRight(buf.String(), "\n"))
			}
			continue
		}

		if cur.Len()+len(line) > maxBytes {
			flush()
		}
		cur.WriteString(line)
	}

	if strings.TrimSpace(cur.String()) != "" {
		chunks = append(chunks, strings.TrimRight(cur.String(), "\n"))
	}
	return chunks
}

// JoinLines concatenates already-safe lines and splits the result into
// Telegram-sized chunks.
func JoinLines(lines []string, maxBytes int) []string {
	return SplitHTML(strings.Join(lines, ""), maxBytes)
}

// splitKeepNewlines splits s into lines, each retaining its trailing newline.
func splitKeepNewlines(s string) []string {
	var out []string
	for {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			if s != "" {
				out = append(out, s)
			}
			return out
		}
		out = append(out, s[:i+1])
		s = s[i+1:]
	}
}

// TruncateRunes shortens s to at most n runes, appending an ellipsis when
// anything was cut. Trailing whitespace before the ellipsis is trimmed.
func TruncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	cut := n - 1
	if cut < 0 {
		cut = 0
	}
	return strings.TrimRight(string(runes[:cut]), " \n") + "…"
}
