package text

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var dayPrefixRe = regexp.MustCompile(`^День\s+(\d+)`)

// FormatMinutes renders a duration for user-facing messages: plain minutes
// below 100, whole hours otherwise.
func FormatMinutes(m int) string {
	if m < 100 {
		return fmt.Sprintf("%d минут", m)
	}
	return fmt.Sprintf("%d часов", m/60)
}

// ParseDayNumber extracts the day number from a task message that starts
// with "День N". Returns false when the text doesn't carry one.
func ParseDayNumber(s string) (int, bool) {
	m := dayPrefixRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// EscapeHTML escapes the characters Telegram's HTML parse mode treats as
// markup.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)
