package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitHTML_ShortMessagePassesThrough(t *testing.T) {
	chunks := SplitHTML("привет, мир", 100)
	assert.Equal(t, []string{"привет, мир"}, chunks)
}

func TestSplitHTML_SplitsOnLineBoundaries(t *testing.T) {
	lineA := strings.Repeat("a", 60) + "\n"
	lineB := strings.Repeat("b", 60) + "\n"
	lineC := strings.Repeat("c", 60) + "\n"

	chunks := SplitHTML(lineA+lineB+lineC, 130)
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.TrimRight(lineA+lineB, "\n"), chunks[0])
	assert.Equal(t, strings.TrimRight(lineC, "\n"), chunks[1])
}

func TestSplitHTML_RespectsByteBudget(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("строка номер, достаточно длинная для теста\n")
	}

	for _, chunk := range SplitHTML(b.String(), 500) {
		assert.LessOrEqual(t, len(chunk), 500)
	}
}

func TestSplitHTML_OversizedLineSplitByRunes(t *testing.T) {
	long := strings.Repeat("ю", 300) // 2 bytes per rune

	chunks := SplitHTML(long, 100)
	require.Greater(t, len(chunks), 1)
	var total int
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 100)
		// No rune may be cut in half.
		assert.True(t, strings.Trim(chunk, "ю") == "")
		total += len([]rune(chunk))
	}
	assert.Equal(t, 300, total)
}

func TestJoinLines(t *testing.T) {
	chunks := JoinLines([]string{"один\n", "два\n", "три\n"}, 100)
	assert.Equal(t, []string{"один\nдва\nтри"}, chunks)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "короткий", TruncateRunes("короткий", 20))

	got := TruncateRunes("это довольно длинное сообщение", 10)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.LessOrEqual(t, len([]rune(got)), 10)
}

func TestFormatMinutes(t *testing.T) {
	assert.Equal(t, "45 минут", FormatMinutes(45))
	assert.Equal(t, "99 минут", FormatMinutes(99))
	assert.Equal(t, "1 часов", FormatMinutes(100))
	assert.Equal(t, "12 часов", FormatMinutes(720))
	assert.Equal(t, "24 часов", FormatMinutes(1440))
}

func TestParseDayNumber(t *testing.T) {
	n, ok := ParseDayNumber("День 7. Заголовок\n\nтекст")
	require.True(t, ok)
	assert.Equal(t, 7, n)

	_, ok = ParseDayNumber("Сегодняшнее задание")
	assert.False(t, ok)

	n, ok = ParseDayNumber("  День 12")
	require.True(t, ok)
	assert.Equal(t, 12, n)
}

func TestEscapeHTML(t *testing.T) {
	assert.Equal(t, "a &lt;b&gt; &amp; c", EscapeHTML("a <b> & c"))
}
