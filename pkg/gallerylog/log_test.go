package gallerylog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempLog(t *testing.T) *Log {
	t.Helper()
	dir := t.TempDir()
	l, err := Open(filepath.Join(dir, "downloads.log"), 1, nil)
	require.NoError(t, err)
	return l
}

func mustTime(t *testing.T, text string) time.Time {
	t.Helper()
	ts, err := ParseTimestamp(text)
	require.NoError(t, err)
	return ts
}

func rec(t *testing.T, id int, tsText, prompt string) Record {
	return Record{
		ID:            id,
		TimestampText: tsText,
		Timestamp:     mustTime(t, tsText),
		Prompt:        prompt,
	}
}

func TestAppendAndLoadRoundTrip(t *testing.T) {
	l := tempLog(t)

	r := rec(t, 1, "Aug 12, 2026 3:14 PM", "A castle on a cliff overlooking a stormy sea")
	require.NoError(t, l.Append(r))

	loaded, err := l.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 1, loaded[0].ID)
	assert.Equal(t, "Aug 12, 2026 3:14 PM", loaded[0].TimestampText)
	assert.Equal(t, "A castle on a cliff overlooking a stormy sea", loaded[0].Prompt)
	assert.Equal(t, r.Timestamp, loaded[0].Timestamp)
}

func TestAppendKeepsNewestFirst(t *testing.T) {
	l := tempLog(t)

	older := rec(t, 1, "Aug 10, 2026 9:00 AM", "An old lighthouse at dawn, thick fog rolling in")
	newest := rec(t, 3, "Aug 14, 2026 9:00 AM", "A fox sleeping under a maple tree in autumn light")
	middle := rec(t, 2, "Aug 12, 2026 3:14 PM", "A castle on a cliff overlooking a stormy sea")

	// Appended out of order; the file must still read newest first.
	require.NoError(t, l.Append(older))
	require.NoError(t, l.Append(newest))
	require.NoError(t, l.Append(middle))

	loaded, err := l.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	assert.Equal(t, 3, loaded[0].ID)
	assert.Equal(t, 2, loaded[1].ID)
	assert.Equal(t, 1, loaded[2].ID)
}

func TestNextID(t *testing.T) {
	t.Run("EmptyLogUsesStart", func(t *testing.T) {
		dir := t.TempDir()
		l, err := Open(filepath.Join(dir, "downloads.log"), 100, nil)
		require.NoError(t, err)

		id, err := l.NextID()
		require.NoError(t, err)
		assert.Equal(t, 100, id)
	})

	t.Run("MaxPlusOne", func(t *testing.T) {
		l := tempLog(t)
		require.NoError(t, l.Append(rec(t, 7, "Aug 12, 2026 3:14 PM", "A castle on a cliff overlooking a stormy sea")))
		require.NoError(t, l.Append(rec(t, 3, "Aug 10, 2026 9:00 AM", "An old lighthouse at dawn, thick fog rolling in")))

		id, err := l.NextID()
		require.NoError(t, err)
		assert.Equal(t, 8, id)
	})

	t.Run("PlaceholderIgnored", func(t *testing.T) {
		l := tempLog(t)
		require.NoError(t, l.Append(rec(t, 5, "Aug 10, 2026 9:00 AM", "An old lighthouse at dawn, thick fog rolling in")))
		require.NoError(t, l.Append(rec(t, PlaceholderID, "Aug 12, 2026 3:14 PM", "A castle on a cliff overlooking a stormy sea")))

		id, err := l.NextID()
		require.NoError(t, err)
		assert.Equal(t, 6, id)
	})
}

func TestLoadSkipsMalformedStanzas(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "downloads.log")

	content := strings.Join([]string{
		Delimiter,
		"#000000002",
		"Aug 14, 2026 9:00 AM",
		"A fox sleeping under a maple tree in autumn light",
		Delimiter,
		"not an id line",
		"garbage",
		"more garbage",
		Delimiter,
		"#000000001",
		"Aug 10, 2026 9:00 AM",
		"An old lighthouse at dawn, thick fog rolling in",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	l, err := Open(path, 1, nil)
	require.NoError(t, err)
	assert.False(t, l.Degraded())

	loaded, err := l.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, 2, loaded[0].ID)
	assert.Equal(t, 1, loaded[1].ID)
}

func TestLoadKeepsRecordsWithUnparseableTimestamps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "downloads.log")

	content := strings.Join([]string{
		Delimiter,
		"#000000002",
		"Aug 14, 2026 9:00 AM",
		"A fox sleeping under a maple tree in autumn light",
		Delimiter,
		"#000000001",
		"yesterday at noon",
		"An old lighthouse at dawn, thick fog rolling in",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	l, err := Open(path, 1, nil)
	require.NoError(t, err)
	assert.False(t, l.Degraded())

	loaded, err := l.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "yesterday at noon", loaded[1].TimestampText)
	assert.True(t, loaded[1].Timestamp.IsZero())
	assert.Equal(t, "An old lighthouse at dawn, thick fog rolling in", loaded[1].Prompt)
}

func TestAppendSortsUndatedRecordsLast(t *testing.T) {
	l := tempLog(t)

	undatedA := Record{ID: 1, TimestampText: "yesterday at noon", Prompt: "An old lighthouse at dawn, thick fog rolling in"}
	undatedB := Record{ID: 2, TimestampText: "a while ago", Prompt: "A fox sleeping under a maple tree in autumn light"}
	dated := rec(t, 3, "Aug 12, 2026 3:14 PM", "A castle on a cliff overlooking a stormy sea")

	require.NoError(t, l.Append(undatedA))
	require.NoError(t, l.Append(undatedB))
	require.NoError(t, l.Append(dated))

	loaded, err := l.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	// Dated records first, undated ones after in insertion order.
	assert.Equal(t, 3, loaded[0].ID)
	assert.Equal(t, 1, loaded[1].ID)
	assert.Equal(t, 2, loaded[2].ID)
}

func TestMultiLinePrompt(t *testing.T) {
	l := tempLog(t)
	r := rec(t, 1, "Aug 12, 2026 3:14 PM", "First line of the prompt\nsecond line with more words")
	require.NoError(t, l.Append(r))

	loaded, err := l.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "First line of the prompt\nsecond line with more words", loaded[0].Prompt)
}

func TestUnparseableFileDegradesToAppendOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "downloads.log")
	require.NoError(t, os.WriteFile(path, []byte("this is not a stanza log at all\njust prose\n"), 0644))

	l, err := Open(path, 1, nil)
	require.NoError(t, err)
	assert.True(t, l.Degraded())

	// Appends still land without destroying the original content.
	require.NoError(t, l.Append(rec(t, 1, "Aug 12, 2026 3:14 PM", "A castle on a cliff overlooking a stormy sea")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "just prose")
	assert.Contains(t, string(data), "#000000001")
}

func TestRenumber(t *testing.T) {
	l := tempLog(t)
	require.NoError(t, l.Append(rec(t, 12, "Aug 10, 2026 9:00 AM", "An old lighthouse at dawn, thick fog rolling in")))
	require.NoError(t, l.Append(rec(t, PlaceholderID, "Aug 12, 2026 3:14 PM", "A castle on a cliff overlooking a stormy sea")))
	require.NoError(t, l.Append(rec(t, 40, "Aug 14, 2026 9:00 AM", "A fox sleeping under a maple tree in autumn light")))

	n, err := l.Renumber()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	loaded, err := l.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	// Newest first in the file, oldest record numbered 1.
	assert.Equal(t, 3, loaded[0].ID)
	assert.Equal(t, 2, loaded[1].ID)
	assert.Equal(t, 1, loaded[2].ID)
	for _, r := range loaded {
		assert.False(t, r.Placeholder())
	}
}

func TestAppendLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(filepath.Join(dir, "downloads.log"), 1, nil)
	require.NoError(t, err)
	require.NoError(t, l.Append(rec(t, 1, "Aug 12, 2026 3:14 PM", "A castle on a cliff overlooking a stormy sea")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "downloads.log", entries[0].Name())
}

func TestStrayTempFileDoesNotCorruptLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "downloads.log")

	l, err := Open(path, 1, nil)
	require.NoError(t, err)
	require.NoError(t, l.Append(rec(t, 1, "Aug 10, 2026 9:00 AM", "An old lighthouse at dawn, thick fog rolling in")))
	require.NoError(t, l.Append(rec(t, 2, "Aug 12, 2026 3:14 PM", "A castle on a cliff overlooking a stormy sea")))

	// A crash between write and rename leaves a half-written temp file
	// behind; the log itself must stay complete and readable.
	stray := filepath.Join(dir, ".gallerylog-12345")
	require.NoError(t, os.WriteFile(stray, []byte(Delimiter+"\n#0000000"), 0644))

	reopened, err := Open(path, 1, nil)
	require.NoError(t, err)
	assert.False(t, reopened.Degraded())

	loaded, err := reopened.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, 2, loaded[0].ID)
	assert.Equal(t, 1, loaded[1].ID)
}

func TestParseTimestampFormats(t *testing.T) {
	valid := []string{
		"Aug 12, 2026 3:14 PM",
		"Aug 12, 2026 3:14:09 PM",
		"August 12, 2026 3:14 PM",
		"2026-08-12 15:14:09",
		"8/12/2026, 3:14:09 PM",
	}
	for _, text := range valid {
		assert.True(t, ValidTimestampText(text), "expected %q to parse", text)
	}
	assert.False(t, ValidTimestampText("yesterday at noon"))
	assert.False(t, ValidTimestampText(""))
}
