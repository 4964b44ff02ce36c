package gallerylog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gallerydl/pkg/logger"
)

// Delimiter separates stanzas in the log file.
const Delimiter = "========================================"

var idLine = regexp.MustCompile(`^#(\d{9})$`)

// Log is the durable newest-first download log. It is rewritten as a
// whole on every append so a crash leaves either the old or the new
// file, never a torn one. Access is serialized by the single-threaded
// session controller.
type Log struct {
	path     string
	startID  int
	degraded bool
	log      logger.Logger
}

// Open prepares a log at path. startID seeds numbering for an empty
// log. If an existing file cannot be parsed at all, the log degrades
// to append-only mode for the rest of the session instead of failing.
func Open(path string, startID int, lg logger.Logger) (*Log, error) {
	if lg == nil {
		lg = logger.GetLogger()
	}
	if startID < 1 {
		startID = 1
	}
	l := &Log{path: path, startID: startID, log: lg}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	records, malformed := parseStanzas(string(data))
	if len(records) == 0 && strings.TrimSpace(string(data)) != "" {
		lg.WithField("path", path).Warn("log file unparseable, falling back to append-only mode")
		l.degraded = true
		return l, nil
	}
	if malformed > 0 {
		lg.WithFields(map[string]interface{}{
			"path":      path,
			"malformed": malformed,
		}).Warn("skipped malformed log stanzas")
	}
	return l, nil
}

// Path returns the log file path.
func (l *Log) Path() string { return l.path }

// Degraded reports whether the log fell back to append-only mode.
func (l *Log) Degraded() bool { return l.degraded }

// LoadAll reads and parses the whole log from disk. Malformed stanzas
// are skipped. The boundary scanner calls this fresh on every scan so
// it sees records appended earlier in the same session.
func (l *Log) LoadAll() ([]Record, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	records, _ := parseStanzas(string(data))
	return records, nil
}

// NextID returns max existing id + 1, ignoring placeholders, or the
// configured start value for an empty log.
func (l *Log) NextID() (int, error) {
	records, err := l.LoadAll()
	if err != nil {
		return 0, err
	}
	max := 0
	for i := range records {
		if records[i].Placeholder() {
			continue
		}
		if records[i].ID > max {
			max = records[i].ID
		}
	}
	if max == 0 {
		return l.startID, nil
	}
	return max + 1, nil
}

// Append inserts the record keeping newest-first order and rewrites
// the file durably. In degraded mode the stanza is appended at the end
// instead, preserving whatever the unparseable file already holds.
func (l *Log) Append(rec Record) error {
	if l.degraded {
		return l.appendRaw(rec)
	}

	records, err := l.LoadAll()
	if err != nil {
		return err
	}

	idx := sort.Search(len(records), func(i int) bool {
		return records[i].Timestamp.Before(rec.Timestamp)
	})
	records = append(records, Record{})
	copy(records[idx+1:], records[idx:])
	records[idx] = rec

	return l.writeAtomic(records)
}

// Renumber rewrites every id, placeholders included, to a dense
// sequence where the oldest record gets 1. It returns the number of
// records written.
func (l *Log) Renumber() (int, error) {
	if l.degraded {
		return 0, fmt.Errorf("cannot renumber a log in append-only mode")
	}
	records, err := l.LoadAll()
	if err != nil {
		return 0, err
	}
	n := len(records)
	for i := range records {
		records[i].ID = n - i
	}
	if err := l.writeAtomic(records); err != nil {
		return 0, err
	}
	return n, nil
}

// writeAtomic renders all stanzas into a temp file in the log's
// directory, forces it to disk, then renames over the old file.
func (l *Log) writeAtomic(records []Record) error {
	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, ".gallerylog-*")
	if err != nil {
		return fmt.Errorf("create temp log: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(renderStanzas(records)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write log: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close log: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace log: %w", err)
	}
	return nil
}

func (l *Log) appendRaw(rec Record) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log for append: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(renderStanzas([]Record{rec})); err != nil {
		return fmt.Errorf("append log stanza: %w", err)
	}
	return f.Sync()
}

// parseStanzas decodes the stanza format. Each stanza is an id line,
// a timestamp line, then one or more prompt lines, delimited by the
// fixed separator. Malformed stanzas are counted and skipped.
func parseStanzas(content string) ([]Record, int) {
	var records []Record
	malformed := 0

	var chunk []string
	flush := func() {
		if len(chunk) == 0 {
			return
		}
		lines := chunk
		chunk = nil
		for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
			lines = lines[1:]
		}
		for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
			lines = lines[:len(lines)-1]
		}
		if len(lines) == 0 {
			return
		}
		rec, ok := parseStanza(lines)
		if !ok {
			malformed++
			return
		}
		records = append(records, rec)
	}

	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == Delimiter {
			flush()
			continue
		}
		chunk = append(chunk, line)
	}
	flush()

	return records, malformed
}

func parseStanza(lines []string) (Record, bool) {
	if len(lines) < 3 {
		return Record{}, false
	}
	m := idLine.FindStringSubmatch(strings.TrimSpace(lines[0]))
	if m == nil {
		return Record{}, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return Record{}, false
	}

	tsText := strings.TrimSpace(lines[1])
	if tsText == "" {
		return Record{}, false
	}
	// An unparsable timestamp still identifies the record; it loads with
	// a zero Timestamp and sorts after every dated record.
	ts, _ := ParseTimestamp(tsText)

	prompt := strings.TrimSpace(strings.Join(lines[2:], "\n"))
	if prompt == "" {
		return Record{}, false
	}

	return Record{
		ID:            id,
		TimestampText: tsText,
		Timestamp:     ts,
		Prompt:        prompt,
	}, true
}

func renderStanzas(records []Record) string {
	var b strings.Builder
	for i := range records {
		b.WriteString(Delimiter)
		b.WriteString("\n")
		fmt.Fprintf(&b, "#%09d\n", records[i].ID)
		b.WriteString(records[i].TimestampText)
		b.WriteString("\n")
		b.WriteString(records[i].Prompt)
		b.WriteString("\n")
	}
	return b.String()
}
