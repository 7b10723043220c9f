// package ledger persists which track identities have already been published for each artist.
//
// Each artist owns one plain-text file, <dir>/<artist>/posted_songs.txt, holding one identity
// per line. Files are only ever appended to.
package ledger

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/desertthunder/trackdrop/internal/shared"
	"golang.org/x/text/encoding/charmap"
)

// FileName is the per-artist ledger file name.
const FileName = "posted_songs.txt"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FileLedger is a ledger backed by one append-only file per artist.
//
// Entries for an artist are read from disk on first use and then served from memory.
type FileLedger struct {
	dir string

	mu      sync.Mutex
	entries map[string]*partition
}

type partition struct {
	order []string
	set   map[string]struct{}
}

// NewFileLedger creates a ledger rooted at dir. Nothing is read or created until first use.
func NewFileLedger(dir string) *FileLedger {
	return &FileLedger{dir: dir, entries: make(map[string]*partition)}
}

// Dir returns the ledger root directory.
func (l *FileLedger) Dir() string {
	return l.dir
}

// Path returns the ledger file for artist.
func (l *FileLedger) Path(artist string) string {
	return filepath.Join(l.dir, shared.SanitizeFileName(artist), FileName)
}

// Contains reports whether identity has been recorded for artist.
func (l *FileLedger) Contains(artist, identity string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.load(artist)
	if err != nil {
		return false, err
	}
	_, ok := p.set[identity]
	return ok, nil
}

// Record appends identity to the artist's ledger and syncs it to disk.
//
// Recording an identity that is already present is a no-op.
func (l *FileLedger) Record(artist, identity string) error {
	if identity == "" {
		return fmt.Errorf("%w: empty identity", shared.ErrInvalidArgument)
	}
	if strings.ContainsAny(identity, "\r\n") {
		return fmt.Errorf("%w: identity contains a line break", shared.ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.load(artist)
	if err != nil {
		return err
	}
	if _, ok := p.set[identity]; ok {
		return nil
	}

	if err := appendLine(l.Path(artist), identity); err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrLedgerIO, artist, err)
	}

	p.set[identity] = struct{}{}
	p.order = append(p.order, identity)
	return nil
}

// Entries returns the artist's recorded identities in file order.
func (l *FileLedger) Entries(artist string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.load(artist)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), p.order...), nil
}

// load returns the cached partition for artist, reading it from disk the first time.
// Callers must hold l.mu.
func (l *FileLedger) load(artist string) (*partition, error) {
	if p, ok := l.entries[artist]; ok {
		return p, nil
	}

	lines, err := readLines(l.Path(artist))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrLedgerIO, artist, err)
	}

	p := &partition{set: make(map[string]struct{}, len(lines))}
	for _, line := range lines {
		if _, dup := p.set[line]; dup {
			continue
		}
		p.set[line] = struct{}{}
		p.order = append(p.order, line)
	}
	l.entries[artist] = p
	return p, nil
}

// readLines decodes a ledger file. A missing file is an empty ledger.
//
// A leading UTF-8 BOM is dropped. Lines that are valid UTF-8 are kept as-is and any
// other line is decoded as Windows-1252, which older ledgers were written in. Windows-1252
// agrees with ISO-8859-1 outside 0x80-0x9F.
func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	decoder := charmap.Windows1252.NewDecoder()
	var lines []string

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	for sc.Scan() {
		raw := bytes.TrimSuffix(sc.Bytes(), []byte{'\r'})
		if len(raw) == 0 {
			continue
		}
		if utf8.Valid(raw) {
			lines = append(lines, string(raw))
			continue
		}
		decoded, err := decoder.Bytes(raw)
		if err != nil {
			// Windows-1252 maps every byte, so this only fires on a broken decoder.
			lines = append(lines, strings.ToValidUTF8(string(raw), ""))
			continue
		}
		lines = append(lines, string(decoded))
	}
	return lines, sc.Err()
}

// appendLine writes line plus a newline to the end of path and fsyncs before returning.
//
// If the existing file does not end in a newline one is written first.
func appendLine(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	prefix, err := needsNewline(f)
	if err != nil {
		return err
	}

	if _, err := f.WriteString(prefix + line + "\n"); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return f.Close()
}

func needsNewline(f *os.File) (string, error) {
	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if info.Size() == 0 {
		return "", nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return "", err
	}
	if last[0] == '\n' {
		return "", nil
	}
	return "\n", nil
}
