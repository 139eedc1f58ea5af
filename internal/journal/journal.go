// Package journal is an append-only record log for the clip history, one
// JSON record per line with optional NaCl secretbox encryption.
//
// File format (plain):
//
//	<json>\n
//
// File format (encrypted):
//
//	<base64(nonce+ciphertext)>\n
//
// The encrypted form is a base64 blob per line so that framing is identical
// in both cases: every line is a single record.
package journal

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"go.klb.dev/clipstack/internal/crypto"
)

// MaxRecordSize is the largest record we will read (16 MiB).
const MaxRecordSize = 16 * 1024 * 1024

// Journal appends records to a file.
type Journal struct {
	mu   sync.Mutex
	path string
	f    *os.File
	key  *crypto.Key // nil = no encryption
}

// Open opens or creates the journal at path. If key is non-nil every record
// is encrypted before being written and decrypted when replayed.
func Open(path string, key *crypto.Key) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("journal dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("journal open: %w", err)
	}
	return &Journal{path: path, f: f, key: key}, nil
}

// Path returns the journal file path.
func (j *Journal) Path() string { return j.path }

// Append serialises v to JSON, optionally encrypts it, and writes it
// followed by a newline.
func (j *Journal) Append(v any) error {
	line, err := j.encode(v)
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return os.ErrClosed
	}
	_, err = j.f.Write(line)
	return err
}

// Replay calls fn with the raw JSON of every record in file order. A line
// that cannot be decoded is logged and skipped, except that a decryption
// failure on the first record aborts with crypto.ErrDecrypt: that means the
// passphrase is wrong, not that the file is damaged.
func (j *Journal) Replay(fn func(raw []byte) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return os.ErrClosed
	}

	r, err := os.Open(j.path)
	if err != nil {
		return fmt.Errorf("journal replay: %w", err)
	}
	defer r.Close()

	br := bufio.NewReaderSize(r, 64*1024)
	for n := 0; ; n++ {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			raw, derr := j.decode(line)
			switch {
			case errors.Is(derr, crypto.ErrDecrypt) && n == 0:
				return derr
			case derr != nil:
				slog.Warn("journal: skipping unreadable record", "line", n+1, "err", derr)
			default:
				if err := fn(raw); err != nil {
					return err
				}
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("journal read: %w", err)
		}
	}
}

// Rewrite atomically replaces the journal with records. It is used for
// compaction once the live state is smaller than its history.
func (j *Journal) Rewrite(records []any) error {
	tmp := j.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("journal rewrite: %w", err)
	}
	bw := bufio.NewWriter(f)
	for _, rec := range records {
		line, err := j.encode(rec)
		if err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
		if _, err := bw.Write(line); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("journal rewrite: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("journal rewrite: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("journal sync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("journal rewrite: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f != nil {
		_ = j.f.Close()
	}
	if err := os.Rename(tmp, j.path); err != nil {
		return fmt.Errorf("journal rename: %w", err)
	}
	j.f, err = os.OpenFile(j.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("journal reopen: %w", err)
	}
	return nil
}

// Close flushes and closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return nil
	}
	err := j.f.Close()
	j.f = nil
	return err
}

func (j *Journal) encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	if j.key == nil {
		return append(raw, '\n'), nil
	}
	ct, err := crypto.Seal(raw, j.key)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	b64 := base64.StdEncoding.EncodeToString(ct)
	return append([]byte(b64), '\n'), nil
}

func (j *Journal) decode(line []byte) ([]byte, error) {
	if len(line) > MaxRecordSize {
		return nil, fmt.Errorf("record too large (%d bytes)", len(line))
	}
	if line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	if len(line) == 0 {
		return nil, errors.New("empty record")
	}
	if j.key == nil {
		if !json.Valid(line) {
			return nil, errors.New("invalid json")
		}
		return line, nil
	}
	ct, err := base64.StdEncoding.DecodeString(string(line))
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	return crypto.Open(ct, j.key)
}
