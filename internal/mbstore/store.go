// Package mbstore gives random-ish access to a linear mbox file: sequential
// iteration with stable per-message keys, single-message lookup, and batched
// in-place removal committed by one atomic rewrite.
package mbstore

import (
	"bytes"
	"fmt"
	"io"
	"net/mail"
	"os"
	"path/filepath"
	"time"

	"github.com/emersion/go-mbox"
)

// maxMessageBytes caps a single message read to avoid huge attachments.
const maxMessageBytes = 12 << 20

// Key locates one message inside the store that issued it. It is opaque to
// callers and not comparable across stores.
type Key struct {
	seq int
}

func (k Key) String() string { return fmt.Sprintf("#%d", k.seq) }

// Store is a read/rewrite handle on one mbox file.
type Store struct {
	path  string
	count int
}

// Open validates that the file is readable and counts its messages.
func Open(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mailbox: %w", err)
	}
	defer f.Close()

	count := 0
	r := mbox.NewReader(f)
	for {
		mr, err := r.NextMessage()
		if err == io.EOF {
			break
		}
		if err != nil {
			if count == 0 {
				return nil, fmt.Errorf("read mailbox %s: %w", path, err)
			}
			// Trailing garbage after valid messages: stop counting there.
			break
		}
		if _, err := io.Copy(io.Discard, mr); err != nil {
			break
		}
		count++
	}
	return &Store{path: path, count: count}, nil
}

func (s *Store) Path() string { return s.path }

// Count reports the number of messages seen when the store was opened.
func (s *Store) Count() int { return s.count }

// Cursor iterates messages in file order.
type Cursor struct {
	f   *os.File
	r   *mbox.Reader
	cur io.Reader
	seq int
	err error
}

// Messages returns a cursor positioned before the first message.
func (s *Store) Messages() (*Cursor, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open mailbox: %w", err)
	}
	return &Cursor{f: f, r: mbox.NewReader(f), seq: -1}, nil
}

// Next advances to the next message. It returns false at end of file or on a
// stream error; check Err afterwards.
func (c *Cursor) Next() bool {
	mr, err := c.r.NextMessage()
	if err == io.EOF {
		return false
	}
	if err != nil {
		c.err = err
		return false
	}
	c.cur = mr
	c.seq++
	return true
}

// Key identifies the current message for later removal or lookup.
func (c *Cursor) Key() Key { return Key{seq: c.seq} }

// Message returns a reader over the current message's raw RFC 822 bytes.
func (c *Cursor) Message() io.Reader { return io.LimitReader(c.cur, maxMessageBytes) }

func (c *Cursor) Err() error { return c.err }

func (c *Cursor) Close() error { return c.f.Close() }

// ReadMessage returns the raw bytes of the message at key.
func (s *Store) ReadMessage(k Key) ([]byte, error) {
	if k.seq < 0 || k.seq >= s.count {
		return nil, fmt.Errorf("message %s not in mailbox %s", k, s.path)
	}
	c, err := s.Messages()
	if err != nil {
		return nil, err
	}
	defer c.Close()
	for c.Next() {
		if c.Key() != k {
			continue
		}
		raw, err := io.ReadAll(c.Message())
		if err != nil {
			return nil, fmt.Errorf("read message %s: %w", k, err)
		}
		return raw, nil
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("message %s not in mailbox %s", k, s.path)
}

// Remove deletes the given messages and commits the result in one flush.
// The mailbox is streamed into a temp file without the removed messages and
// renamed over the original, so the store is never observed half-written.
// Per-message failures (unknown keys) come back as error strings; a non-nil
// error means the whole batch was aborted and nothing changed on disk.
func (s *Store) Remove(keys []Key) (removed int, itemErrs []string, err error) {
	drop := make(map[int]bool, len(keys))
	for _, k := range keys {
		if k.seq < 0 || k.seq >= s.count {
			itemErrs = append(itemErrs, fmt.Sprintf("message %s not in mailbox %s", k, s.path))
			continue
		}
		drop[k.seq] = true
	}
	if len(drop) == 0 {
		return 0, itemErrs, nil
	}

	c, err := s.Messages()
	if err != nil {
		return 0, itemErrs, err
	}
	defer c.Close()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".mboxdedup-*")
	if err != nil {
		return 0, itemErrs, fmt.Errorf("create temp mailbox: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := mbox.NewWriter(tmp)
	for c.Next() {
		if drop[c.Key().seq] {
			removed++
			continue
		}
		raw, err := io.ReadAll(c.Message())
		if err != nil {
			tmp.Close()
			return 0, itemErrs, fmt.Errorf("rewrite mailbox %s: %w", s.path, err)
		}
		from, when := envelope(raw)
		mw, err := w.CreateMessage(from, when)
		if err != nil {
			tmp.Close()
			return 0, itemErrs, fmt.Errorf("rewrite mailbox %s: %w", s.path, err)
		}
		if _, err := mw.Write(raw); err != nil {
			tmp.Close()
			return 0, itemErrs, fmt.Errorf("rewrite mailbox %s: %w", s.path, err)
		}
	}
	if err := c.Err(); err != nil {
		tmp.Close()
		return 0, itemErrs, fmt.Errorf("rewrite mailbox %s: %w", s.path, err)
	}
	if err := w.Close(); err != nil {
		tmp.Close()
		return 0, itemErrs, fmt.Errorf("rewrite mailbox %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, itemErrs, fmt.Errorf("rewrite mailbox %s: %w", s.path, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return 0, itemErrs, fmt.Errorf("replace mailbox %s: %w", s.path, err)
	}
	s.count -= removed
	return removed, itemErrs, nil
}

// envelope derives a From_ line sender and date for a rewritten message.
func envelope(raw []byte) (string, time.Time) {
	from := "MAILER-DAEMON"
	when := time.Now()
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return from, when
	}
	if addr, err := mail.ParseAddress(msg.Header.Get("From")); err == nil {
		from = addr.Address
	}
	if t, err := mail.ParseDate(msg.Header.Get("Date")); err == nil {
		when = t
	}
	return from, when
}
