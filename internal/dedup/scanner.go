package dedup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/avikalpa/mboxdedup/internal/hashcache"
	"github.com/avikalpa/mboxdedup/internal/mbstore"
)

// DefaultChunkSize bounds how many messages are in flight per source.
const DefaultChunkSize = 100

// scanner walks one mailbox file in chunks, consulting the digest cache and
// hashing misses. Message-level failures are skipped with a warning; only a
// failure to open or iterate the store itself is returned.
type scanner struct {
	source    Source
	srcIndex  int
	method    Method
	cache     *hashcache.Cache
	chunkSize int
	progress  ProgressFunc
}

func (s *scanner) scan(ctx context.Context, emit func(MessageRecord)) (int, error) {
	store, err := mbstore.Open(s.source.Path)
	if err != nil {
		return 0, err
	}
	cur, err := store.Messages()
	if err != nil {
		return 0, err
	}
	defer cur.Close()

	total := store.Count()
	chunkSize := s.chunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	decoder := new(mime.WordDecoder)
	seq := 0
	chunkStart := 0
	for cur.Next() {
		if seq%chunkSize == 0 {
			if err := ctx.Err(); err != nil {
				return seq, err
			}
			chunkStart = seq
		}
		key := cur.Key()
		if rec, ok := s.record(ctx, cur.Message(), key, chunkStart, seq, decoder); ok {
			emit(rec)
		}
		seq++
		if seq%chunkSize == 0 || seq == total {
			s.report(chunkStart, seq, total)
		}
	}
	if seq > 0 && seq != total && seq%chunkSize != 0 {
		// The file shrank between the count pass and the scan.
		s.report(chunkStart, seq, total)
	}
	if err := cur.Err(); err != nil {
		return seq, fmt.Errorf("iterate mailbox %s: %w", s.source.Path, err)
	}
	return seq, nil
}

func (s *scanner) report(start, processed, total int) {
	if s.progress == nil {
		return
	}
	remaining := total - processed
	if remaining < 0 {
		remaining = 0
	}
	s.progress(ScanChunk{
		Source:    s.source,
		Start:     start,
		End:       processed - 1,
		Processed: processed,
		Remaining: remaining,
		Total:     total,
	})
}

func (s *scanner) record(ctx context.Context, r io.Reader, key mbstore.Key, chunkStart, seq int, decoder *mime.WordDecoder) (MessageRecord, bool) {
	raw, err := io.ReadAll(r)
	if err != nil {
		log.Warnf("skip %s %s: %v", s.source.DisplayName, key, err)
		return MessageRecord{}, false
	}
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		log.Warnf("skip %s %s: %v", s.source.DisplayName, key, err)
		return MessageRecord{}, false
	}

	messageID := msg.Header.Get("Message-Id")
	if messageID == "" {
		messageID = fmt.Sprintf("no-id-%d-%d", chunkStart, seq)
	}

	body, err := io.ReadAll(msg.Body)
	if err != nil {
		log.Warnf("skip %s %s: %v", s.source.DisplayName, key, err)
		return MessageRecord{}, false
	}
	digest := s.digest(ctx, messageID, msg.Header, body)

	subject, _ := decoder.DecodeHeader(msg.Header.Get("Subject"))
	from, _ := decoder.DecodeHeader(msg.Header.Get("From"))
	dateRaw := msg.Header.Get("Date")
	var date time.Time
	if t, ok := parseDateFlexible(dateRaw); ok {
		date = t
	}

	return MessageRecord{
		SourceFile: s.source.Path,
		Folder:     s.source.DisplayName,
		Key:        key,
		MessageID:  messageID,
		Digest:     digest,
		Subject:    strings.TrimSpace(subject),
		From:       strings.TrimSpace(from),
		DateRaw:    dateRaw,
		Date:       date,
		Size:       int64(len(raw)),
		src:        s.srcIndex,
		seq:        seq,
	}, true
}

// digest resolves the message digest through the cache, hashing on miss and
// writing back before the scan moves on. Cache failures degrade to plain
// hashing rather than failing the message.
func (s *scanner) digest(ctx context.Context, messageID string, header mail.Header, body []byte) string {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, messageID, s.source.Path, s.method.String())
		if err != nil {
			log.Warnf("hash cache read: %v", err)
		} else if ok {
			return cached
		}
	}

	digest := ComputeDigest(header, body, s.method)

	if s.cache != nil {
		if err := s.cache.Put(ctx, messageID, s.source.Path, s.method.String(), digest); err != nil {
			log.Warnf("hash cache write: %v", err)
		}
	}
	return digest
}

var (
	tzOffsetRe  = regexp.MustCompile(`([+-])(\d{2})(\d{2})`)
	tzStripRe   = regexp.MustCompile(`([+-]\d{4})`)
	dateLayouts = []string{
		"Mon, 2 Jan 2006 15:04:05",
		"2 Jan 2006 15:04:05",
		"Mon, 2 Jan 2006 15:04",
		"2 Jan 2006 15:04",
	}
)

// parseDateFlexible parses a Date header, tolerating out-of-range timezone
// offsets and a few non-RFC layouts seen in old archives.
func parseDateFlexible(dateHeader string) (time.Time, bool) {
	if dateHeader == "" {
		return time.Time{}, false
	}
	if t, err := mail.ParseDate(dateHeader); err == nil {
		return t, true
	}
	norm := normalizeTZOffset(dateHeader)
	if t, err := mail.ParseDate(norm); err == nil {
		return t, true
	}
	noTZ := tzStripRe.ReplaceAllString(norm, "")
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, strings.TrimSpace(noTZ)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func normalizeTZOffset(s string) string {
	return tzOffsetRe.ReplaceAllStringFunc(s, func(m string) string {
		sign := m[0:1]
		hh, _ := strconv.Atoi(m[1:3])
		mm, _ := strconv.Atoi(m[3:5])
		if hh > 23 {
			hh = 23
		}
		if mm > 59 {
			mm = 59
		}
		return fmt.Sprintf("%s%02d%02d", sign, hh, mm)
	})
}
