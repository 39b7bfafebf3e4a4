package dedup

import (
	"time"

	"github.com/avikalpa/mboxdedup/internal/mbstore"
)

// Source is one mailbox file to scan.
type Source struct {
	Path        string
	DisplayName string
}

// MessageRecord is one message as seen by the engine. Records live for the
// duration of a scan and any cleanup referencing that scan.
type MessageRecord struct {
	SourceFile string
	Folder     string
	Key        mbstore.Key
	MessageID  string
	Digest     string
	Subject    string
	From       string
	DateRaw    string
	Date       time.Time // zero when the Date header failed to parse
	Size       int64

	// scan position, used for deterministic tie-breaking
	src int
	seq int
}

func (r MessageRecord) before(o MessageRecord) bool {
	if r.src != o.src {
		return r.src < o.src
	}
	return r.seq < o.seq
}

// DuplicateGroup is two or more messages sharing a digest. Members are
// ordered by parsed date ascending (unparseable dates first); the first
// member is the default keep candidate.
type DuplicateGroup struct {
	Digest   string
	Messages []MessageRecord
}

// Redundant is the number of members beyond the one worth keeping.
func (g DuplicateGroup) Redundant() int { return len(g.Messages) - 1 }

// ScanChunk reports progress after each processed chunk of one source.
type ScanChunk struct {
	Source    Source
	Start     int // index of the first message in the chunk
	End       int // index of the last message in the chunk
	Processed int
	Remaining int
	Total     int
}

// ProgressFunc receives chunk-level progress. It is called from scanner
// goroutines and must be safe for concurrent use.
type ProgressFunc func(ScanChunk)

// SourceError is a mailbox that failed outright during a scan.
type SourceError struct {
	Source string
	Err    string
}

// ScanResult aggregates one scan invocation across all sources.
type ScanResult struct {
	Method         Method
	Groups         []DuplicateGroup
	SourceErrors   []SourceError
	TotalMessages  int
	TotalGroups    int
	TotalRedundant int
}

// DeletionReport summarizes one cleanup invocation. It is always returned,
// even when every deletion failed.
type DeletionReport struct {
	Deleted int
	Errors  []string
}
