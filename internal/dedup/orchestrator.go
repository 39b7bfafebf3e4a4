package dedup

import (
	"context"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/avikalpa/mboxdedup/internal/hashcache"
)

// DefaultWorkers bounds the scan fan-out when Options.Workers is unset.
const DefaultWorkers = 4

// Options configures one scan invocation.
type Options struct {
	Method    Method
	Workers   int              // scanner pool bound, default 4, capped at len(sources)
	ChunkSize int              // messages per chunk, default 100
	Cache     *hashcache.Cache // optional persistent digest cache
	Progress  ProgressFunc     // optional chunk progress callback
}

// Scan fans one scanner per source out across a bounded pool and folds every
// record into one shared grouping table, so duplicates are found across
// folder boundaries. A source that fails outright becomes one entry in
// ScanResult.SourceErrors and does not disturb its siblings. The only error
// Scan itself returns is context cancellation.
func Scan(ctx context.Context, sources []Source, opts Options) (*ScanResult, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(sources) {
		workers = len(sources)
	}

	var (
		mu      sync.Mutex
		records []MessageRecord
		srcErrs []SourceError
		total   int
	)

	g := new(errgroup.Group)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			s := &scanner{
				source:    src,
				srcIndex:  i,
				method:    opts.Method,
				cache:     opts.Cache,
				chunkSize: opts.ChunkSize,
				progress:  opts.Progress,
			}
			seen, err := s.scan(ctx, func(rec MessageRecord) {
				mu.Lock()
				records = append(records, rec)
				mu.Unlock()
			})
			mu.Lock()
			total += seen
			mu.Unlock()
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warnf("scan %s: %v", src.DisplayName, err)
				mu.Lock()
				srcErrs = append(srcErrs, SourceError{Source: src.DisplayName, Err: err.Error()})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Failed sources keep their input order in the report.
	orderSourceErrors(sources, srcErrs)

	groups := buildGroups(records)
	redundant := 0
	for _, grp := range groups {
		redundant += grp.Redundant()
	}
	return &ScanResult{
		Method:         opts.Method,
		Groups:         groups,
		SourceErrors:   srcErrs,
		TotalMessages:  total,
		TotalGroups:    len(groups),
		TotalRedundant: redundant,
	}, nil
}

func orderSourceErrors(sources []Source, errs []SourceError) {
	pos := make(map[string]int, len(sources))
	for i, s := range sources {
		pos[s.DisplayName] = i
	}
	sort.SliceStable(errs, func(i, j int) bool {
		return pos[errs[i].Source] < pos[errs[j].Source]
	})
}
