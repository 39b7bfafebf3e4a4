package dedup

import (
	"context"
	"fmt"
	"sort"

	"github.com/avikalpa/mboxdedup/internal/mbstore"
)

// KeepSelector picks which member of a group survives a cleanup. It receives
// the group's position in the scan result and the group itself and returns a
// 0-based member index; out-of-range answers fall back to 0, the default
// keep candidate.
type KeepSelector func(groupIndex int, group DuplicateGroup) int

// KeepFirst retains the first member of the sorted group, i.e. the one with
// the earliest parsed date.
func KeepFirst(int, DuplicateGroup) int { return 0 }

// Delete removes every non-kept member of the selected groups from their
// owning mailboxes. Deletions are batched per store and each store is
// flushed exactly once. One member failing does not block the rest; every
// failure becomes one entry in the report. A store that cannot be opened or
// rewritten contributes no deletions and one error per affected member, so a
// group is never half-deleted silently.
func Delete(ctx context.Context, groups []DuplicateGroup, groupIndices []int, keep KeepSelector) DeletionReport {
	var report DeletionReport
	if len(groups) == 0 {
		report.Errors = append(report.Errors, "no duplicate groups to delete")
		return report
	}
	if keep == nil {
		keep = KeepFirst
	}

	byStore := make(map[string][]mbstore.Key)
	for _, idx := range groupIndices {
		if idx < 0 || idx >= len(groups) {
			report.Errors = append(report.Errors, fmt.Sprintf("invalid group index: %d", idx))
			continue
		}
		group := groups[idx]
		keepIdx := keep(idx, group)
		if keepIdx < 0 || keepIdx >= len(group.Messages) {
			keepIdx = 0
		}
		for i, m := range group.Messages {
			if i == keepIdx {
				continue
			}
			byStore[m.SourceFile] = append(byStore[m.SourceFile], m.Key)
		}
	}

	paths := make([]string, 0, len(byStore))
	for path := range byStore {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		keys := byStore[path]
		if err := ctx.Err(); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("mailbox %s: %d deletions canceled: %v", path, len(keys), err))
			continue
		}
		store, err := mbstore.Open(path)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("error opening mailbox %s: %v", path, err))
			continue
		}
		removed, itemErrs, err := store.Remove(keys)
		report.Errors = append(report.Errors, itemErrs...)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("error rewriting mailbox %s: %v", path, err))
			continue
		}
		report.Deleted += removed
	}
	return report
}
