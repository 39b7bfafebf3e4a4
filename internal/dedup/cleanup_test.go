package dedup

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avikalpa/mboxdedup/internal/mbstore"
)

func TestDeleteKeepFirst(t *testing.T) {
	sources := demoSources(t)
	ctx := context.Background()

	res, err := Scan(ctx, sources[:1], Options{Method: Strict})
	require.NoError(t, err)
	require.Equal(t, 2, res.TotalGroups)

	report := Delete(ctx, res.Groups, []int{0, 1}, KeepFirst)
	require.Empty(t, report.Errors)
	require.Equal(t, 3, report.Deleted)

	// One survivor per group plus the unique message.
	store, err := mbstore.Open(sources[0].Path)
	require.NoError(t, err)
	require.Equal(t, 3, store.Count())

	res, err = Scan(ctx, sources[:1], Options{Method: Strict})
	require.NoError(t, err)
	require.Zero(t, res.TotalGroups)
}

func TestDeleteCustomSelector(t *testing.T) {
	sources := demoSources(t)
	ctx := context.Background()

	res, err := Scan(ctx, sources[:1], Options{Method: Strict})
	require.NoError(t, err)

	// Keep the last member instead of the first. Copies are distinguishable
	// only by their Received trace.
	report := Delete(ctx, res.Groups, []int{0}, func(_ int, g DuplicateGroup) int {
		return len(g.Messages) - 1
	})
	require.Empty(t, report.Errors)
	require.Equal(t, 2, report.Deleted)

	require.True(t, mailboxContains(t, sources[0].Path, "mx3.example.com"),
		"the last picnic copy must survive")
	require.False(t, mailboxContains(t, sources[0].Path, "Tue, 02 Apr 2025 09:30:02"))
}

// mailboxContains reports whether any message in the mailbox contains needle.
func mailboxContains(t *testing.T, path, needle string) bool {
	t.Helper()
	store, err := mbstore.Open(path)
	require.NoError(t, err)
	cur, err := store.Messages()
	require.NoError(t, err)
	defer cur.Close()
	for cur.Next() {
		raw, err := io.ReadAll(cur.Message())
		require.NoError(t, err)
		if strings.Contains(string(raw), needle) {
			return true
		}
	}
	require.NoError(t, cur.Err())
	return false
}

func TestDeleteSelectorOutOfRangeFallsBack(t *testing.T) {
	sources := demoSources(t)
	ctx := context.Background()

	res, err := Scan(ctx, sources[:1], Options{Method: Strict})
	require.NoError(t, err)

	report := Delete(ctx, res.Groups, []int{0}, func(int, DuplicateGroup) int { return 99 })
	require.Empty(t, report.Errors)
	require.Equal(t, 2, report.Deleted)

	// Falling back to the default keep means the first picnic copy survives.
	store, err := mbstore.Open(sources[0].Path)
	require.NoError(t, err)
	require.Equal(t, 4, store.Count())
	require.True(t, mailboxContains(t, sources[0].Path, "Tue, 02 Apr 2025 09:30:02"))
	require.False(t, mailboxContains(t, sources[0].Path, "mx3.example.com"))
}

func TestDeleteNoGroups(t *testing.T) {
	report := Delete(context.Background(), nil, []int{0}, KeepFirst)
	require.Zero(t, report.Deleted)
	require.Len(t, report.Errors, 1)
	require.Contains(t, report.Errors[0], "no duplicate groups")
}

func TestDeleteInvalidGroupIndex(t *testing.T) {
	sources := demoSources(t)
	ctx := context.Background()

	res, err := Scan(ctx, sources[:1], Options{Method: Strict})
	require.NoError(t, err)

	report := Delete(ctx, res.Groups, []int{5}, KeepFirst)
	require.Zero(t, report.Deleted)
	require.Len(t, report.Errors, 1)
	require.Contains(t, report.Errors[0], "invalid group index: 5")
}

func TestDeleteMissingMailbox(t *testing.T) {
	sources := demoSources(t)
	ctx := context.Background()

	res, err := Scan(ctx, sources[:1], Options{Method: Strict})
	require.NoError(t, err)

	require.NoError(t, os.Remove(sources[0].Path))
	report := Delete(ctx, res.Groups, []int{0}, KeepFirst)
	require.Zero(t, report.Deleted)
	require.Len(t, report.Errors, 1)
	require.Contains(t, report.Errors[0], "error opening mailbox")
}

func TestDeleteCanceled(t *testing.T) {
	sources := demoSources(t)

	res, err := Scan(context.Background(), sources[:1], Options{Method: Strict})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := Delete(ctx, res.Groups, []int{0, 1}, KeepFirst)
	require.Zero(t, report.Deleted)
	require.NotEmpty(t, report.Errors)
	require.Contains(t, report.Errors[0], "canceled")

	// Nothing was touched.
	store, err := mbstore.Open(sources[0].Path)
	require.NoError(t, err)
	require.Equal(t, 6, store.Count())
}
