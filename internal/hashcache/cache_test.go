package hashcache

import (
	"context"
	"path/filepath"
	"testing"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "digests.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGetMiss(t *testing.T) {
	c := testCache(t)
	_, ok, err := c.Get(context.Background(), "<id@example.com>", "/mail/Inbox", "strict")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected miss on empty cache")
	}
}

func TestPutGet(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()

	if err := c.Put(ctx, "<id@example.com>", "/mail/Inbox", "strict", "abc123"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := c.Get(ctx, "<id@example.com>", "/mail/Inbox", "strict")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got != "abc123" {
		t.Fatalf("expected abc123, got %q", got)
	}

	// The key is the full triple: other methods and files stay misses.
	if _, ok, _ := c.Get(ctx, "<id@example.com>", "/mail/Inbox", "content"); ok {
		t.Fatal("different method must not hit")
	}
	if _, ok, _ := c.Get(ctx, "<id@example.com>", "/mail/Sent", "strict"); ok {
		t.Fatal("different source file must not hit")
	}
}

func TestLastWriteWins(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()

	c.Put(ctx, "<id@example.com>", "/mail/Inbox", "strict", "old")
	if err := c.Put(ctx, "<id@example.com>", "/mail/Inbox", "strict", "new"); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, _, _ := c.Get(ctx, "<id@example.com>", "/mail/Inbox", "strict")
	if got != "new" {
		t.Fatalf("expected new, got %q", got)
	}
	n, err := c.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected a single entry, got %d", n)
	}
}

func TestClear(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()

	c.Put(ctx, "<a@example.com>", "/mail/Inbox", "strict", "a")
	c.Put(ctx, "<b@example.com>", "/mail/Inbox", "strict", "b")
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	n, _ := c.Len(ctx)
	if n != 0 {
		t.Fatalf("expected empty cache after clear, got %d entries", n)
	}
}

func TestSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digests.db")
	ctx := context.Background()

	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	c.Put(ctx, "<id@example.com>", "/mail/Inbox", "strict", "abc123")
	c.Close()

	c, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c.Close()
	got, ok, _ := c.Get(ctx, "<id@example.com>", "/mail/Inbox", "strict")
	if !ok || got != "abc123" {
		t.Fatalf("entry lost across reopen: ok=%v got=%q", ok, got)
	}
}
