package demoenv

import (
	"io"
	"os"
	"testing"

	"github.com/emersion/go-mbox"
)

func countMessages(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	n := 0
	r := mbox.NewReader(f)
	for {
		msg, err := r.NextMessage()
		if err == io.EOF {
			return n
		}
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if _, err := io.Copy(io.Discard, msg); err != nil {
			t.Fatalf("drain %s: %v", path, err)
		}
		n++
	}
}

func TestWrite(t *testing.T) {
	boxes, err := Write(t.TempDir())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(boxes) != 2 {
		t.Fatalf("expected Inbox and Sent, got %v", boxes)
	}
	if boxes[0].DisplayName != "Local Folders/Inbox" || boxes[1].DisplayName != "Local Folders/Sent" {
		t.Fatalf("unexpected names: %v", boxes)
	}
	if n := countMessages(t, boxes[0].Path); n != 6 {
		t.Errorf("Inbox: expected 6 messages, got %d", n)
	}
	if n := countMessages(t, boxes[1].Path); n != 2 {
		t.Errorf("Sent: expected 2 messages, got %d", n)
	}
}
