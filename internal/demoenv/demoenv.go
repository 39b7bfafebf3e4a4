// Package demoenv builds a throwaway Thunderbird-style profile with known
// duplicate messages, used by the demo command and by engine tests.
package demoenv

import (
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"time"

	"github.com/emersion/go-mbox"
)

// Mailbox is one generated mbox file.
type Mailbox struct {
	Path        string
	DisplayName string
}

type message struct {
	subject   string
	from      string
	to        string
	date      string
	messageID string
	received  string // delivery trace, the only header that differs between copies
	body      string
}

// Copies within a duplicate set are identical in every hashed field
// (Message-ID, Date, From, Subject, body); only the Received trace differs,
// the way redelivered mail looks in practice. That makes them duplicates
// under every criterion.
var inboxMessages = []message{
	{
		subject:   "Team Meeting Tomorrow",
		from:      "boss@example.com",
		to:        "you@example.com",
		date:      "Mon, 01 Apr 2025 10:00:00 -0400",
		messageID: "<team-meeting-duplicate@example.com>",
		received:  "from mx1.example.com by mail.example.com; Mon, 01 Apr 2025 10:00:05 -0400",
		body:      "Let's meet tomorrow at 10 AM to discuss the project progress.",
	},
	{
		subject:   "Team Meeting Tomorrow",
		from:      "boss@example.com",
		to:        "you@example.com",
		date:      "Mon, 01 Apr 2025 10:00:00 -0400",
		messageID: "<team-meeting-duplicate@example.com>",
		received:  "from mx2.example.com by mail.example.com; Mon, 01 Apr 2025 10:05:12 -0400",
		body:      "Let's meet tomorrow at 10 AM to discuss the project progress.",
	},
	{
		subject:   "Invitation: Company Picnic",
		from:      "events@example.com",
		to:        "all-staff@example.com",
		date:      "Tue, 02 Apr 2025 09:30:00 -0400",
		messageID: "<company-picnic-duplicate@example.com>",
		received:  "from mx1.example.com by mail.example.com; Tue, 02 Apr 2025 09:30:02 -0400",
		body:      "You're invited to our annual company picnic this Saturday.",
	},
	{
		subject:   "Invitation: Company Picnic",
		from:      "events@example.com",
		to:        "all-staff@example.com",
		date:      "Tue, 02 Apr 2025 09:30:00 -0400",
		messageID: "<company-picnic-duplicate@example.com>",
		received:  "from mx2.example.com by mail.example.com; Tue, 02 Apr 2025 09:35:40 -0400",
		body:      "You're invited to our annual company picnic this Saturday.",
	},
	{
		subject:   "Invitation: Company Picnic",
		from:      "events@example.com",
		to:        "all-staff@example.com",
		date:      "Tue, 02 Apr 2025 09:30:00 -0400",
		messageID: "<company-picnic-duplicate@example.com>",
		received:  "from mx3.example.com by mail.example.com; Tue, 02 Apr 2025 09:40:11 -0400",
		body:      "You're invited to our annual company picnic this Saturday.",
	},
	{
		subject:   "Weekly Report Due",
		from:      "manager@example.com",
		to:        "you@example.com",
		date:      "Wed, 03 Apr 2025 16:15:00 -0400",
		messageID: "<weekly-report-due@example.com>",
		received:  "from mx1.example.com by mail.example.com; Wed, 03 Apr 2025 16:15:03 -0400",
		body:      "Please submit your weekly report by EOD tomorrow.",
	},
}

var sentMessages = []message{
	{
		subject:   "Re: Weekly Report",
		from:      "you@example.com",
		to:        "manager@example.com",
		date:      "Wed, 03 Apr 2025 17:30:00 -0400",
		messageID: "<weekly-report-duplicate@example.com>",
		received:  "from localhost by mail.example.com; Wed, 03 Apr 2025 17:30:01 -0400",
		body:      "Attached is my weekly report. Let me know if you need any clarification.",
	},
	{
		subject:   "Re: Weekly Report",
		from:      "you@example.com",
		to:        "manager@example.com",
		date:      "Wed, 03 Apr 2025 17:30:00 -0400",
		messageID: "<weekly-report-duplicate@example.com>",
		received:  "from localhost by mail.example.com; Wed, 03 Apr 2025 17:35:28 -0400",
		body:      "Attached is my weekly report. Let me know if you need any clarification.",
	},
}

// Write creates Inbox and Sent mailboxes under dir and returns them in that
// order.
func Write(dir string) ([]Mailbox, error) {
	folders := filepath.Join(dir, "Mail", "Local Folders")
	if err := os.MkdirAll(folders, 0o755); err != nil {
		return nil, err
	}

	boxes := []struct {
		name string
		msgs []message
	}{
		{"Inbox", inboxMessages},
		{"Sent", sentMessages},
	}
	var out []Mailbox
	for _, b := range boxes {
		path := filepath.Join(folders, b.name)
		if err := writeMbox(path, b.msgs); err != nil {
			return nil, fmt.Errorf("write %s: %w", b.name, err)
		}
		out = append(out, Mailbox{Path: path, DisplayName: "Local Folders/" + b.name})
	}
	return out, nil
}

func writeMbox(path string, msgs []message) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := mbox.NewWriter(f)
	for _, m := range msgs {
		when := time.Now()
		if t, err := mail.ParseDate(m.date); err == nil {
			when = t
		}
		mw, err := w.CreateMessage(m.from, when)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(mw,
			"Received: %s\nSubject: %s\nFrom: %s\nTo: %s\nDate: %s\nMessage-ID: %s\nContent-Type: text/plain; charset=\"utf-8\"\n\n%s\n",
			m.received, m.subject, m.from, m.to, m.date, m.messageID, m.body)
		if err != nil {
			return err
		}
	}
	return w.Close()
}
