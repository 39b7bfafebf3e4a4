package dedup

import (
	"bytes"
	"fmt"
	"io"
	"net/mail"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/avikalpa/mboxdedup/internal/mbstore"
)

// BodyPart is one decoded text part of a previewed message.
type BodyPart struct {
	ContentType string
	Text        string
}

// MessageContent is the full preview of one group member, served to the
// presentation layer.
type MessageContent struct {
	Headers map[string]string
	Parts   []BodyPart
}

// Preview re-reads one group member from its owning mailbox and returns its
// headers and decoded text parts. Out-of-range indices yield a descriptive
// error, never a panic.
func Preview(groups []DuplicateGroup, groupIndex, memberIndex int) (*MessageContent, error) {
	if groupIndex < 0 || groupIndex >= len(groups) {
		return nil, fmt.Errorf("invalid group index: %d", groupIndex)
	}
	group := groups[groupIndex]
	if memberIndex < 0 || memberIndex >= len(group.Messages) {
		return nil, fmt.Errorf("invalid message index: %d", memberIndex)
	}
	member := group.Messages[memberIndex]

	store, err := mbstore.Open(member.SourceFile)
	if err != nil {
		return nil, err
	}
	raw, err := store.ReadMessage(member.Key)
	if err != nil {
		return nil, err
	}
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse message %s: %w", member.Key, err)
	}
	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return nil, fmt.Errorf("read message %s: %w", member.Key, err)
	}

	headers := make(map[string]string, len(msg.Header))
	for name, values := range msg.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	content := &MessageContent{Headers: headers}
	eachTextPart(msg.Header, body, func(mediaType string, params map[string]string, data []byte) {
		content.Parts = append(content.Parts, BodyPart{
			ContentType: mediaType,
			Text:        string(toUTF8(data, params["charset"])),
		})
	})
	return content, nil
}

// toUTF8 converts a decoded part to UTF-8; on failure the bytes pass through
// unchanged, mirroring how undecodable content is tolerated elsewhere.
func toUTF8(data []byte, cs string) []byte {
	if cs == "" || strings.EqualFold(cs, "utf-8") {
		return data
	}
	r, err := charset.NewReaderLabel(cs, bytes.NewReader(data))
	if err != nil {
		return data
	}
	conv, err := io.ReadAll(io.LimitReader(r, maxPartBytes))
	if err != nil {
		return data
	}
	return conv
}

// StripHTML reduces an HTML part to its visible text, for terminal display.
func StripHTML(htmlBody string) string {
	z := html.NewTokenizer(strings.NewReader(htmlBody))
	var b strings.Builder
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			t := strings.TrimSpace(string(z.Text()))
			if t != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(t)
			}
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
