package dedup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContentPreview(t *testing.T) {
	sources := demoSources(t)

	res, err := Scan(context.Background(), sources[:1], Options{Method: Strict})
	require.NoError(t, err)

	content, err := Preview(res.Groups, 0, 0)
	require.NoError(t, err)
	require.Equal(t, "Invitation: Company Picnic", content.Headers["Subject"])
	require.Equal(t, "events@example.com", content.Headers["From"])
	require.Len(t, content.Parts, 1)
	require.Equal(t, "text/plain", content.Parts[0].ContentType)
	require.Contains(t, content.Parts[0].Text, "annual company picnic")
}

func TestContentOutOfRange(t *testing.T) {
	sources := demoSources(t)

	res, err := Scan(context.Background(), sources[:1], Options{Method: Strict})
	require.NoError(t, err)

	_, err = Preview(res.Groups, -1, 0)
	require.ErrorContains(t, err, "invalid group index: -1")
	_, err = Preview(res.Groups, 9, 0)
	require.ErrorContains(t, err, "invalid group index: 9")
	_, err = Preview(res.Groups, 0, 7)
	require.ErrorContains(t, err, "invalid message index: 7")
}

func TestStripHTML(t *testing.T) {
	got := StripHTML("<html><body><p>Hello <b>world</b></p>\n<p>bye</p></body></html>")
	require.Equal(t, "Hello world bye", got)
}
