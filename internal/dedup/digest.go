package dedup

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const maxPartBytes = 2 << 20 // cap per MIME part when decoding bodies

const fieldSep = "|"

// ComputeDigest hashes one message under the given method. Missing headers
// contribute empty strings; undecodable body parts are skipped, so the digest
// may cover only the parts that decode, but the skip is the same every run.
// Same header bytes + same body bytes + same method always give the same
// digest.
func ComputeDigest(header mail.Header, body []byte, method Method) string {
	h := xxhash.New()
	switch method {
	case SubjectSender:
		writeFields(h, header, "Subject", "From")
	case Headers:
		writeFields(h, header, "Message-Id", "Date", "From", "Subject")
	case Strict:
		writeFields(h, header, "Message-Id", "Date", "From", "Subject")
		eachTextPart(header, body, func(_ string, _ map[string]string, data []byte) {
			h.Write(data)
		})
	case Content:
		eachTextPart(header, body, func(_ string, _ map[string]string, data []byte) {
			h.Write(data)
		})
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

func writeFields(h *xxhash.Digest, header mail.Header, names ...string) {
	for i, name := range names {
		if i > 0 {
			io.WriteString(h, fieldSep)
		}
		io.WriteString(h, header.Get(name))
	}
}

// partHeader is satisfied by both mail.Header and textproto.MIMEHeader.
type partHeader interface {
	Get(key string) string
}

// eachTextPart walks the message body in part order and emits the decoded
// bytes of every text part. Multipart bodies recurse; a malformed part stops
// the walk at that point rather than failing the message.
func eachTextPart(h partHeader, body []byte, emit func(mediaType string, params map[string]string, data []byte)) {
	mediaType, params, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil || mediaType == "" {
		mediaType = "text/plain"
		params = nil
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return
		}
		mr := multipart.NewReader(bytes.NewReader(body), boundary)
		for {
			part, err := mr.NextPart()
			if err != nil {
				return
			}
			pb, err := io.ReadAll(io.LimitReader(part, maxPartBytes))
			if err != nil {
				continue
			}
			eachTextPart(part.Header, pb, emit)
		}
	}

	if !strings.HasPrefix(mediaType, "text/") {
		return
	}
	decoded, err := decodeTransfer(h.Get("Content-Transfer-Encoding"), body)
	if err != nil {
		return
	}
	emit(mediaType, params, decoded)
}

func decodeTransfer(encoding string, body []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		r := base64.NewDecoder(base64.StdEncoding, bytes.NewReader(body))
		return io.ReadAll(io.LimitReader(r, maxPartBytes))
	case "quoted-printable":
		r := quotedprintable.NewReader(bytes.NewReader(body))
		return io.ReadAll(io.LimitReader(r, maxPartBytes))
	default:
		return body, nil
	}
}
