package dedup

import (
	"net/mail"
	"testing"
)

func header(pairs ...string) mail.Header {
	h := make(mail.Header, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		h[pairs[i]] = []string{pairs[i+1]}
	}
	return h
}

func TestDigestDeterministic(t *testing.T) {
	h := header("Message-Id", "<a@example.com>", "Subject", "hello", "From", "a@example.com", "Date", "Mon, 01 Apr 2025 10:00:00 -0400")
	body := []byte("the body\n")
	for _, m := range []Method{Strict, Content, Headers, SubjectSender} {
		if ComputeDigest(h, body, m) != ComputeDigest(h, body, m) {
			t.Errorf("%s: digest not stable", m)
		}
	}
}

func TestSubjectSenderIgnoresBodyAndID(t *testing.T) {
	a := header("Message-Id", "<a@example.com>", "Subject", "hello", "From", "a@example.com")
	b := header("Message-Id", "<b@example.com>", "Subject", "hello", "From", "a@example.com")

	if ComputeDigest(a, []byte("one"), SubjectSender) != ComputeDigest(b, []byte("two"), SubjectSender) {
		t.Error("subject-sender must ignore message id and body")
	}
	if ComputeDigest(a, nil, Headers) == ComputeDigest(b, nil, Headers) {
		t.Error("headers must see the differing message id")
	}
}

func TestContentIgnoresHeaders(t *testing.T) {
	a := header("Message-Id", "<a@example.com>", "Subject", "one")
	b := header("Message-Id", "<b@example.com>", "Subject", "two")
	body := []byte("same body\n")

	if ComputeDigest(a, body, Content) != ComputeDigest(b, body, Content) {
		t.Error("content must ignore headers")
	}
	if ComputeDigest(a, body, Content) == ComputeDigest(a, []byte("other body\n"), Content) {
		t.Error("content must see the differing body")
	}
}

func TestStrictSeesBothHeadersAndBody(t *testing.T) {
	h := header("Message-Id", "<a@example.com>", "Subject", "hello", "From", "a@example.com", "Date", "Mon, 01 Apr 2025 10:00:00 -0400")

	if ComputeDigest(h, []byte("one"), Strict) == ComputeDigest(h, []byte("two"), Strict) {
		t.Error("strict must see the body")
	}
	other := header("Message-Id", "<b@example.com>", "Subject", "hello", "From", "a@example.com", "Date", "Mon, 01 Apr 2025 10:00:00 -0400")
	if ComputeDigest(h, []byte("one"), Strict) == ComputeDigest(other, []byte("one"), Strict) {
		t.Error("strict must see the headers")
	}
}

func TestMissingHeadersHashAsEmpty(t *testing.T) {
	full := header("Subject", "hello", "From", "a@example.com")
	bare := header("From", "a@example.com")

	if ComputeDigest(full, nil, SubjectSender) == ComputeDigest(bare, nil, SubjectSender) {
		t.Error("a missing subject must not collide with a present one")
	}
	// But two messages missing the same header agree.
	if ComputeDigest(bare, nil, SubjectSender) != ComputeDigest(header("From", "a@example.com"), nil, SubjectSender) {
		t.Error("identical partial headers must agree")
	}
}

func TestMultipartHashesTextPartsOnly(t *testing.T) {
	plain := header("Content-Type", `text/plain; charset="utf-8"`)
	multi := header("Content-Type", `multipart/mixed; boundary="XYZ"`)
	multiBody := []byte("--XYZ\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"hello\r\n" +
		"--XYZ\r\n" +
		"Content-Type: application/octet-stream\r\n" +
		"\r\n" +
		"\x00\x01\x02\r\n" +
		"--XYZ--\r\n")

	if ComputeDigest(multi, multiBody, Content) != ComputeDigest(plain, []byte("hello"), Content) {
		t.Error("multipart digest must cover exactly the decoded text parts")
	}
}

func TestQuotedPrintableDecodedBeforeHashing(t *testing.T) {
	plain := header("Content-Type", "text/plain")
	qp := header("Content-Type", "text/plain", "Content-Transfer-Encoding", "quoted-printable")

	if ComputeDigest(qp, []byte("hello=20world"), Content) != ComputeDigest(plain, []byte("hello world"), Content) {
		t.Error("quoted-printable body must hash as its decoded bytes")
	}
}

func TestBase64DecodedBeforeHashing(t *testing.T) {
	plain := header("Content-Type", "text/plain")
	b64 := header("Content-Type", "text/plain", "Content-Transfer-Encoding", "base64")

	if ComputeDigest(b64, []byte("aGVsbG8gd29ybGQ="), Content) != ComputeDigest(plain, []byte("hello world"), Content) {
		t.Error("base64 body must hash as its decoded bytes")
	}
}
