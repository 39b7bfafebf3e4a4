package dedup

import "fmt"

// Method selects which message fields define "duplicate".
type Method int

const (
	// Strict hashes identifier, date, from and subject headers followed by
	// the decoded bytes of every text body part.
	Strict Method = iota
	// Content hashes the decoded text body parts only.
	Content
	// Headers hashes identifier, date, from and subject headers only.
	Headers
	// SubjectSender hashes subject and from only, the coarsest criterion.
	SubjectSender
)

func (m Method) String() string {
	switch m {
	case Strict:
		return "strict"
	case Content:
		return "content"
	case Headers:
		return "headers"
	case SubjectSender:
		return "subject-sender"
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// ParseMethod maps the user-facing criterion name to a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "strict":
		return Strict, nil
	case "content":
		return Content, nil
	case "headers":
		return Headers, nil
	case "subject-sender":
		return SubjectSender, nil
	}
	return Strict, fmt.Errorf("unknown criteria %q (use strict, content, headers or subject-sender)", s)
}
