package dedup

import "testing"

func TestParseMethodRoundTrip(t *testing.T) {
	for _, m := range []Method{Strict, Content, Headers, SubjectSender} {
		got, err := ParseMethod(m.String())
		if err != nil {
			t.Fatalf("ParseMethod(%s): %v", m, err)
		}
		if got != m {
			t.Errorf("ParseMethod(%s) = %s", m, got)
		}
	}
}

func TestParseMethodUnknown(t *testing.T) {
	if _, err := ParseMethod("fuzzy"); err == nil {
		t.Fatal("expected error for unknown criteria")
	}
}
