package listing

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeLink(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"https://example.com/listing/abc", "https://example.com/listing/abc"},
		{"HTTPS://EXAMPLE.com/listing/abc", "https://example.com/listing/abc"},
		{"https://example.com/listing/abc/", "https://example.com/listing/abc"},
		{"https://example.com/listing/abc#gallery", "https://example.com/listing/abc"},
		{"https://example.com/p?b=2&a=1", "https://example.com/p?a=1&b=2"},
		{"  https://example.com/listing/abc  ", "https://example.com/listing/abc"},
		{"https://example.com/", "https://example.com/"},
	}
	for _, c := range cases {
		got, err := NormalizeLink(c.in)
		if err != nil {
			t.Errorf("NormalizeLink(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("NormalizeLink(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeLink_Invalid(t *testing.T) {
	if _, err := NormalizeLink(""); !errors.Is(err, ErrEmptyLink) {
		t.Errorf("empty link: got %v, want ErrEmptyLink", err)
	}
	for _, in := range []string{"not a url", "/relative/path", "example.com/no-scheme"} {
		if _, err := NormalizeLink(in); !errors.Is(err, ErrInvalidLink) {
			t.Errorf("NormalizeLink(%q): got %v, want ErrInvalidLink", in, err)
		}
	}
}

func TestResolveID_Deterministic(t *testing.T) {
	a, err := ResolveID("bat", "https://example.com/listing/abc?b=2&a=1#top")
	if err != nil {
		t.Fatalf("ResolveID: %v", err)
	}
	b, err := ResolveID("bat", "HTTPS://example.com/listing/abc/?a=1&b=2")
	if err != nil {
		t.Fatalf("ResolveID: %v", err)
	}
	if a != b {
		t.Errorf("equivalent links resolved to %q and %q", a, b)
	}
	if !strings.HasPrefix(a, "bat-") {
		t.Errorf("ID %q should carry the source prefix", a)
	}
	if len(a) != len("bat-")+idHashLen {
		t.Errorf("ID %q has unexpected length", a)
	}
}

func TestResolveID_DistinctInputs(t *testing.T) {
	a, _ := ResolveID("bat", "https://example.com/listing/abc")
	b, _ := ResolveID("bat", "https://example.com/listing/def")
	c, _ := ResolveID("pelican", "https://example.com/listing/abc")
	if a == b {
		t.Error("different links must yield different IDs")
	}
	if a == c {
		t.Error("different sources must yield different IDs")
	}
}

func TestResolveID_EmptySource(t *testing.T) {
	if _, err := ResolveID("  ", "https://example.com/x"); !errors.Is(err, ErrEmptySource) {
		t.Errorf("got %v, want ErrEmptySource", err)
	}
}

func TestValidateRecord(t *testing.T) {
	ok := RawRecord{Source: "bat", Link: "https://example.com/listing/abc"}
	if err := ValidateRecord(ok); err != nil {
		t.Errorf("valid record rejected: %v", err)
	}
	if err := ValidateRecord(RawRecord{Link: "https://example.com/x"}); !errors.Is(err, ErrEmptySource) {
		t.Errorf("got %v, want ErrEmptySource", err)
	}
	if err := ValidateRecord(RawRecord{Source: "bat"}); !errors.Is(err, ErrEmptyLink) {
		t.Errorf("got %v, want ErrEmptyLink", err)
	}

	var re *RecordError
	err := ValidateRecord(RawRecord{Source: "bat", Link: "nope"})
	if !errors.As(err, &re) {
		t.Fatalf("got %T, want *RecordError", err)
	}
	if re.Field != "link" {
		t.Errorf("Field = %q, want link", re.Field)
	}
}
