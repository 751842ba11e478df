package meeting

import (
	"strings"
	"testing"
)

func TestExtractThreadID(t *testing.T) {
	tests := []struct {
		link   string
		want   string
		wantOK bool
	}{
		{"https://teams.microsoft.com/l/meetup-join/19%3ameeting_ABC123%40thread.v2/0", "19%3ameeting_ABC123%40thread.v2", true},
		{"https://teams.microsoft.com/l/meetup-join/19%3ameeting_X%40thread.v2/0?context=%7b%7d", "19%3ameeting_X%40thread.v2", true},
		{"meetup-join/abc/", "abc", true},
		{"meetup-join//0", "", true},
		{"https://teams.microsoft.com/l/meetup-join/no-trailing-slash", "", false},
		{"https://teams.microsoft.com/l/channel/19%3aabc/General", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ExtractThreadID(tt.link)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ExtractThreadID(%q) = %q, %v; want %q, %v", tt.link, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestExtractThreadIDUsesFirstMarker(t *testing.T) {
	got, ok := ExtractThreadID("x/meetup-join/first/meetup-join/second/")
	if !ok || got != "first" {
		t.Fatalf("got %q, %v", got, ok)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<p>Hello <b>team</b></p>", "Hello team"},
		{"no markup", "no markup"},
		{"a < b and c > d", "a  d"},
		{"1 < 2", "1 < 2"},
		{"<div><img src=\"x.png\"/></div>", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestThreadName(t *testing.T) {
	if got := ThreadName("19%3ameeting_ABC123%40thread.v2"); got != "19:meeting_ABC123@thread.v2" {
		t.Errorf("decoded name: got %q", got)
	}
	if got := ThreadName("bad%zzescape"); got != "bad%zzescape" {
		t.Errorf("undecodable name should be kept, got %q", got)
	}
	long := strings.Repeat("é", 150)
	if got := ThreadName(long); len([]rune(got)) != 100 {
		t.Errorf("expected 100 runes, got %d", len([]rune(got)))
	}
}
