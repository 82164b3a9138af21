package store

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

var hexPrefix = regexp.MustCompile(`^[0-9a-f]{8}(-|$)`)

func TestNewAudioIDFormat(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	id := NewAudioID("/uploads/Lecture.mp3", "Lecture", now)
	if !hexPrefix.MatchString(id) {
		t.Errorf("id %q does not start with 8 hex chars", id)
	}
	if !strings.HasSuffix(id, "-lecture") {
		t.Errorf("id %q missing title slug suffix", id)
	}
}

func TestNewAudioIDDeterministic(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	a := NewAudioID("/uploads/a.mp3", "T", now)
	b := NewAudioID("/uploads/a.mp3", "T", now)
	if a != b {
		t.Errorf("same inputs produced different ids: %q vs %q", a, b)
	}

	c := NewAudioID("/uploads/a.mp3", "T", now.Add(time.Millisecond))
	if a == c {
		t.Error("different timestamps produced identical ids")
	}
}

func TestNewAudioIDNoTitle(t *testing.T) {
	id := NewAudioID("/uploads/a.mp3", "", time.Now())
	if len(id) != 8 {
		t.Errorf("id without title = %q, want bare 8-char hash", id)
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Lecture", "lecture"},
		{"Intro to Physics!", "intro-to-physics"},
		{"  spaced   out  ", "spaced-out"},
		{"!!!", ""},
		{"This Title Is Much Longer Than Thirty Characters", "this-title-is-much-longer-than"},
	}
	for _, tt := range tests {
		if got := Slug(tt.in); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
