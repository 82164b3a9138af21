package store

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const maxSlugLen = 30

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// NewAudioID derives a storage key for an audio file: an 8-hex-char digest
// over the file's basename and the current time in milliseconds, suffixed
// with a sanitized title slug when a title is given. Collision-resistant,
// not collision-proof; the slug reduces accidental overlap and makes the
// directory name recognizable at a glance.
func NewAudioID(audioPath, title string, now time.Time) string {
	basename := filepath.Base(audioPath)
	sum := md5.Sum([]byte(basename + "-" + strconv.FormatInt(now.UnixMilli(), 10)))
	id := hex.EncodeToString(sum[:])[:8]

	if s := Slug(title); s != "" {
		id += "-" + s
	}
	return id
}

// Slug lowercases the title, collapses every non-alphanumeric run to a
// single hyphen, and truncates to 30 characters. Returns "" for titles
// with no usable characters.
func Slug(title string) string {
	s := nonSlug.ReplaceAllString(strings.ToLower(title), "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlugLen {
		s = strings.Trim(s[:maxSlugLen], "-")
	}
	return s
}
