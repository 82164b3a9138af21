package pipeline

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// Uploaded filenames carry storage noise: upload timestamp suffixes, long
// numeric device IDs, recorder-app prefixes. Each rule is applied in
// order, so precedence is explicit and each rule can be tested on its own.
type titleRule struct {
	pattern *regexp.Regexp
	replace string
}

var titleRules = []titleRule{
	// file extension
	{regexp.MustCompile(`\.[^./]+$`), ""},
	// upload suffix: unix-millis timestamp plus a random disambiguator
	{regexp.MustCompile(`-\d{13}-\d{1,9}$`), ""},
	// recorder-app prefixes
	{regexp.MustCompile(`(?i)^(audio|recording|voice)[ _-]+`), ""},
	// embedded timestamps and device IDs
	{regexp.MustCompile(`\d{9,}`), ""},
	// separators to spaces
	{regexp.MustCompile(`[_-]+`), " "},
}

// CleanTitle derives a human-readable title from an audio filename.
func CleanTitle(filename string) string {
	s := filepath.Base(filename)
	for _, r := range titleRules {
		s = r.pattern.ReplaceAllString(s, r.replace)
	}
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "Recording"
	}
	return titleCase(s)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
