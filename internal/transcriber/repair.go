package transcriber

// The whisper engine serializes its result with float fields that can be
// NaN or +/-Infinity (compression ratios, probabilities on silent
// segments). Those tokens are not valid JSON and break strict parsing, so
// they are rewritten to null before the payload is decoded.

// RepairRawJSON returns a copy of raw with every bare NaN, Infinity, and
// -Infinity token outside string literals replaced by null. String contents
// are left untouched, so a transcript that happens to contain "NaN" is
// preserved.
func RepairRawJSON(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	inString := false
	escaped := false

	for i := 0; i < len(raw); i++ {
		c := raw[i]

		if inString {
			out = append(out, c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}

		if c == '"' {
			inString = true
			out = append(out, c)
			continue
		}

		if n := badTokenLen(raw[i:]); n > 0 {
			out = append(out, "null"...)
			i += n - 1
			continue
		}

		out = append(out, c)
	}

	return out
}

// badTokenLen reports the length of a NaN/Infinity/-Infinity token at the
// start of s, or 0 if there is none.
func badTokenLen(s []byte) int {
	switch {
	case hasToken(s, "NaN"):
		return 3
	case hasToken(s, "Infinity"):
		return 8
	case hasToken(s, "-Infinity"):
		return 9
	default:
		return 0
	}
}

func hasToken(s []byte, tok string) bool {
	if len(s) < len(tok) || string(s[:len(tok)]) != tok {
		return false
	}
	// Token must end at a JSON delimiter, not run into an identifier.
	if len(s) == len(tok) {
		return true
	}
	next := s[len(tok)]
	switch next {
	case ',', '}', ']', ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
