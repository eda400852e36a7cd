// Package extract pulls single values out of the status payload.
//
// It is a narrow scanner, not a JSON parser: it looks for the first
// occurrence of a quoted key and reads either a quoted string (no escape
// handling) or a bare token. Nested objects, arrays and repeated keys are
// not understood.
package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrFieldMissing reports that a key is absent or its value is malformed.
var ErrFieldMissing = errors.New("field missing")

// Field returns the value of key in text, limited to maxLen-1 bytes.
func Field(text, key string, maxLen int) (string, error) {
	quoted := `"` + key + `"`
	pos := strings.Index(text, quoted)
	if pos < 0 {
		return "", fmt.Errorf("%w: %s", ErrFieldMissing, key)
	}
	rest := text[pos+len(quoted):]
	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return "", fmt.Errorf("%w: %s has no colon", ErrFieldMissing, key)
	}
	rest = strings.TrimLeft(rest[colon+1:], " \t\r\n")

	var value string
	if strings.HasPrefix(rest, `"`) {
		rest = rest[1:]
		end := strings.IndexByte(rest, '"')
		if end < 0 {
			return "", fmt.Errorf("%w: %s has unterminated string", ErrFieldMissing, key)
		}
		value = rest[:end]
	} else {
		end := strings.IndexAny(rest, ",} \t\r\n")
		if end < 0 {
			end = len(rest)
		}
		value = rest[:end]
	}
	return truncate(value, maxLen), nil
}

// Int parses the leading integer of s the way C atoi does: leading
// whitespace, an optional sign, then digits. Anything unparseable yields 0.
func Int(s string) int {
	s = strings.TrimLeft(s, " \t\r\n\v\f")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) < maxLen {
		return s
	}
	s = s[:maxLen-1]
	// drop a rune cut in half by the byte limit
	for len(s) > 0 && !utf8.ValidString(s) {
		r, size := utf8.DecodeLastRuneInString(s)
		if r != utf8.RuneError || size != 1 {
			break
		}
		s = s[:len(s)-1]
	}
	return s
}
