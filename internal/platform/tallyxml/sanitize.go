package tallyxml

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	selfClosingTag = regexp.MustCompile(`<[\w.:]+\s*/>`)
	emptyTagPair   = regexp.MustCompile(`<([\w.:]+)>\s*</([\w.:]+)>`)
	charReference  = regexp.MustCompile(`&#(x[0-9a-fA-F]+|[0-9]+);`)
)

// maxSanitizePasses bounds the collapse of nested empty elements
const maxSanitizePasses = 8

// Sanitize cleans raw Tally export text so a permissive XML parser accepts it.
// It removes self-closing and empty elements, CRLF pairs and every character
// (literal or referenced) outside the XML 1.0 character range.
func Sanitize(text string) string {
	text = SanitizeChars(text)
	text = selfClosingTag.ReplaceAllString(text, "")
	for i := 0; i < maxSanitizePasses; i++ {
		changed := false
		text = emptyTagPair.ReplaceAllStringFunc(text, func(pair string) string {
			m := emptyTagPair.FindStringSubmatch(pair)
			if m[1] != m[2] {
				return pair
			}
			changed = true
			return ""
		})
		if !changed {
			break
		}
	}
	return text
}

// SanitizeChars removes CRLF pairs and characters outside the XML 1.0
// range but keeps empty elements, which are blank cells in report exports.
func SanitizeChars(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "")
	text = strings.Map(func(r rune) rune {
		if isXMLChar(r) {
			return r
		}
		return -1
	}, text)
	return charReference.ReplaceAllStringFunc(text, func(ref string) string {
		if isXMLChar(decodeCharRef(ref)) {
			return ref
		}
		return ""
	})
}

// decodeCharRef returns the rune a numeric reference names, or -1
func decodeCharRef(ref string) rune {
	body := strings.TrimSuffix(strings.TrimPrefix(ref, "&#"), ";")
	base := 10
	if strings.HasPrefix(body, "x") {
		body, base = body[1:], 16
	}
	n, err := strconv.ParseInt(body, base, 32)
	if err != nil {
		return -1
	}
	return rune(n)
}

func isXMLChar(r rune) bool {
	switch {
	case r == 0x09, r == 0x0A, r == 0x0D:
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}
