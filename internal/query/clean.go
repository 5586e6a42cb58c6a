package query

import (
	"regexp"
	"strings"
)

var (
	fencePattern    = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	labelPattern    = regexp.MustCompile(`(?i)^(filter|query|expression|answer|output)\s*:\s*`)
	assignPrefix    = regexp.MustCompile(`(?i)^(query|filter|expr|expression|result|q)\s*=\s*([^=].*)$`)
	queryCall       = regexp.MustCompile(`(?s)^df\.query\(\s*(.*?)\s*\)$`)
	frameIndex      = regexp.MustCompile(`(?s)^df\[\s*(.*?)\s*\]$`)
	frameColumn     = regexp.MustCompile(`df\[\s*(?:"([^"]*)"|'([^']*)')\s*\]`)
	arrowPrefix     = regexp.MustCompile(`^(→|->|=>)\s*`)
	numberedExample = regexp.MustCompile(`^\d+\.\s+`)
)

// Clean strips the wrapping artifacts model replies commonly carry: code
// fences, labels, assignment prefixes and pandas call syntax. It does not
// try to repair anything else; the result still has to parse.
func Clean(reply string) string {
	s := strings.TrimSpace(reply)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	s = joinLines(s)

	for {
		before := s
		s = strings.TrimSpace(s)
		s = arrowPrefix.ReplaceAllString(s, "")
		s = numberedExample.ReplaceAllString(s, "")
		s = labelPattern.ReplaceAllString(s, "")
		if m := assignPrefix.FindStringSubmatch(s); m != nil {
			s = m[2]
		}
		if m := queryCall.FindStringSubmatch(s); m != nil {
			s = m[1]
		}
		if m := frameIndex.FindStringSubmatch(s); m != nil {
			s = m[1]
		}
		s = unquote(s)
		if s == before {
			break
		}
	}

	return frameColumn.ReplaceAllStringFunc(s, func(m string) string {
		sub := frameColumn.FindStringSubmatch(m)
		return "`" + sub[1] + sub[2] + "`"
	})
}

func joinLines(s string) string {
	var parts []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

// unquote removes one pair of matching outer quotes when the quote
// character does not occur inside.
func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	q := s[0]
	if (q != '"' && q != '\'') || s[len(s)-1] != q {
		return s
	}
	inner := s[1 : len(s)-1]
	if strings.IndexByte(inner, q) >= 0 {
		return s
	}
	return inner
}
