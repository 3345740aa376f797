package locator

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	figmaNodeColon  = regexp.MustCompile(`^[0-9]+:[0-9]+$`)
	figmaNodeHyphen = regexp.MustCompile(`^[0-9]+-[0-9]+$`)
	notionUUID      = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
)

const notionHexLen = 32

// splitLineSuffix separates a trailing ":<digits>" from value. The path part must be
// non-empty, so ":42" is a path with no line. Leading zeros are dropped from the line;
// an absent line is "0".
func splitLineSuffix(value string) (path, line string) {
	idx := strings.LastIndexByte(value, ':')
	if idx < 1 || !allDigits(value[idx+1:]) {
		return value, "0"
	}
	line = strings.TrimLeft(value[idx+1:], "0")
	if line == "" {
		line = "0"
	}
	return value[:idx], line
}

// figmaFileKey returns the path segment that follows the first "design" or "file" segment.
func figmaFileKey(escapedPath string) (string, bool) {
	var segments []string
	for _, seg := range strings.Split(escapedPath, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	for i, seg := range segments {
		if (seg == "design" || seg == "file") && i+1 < len(segments) {
			return segments[i+1], true
		}
	}
	return "", false
}

// figmaNodeParam returns the first value of the node-id query parameter, falling back
// to node_id only when node-id is absent altogether.
func figmaNodeParam(rawQuery string) (string, bool) {
	pairs := parseQuery(rawQuery)
	for _, name := range []string{"node-id", "node_id"} {
		for _, p := range pairs {
			if p.key == name {
				return p.value, p.value != ""
			}
		}
	}
	return "", false
}

// figmaNodeID decodes a node id and returns it in colon form ("12:34").
// Ids written with a hyphen ("12-34") are accepted and converted.
func figmaNodeID(raw string) (string, bool) {
	id := raw
	if decoded, err := url.PathUnescape(raw); err == nil {
		id = decoded
	}
	id = strings.TrimSpace(id)
	if figmaNodeHyphen.MatchString(id) {
		id = strings.Replace(id, "-", ":", 1)
	}
	if !figmaNodeColon.MatchString(id) {
		return "", false
	}
	return id, true
}

// notionPageID finds every hyphenated UUID and every standalone run of exactly 32 hex
// digits in s and returns the last one by position, without hyphens and lowercased.
func notionPageID(s string) (string, bool) {
	bestStart := -1
	best := ""

	for _, loc := range notionUUID.FindAllStringIndex(s, -1) {
		if loc[0] > bestStart {
			bestStart = loc[0]
			best = strings.ReplaceAll(s[loc[0]:loc[1]], "-", "")
		}
	}

	for i := 0; i < len(s); {
		if !isHex(s[i]) {
			i++
			continue
		}
		start := i
		for i < len(s) && isHex(s[i]) {
			i++
		}
		if i-start == notionHexLen && start > bestStart {
			bestStart = start
			best = s[start:i]
		}
	}

	if bestStart < 0 {
		return "", false
	}
	return strings.ToLower(best), true
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
