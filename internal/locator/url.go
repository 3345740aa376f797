package locator

import (
	"net/url"
	"sort"
	"strings"
)

// queryPair is one key/value from a query string. Repeated keys and blank values are kept.
type queryPair struct {
	key   string
	value string
}

// CanonicalURL lowercases the scheme and host, defaults an empty path to "/",
// sorts query parameters by (key, value) and drops the fragment.
// It reports false when raw has no scheme or no host.
func CanonicalURL(raw string) (string, bool) {
	u, ok := parseAbsolute(raw)
	if !ok {
		return "", false
	}

	path := u.path
	if path == "" {
		path = "/"
	}

	pairs := parseQuery(u.rawQuery)
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})

	return assembleURL(u, path, encodeQuery(pairs)), true
}

// urlParts is an absolute URL split into its components. path and rawQuery are in
// escaped form; fragment is the text after the first '#' exactly as written.
type urlParts struct {
	scheme   string
	netloc   string
	path     string
	rawQuery string
	fragment string
}

// parseAbsolute splits raw and succeeds only for URLs that carry both a scheme and a
// host. Input that net/url rejects (a stray '%', a non-numeric port) is split leniently
// instead, keeping every component as written.
func parseAbsolute(raw string) (urlParts, bool) {
	value := strings.TrimSpace(raw)
	u, err := url.Parse(value)
	if err != nil {
		return splitLenient(value)
	}
	if u.Scheme == "" || u.Host == "" {
		return urlParts{}, false
	}

	netloc := u.Host
	if u.User != nil {
		netloc = u.User.String() + "@" + u.Host
	}
	_, fragment, _ := strings.Cut(value, "#")
	return urlParts{
		scheme:   u.Scheme,
		netloc:   netloc,
		path:     u.EscapedPath(),
		rawQuery: u.RawQuery,
		fragment: fragment,
	}, true
}

// splitLenient splits scheme, "//" authority, path, "?query" and "#fragment" without
// validating escapes or ports.
func splitLenient(value string) (urlParts, bool) {
	scheme, rest, ok := strings.Cut(value, ":")
	if !ok || !validScheme(scheme) || !strings.HasPrefix(rest, "//") {
		return urlParts{}, false
	}
	rest = rest[2:]

	netloc := rest
	if end := strings.IndexAny(rest, "/?#"); end >= 0 {
		netloc, rest = rest[:end], rest[end:]
	} else {
		rest = ""
	}
	host := netloc
	if at := strings.LastIndexByte(netloc, '@'); at >= 0 {
		host = netloc[at+1:]
	}
	if host == "" || strings.Contains(netloc, "[") != strings.Contains(netloc, "]") {
		return urlParts{}, false
	}

	rest, fragment, _ := strings.Cut(rest, "#")
	path, rawQuery, _ := strings.Cut(rest, "?")
	return urlParts{
		scheme:   scheme,
		netloc:   netloc,
		path:     path,
		rawQuery: rawQuery,
		fragment: fragment,
	}, true
}

// validScheme reports whether s is ALPHA *( ALPHA / DIGIT / "+" / "-" / "." ).
func validScheme(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case i > 0 && ('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

func assembleURL(u urlParts, path, query string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(u.scheme))
	b.WriteString("://")
	b.WriteString(strings.ToLower(u.netloc))
	b.WriteString(path)
	if query != "" {
		b.WriteByte('?')
		b.WriteString(query)
	}
	return b.String()
}

// parseQuery splits a raw query into decoded pairs in their original order.
// Unlike url.ParseQuery it never fails: undecodable escapes are kept literally.
func parseQuery(rawQuery string) []queryPair {
	var pairs []queryPair
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		pairs = append(pairs, queryPair{key: unescapeQuery(k), value: unescapeQuery(v)})
	}
	return pairs
}

func unescapeQuery(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return strings.ReplaceAll(s, "+", " ")
	}
	return decoded
}

func encodeQuery(pairs []queryPair) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = url.QueryEscape(p.key) + "=" + url.QueryEscape(p.value)
	}
	return strings.Join(parts, "&")
}
