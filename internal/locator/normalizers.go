package locator

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"strings"
)

// fingerprintLen is the number of hex characters kept from the content hash.
const fingerprintLen = 16

// NormalizeCode handles "path" and "path:line" locators.
func NormalizeCode(raw string) (Canonical, *Rejection) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Canonical{}, reject(ReasonEmptyLocator, "code locator is empty")
	}
	if strings.Contains(value, "://") {
		return Canonical{}, reject(ReasonNotCodeLocator, "code locator must be path or path:line")
	}

	rawPath, line := splitLineSuffix(value)
	if rawPath == "" {
		return Canonical{}, reject(ReasonCodePathInvalid, "code path is empty")
	}

	cleaned := path.Clean(strings.ReplaceAll(rawPath, `\`, "/"))
	if cleaned == "" || cleaned == "." {
		return Canonical{}, reject(ReasonCodePathInvalid, "code path is invalid")
	}

	display := cleaned
	if line != "0" {
		display = cleaned + ":" + line
	}

	return Canonical{
		Key:        "code:" + cleaned + ":" + line,
		Normalized: display,
		Path:       cleaned,
		Line:       line,
	}, nil
}

// NormalizeFigma handles Figma design/file URLs that point at a single node.
// The display URL keeps only the node-id query parameter.
func NormalizeFigma(raw string) (Canonical, *Rejection) {
	u, ok := parseAbsolute(raw)
	if !ok {
		return Canonical{}, reject(ReasonNotAURL, "figma locator must be a URL")
	}

	fileKey, ok := figmaFileKey(u.path)
	if !ok {
		return Canonical{}, reject(ReasonFileKeyMissing, "figma file key not found")
	}

	rawNode, ok := figmaNodeParam(u.rawQuery)
	if !ok {
		return Canonical{}, reject(ReasonNodeIDMissing, "figma node id not found")
	}

	nodeID, ok := figmaNodeID(rawNode)
	if !ok {
		return Canonical{}, reject(ReasonNodeIDMalformed, "figma node id must match <number>:<number>")
	}

	return Canonical{
		Key:        "figma:" + fileKey + ":" + nodeID,
		Normalized: assembleURL(u, u.path, "node-id="+url.QueryEscape(nodeID)),
		FileKey:    fileKey,
		NodeID:     nodeID,
	}, nil
}

// NormalizeNotion handles bare Notion page ids and URLs that embed one.
// When several ids appear, the last one wins.
func NormalizeNotion(raw string) (Canonical, *Rejection) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Canonical{}, reject(ReasonEmptyLocator, "notion locator is empty")
	}

	section := "root"
	u, isURL := parseAbsolute(value)
	if isURL {
		if frag := strings.TrimSpace(u.fragment); frag != "" {
			section = frag
		}
	}

	pageID, ok := notionPageID(value)
	if !ok {
		return Canonical{}, reject(ReasonPageIDMissing, "notion page id not found")
	}

	display := value
	if isURL {
		if canonical, ok := CanonicalURL(value); ok {
			display = canonical
		}
	}

	return Canonical{
		Key:        "notion:" + pageID + ":" + section,
		Normalized: display,
		PageID:     pageID,
	}, nil
}

// NormalizeURL handles doc and api locators.
func NormalizeURL(raw string) (Canonical, *Rejection) {
	canonical, ok := CanonicalURL(raw)
	if !ok {
		return Canonical{}, reject(ReasonNotAURL, "URL normalization failed")
	}
	return Canonical{
		Key:        "url:" + canonical,
		Normalized: canonical,
	}, nil
}

// NormalizeOther fingerprints free text. Only the key is case-folded; the display
// form keeps the original casing.
func NormalizeOther(raw string) (Canonical, *Rejection) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Canonical{}, reject(ReasonEmptyLocator, "other locator is empty")
	}
	sum := sha256.Sum256([]byte(strings.ToLower(value)))
	return Canonical{
		Key:        "other:" + hex.EncodeToString(sum[:])[:fingerprintLen],
		Normalized: value,
	}, nil
}
