package locator

// NormalizeFunc canonicalizes one raw locator of a fixed source type.
type NormalizeFunc func(raw string) (Canonical, *Rejection)

// Normalize dispatches raw to the normalizer for sourceType. Unsupported types are
// rejected without running any normalizer.
func Normalize(sourceType, raw string) (Canonical, *Rejection) {
	t, ok := ParseSourceType(sourceType)
	if !ok {
		return Canonical{}, reject(ReasonUnsupportedType, "unsupported source_type: "+string(t))
	}
	return NormalizerFor(t)(raw)
}

// NormalizerFor returns the normalizer for a supported source type.
func NormalizerFor(t SourceType) NormalizeFunc {
	switch t {
	case SourceCode:
		return NormalizeCode
	case SourceFigma:
		return NormalizeFigma
	case SourceNotion:
		return NormalizeNotion
	case SourceDoc, SourceAPI:
		return NormalizeURL
	case SourceOther:
		return NormalizeOther
	}
	return func(string) (Canonical, *Rejection) {
		return Canonical{}, reject(ReasonUnsupportedType, "unsupported source_type: "+string(t))
	}
}

// KeyShape describes the canonical key layout produced for t.
func KeyShape(t SourceType) string {
	switch t {
	case SourceCode:
		return "code:<path>:<line>"
	case SourceFigma:
		return "figma:<file_key>:<node_id>"
	case SourceNotion:
		return "notion:<page_id>:<section>"
	case SourceDoc, SourceAPI:
		return "url:<canonical_url>"
	case SourceOther:
		return "other:<sha256_prefix16>"
	}
	return ""
}
