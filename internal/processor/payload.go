// payload.go - Image payload normalization (data-URI prefix stripping)

package processor

import "strings"

// PayloadNormalizer strips recognized data-URI prefixes from base64 image payloads.
// The prefix list is fixed at construction and only read afterwards, so one
// normalizer is shared by all requests.
type PayloadNormalizer struct {
	prefixes []string
}

// NewPayloadNormalizer creates a normalizer for the given prefixes, applied in order.
// Empty prefixes are ignored.
func NewPayloadNormalizer(prefixes []string) *PayloadNormalizer {
	n := &PayloadNormalizer{}
	for _, p := range prefixes {
		if p != "" {
			n.prefixes = append(n.prefixes, p)
		}
	}
	return n
}

// Normalize removes every occurrence of each recognized prefix, then trims surrounding
// whitespace. Unrecognized prefixes are left untouched.
//
// Removal repeats until nothing changes: cutting one prefix out can splice a new one
// together ("data:image/pdata:image/png;base64,ng;base64,"), and the result must hold
// no recognized prefix at all.
func (n *PayloadNormalizer) Normalize(raw string) string {
	for {
		before := len(raw)
		for _, p := range n.prefixes {
			raw = strings.ReplaceAll(raw, p, "")
		}
		if len(raw) == before {
			break
		}
	}
	return strings.TrimSpace(raw)
}

// Prefixes returns a copy of the recognized prefixes.
func (n *PayloadNormalizer) Prefixes() []string {
	return append([]string(nil), n.prefixes...)
}
