package listing

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// idHashLen is the number of hex digits of the link hash kept in an ID.
// 12 digits (48 bits) is comfortably collision-free at catalog scale while
// keeping IDs short enough to read in logs.
const idHashLen = 12

// NormalizeLink canonicalizes an absolute URL so that trivially different
// spellings of the same listing page resolve to the same identity:
// scheme and host are lowercased, the fragment is dropped, query parameters
// are sorted, and a trailing slash on a non-root path is removed.
func NormalizeLink(link string) (string, error) {
	s := strings.TrimSpace(link)
	if s == "" {
		return "", NewRecordError("link", link, ErrEmptyLink)
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", NewRecordError("link", link, ErrInvalidLink)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode() // Encode sorts keys
	}
	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	return u.String(), nil
}

// ResolveID derives the stable listing ID for a (source, link) pair.
// The same inputs always yield the same ID; distinct normalized links
// yield distinct IDs. The source name prefix keeps IDs debuggable.
func ResolveID(source, link string) (string, error) {
	src := strings.TrimSpace(source)
	if src == "" {
		return "", NewRecordError("source", source, ErrEmptySource)
	}
	norm, err := NormalizeLink(link)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(norm))
	return src + "-" + hex.EncodeToString(sum[:])[:idHashLen], nil
}
