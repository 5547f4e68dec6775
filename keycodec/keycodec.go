// Package keycodec maps logical uploads to storage keys and stored URLs
// back to storage keys.
//
// DeriveKey is the only producer of new keys. ExtractKey is the migration
// seam: every URL shape the storage facade has ever emitted must remain
// parseable here forever, because old URLs in the relational store outlive
// the code that produced them. Parsing is an ordered list of
// (matcher, extractor) pairs tried in sequence; anything no pair claims
// yields "no key", which callers must treat as "cannot verify", never as
// "broken".
package keycodec

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/draftdesk/scriptstore/interfaces"
)

// Namespaces ever used as the leading key segment. CDN URLs carry the key
// as their whole path, so the namespace whitelist is what separates a
// rewritten object URL from an arbitrary link.
var knownNamespaces = map[string]bool{
	"scripts": true,
	"covers":  true,
	"avatars": true,
}

// KnownNamespace reports whether ns has ever been used as a key namespace.
func KnownNamespace(ns string) bool {
	return knownNamespaces[ns]
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeName reduces an original file name to characters safe in a
// storage key. Path separators and anything outside [a-zA-Z0-9._-] are
// replaced with a single underscore.
func SanitizeName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	clean := unsafeNameChars.ReplaceAllString(base, "_")
	clean = strings.Trim(clean, "._")
	if clean == "" {
		return "file"
	}
	return clean
}

// DeriveKey generates a fresh storage key for an upload. The combination
// of a nanosecond timestamp and a random suffix makes collisions
// negligible without any coordination, so DeriveKey is safe to call
// concurrently.
func DeriveKey(namespace, originalName string) interfaces.StorageKey {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	key := fmt.Sprintf("%s/%d_%s_%s", namespace, time.Now().UnixNano(), suffix, SanitizeName(originalName))
	return interfaces.StorageKey(key)
}

// extractor attempts to pull a storage key out of a parsed URL. It returns
// ok=false when the URL does not match its format.
type extractor func(u *url.URL) (interfaces.StorageKey, bool)

// extractors is ordered from most to least specific. New URL formats are
// appended; existing entries are never removed.
var extractors = []extractor{
	extractVirtualHostedS3,
	extractPathStyleS3,
	extractLocalServing,
	extractCDN,
}

// ExtractKey reverses a previously issued public URL into the storage key
// it was generated from. The second return value is false when the URL
// matches no format ever emitted; that is an expected outcome for legacy
// or foreign URLs, not an error.
func ExtractKey(rawURL string) (interfaces.StorageKey, bool) {
	if rawURL == "" {
		return "", false
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}

	for _, extract := range extractors {
		if key, ok := extract(u); ok {
			return key, true
		}
	}
	return "", false
}

// extractVirtualHostedS3 handles https://<bucket>.s3.<region>.amazonaws.com/<key>
// and the region-less form https://<bucket>.s3.amazonaws.com/<key>.
func extractVirtualHostedS3(u *url.URL) (interfaces.StorageKey, bool) {
	host := strings.ToLower(u.Hostname())
	if !strings.HasSuffix(host, ".amazonaws.com") {
		return "", false
	}
	if !strings.Contains(host, ".s3.") && !strings.HasSuffix(host, ".s3.amazonaws.com") {
		return "", false
	}
	if strings.HasPrefix(host, "s3.") {
		// Path-style host, handled by extractPathStyleS3.
		return "", false
	}

	key := strings.TrimPrefix(u.EscapedPath(), "/")
	if key == "" {
		return "", false
	}
	return decodedKey(key)
}

// extractPathStyleS3 handles path-style object store URLs where the first
// path segment is the bucket: https://s3.<region>.amazonaws.com/<bucket>/<key>
// as well as custom-endpoint stores (https://minio.internal:9000/<bucket>/<key>).
// For non-AWS hosts the segment after the bucket must be a known namespace,
// otherwise the URL is left for later extractors.
func extractPathStyleS3(u *url.URL) (interfaces.StorageKey, bool) {
	trimmed := strings.TrimPrefix(u.EscapedPath(), "/")
	idx := strings.IndexByte(trimmed, '/')
	if idx < 0 {
		return "", false
	}
	key := trimmed[idx+1:]
	if key == "" {
		return "", false
	}
	k, ok := decodedKey(key)
	if !ok {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	awsPathStyle := strings.HasPrefix(host, "s3.") && strings.HasSuffix(host, ".amazonaws.com")
	if !awsPathStyle && !KnownNamespace(k.Namespace()) {
		return "", false
	}
	return k, true
}

// extractLocalServing handles the local serving API path, both relative
// ("/files/<key>") and absolute ("https://host/files/<key>").
func extractLocalServing(u *url.URL) (interfaces.StorageKey, bool) {
	const marker = "/files/"
	escaped := u.EscapedPath()
	idx := strings.Index(escaped, marker)
	if idx < 0 {
		return "", false
	}
	key := escaped[idx+len(marker):]
	if key == "" {
		return "", false
	}
	return decodedKey(key)
}

// extractCDN handles CDN-rewritten URLs, where the object key is the whole
// path under an arbitrary host. Only paths starting with a known namespace
// are claimed; everything else is somebody else's URL.
func extractCDN(u *url.URL) (interfaces.StorageKey, bool) {
	if u.Hostname() == "" {
		return "", false
	}
	key := strings.TrimPrefix(u.EscapedPath(), "/")
	if key == "" {
		return "", false
	}
	k, ok := decodedKey(key)
	if !ok {
		return "", false
	}
	if !KnownNamespace(k.Namespace()) {
		return "", false
	}
	return k, true
}

// decodedKey percent-decodes a raw path remainder into a storage key.
// Extractors must feed it the escaped path form so the key text is
// decoded exactly once.
func decodedKey(raw string) (interfaces.StorageKey, bool) {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", false
	}
	return interfaces.StorageKey(decoded), true
}
