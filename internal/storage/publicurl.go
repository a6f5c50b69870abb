// Package storage translates storage-scheme artifact locations into
// client-consumable URLs.
package storage

import "strings"

const (
	// gsScheme is the Cloud Storage locator scheme used by the generation API.
	gsScheme = "gs://"
	// publicPrefix is the public HTTPS endpoint serving the same objects.
	publicPrefix = "https://storage.googleapis.com/"
)

// PublicURL rewrites a gs://bucket/key location into its public HTTPS form.
// The bucket and key are preserved byte for byte; locations that do not carry
// the storage scheme are returned unchanged.
func PublicURL(location string) string {
	if rest, ok := strings.CutPrefix(location, gsScheme); ok {
		return publicPrefix + rest
	}
	return location
}
