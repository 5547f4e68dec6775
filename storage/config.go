package storage

// Config carries everything the storage layer needs: durable-store
// credentials, the optional CDN front, and local directory layout.
type Config struct {
	// Durable object store. The backend is selected when Bucket,
	// AccessKey and SecretKey are all present.
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	// CDNBaseURL, when set, is used instead of the raw object-store host
	// in public URLs for durable-store objects.
	CDNBaseURL string

	// UploadDir is the persistent-mount directory for local storage.
	// LegacyUploadDir, when set, is checked as a read fallback for
	// objects written under the previous layout.
	UploadDir       string
	LegacyUploadDir string

	// ServeBaseURL prefixes the local serving path in public URLs.
	// Empty means relative URLs ("/files/<key>").
	ServeBaseURL string
}

// DurableConfigured reports whether durable-store credentials are present.
// This predicate alone drives backend selection; it deliberately does not
// probe connectivity.
func (c Config) DurableConfigured() bool {
	return c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}
