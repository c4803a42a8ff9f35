package asset

// Upload is one file taken from an incoming request. It only lives for the request.
type Upload struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// Size returns the decoded size of the upload in bytes.
func (u Upload) Size() int64 {
	return int64(len(u.Data))
}

// StoredAsset is a single write to the content store. Revision is empty for a create
// and carries the current revision token for an update.
type StoredAsset struct {
	Path        string
	Content     []byte
	ContentType string
	Message     string
	Revision    string
}

// WriteResult is what the content store reports after a successful write.
type WriteResult struct {
	Revision string
	CommitID string
}

// Reference is the externally visible result of storing an asset.
type Reference struct {
	URL       string `json:"url"`
	Path      string `json:"path"`
	Revision  string `json:"revision,omitempty"`
	CommitID  string `json:"commit,omitempty"`
	SizeBytes int64  `json:"size_bytes"`
	Updated   bool   `json:"updated"`
	Reused    bool   `json:"reused,omitempty"`
}

// IngestRequest is a main image plus optional thumbnails.
type IngestRequest struct {
	Main   *Upload
	Thumbs []Upload
	Title  string
	Key    string
}

// ThumbFailure reports a thumbnail that could not be stored.
type ThumbFailure struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// IngestResult holds one reference per input file. Thumbs has the same length and order
// as the request; a failed slot has an empty Reference and an entry in Failures.
type IngestResult struct {
	Main     Reference
	Thumbs   []Reference
	Failures []ThumbFailure
}

// ThumbURLs returns the thumbnail URLs in input order, "" for failed slots.
func (r IngestResult) ThumbURLs() []string {
	urls := make([]string, len(r.Thumbs))
	for i, ref := range r.Thumbs {
		urls[i] = ref.URL
	}
	return urls
}
