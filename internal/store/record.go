package store

// Status classifies an index record.
type Status string

const (
	StatusOK        Status = "ok"
	StatusDuplicate Status = "duplicate"
	StatusError     Status = "error"
	StatusInfo      Status = "info"
)

// ContentTypeText is the content type of stored processed text.
const ContentTypeText = "text/plain"

// Record is one line of the index log.
// ID is the content hash; it is null for error and info records.
// Error carries the failure detail, or the discovery note on info records.
type Record struct {
	ID                *string `json:"id"`
	RunID             string  `json:"run_id,omitempty"`
	Category          string  `json:"category"`
	Source            string  `json:"source"`
	URL               string  `json:"url"`
	PathRaw           string  `json:"path_raw,omitempty"`
	PathText          string  `json:"path_text,omitempty"`
	ProcessedFilename string  `json:"processed_filename,omitempty"`
	ContentType       string  `json:"content_type,omitempty"`
	Bytes             int64   `json:"bytes,omitempty"`
	FetchedAt         string  `json:"fetched_at"`
	Title             string  `json:"title,omitempty"`
	PublishedDate     string  `json:"published_date,omitempty"`
	Language          string  `json:"language,omitempty"`
	Depth             int     `json:"depth"`
	HTTPStatus        int     `json:"http_status,omitempty"`
	Status            Status  `json:"status"`
	Error             *string `json:"error"`
}

// Hash returns the content hash or "".
func (r Record) Hash() string {
	if r.ID == nil {
		return ""
	}

	return *r.ID
}

// Detail returns the error detail or "".
func (r Record) Detail() string {
	if r.Error == nil {
		return ""
	}

	return *r.Error
}

// Ptr returns a pointer to s, or nil for "".
func Ptr(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
