package models

import "io"

// UploadInput describes one artifact upload to the output bucket.
type UploadInput struct {
	Bucket   string
	Key      string
	MimeType string
	Size     int64
	Body     io.Reader
}
