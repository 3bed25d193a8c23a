package domain

import "time"

// Asset represents metadata for a stored image blob
type Asset struct {
	Key          string    `json:"key"`           // Storage key (e.g. 3f/3f2a...c1.jpg)
	OriginalName string    `json:"original_name"` // File name the image arrived with
	MIMEType     string    `json:"mime_type"`
	SizeBytes    int64     `json:"size_bytes"`
	Hash         string    `json:"hash"` // SHA-256 hash
	UploadedAt   time.Time `json:"uploaded_at"`
}
