package filestore

import (
	"io"
	"time"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key          string
	Size         int64 // -1 if unknown
	ContentType  string
	ETag         string
	LastModified time.Time

	// IsDir marks a common prefix returned by a non-recursive listing.
	IsDir bool
}

// Object is a streaming handle to an object's content. Callers must Close it.
type Object interface {
	io.ReadCloser
	Info() *ObjectInfo
}

// ListOptions filters and pages ListObjects.
type ListOptions struct {
	Prefix    string
	Recursive bool

	// Limit caps the number of results; 0 means no cap.
	Limit int

	// StartAfter resumes a listing after this key.
	StartAfter string
}

// PutOptions describes an object being written.
type PutOptions struct {
	ContentType string
}
