package types

import "fmt"

// MetadataError means a filename could not be resolved into a manual
// identity. Unrecoverable for that file, the batch continues.
type MetadataError struct {
	Filename string
	Reason   string
}

func (e MetadataError) Error() string {
	return fmt.Sprintf("metadata: %q: %s", e.Filename, e.Reason)
}

// ExtractionError means the extraction collaborator failed for one
// file. The batch continues with the remaining files.
type ExtractionError struct {
	File string
	Err  error
}

func (e ExtractionError) Error() string {
	return fmt.Sprintf("extraction: %s: %v", e.File, e.Err)
}

func (e ExtractionError) Unwrap() error { return e.Err }

// IndexWriteError aborts one manual's (re)ingestion. Any previously
// indexed state for the manual stays untouched and queryable.
type IndexWriteError struct {
	ManualID string
	Backend  string
	Op       string
	Err      error
}

func (e IndexWriteError) Error() string {
	return fmt.Sprintf("index %s: %s store: manual %s: %v", e.Op, e.Backend, e.ManualID, e.Err)
}

func (e IndexWriteError) Unwrap() error { return e.Err }

// RetrievalBackendError is returned only when both retrieval backends
// fail for a query. A single backend failure degrades instead.
type RetrievalBackendError struct {
	VectorErr error
	TextErr   error
}

func (e RetrievalBackendError) Error() string {
	return fmt.Sprintf("retrieval: both backends failed: vector: %v, text: %v", e.VectorErr, e.TextErr)
}

// SynthesisError is fatal to its query. The caller never receives a
// partially filled answer.
type SynthesisError struct {
	Err error
}

func (e SynthesisError) Error() string {
	return fmt.Sprintf("synthesis: %v", e.Err)
}

func (e SynthesisError) Unwrap() error { return e.Err }
