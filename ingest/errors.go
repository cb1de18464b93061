package ingest

import (
	"errors"
	"fmt"
)

// Kind classifies ingestion failures that happen before anything is written.
type Kind int

const (
	// KindDownload means the archive could not be fetched.
	KindDownload Kind = iota + 1
	// KindCorrupt means the payload is not a usable register archive.
	KindCorrupt
	// KindParse means a record file could not be parsed.
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindDownload:
		return "download"
	case KindCorrupt:
		return "corrupt"
	case KindParse:
		return "parse"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is returned for download, archive and parse failures.
type Error struct {
	Kind   Kind
	Source string
	// File is the archive path of the offending record file, if any.
	File string
	Err  error
}

func (e *Error) Error() string {
	if e.File != "" {
		return fmt.Sprintf("ingest %s: %s: %s: %v", e.Source, e.Kind, e.File, e.Err)
	}
	return fmt.Sprintf("ingest %s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var ie *Error
	return errors.As(err, &ie) && ie.Kind == k
}
