package errors

import "github.com/pkg/errors"

var (
	// mail provider errors
	ErrUpstreamUnavailable = errors.New("mail provider unavailable")
	ErrWatchNotEstablished = errors.New("mailbox watch not established")

	// extraction errors
	ErrExtractionFailed  = errors.New("extraction returned no usable content")
	ErrCorruptAttachment = errors.New("attachment is corrupt")

	// proposal errors
	ErrProposalNotFound = errors.New("proposal not found")
	ErrRFPNotFound      = errors.New("rfp not found")
)
