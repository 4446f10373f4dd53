package dto

import "time"

// EmailHeaders is the cheap metadata-only view of an inbound message
type EmailHeaders struct {
	ProviderID  string
	MessageID   string
	InReplyTo   string
	References  []string
	FromAddress string
	FromName    string
	Subject     string
	Date        time.Time
}

type EmailAttachment struct {
	Filename    string
	ContentType string
	Size        int
	Data        []byte
}

// ParsedEmail is the fully fetched and MIME-decoded message
type ParsedEmail struct {
	Headers     EmailHeaders
	BodyText    string
	BodyHTML    string
	Attachments []EmailAttachment
}

// HistoryDiff is the result of listing mailbox history since a cursor
type HistoryDiff struct {
	NewMessageIDs []string
	NewHistoryID  string
}

// WatchResult is returned when a push subscription is established or renewed
type WatchResult struct {
	HistoryID  string
	Expiration int64
}
