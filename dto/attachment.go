package dto

// ParsedAttachment is the plain-text or image payload extracted from one attachment
type ParsedAttachment struct {
	Filename    string
	ContentType string
	Text        string
	IsImage     bool
	Base64Data  string
}
