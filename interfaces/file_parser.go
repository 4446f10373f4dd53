package interfaces

import (
	"github.com/procurehq/rfpstack/dto"
)

// FileParserService converts attachment bytes into text or an image payload.
// A nil result with nil error means the file kind is unsupported.
type FileParserService interface {
	Parse(data []byte, filename, contentType string) (*dto.ParsedAttachment, error)
}
