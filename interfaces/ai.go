package interfaces

import (
	"golang.org/x/net/context"

	"github.com/procurehq/rfpstack/dto"
)

type AIService interface {
	CreateCompletion(ctx context.Context, request dto.CompletionRequest) (*dto.CompletionResponse, error)
}
