package services

import (
	"context"

	"github.com/procurehq/rfpstack/interfaces"
	"github.com/procurehq/rfpstack/internal/config"
	"github.com/procurehq/rfpstack/internal/logger"
	"github.com/procurehq/rfpstack/internal/repository"
	"github.com/procurehq/rfpstack/services/ai"
	"github.com/procurehq/rfpstack/services/events"
	"github.com/procurehq/rfpstack/services/extraction"
	"github.com/procurehq/rfpstack/services/fileparser"
	"github.com/procurehq/rfpstack/services/gmail"
	"github.com/procurehq/rfpstack/services/ingestion"
	"github.com/procurehq/rfpstack/services/matching"
	"github.com/procurehq/rfpstack/services/proposal"
)

type Services struct {
	EventPublisher    interfaces.EventPublisher
	GmailService      interfaces.GmailService
	AIService         interfaces.AIService
	FileParserService interfaces.FileParserService
	ExtractionService interfaces.ExtractionService
	MatchingService   interfaces.MatchingService
	ProposalService   interfaces.ProposalService
	Orchestrator      interfaces.IngestionOrchestrator
}

func InitServices(ctx context.Context, cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	var eventPublisher interfaces.EventPublisher
	if cfg.AppConfig.RabbitMQURL != "" {
		publisher, err := events.NewRabbitMQPublisher(cfg.AppConfig.RabbitMQURL, log, nil)
		if err != nil {
			return nil, err
		}
		eventPublisher = publisher
	}

	gmailService, err := gmail.NewGmailService(ctx, cfg.GmailConfig, log)
	if err != nil {
		return nil, err
	}

	aiService := ai.NewAIService(cfg.OpenAIConfig)
	fileParserService := fileparser.NewFileParserService(log)
	extractionService := extraction.NewExtractionService(log, aiService, fileParserService)
	matchingService := matching.NewMatchingService(log, repos.VendorRepository, repos.RFPVendorRepository)
	proposalService := proposal.NewProposalService(log, repos.ProposalRepository, repos.RFPRepository, repos.ProposalComparisonRepository, eventPublisher)

	orchestrator := ingestion.NewOrchestrator(
		log,
		gmailService,
		matchingService,
		extractionService,
		proposalService,
		repos.WatchStateRepository,
		repos.ProposalRepository,
		repos.RFPRepository,
		ingestion.NewMemoryQueue(),
		cfg.GmailConfig.UserEmail,
	)

	return &Services{
		EventPublisher:    eventPublisher,
		GmailService:      gmailService,
		AIService:         aiService,
		FileParserService: fileParserService,
		ExtractionService: extractionService,
		MatchingService:   matchingService,
		ProposalService:   proposalService,
		Orchestrator:      orchestrator,
	}, nil
}
