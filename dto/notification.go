package dto

import "time"

// PubSubPushRequest is the envelope Google Cloud Pub/Sub posts to the webhook
type PubSubPushRequest struct {
	Message      PubSubMessage `json:"message"`
	Subscription string        `json:"subscription"`
}

type PubSubMessage struct {
	Data        string `json:"data"`
	MessageID   string `json:"messageId"`
	PublishTime string `json:"publishTime"`
}

// GmailNotification is the decoded payload carried inside PubSubMessage.Data
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// InboundNotification is the queue entry handed to the ingestion orchestrator
type InboundNotification struct {
	NotificationID string
	EmailAddress   string
	HistoryID      string
	PublishTime    time.Time
}

type WebhookAck struct {
	Acknowledged bool   `json:"acknowledged"`
	Reason       string `json:"reason,omitempty"`
	Error        string `json:"error,omitempty"`
}
