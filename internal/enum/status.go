package enum

type EmailStatus string

const (
	EmailStatusPending EmailStatus = "pending"
	EmailStatusSent    EmailStatus = "sent"
	EmailStatusFailed  EmailStatus = "failed"
)

func (t EmailStatus) String() string {
	return string(t)
}

type RFPStatus string

const (
	RFPStatusDraft    RFPStatus = "draft"
	RFPStatusSent     RFPStatus = "sent"
	RFPStatusInReview RFPStatus = "in_review"
	RFPStatusClosed   RFPStatus = "closed"
)

func (t RFPStatus) String() string {
	return string(t)
}
