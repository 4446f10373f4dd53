package dto

// ExtractedRFP is the structured RFP the AI builds from a free-text description
type ExtractedRFP struct {
	Title        string                 `json:"title"`
	Description  *string                `json:"description,omitempty"`
	Budget       *string                `json:"budget,omitempty"`
	Deadline     *string                `json:"deadline,omitempty"`
	PaymentTerms *string                `json:"paymentTerms,omitempty"`
	Warranty     *string                `json:"warranty,omitempty"`
	OtherTerms   map[string]interface{} `json:"otherTerms,omitempty"`
	LineItems    []ExtractedRFPItem     `json:"lineItems"`
}

type ExtractedRFPItem struct {
	ItemName       string                 `json:"itemName"`
	Quantity       int                    `json:"quantity"`
	Specifications map[string]interface{} `json:"specifications,omitempty"`
	Notes          *string                `json:"notes,omitempty"`
}
