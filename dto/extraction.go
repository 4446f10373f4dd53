package dto

import "encoding/json"

// ExtractedProposalData is the structured payload the AI extraction returns
type ExtractedProposalData struct {
	TotalPrice      *string                `json:"totalPrice"`
	Pricing         ExtractedPricing       `json:"pricing"`
	DeliveryTime    *string                `json:"deliveryTime,omitempty"`
	PaymentTerms    *string                `json:"paymentTerms,omitempty"`
	Warranty        *string                `json:"warranty,omitempty"`
	AdditionalTerms map[string]interface{} `json:"additionalTerms,omitempty"`
}

type ExtractedPricing struct {
	LineItems []ExtractedLineItem `json:"lineItems"`
}

type ExtractedLineItem struct {
	ItemName       string                 `json:"itemName"`
	Quantity       *int                   `json:"quantity,omitempty"`
	UnitPrice      *string                `json:"unitPrice,omitempty"`
	TotalPrice     *string                `json:"totalPrice,omitempty"`
	Specifications map[string]interface{} `json:"specifications,omitempty"`
	Notes          *string                `json:"notes,omitempty"`
}

// AsMap converts the extraction to a generic map for jsonb storage
func (e *ExtractedProposalData) AsMap() map[string]interface{} {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// MatchResult identifies the RFP/vendor pair an inbound message replies to
type MatchResult struct {
	RFPID       string
	VendorID    string
	RFPVendorID string
}
