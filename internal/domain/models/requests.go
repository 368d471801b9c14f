package models

// Requests for the scanner HTTP endpoints.

type QuoteRequest struct {
	Symbol string `query:"symbol" json:"symbol" default:"TSLA" validate:"required,max=10"`
}

type BoardRequest struct {
	Limit int `query:"limit" json:"limit" validate:"gte=0,lte=5000"`
}
