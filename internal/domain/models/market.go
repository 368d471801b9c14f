package models

import "time"

// Quote is the latest price snapshot for a symbol.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	PercentChange float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PrevClose     float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// Profile carries the company fields the gates care about.
type Profile struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Exchange  string  `json:"exchange"`
	Country   string  `json:"country"`
	Industry  string  `json:"industry"`
	SharesOut float64 `json:"shares_out"` // absolute share count, 0 when unknown
}

// NewsItem is a single company headline.
type NewsItem struct {
	Headline string    `json:"headline"`
	Source   string    `json:"source"`
	URL      string    `json:"url"`
	Time     time.Time `json:"time"`
}

// Resolution is a candle bar width understood by the market data provider.
type Resolution string

const (
	Res15m   Resolution = "15"
	ResDaily Resolution = "D"
)

// Bar is one OHLCV candle.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}
