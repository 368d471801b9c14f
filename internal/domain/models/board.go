package models

import "time"

// CatalystKind classifies the headline flow for a ticker.
type CatalystKind string

const (
	CatalystReal CatalystKind = "Real"
	CatalystSpec CatalystKind = "Spec"
	CatalystNone CatalystKind = "None"
)

// Snapshot is everything the gates evaluate for one ticker.
type Snapshot struct {
	Symbol    string
	Name      string
	Price     float64
	PrevClose float64 // 0 when unknown
	SharesOut float64 // 0 when unknown
	Vol15     int64   // volume of the latest 15-minute bar, 0 when missing
	Headlines []string
}

// BoardRow is one ranked near-trigger candidate.
type BoardRow struct {
	Symbol       string  `json:"symbol"`
	TierGrade    string  `json:"Tier/Grade"`
	Trigger      float64 `json:"trigger"`
	PctToTrigger string  `json:"%_to_trigger"`
	VWAPStatus   string  `json:"VWAP_Status"`
	VolumeVsReq  string  `json:"15m_Vol_vs_Req"`
	VolumeRatio  float64 `json:"volume_ratio"`
	Catalyst     string  `json:"Catalyst"`
	SectorHeat   string  `json:"Sector_Heat"`
	Note         string  `json:"Note"`
	Price        float64 `json:"price"`

	Score float64 `json:"-"`
}

// Board is the result of the most recent scan.
type Board struct {
	ScanID    string     `json:"scan_id"`
	Rows      []BoardRow `json:"near_trigger_board"`
	Timestamp time.Time  `json:"-"`
	Scanned   int        `json:"scanned"`
}

// BoardView is the board as served to clients, with freshness information.
type BoardView struct {
	ScanID      string     `json:"scan_id,omitempty"`
	Count       int        `json:"count"`
	Rows        []BoardRow `json:"near_trigger_board"`
	TS          int64      `json:"ts"`
	AgeMin      float64    `json:"age_min"`
	Stale       bool       `json:"stale"`
	MarketHours bool       `json:"market_hours"`
}

// UniverseView lists the current universe.
type UniverseView struct {
	Count   int      `json:"count"`
	Symbols []string `json:"symbols"`
	TS      int64    `json:"ts"`
}

// BuildResult summarises a universe build.
type BuildResult struct {
	Message    string `json:"message"`
	Candidates int    `json:"candidates"`
	Kept       int    `json:"kept"`
	TS         int64  `json:"ts"`
}

// ScanResult summarises a scan run.
type ScanResult struct {
	Message string `json:"message"`
	ScanID  string `json:"scan_id"`
	Count   int    `json:"count"`
	TS      int64  `json:"ts"`
}

// Status is the service overview served on the root route.
type Status struct {
	OK            bool  `json:"ok"`
	TS            int64 `json:"ts"`
	UniverseCount int   `json:"universe_count"`
	BoardCount    int   `json:"board_count"`
	UniverseBuilt bool  `json:"universe_built"`
	Scanned       bool  `json:"scanned"`
}
