package models

import "errors"

var (
	ErrScanInProgress      = errors.New("scan already in progress")
	ErrNoCandidates        = errors.New("no candidate symbols available")
	ErrProviderUnavailable = errors.New("market data provider unavailable")
	ErrRateLimited         = errors.New("market data provider rate limited")
	ErrNotFound            = errors.New("symbol not found")
)
