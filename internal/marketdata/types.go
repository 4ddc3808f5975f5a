// Package marketdata implements the fan-in layer: provider adapters
// (C1), the request queue and cache (C2), and the provider router (C3).
package marketdata

import (
	"context"
	"time"
)

// Capability is a bit in a provider's CapabilitySet.
type Capability uint8

const (
	CapPrice Capability = 1 << iota
	CapCandles
	CapSentiment
	CapVolatility
	CapAssetDetails
)

// CapabilitySet is the sealed set of capabilities a provider implements.
type CapabilitySet uint8

// Has reports whether the set includes c.
func (s CapabilitySet) Has(c Capability) bool { return CapabilitySet(c)&s != 0 }

// PriceSnapshot is a single current-price observation.
type PriceSnapshot struct {
	Symbol    string
	Price     float64
	ChangePct float64
	Volume    float64
	Timestamp time.Time
	Provider  string
}

// Candle is one OHLCV bar.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Sentiment is a coarse sentiment read for a symbol.
type Sentiment struct {
	Symbol string
	Score  float64 // [-1, 1]
	Label  string  // bullish | bearish | neutral
}

// Volatility is an annualized volatility read for a symbol.
type Volatility struct {
	Symbol     string
	Annualized float64
}

// AssetDetails is static descriptive metadata for a symbol.
type AssetDetails struct {
	Symbol    string
	AssetType string
	Exchange  string
	Name      string
}

// Provider is the capability set every adapter implements a subset of
// (§4.1, §9 "sealed capability set"). Methods for capabilities a
// provider lacks return ErrUnsupported.
type Provider interface {
	Name() string
	Capabilities() CapabilitySet
	GetPrice(ctx context.Context, symbol string) (PriceSnapshot, error)
	GetCandles(ctx context.Context, symbol, interval string, limit int, start, end time.Time) ([]Candle, error)
	GetSentiment(ctx context.Context, symbol string) (Sentiment, error)
	GetVolatility(ctx context.Context, symbol string) (Volatility, error)
	GetAssetDetails(ctx context.Context, symbol string) (AssetDetails, error)
}

// ErrUnsupported is returned by a capability method a provider does not implement.
var ErrUnsupported = errUnsupported{}

type errUnsupported struct{}

func (errUnsupported) Error() string { return "marketdata: capability not supported by provider" }
