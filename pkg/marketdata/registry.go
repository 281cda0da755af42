package marketdata

import (
	"encoding/json"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/rxtech-lab/stockpile/pkg/errors"
	"github.com/rxtech-lab/stockpile/pkg/marketdata/provider"
)

// ProviderType defines the type of market data provider.
type ProviderType string

const (
	ProviderYahoo   ProviderType = "yahoo"
	ProviderPolygon ProviderType = "polygon"
	ProviderBinance ProviderType = "binance"
)

// ProviderInfo contains metadata about a market data provider.
type ProviderInfo struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	Description  string `json:"description"`
	RequiresAuth bool   `json:"requiresAuth"`
}

// ProviderOptions holds the settings needed to construct a provider.
type ProviderOptions struct {
	// APIKey authenticates against providers that require it (polygon).
	APIKey string `json:"apiKey,omitempty" jsonschema:"title=API Key,description=API key for providers that require authentication"`
	// Timeout bounds each upstream HTTP request.
	Timeout time.Duration `json:"timeout,omitempty" jsonschema:"title=Timeout,description=Upstream request timeout"`
}

// providerRegistry holds metadata about all supported providers.
var providerRegistry = map[ProviderType]ProviderInfo{
	ProviderYahoo: {
		Name:         string(ProviderYahoo),
		DisplayName:  "Yahoo Finance",
		Description:  "Free historical OHLCV data for stocks, ETFs and indices via the public chart API",
		RequiresAuth: false,
	},
	ProviderPolygon: {
		Name:         string(ProviderPolygon),
		DisplayName:  "Polygon.io",
		Description:  "US stock market data provider with real-time and historical OHLCV data",
		RequiresAuth: true,
	},
	ProviderBinance: {
		Name:         string(ProviderBinance),
		DisplayName:  "Binance",
		Description:  "Cryptocurrency exchange with extensive market data for crypto trading pairs",
		RequiresAuth: false,
	},
}

// GetSupportedProviders returns a list of all supported provider names.
func GetSupportedProviders() []string {
	providers := make([]string, 0, len(providerRegistry))
	for providerType := range providerRegistry {
		providers = append(providers, string(providerType))
	}

	return providers
}

// GetProviderInfo returns metadata for a specific provider.
func GetProviderInfo(providerName string) (ProviderInfo, error) {
	info, exists := providerRegistry[ProviderType(providerName)]
	if !exists {
		return ProviderInfo{}, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported provider: %s", providerName)
	}

	return info, nil
}

// GetProviderOptionsSchema returns the JSON schema for ProviderOptions,
// used by callers that render a configuration form.
func GetProviderOptionsSchema() (string, error) {
	//nolint:exhaustruct // empty struct is intentional for schema generation
	schema := jsonschema.Reflect(ProviderOptions{})

	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeUnknown, "failed to marshal provider options schema", err)
	}

	return string(schemaBytes), nil
}

// NewProvider constructs a provider of the given type.
func NewProvider(providerType ProviderType, opts ProviderOptions) (provider.Provider, error) {
	switch providerType {
	case ProviderYahoo:
		return provider.NewYahooClient(opts.Timeout)
	case ProviderPolygon:
		return provider.NewPolygonClient(opts.APIKey)
	case ProviderBinance:
		return provider.NewBinanceClient()
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported provider: %s", providerType)
	}
}
