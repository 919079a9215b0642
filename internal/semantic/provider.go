package semantic

import (
	"fmt"
	"strings"
	"time"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/mapping"
)

// Provider names accepted by New.
const (
	ProviderNone   = "none"
	ProviderHTTP   = "http"
	ProviderGemini = "gemini"
)

// Options selects and configures a provider.
type Options struct {
	Provider string
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// New returns the suggester named by opts.Provider, or nil for "none" or "".
func New(opts Options) (mapping.Suggester, error) {
	switch strings.ToLower(opts.Provider) {
	case "", ProviderNone:
		return nil, nil
	case ProviderHTTP:
		return NewFunctionClient(opts.Endpoint, opts.APIKey, opts.Timeout), nil
	case ProviderGemini:
		return NewGemini(opts.APIKey, opts.Model), nil
	default:
		return nil, fmt.Errorf("unknown semantic provider %q", opts.Provider)
	}
}
