// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "curation-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// Institution identifies a member institution of the repository. Registry
// affiliations are matched against its name, ROR id, and keywords.
type Institution struct {
	// Name is the display name as it appears in OpenAlex.
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// Acronym is the short label shown to curators (e.g. "PSI").
	Acronym string `json:"acronym" yaml:"acronym" mapstructure:"acronym"`

	// ROR is the Research Organization Registry URL.
	ROR string `json:"ror,omitempty" yaml:"ror,omitempty" mapstructure:"ror"`

	// Keywords are lowercase substrings matched against free-text affiliations.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty" mapstructure:"keywords"`
}

// RegistryConfig holds settings for the bibliographic registry clients.
type RegistryConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Email is the contact address sent to Unpaywall (mandatory there) and
	// to OpenAlex for polite-pool access. OpenAlex enrichment is skipped
	// when it is empty.
	Email string `json:"email" yaml:"email" mapstructure:"email"`

	// RateLimit caps outgoing registry requests per second (0 disables).
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`

	// Institutions lists the member institutions used for affiliation checks.
	Institutions []Institution `json:"institutions" yaml:"institutions" mapstructure:"institutions"`
}

// AnalyzerConfig holds settings for the remote PDF analysis service.
type AnalyzerConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Endpoint is the URL accepting multipart uploads of "file" or "pdf_url".
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`

	// MaxRetries bounds retries on HTTP 429 (0 uses the httputil default).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// AcquisitionConfig holds settings for the PDF acquisition chain.
type AcquisitionConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// LoadTimeout caps the wait for a freshly opened tab to finish loading.
	// Reaching it is not an error; extraction proceeds anyway.
	LoadTimeout time.Duration `json:"load_timeout" yaml:"load_timeout" mapstructure:"load_timeout"`

	// SettleDelay is waited after load so in-page PDF viewers can initialize.
	SettleDelay time.Duration `json:"settle_delay" yaml:"settle_delay" mapstructure:"settle_delay"`

	// ViewerTimeout caps the in-tab poll for a ready PDF viewer document.
	ViewerTimeout time.Duration `json:"viewer_timeout" yaml:"viewer_timeout" mapstructure:"viewer_timeout"`

	// ViewerPollInterval is the interval between viewer readiness checks.
	ViewerPollInterval time.Duration `json:"viewer_poll_interval" yaml:"viewer_poll_interval" mapstructure:"viewer_poll_interval"`

	// MinTabPDFSize is the smallest byte count accepted from a tab.
	MinTabPDFSize int `json:"min_tab_pdf_size" yaml:"min_tab_pdf_size" mapstructure:"min_tab_pdf_size"`

	// MinNetworkPDFSize is the smallest byte count accepted from a direct fetch.
	MinNetworkPDFSize int `json:"min_network_pdf_size" yaml:"min_network_pdf_size" mapstructure:"min_network_pdf_size"`
}

// BrowserConfig selects the Chrome instance driven over the DevTools protocol.
type BrowserConfig struct {
	// ControlURL is the DevTools websocket URL of a running browser.
	ControlURL string `json:"control_url" yaml:"control_url" mapstructure:"control_url"`

	// Launch starts a local browser when ControlURL is empty.
	Launch bool `json:"launch" yaml:"launch" mapstructure:"launch"`

	// Headless applies to launched browsers only.
	Headless bool `json:"headless" yaml:"headless" mapstructure:"headless"`
}

// ServerConfig holds settings for the RPC endpoint.
type ServerConfig struct {
	// Addr is the listen address (e.g. "127.0.0.1:8765").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// RequestTimeout bounds a single RPC request, including acquisition.
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout" mapstructure:"request_timeout"`

	// AllowedOrigins lists page origins allowed to call the endpoint from
	// a browser. "*" allows any origin.
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// SearchConfig points at the repository search index used for
// autocomplete suggestions.
type SearchConfig struct {
	// BaseURL is the index's select endpoint.
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Limit caps the number of suggestions per query.
	Limit int `json:"limit" yaml:"limit" mapstructure:"limit"`
}

// SettingsConfig locates the persistent settings store.
type SettingsConfig struct {
	// Path is the SQLite database file.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// EngineConfig groups all component configurations.
type EngineConfig struct {
	Registry    RegistryConfig    `json:"registry" yaml:"registry" mapstructure:"registry"`
	Analyzer    AnalyzerConfig    `json:"analyzer" yaml:"analyzer" mapstructure:"analyzer"`
	Acquisition AcquisitionConfig `json:"acquisition" yaml:"acquisition" mapstructure:"acquisition"`
	Browser     BrowserConfig     `json:"browser" yaml:"browser" mapstructure:"browser"`
	Server      ServerConfig      `json:"server" yaml:"server" mapstructure:"server"`
	Settings    SettingsConfig    `json:"settings" yaml:"settings" mapstructure:"settings"`
	Search      SearchConfig      `json:"search" yaml:"search" mapstructure:"search"`
}

// DefaultUserAgent is sent when no User-Agent is configured.
const DefaultUserAgent = "curation-engine/0.1"

// DefaultInstitutions are the Lib4Ri member institutes.
var DefaultInstitutions = []Institution{
	{Name: "Paul Scherrer Institute", Acronym: "PSI", ROR: "https://ror.org/0207ad741", Keywords: []string{"paul scherrer", "psi"}},
	{Name: "Swiss Federal Institute of Aquatic Science and Technology", Acronym: "Eawag", ROR: "https://ror.org/02j624c96", Keywords: []string{"eawag"}},
	{Name: "Swiss Federal Laboratories for Materials Science and Technology", Acronym: "Empa", ROR: "https://ror.org/0335b2t11", Keywords: []string{"empa"}},
	{Name: "Swiss Federal Institute for Forest, Snow and Landscape Research", Acronym: "WSL", ROR: "https://ror.org/02d765t03", Keywords: []string{"wsl", "forest, snow and landscape"}},
}

// DefaultEngineConfig returns the configuration used when no file or
// environment overrides are present.
func DefaultEngineConfig() EngineConfig {
	base := HTTPConfig{Timeout: 30 * time.Second, UserAgent: DefaultUserAgent}
	return EngineConfig{
		Registry: RegistryConfig{
			HTTPConfig:   base,
			RateLimit:    10,
			Institutions: DefaultInstitutions,
		},
		Analyzer: AnalyzerConfig{
			HTTPConfig: HTTPConfig{Timeout: 3 * time.Minute, UserAgent: DefaultUserAgent},
			Endpoint:   "https://andrehoffmann80-pdf-analyzer.hf.space/analyze",
			MaxRetries: 3,
		},
		Acquisition: AcquisitionConfig{
			HTTPConfig:         HTTPConfig{Timeout: 60 * time.Second, UserAgent: DefaultUserAgent},
			LoadTimeout:        15 * time.Second,
			SettleDelay:        2 * time.Second,
			ViewerTimeout:      5 * time.Second,
			ViewerPollInterval: 100 * time.Millisecond,
			MinTabPDFSize:      1000,
			MinNetworkPDFSize:  2000,
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8765",
			RequestTimeout: 5 * time.Minute,
		},
		Search: SearchConfig{Limit: 10},
	}
}
