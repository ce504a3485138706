// Package config loads the pipeline configuration from JSON. Fields are
// pointers so a partial config file is safe: the Get* accessors fall back
// to defaults for anything not specified.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gridata-nz/population.report/internal/security"
)

// DefaultConfigPath is the path to the canonical pipeline defaults file,
// the single source of truth for all default parameter values.
const DefaultConfigPath = "config/pipeline.defaults.json"

// PipelineConfig is the root configuration shared by the fetch, preprocess
// and analyze stages.
type PipelineConfig struct {
	// Fetch params
	APIURL       *string `json:"api_url,omitempty"`
	OutputSR     *string `json:"out_sr,omitempty"` // EPSG code for fetched coordinates
	StartOffset  *int    `json:"start_offset,omitempty"`
	TotalRecords *int    `json:"total_records,omitempty"` // 0 = until short page
	PageSize     *int    `json:"page_size,omitempty"`
	MaxPages     *int    `json:"max_pages,omitempty"`
	HTTPTimeout  *string `json:"http_timeout,omitempty"` // duration string like "60s"

	// File locations
	GeoJSONPath *string `json:"geojson_path,omitempty"`
	CSVPath     *string `json:"csv_path,omitempty"`
	CachePath   *string `json:"cache_path,omitempty"` // sqlite cache
	ReportDir   *string `json:"report_dir,omitempty"`

	// Analysis params
	ChunkSize *int `json:"chunk_size,omitempty"`
	TopN      *int `json:"top_n,omitempty"`

	// Geocoding params
	NominatimURL     *string `json:"nominatim_url,omitempty"`
	GeocodeContact   *string `json:"geocode_contact,omitempty"` // contact email for the User-Agent
	GeocodeThrottle  *string `json:"geocode_throttle,omitempty"`
	GeocodePrecision *int    `json:"geocode_precision,omitempty"` // geohash cache key precision

	// LLM params
	LLMURL     *string `json:"llm_url,omitempty"`
	LLMModel   *string `json:"llm_model,omitempty"`
	LLMEnabled *bool   `json:"llm_enabled,omitempty"`
}

// EmptyPipelineConfig returns a config with all fields unset; every
// accessor returns its default.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file. The file must
// have a .json extension and stay under the size cap.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	if err := security.RequireExtension(cleanPath, ".json"); err != nil {
		return nil, err
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyPipelineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical pipeline defaults from
// DefaultConfigPath. It searches from the current directory up through
// common parent directories. Panics if the file cannot be loaded,
// intended for test setup.
func MustLoadDefaultConfig() *PipelineConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadPipelineConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that set values are usable.
func (c *PipelineConfig) Validate() error {
	if c.PageSize != nil && *c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", *c.PageSize)
	}
	if c.StartOffset != nil && *c.StartOffset < 0 {
		return fmt.Errorf("start_offset must be non-negative, got %d", *c.StartOffset)
	}
	if c.TotalRecords != nil && *c.TotalRecords < 0 {
		return fmt.Errorf("total_records must be non-negative, got %d", *c.TotalRecords)
	}
	if c.MaxPages != nil && *c.MaxPages <= 0 {
		return fmt.Errorf("max_pages must be positive, got %d", *c.MaxPages)
	}
	if c.ChunkSize != nil && *c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", *c.ChunkSize)
	}
	if c.TopN != nil && *c.TopN <= 0 {
		return fmt.Errorf("top_n must be positive, got %d", *c.TopN)
	}
	if c.GeocodePrecision != nil && (*c.GeocodePrecision < 1 || *c.GeocodePrecision > 12) {
		return fmt.Errorf("geocode_precision must be between 1 and 12, got %d", *c.GeocodePrecision)
	}
	if c.HTTPTimeout != nil && *c.HTTPTimeout != "" {
		if _, err := time.ParseDuration(*c.HTTPTimeout); err != nil {
			return fmt.Errorf("invalid http_timeout %q: %w", *c.HTTPTimeout, err)
		}
	}
	if c.GeocodeThrottle != nil && *c.GeocodeThrottle != "" {
		if _, err := time.ParseDuration(*c.GeocodeThrottle); err != nil {
			return fmt.Errorf("invalid geocode_throttle %q: %w", *c.GeocodeThrottle, err)
		}
	}
	return nil
}

// GetAPIURL returns the query endpoint for the population grid service.
func (c *PipelineConfig) GetAPIURL() string {
	if c.APIURL == nil {
		return "https://services2.arcgis.com/vKb0s8tBIA3bdocZ/arcgis/rest/services/NZGrid_250m_ERP/FeatureServer/1/query"
	}
	return *c.APIURL
}

// GetOutputSR returns the requested spatial reference EPSG code.
func (c *PipelineConfig) GetOutputSR() string {
	if c.OutputSR == nil {
		return "4326"
	}
	return *c.OutputSR
}

// GetStartOffset returns the global fetch start offset.
func (c *PipelineConfig) GetStartOffset() int {
	if c.StartOffset == nil {
		return 0
	}
	return *c.StartOffset
}

// GetTotalRecords returns the fixed record count to fetch, 0 meaning
// page until the server returns a short page.
func (c *PipelineConfig) GetTotalRecords() int {
	if c.TotalRecords == nil {
		return 0
	}
	return *c.TotalRecords
}

// GetPageSize returns the records-per-request page size.
func (c *PipelineConfig) GetPageSize() int {
	if c.PageSize == nil {
		return 2000
	}
	return *c.PageSize
}

// GetMaxPages returns the safety cap for open-ended fetches.
func (c *PipelineConfig) GetMaxPages() int {
	if c.MaxPages == nil {
		return 1000
	}
	return *c.MaxPages
}

// GetHTTPTimeout returns the per-request timeout.
func (c *PipelineConfig) GetHTTPTimeout() time.Duration {
	if c.HTTPTimeout == nil || *c.HTTPTimeout == "" {
		return 60 * time.Second
	}
	d, err := time.ParseDuration(*c.HTTPTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetGeoJSONPath returns the fetched dataset location.
func (c *PipelineConfig) GetGeoJSONPath() string {
	if c.GeoJSONPath == nil {
		return "data/nz_population.geojson"
	}
	return *c.GeoJSONPath
}

// GetCSVPath returns the cleaned CSV location.
func (c *PipelineConfig) GetCSVPath() string {
	if c.CSVPath == nil {
		return "data/nz_population_preprocessed.csv"
	}
	return *c.CSVPath
}

// GetCachePath returns the sqlite cache location.
func (c *PipelineConfig) GetCachePath() string {
	if c.CachePath == nil {
		return "data/nz_population.db"
	}
	return *c.CachePath
}

// GetReportDir returns the directory reports and charts are written to.
func (c *PipelineConfig) GetReportDir() string {
	if c.ReportDir == nil {
		return "reports"
	}
	return *c.ReportDir
}

// GetChunkSize returns the number of cells per analysis chunk.
func (c *PipelineConfig) GetChunkSize() int {
	if c.ChunkSize == nil {
		return 10000
	}
	return *c.ChunkSize
}

// GetTopN returns how many chunks appear in the ranking charts.
func (c *PipelineConfig) GetTopN() int {
	if c.TopN == nil {
		return 5
	}
	return *c.TopN
}

// GetNominatimURL returns the reverse geocoding endpoint.
func (c *PipelineConfig) GetNominatimURL() string {
	if c.NominatimURL == nil {
		return "https://nominatim.openstreetmap.org/reverse"
	}
	return *c.NominatimURL
}

// GetGeocodeContact returns the contact address advertised to Nominatim.
func (c *PipelineConfig) GetGeocodeContact() string {
	if c.GeocodeContact == nil {
		return "contact@example.com"
	}
	return *c.GeocodeContact
}

// GetGeocodeThrottle returns the minimum delay between geocoding requests.
func (c *PipelineConfig) GetGeocodeThrottle() time.Duration {
	if c.GeocodeThrottle == nil || *c.GeocodeThrottle == "" {
		return time.Second
	}
	d, err := time.ParseDuration(*c.GeocodeThrottle)
	if err != nil {
		return time.Second
	}
	return d
}

// GetGeocodePrecision returns the geohash precision for the geocode cache.
func (c *PipelineConfig) GetGeocodePrecision() int {
	if c.GeocodePrecision == nil {
		return 5
	}
	return *c.GeocodePrecision
}

// GetLLMURL returns the local model chat endpoint.
func (c *PipelineConfig) GetLLMURL() string {
	if c.LLMURL == nil {
		return "http://localhost:11434/api/chat"
	}
	return *c.LLMURL
}

// GetLLMModel returns the model name used for narrative text.
func (c *PipelineConfig) GetLLMModel() string {
	if c.LLMModel == nil {
		return "llama2"
	}
	return *c.LLMModel
}

// GetLLMEnabled reports whether LLM narrative generation is on.
func (c *PipelineConfig) GetLLMEnabled() bool {
	if c.LLMEnabled == nil {
		return false
	}
	return *c.LLMEnabled
}
