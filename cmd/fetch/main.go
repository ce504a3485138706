// Command fetch pages through the NZ 250m grid population FeatureServer
// and writes the accumulated features as one GeoJSON file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gridata-nz/population.report/internal/config"
	"github.com/gridata-nz/population.report/internal/fetch"
	"github.com/gridata-nz/population.report/internal/httputil"
	"github.com/gridata-nz/population.report/internal/version"
)

func main() {
	configPath := flag.String("config", "", "Path to pipeline config JSON (optional)")
	apiURL := flag.String("url", "", "Query endpoint (overrides config)")
	out := flag.String("out", "", "Output GeoJSON path (overrides config)")
	offset := flag.Int("offset", -1, "Global start offset (overrides config)")
	total := flag.Int("total", -1, "Total records to fetch, 0 pages until a short page (overrides config)")
	pageSize := flag.Int("page-size", 0, "Records per request (overrides config)")
	maxPages := flag.Int("max-pages", 0, "Safety cap on pages for open-ended fetches (overrides config)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg := config.EmptyPipelineConfig()
	if *configPath != "" {
		loaded, err := config.LoadPipelineConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	pager := fetch.NewPager(cfg.GetAPIURL())
	pager.Client = httputil.NewStandardClient(&http.Client{Timeout: cfg.GetHTTPTimeout()})
	pager.Query.OutSR = cfg.GetOutputSR()
	pager.StartOffset = cfg.GetStartOffset()
	pager.TotalRecords = cfg.GetTotalRecords()
	pager.PageSize = cfg.GetPageSize()
	pager.MaxPages = cfg.GetMaxPages()

	if *apiURL != "" {
		pager.BaseURL = *apiURL
	}
	if *offset >= 0 {
		pager.StartOffset = *offset
	}
	if *total >= 0 {
		pager.TotalRecords = *total
	}
	if *pageSize > 0 {
		pager.PageSize = *pageSize
	}
	if *maxPages > 0 {
		pager.MaxPages = *maxPages
	}

	outputPath := cfg.GetGeoJSONPath()
	if *out != "" {
		outputPath = *out
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := pager.Run(ctx, outputPath); err != nil {
		log.Fatalf("fetch failed: %v", err)
	}
}
