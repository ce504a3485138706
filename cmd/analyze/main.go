// Command analyze computes chunk metrics over the cached grid, gathers
// geocoded labels and model narrative, and generates the report
// artifacts (charts, dashboard, PDF).
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

	"github.com/gridata-nz/population.report/internal/analyze"
	"github.com/gridata-nz/population.report/internal/config"
	"github.com/gridata-nz/population.report/internal/geocode"
	"github.com/gridata-nz/population.report/internal/httputil"
	"github.com/gridata-nz/population.report/internal/llm"
	"github.com/gridata-nz/population.report/internal/report"
	"github.com/gridata-nz/population.report/internal/store"
	"github.com/gridata-nz/population.report/internal/version"
)

func main() {
	configPath := flag.String("config", "", "Path to pipeline config JSON (optional)")
	dbPath := flag.String("db", "", "Sqlite cache path (overrides config)")
	reportDir := flag.String("report-dir", "", "Report output directory (overrides config)")
	chunkSize := flag.Int("chunk-size", 0, "Cells per chunk (overrides config)")
	llmEnabled := flag.Bool("llm", false, "Enable model narrative generation")
	noGeocode := flag.Bool("no-geocode", false, "Label chunks by coordinate instead of geocoding")
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

	cachePath := cfg.GetCachePath()
	if *dbPath != "" {
		cachePath = *dbPath
	}
	outDir := cfg.GetReportDir()
	if *reportDir != "" {
		outDir = *reportDir
	}

	db, err := store.Open(cachePath)
	if err != nil {
		log.Fatalf("open cache: %v", err)
	}
	defer db.Close()

	cells, err := db.Cells()
	if err != nil {
		log.Fatalf("load cells: %v", err)
	}
	if len(cells) == 0 {
		log.Fatalf("cache %s is empty; run preprocess first", cachePath)
	}

	httpClient := httputil.NewStandardClient(&http.Client{Timeout: cfg.GetHTTPTimeout()})

	var geocoder analyze.Geocoder
	if !*noGeocode {
		gc := geocode.New(httpClient, nil)
		gc.BaseURL = cfg.GetNominatimURL()
		gc.Contact = cfg.GetGeocodeContact()
		gc.Throttle = cfg.GetGeocodeThrottle()
		gc.Precision = cfg.GetGeocodePrecision()
		geocoder = gc
	}

	var model llm.Client = llm.DisabledClient{}
	if *llmEnabled || cfg.GetLLMEnabled() {
		model = llm.NewOllamaClient(httpClient, cfg.GetLLMURL(), cfg.GetLLMModel())
	}

	a := analyze.New(geocoder, model)
	a.ChunkSize = cfg.GetChunkSize()
	a.TopN = cfg.GetTopN()
	if *chunkSize > 0 {
		a.ChunkSize = *chunkSize
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := a.Run(ctx, cells)
	if err != nil {
		log.Fatalf("analysis failed: %v", err)
	}

	gen := report.NewGenerator(outDir)
	gen.DB = db
	run, err := gen.Generate(res, cells)
	if err != nil {
		log.Fatalf("report generation failed: %v", err)
	}
	fmt.Printf("Report generated: %s\n", run.PDFPath)
}
