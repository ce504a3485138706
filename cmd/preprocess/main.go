// Command preprocess cleans a fetched grid GeoJSON file into a CSV and a
// sqlite cache for analysis.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/gridata-nz/population.report/internal/config"
	"github.com/gridata-nz/population.report/internal/preprocess"
	"github.com/gridata-nz/population.report/internal/store"
	"github.com/gridata-nz/population.report/internal/version"
)

func main() {
	configPath := flag.String("config", "", "Path to pipeline config JSON (optional)")
	in := flag.String("in", "", "Input GeoJSON path (overrides config)")
	csvOut := flag.String("csv", "", "Output CSV path (overrides config)")
	dbPath := flag.String("db", "", "Sqlite cache path (overrides config)")
	noCache := flag.Bool("no-cache", false, "Skip writing the sqlite cache")
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

	inputPath := cfg.GetGeoJSONPath()
	if *in != "" {
		inputPath = *in
	}
	csvPath := cfg.GetCSVPath()
	if *csvOut != "" {
		csvPath = *csvOut
	}
	cachePath := cfg.GetCachePath()
	if *dbPath != "" {
		cachePath = *dbPath
	}

	p := preprocess.New(nil)
	res, err := p.Load(inputPath)
	if err != nil {
		log.Fatalf("preprocess failed: %v", err)
	}
	if len(res.Cells) == 0 {
		log.Fatalf("preprocess failed: no usable cells in %s", inputPath)
	}

	if err := p.WriteCSV(csvPath, res.Cells); err != nil {
		log.Fatalf("write csv: %v", err)
	}

	if !*noCache {
		db, err := store.Open(cachePath)
		if err != nil {
			log.Fatalf("open cache: %v", err)
		}
		defer db.Close()
		if err := preprocess.Cache(db, res.Cells); err != nil {
			log.Fatalf("cache cells: %v", err)
		}
	}
}
