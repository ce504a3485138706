// Command diagnose checks GeoJSON files for structural problems: parse
// failures, empty geometries and invalid rings. Exit status is non-zero
// when any file fails.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/gridata-nz/population.report/internal/diagnose"
	"github.com/gridata-nz/population.report/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	paths := flag.Args()
	if len(paths) == 0 {
		log.Fatalf("usage: diagnose [flags] <file.geojson> [...]")
	}

	failed := false
	for _, path := range paths {
		rep, err := diagnose.File(nil, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
			continue
		}
		fmt.Print(rep.Summary())
		if !rep.Clean() {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}
