package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/pavelength/pavelength/internal/dataset"
	"github.com/pavelength/pavelength/internal/llm"
	"github.com/pavelength/pavelength/internal/loader"
	"github.com/pavelength/pavelength/internal/mapping"
	"github.com/pavelength/pavelength/internal/schema"
)

var (
	archivePath = flag.String("archive", "", "Path to a zipped shapefile (required)")
	sampleRows  = flag.Int("sample", 5, "Number of sample rows to print")
	suggest     = flag.Bool("suggest", false, "Ask the configured language model for a column mapping")
	schemaFile  = flag.String("schema", os.Getenv("SCHEMA_FILE"), "Alternative field registry YAML")
)

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *archivePath == "" {
		fatalf("--archive is required")
	}

	reg := schema.Default()
	if *schemaFile != "" {
		r, err := schema.Load(*schemaFile)
		if err != nil {
			fatalf("schema: %v", err)
		}
		reg = r
	}

	res, err := loader.Loader{}.LoadFile(*archivePath)
	if err != nil {
		fatalf("%v", err)
	}
	ds := res.Dataset

	fmt.Printf("Shapefile:      %s\n", res.Shapefile)
	fmt.Printf("Rows:           %d\n", ds.Len())
	fmt.Printf("Duplicate rows: %d\n", ds.DuplicateRows())
	fmt.Printf("Projection:     %s\n", abbrev(ds.Projection()))
	fmt.Printf("Columns:        %s\n", strings.Join(ds.Columns(), ", "))
	for _, w := range res.Warnings {
		fmt.Printf("Warning:        %s\n", w)
	}

	if *sampleRows > 0 {
		fmt.Println()
		printSample(ds, *sampleRows)
	}

	if !*suggest {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, err := llm.NewProvider(ctx, llm.LoadFromEnv())
	if err != nil {
		fatalf("llm: %v", err)
	}
	defer client.Close()

	s, err := mapping.NewResolver(client, reg).Suggest(ctx, ds.Columns())
	if err != nil {
		fmt.Fprintf(os.Stderr, "No suggestion: %v\n", err)
	}
	out, _ := json.MarshalIndent(s, "", "  ")
	fmt.Printf("\nSuggested mapping:\n%s\n", out)

	if _, ok := s[reg.Mandatory()]; !ok {
		fmt.Printf("Mandatory field %q was not suggested and must be mapped by hand.\n", reg.Mandatory())
	}
}

func printSample(ds *dataset.Dataset, n int) {
	cols := ds.Columns()
	fmt.Println(strings.Join(cols, "\t"))
	for _, rec := range ds.Sample(n) {
		vals := make([]string, len(cols))
		for i, c := range cols {
			vals[i] = rec.Get(c).String()
		}
		fmt.Println(strings.Join(vals, "\t"))
	}
}

func abbrev(s string) string {
	if s == "" {
		return "(none)"
	}
	if len(s) > 80 {
		return s[:77] + "..."
	}
	return s
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
