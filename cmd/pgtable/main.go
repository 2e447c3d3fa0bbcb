package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"pgtable/internal/config"

	// register all backends with the storage factory.
	_ "pgtable/internal/storage/all"
)

// main is the entry point for the pgtable binary. It loads a schema document,
// validates it, and either prints the generated DDL or applies it to the
// configured database.
func main() {
	var (
		cfgPath           string
		dsnFlg            string
		metricsBackendFlg string
		pushGatewayURLFlg string
		statsdAddrFlg     string
		validate          bool
		applyDDL          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/schemas/shop.yaml", "schema document path (.json, .yaml or .yml)")
	flag.StringVar(&dsnFlg, "dsn", "", "database DSN (overrides storage.db.dsn, PGTABLE_DSN and DATABASE_URL)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (pushgateway, datadog, none; env METRICS_BACKEND)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&statsdAddrFlg, "statsd-addr", "", "DogStatsD address (overrides env DD_DOGSTATSD_ADDR)")
	flag.BoolVar(&validate, "validate", false, "validate the schema document and exit")
	flag.BoolVar(&applyDDL, "apply", false, "apply the generated DDL instead of printing it")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	doc, err := config.Load(cfgPath)
	if err != nil {
		fatalf("load config: %v", err)
	}

	issues := config.ValidateDocument(doc)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("Schema document is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Schema document is valid: %v", cfgPath)
		os.Exit(0)
	}

	tables, err := config.BuildTables(doc)
	if err != nil {
		fatalf("build tables: %v", err)
	}

	if !applyDDL {
		if err := render(os.Stdout, tables); err != nil {
			fatalf("render: %v", err)
		}
		return
	}

	flush := setupMetrics(metricsOptions{
		backend:    pickString(metricsBackendFlg, os.Getenv("METRICS_BACKEND")),
		gatewayURL: pickString(pushGatewayURLFlg, os.Getenv("PUSHGATEWAY_URL"), "http://localhost:9091"),
		statsdAddr: pickString(statsdAddrFlg, os.Getenv("DD_DOGSTATSD_ADDR"), "127.0.0.1:8125"),
		job:        pickString(doc.Schema, "pgtable"),
		verbose:    *verbose,
	})
	defer flush()

	ctx := context.Background()
	start := time.Now()

	if dsnFlg != "" {
		doc.Storage.DB.DSN = dsnFlg
	}
	if *verbose {
		log.Printf("apply: schema=%s storage=%s tables=%d", doc.Schema, storageKind(doc), len(tables))
	}

	if err := apply(ctx, doc, tables); err != nil {
		flush()
		log.Fatalf("%v", err)
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
