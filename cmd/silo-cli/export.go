package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"hooliganhorde/integrations/exports"
)

func runExport(configPath string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("export", stderr)
	format := fs.String("format", "csv", "export format: csv, jsonl or parquet")
	out := fs.String("out", "", "output file (stdout when empty, not allowed for parquet)")
	flags := registerPlanFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	ws, err := openWorkspace(configPath)
	if err != nil {
		return fail(stderr, err)
	}
	defer ws.Close()

	var (
		data     []byte
		checksum string
	)
	switch strings.ToLower(*format) {
	case "csv", "jsonl":
		if !flags.complete() {
			fmt.Fprintln(stderr, "Error: plan exports require --account, --token and --amount")
			return 1
		}
		_, plan, err := flags.build(ws)
		if err != nil {
			return fail(stderr, err)
		}
		if strings.ToLower(*format) == "csv" {
			data, checksum, err = exports.PlanCSV(plan)
		} else {
			data, checksum, err = exports.PlanJSONL(plan)
		}
		if err != nil {
			return fail(stderr, err)
		}
	case "parquet":
		if *out == "" {
			fmt.Fprintln(stderr, "Error: parquet exports require --out")
			return 1
		}
		data, checksum, err = exports.CratesParquet(ws.silo.Ledgers(), ws.silo.Model(), ws.clock.Current())
		if err != nil {
			return fail(stderr, err)
		}
	default:
		fmt.Fprintf(stderr, "Error: unsupported format %q\n", *format)
		return 1
	}

	if *out == "" {
		_, _ = stdout.Write(data)
		return 0
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintf(stdout, "wrote %d bytes to %s (sha256 %s)\n", len(data), *out, checksum)
	return 0
}
