package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("silo-cli", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", defaultConfigPath(), "path to the protocol TOML configuration")
	if err := global.Parse(args); err != nil {
		return 1
	}
	rest := global.Args()
	if len(rest) == 0 {
		printUsage(stderr)
		return 1
	}
	command, cmdArgs := rest[0], rest[1:]
	handler, ok := commands[command]
	if !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage(stderr)
		return 1
	}
	return handler(*configPath, cmdArgs, stdout, stderr)
}

type commandFunc func(configPath string, args []string, stdout, stderr io.Writer) int

var commands = map[string]commandFunc{
	"deposit":      runDeposit,
	"crates":       runCrates,
	"plan":         runPlan,
	"withdraw":     runWithdraw,
	"convert":      runConvert,
	"fast-forward": runFastForward,
	"seed":         runSeed,
	"export":       runExport,
	"token":        runToken,
}

func defaultConfigPath() string {
	if path := os.Getenv("SILO_CONFIG"); path != "" {
		return path
	}
	return "silo.toml"
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: silo-cli [--config silo.toml] <command> [options]")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  deposit       --account <addr> --token <symbol> --amount <n> --bdv <n> [--gameday <g>]")
	fmt.Fprintln(w, "  crates        --account <addr> --token <symbol>")
	fmt.Fprintln(w, "  plan          --account <addr> --token <symbol> --amount <n> [--recruit <n>]")
	fmt.Fprintln(w, "  withdraw      --account <addr> --token <symbol> --amount <n> [--recruit <n>]")
	fmt.Fprintln(w, "  convert       --account <addr> --from <symbol> --to <symbol> --gameday <g> --amount <n> [--to-amount <n>] [--bdv <n>]")
	fmt.Fprintln(w, "  fast-forward  --gamedays <n>")
	fmt.Fprintln(w, "  seed          --file <seed.yaml>")
	fmt.Fprintln(w, "  export        --format <csv|jsonl|parquet> --out <file> [--account <addr> --token <symbol> --amount <n>]")
	fmt.Fprintln(w, "  token         --subject <name> [--scope silo:admin] [--issuer <iss>] [--audience <aud>] [--ttl 1h]")
}
