// Command lwm2m-log is a tool for viewing and analyzing LwM2M protocol captures.
//
// Captures are written by lwm2m-device when started with -protocol-log.
//
// Usage:
//
//	lwm2m-log <command> [flags] <file.cbor>
//
// Commands:
//
//	view     View capture in human-readable format
//	export   Export capture to JSONL or CSV format
//	filter   Filter capture and write to new file
//	stats    Show statistics about the capture
//
// Examples:
//
//	# View all events
//	lwm2m-log view device.cbor
//
//	# View only decoded CoAP messages for the temperature object
//	lwm2m-log view -layer wire -path /3303 device.cbor
//
//	# Export to CSV
//	lwm2m-log export -format csv -o device.csv device.cbor
//
//	# Filter by connection and save to new file
//	lwm2m-log filter -conn-id abc12345 -o filtered.cbor device.cbor
//
//	# Show statistics
//	lwm2m-log stats device.cbor
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mash-protocol/lwm2m-go/cmd/lwm2m-log/commands"
)

const usage = `lwm2m-log - LwM2M Protocol Capture Analyzer

Usage:
  lwm2m-log <command> [flags] <file.cbor>

Commands:
  view     View capture in human-readable format
  export   Export capture to JSONL or CSV format
  filter   Filter capture and write to new file
  stats    Show statistics about the capture

Use "lwm2m-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// parseFile parses args and returns the capture path argument.
func parseFile(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func subcommandUsage(fs *flag.FlagSet, header string) func() {
	return func() {
		fmt.Fprint(os.Stderr, header)
		fs.PrintDefaults()
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = subcommandUsage(fs, `lwm2m-log view - View capture in human-readable format

Usage:
  lwm2m-log view [flags] <file.cbor>

Flags:
`)

	layer := fs.String("layer", "", "Filter by layer (transport, wire, service)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (message, state, error)")
	pathPrefix := fs.String("path", "", "Filter messages by URI path prefix")

	path := parseFile(fs, args)

	filter := commands.ViewFilter{PathPrefix: *pathPrefix}
	if *layer != "" {
		l, err := commands.ParseLayerFlag(*layer)
		if err != nil {
			fail(err)
		}
		filter.Layer = &l
	}
	if *direction != "" {
		d, err := commands.ParseDirectionFlag(*direction)
		if err != nil {
			fail(err)
		}
		filter.Direction = &d
	}
	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fail(err)
		}
		filter.Category = &c
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = subcommandUsage(fs, `lwm2m-log export - Export capture to JSONL or CSV format

Usage:
  lwm2m-log export [flags] <file.cbor>

Flags:
`)

	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	path := parseFile(fs, args)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = subcommandUsage(fs, `lwm2m-log filter - Filter capture and write to new file

Usage:
  lwm2m-log filter [flags] <file.cbor>

Flags:
`)

	output := fs.String("o", "", "Output file (required)")
	connID := fs.String("conn-id", "", "Filter by connection ID")
	endpoint := fs.String("endpoint", "", "Filter by client endpoint name")
	pathPrefix := fs.String("path", "", "Filter messages by URI path prefix")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")
	layer := fs.String("layer", "", "Filter by layer (transport, wire, service)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (message, state, error)")

	path := parseFile(fs, args)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	opts := commands.FilterOptions{
		Output:     *output,
		ConnID:     *connID,
		Endpoint:   *endpoint,
		PathPrefix: *pathPrefix,
		TimeStart:  *timeStart,
		TimeEnd:    *timeEnd,
		Layer:      *layer,
		Direction:  *direction,
		Category:   *category,
	}

	n, err := commands.RunFilter(path, opts)
	if err != nil {
		fail(err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %d events to %s\n", n, *output)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = subcommandUsage(fs, `lwm2m-log stats - Show statistics about the capture

Usage:
  lwm2m-log stats <file.cbor>

`)

	path := parseFile(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
