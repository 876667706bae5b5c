// Command field-codec converts between text and ledger field literals, and normalizes ledger
// value literals to JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/cloudx-io/auctionview/fieldcodec"
	"github.com/cloudx-io/auctionview/ledgerapi/parsing"
)

// plainTextHandler writes bare messages without timestamps or levels, for CLI output.
type plainTextHandler struct {
	w io.Writer
}

func (*plainTextHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *plainTextHandler) Handle(_ context.Context, r slog.Record) error {
	_, err := fmt.Fprintln(h.w, r.Message)
	return err
}

func (h *plainTextHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

func (h *plainTextHandler) WithGroup(_ string) slog.Handler {
	return h
}

// Exit codes.
const (
	exitOK      = 0
	exitUsage   = 1
	exitFailure = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	out := slog.New(&plainTextHandler{w: stdout})

	var (
		slots  int
		format string
	)
	flagSet := pflag.NewFlagSet("field-codec", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.IntVar(&slots, "slots", 1, "number of fields to pack text into (encode)")
	flagSet.StringVar(&format, "format", "text", "output format: text or json")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			showUsage(slog.New(&plainTextHandler{w: stderr}))
			return exitOK
		}
		return exitUsage
	}
	if format != "text" && format != "json" {
		fmt.Fprintf(stderr, "Error: unknown format %q\n", format)
		return exitUsage
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		showUsage(slog.New(&plainTextHandler{w: stderr}))
		return exitUsage
	}

	var (
		result any
		err    error
	)
	switch cmd, operands := rest[0], rest[1:]; cmd {
	case "encode":
		if len(operands) != 1 {
			fmt.Fprintln(stderr, "Error: encode takes exactly one text argument")
			return exitUsage
		}
		result, err = fieldcodec.EncodeTextToLiterals(operands[0], slots)
	case "decode":
		if len(operands) == 0 {
			fmt.Fprintln(stderr, "Error: decode takes one or more field literals")
			return exitUsage
		}
		result, err = fieldcodec.DecodeLiteralsToText(splitLiterals(operands))
	case "parse":
		if len(operands) != 1 {
			fmt.Fprintln(stderr, "Error: parse takes exactly one ledger literal")
			return exitUsage
		}
		var v any
		v, err = parsing.ParseLedgerValue(operands[0])
		result = parsing.StripVisibilityTags(v)
		format = "json"
	case "random-field":
		result = fieldcodec.RandomField(nil)
	case "random-scalar":
		result = fieldcodec.RandomScalar(nil)
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n", cmd)
		return exitUsage
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	if format == "json" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Fprintf(stderr, "Error marshaling JSON: %v\n", err)
			return exitFailure
		}
		out.Info(string(data))
		return exitOK
	}
	switch v := result.(type) {
	case []string:
		out.Info(strings.Join(v, "\n"))
	default:
		out.Info(fmt.Sprint(v))
	}
	return exitOK
}

// splitLiterals accepts literals as separate arguments or as one array literal.
func splitLiterals(args []string) []string {
	var out []string
	for _, arg := range args {
		arg = strings.Trim(strings.TrimSpace(arg), "[]")
		for _, part := range strings.Split(arg, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func showUsage(logger *slog.Logger) {
	logger.Info("Ledger field codec")
	logger.Info("")
	logger.Info("Usage:")
	logger.Info("  field-codec [flags] encode <text>")
	logger.Info("  field-codec [flags] decode <field>... | '[<field>, ...]'")
	logger.Info("  field-codec parse '<ledger literal>'")
	logger.Info("  field-codec random-field | random-scalar")
	logger.Info("")
	logger.Info("Flags:")
	logger.Info("  --slots <n>                       Fields to pack text into (default: 1)")
	logger.Info("  --format <text|json>              Output format (default: text)")
	logger.Info("")
	logger.Info("Examples:")
	logger.Info("  field-codec encode Hello")
	logger.Info("  field-codec --slots 4 encode https://example.com/item.json")
	logger.Info("  field-codec decode 478560413000field")
	logger.Info("  field-codec parse '{ amount: 5u64.private, auction_id: 1field.public }'")
	logger.Info("")
	logger.Info("Exit Codes:")
	logger.Info("  0 - Success")
	logger.Info("  1 - Invalid usage")
	logger.Info("  2 - Conversion failed")
}
