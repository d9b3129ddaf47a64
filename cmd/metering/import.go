package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/metering/pkg/cli"
	"mercator-hq/metering/pkg/metering/actor"
	"mercator-hq/metering/pkg/metering/usage"
)

var importFlags struct {
	file string
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Record usage events from a JSON lines file",
	Long: `Record usage events read from a file with one JSON object per line:

  {"actor":"u1","kind":"user","app":"chat","usage_type":"openai:gpt-4o:prompt-tokens","quantity":1200}
  {"actor":"u1","usage_type":"acme:ocr:pages","quantity":3,"cost":450}

Invalid lines are reported and skipped. The command fails if any line
could not be recorded.

Examples:
  metering import --file usage.jsonl
  cat usage.jsonl | metering import --file -`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importFlags.file, "file", "f", "", "events file, - for stdin (required)")
	_ = importCmd.MarkFlagRequired("file")
}

// importLine is one event in an import file.
type importLine struct {
	Actor     string  `json:"actor"`
	Kind      string  `json:"kind"`
	App       string  `json:"app"`
	UsageType string  `json:"usage_type"`
	Quantity  float64 `json:"quantity"`
	Cost      *int64  `json:"cost"`
}

func (l importLine) event() (usage.Event, error) {
	who := actor.Global
	if l.Actor != actor.GlobalKey {
		kind, err := actor.ParseKind(l.Kind)
		if err != nil {
			return usage.Event{}, err
		}
		who = actor.Actor{ID: l.Actor, Kind: kind}
	}
	return usage.Event{
		Actor:        who,
		AppKey:       l.App,
		UsageType:    l.UsageType,
		Quantity:     l.Quantity,
		CostOverride: l.Cost,
	}, nil
}

// readEvents parses r. Malformed lines are returned as errors alongside the
// events that did parse.
func readEvents(r io.Reader) ([]usage.Event, []error, error) {
	var (
		events []usage.Event
		errs   []error
	)
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var l importLine
		if err := json.Unmarshal(raw, &l); err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		ev, err := l.event()
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, errs, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if importFlags.file != "-" {
		f, err := os.Open(importFlags.file)
		if err != nil {
			return cli.NewCommandError("import", err)
		}
		defer f.Close()
		in = f
	}

	events, parseErrs, err := readEvents(in)
	if err != nil {
		return cli.NewCommandError("import", err)
	}

	ctx := cmd.Context()
	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	progress := cli.NewProgressReporter(cmd.ErrOrStderr())
	for _, perr := range parseErrs {
		progress.Error(perr)
	}
	progress.Start(int64(len(events)))

	failed := len(parseErrs)
	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			return cli.NewCommandError("import", err)
		}
		if _, err := eng.Record(ctx, ev); err != nil {
			progress.Error(fmt.Errorf("event %d (%s): %w", i+1, ev.Actor, err))
			failed++
		}
		progress.Update(int64(i + 1))
	}
	progress.Finish()

	if failed > 0 {
		return cli.NewCommandError("import", fmt.Errorf("%d of %d events not recorded", failed, len(events)+len(parseErrs)))
	}
	return nil
}
