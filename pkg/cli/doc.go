/*
Package cli provides helpers shared by the metering command.

Output Formatting:

Command results are rendered as text, JSON, YAML or CSV. Values that
implement Table are rendered as aligned columns in text mode and as rows in
CSV mode:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, summary); err != nil {
		return err
	}

Progress Reporting:

Bulk imports report progress on stderr:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(int64(len(events)))
	for i, ev := range events {
		// record ev
		progress.Update(int64(i + 1))
	}
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()
*/
package cli
