/*
Package cli provides helpers shared by the throttle commands.

Output Formatting:

Commands print their results as text, JSON or YAML:

	format, err := cli.ParseFormat(flagValue)
	if err != nil {
		return err
	}
	if err := cli.NewFormatter(format).FormatTo(os.Stdout, result); err != nil {
		return err
	}

Values that implement TextRenderer control their own text output, which
is how policy tables and simulation traces are printed as aligned columns.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

Errors:

ConfigError and CommandError carry enough context for the user, and
ExitCode maps them to the process exit status.
*/
package cli
