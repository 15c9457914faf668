/*
Package cli holds helpers shared by the pricerelay subcommands.

Output formatting writes command results as aligned text, JSON or CSV.
Tabular values print as columns in text and CSV and as themselves in JSON:

	format, err := cli.ParseOutputFormat(flagFormat)
	if err != nil {
		return cli.NewConfigError("--format", err.Error())
	}
	return cli.NewFormatter(format).FormatTo(os.Stdout, sessions)

Signal handling cancels a context on SIGINT or SIGTERM:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

ExitCode maps a command error to the process exit status: 2 for
configuration errors, 1 for everything else.
*/
package cli
