package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/pricerelay/pkg/cli"
	"mercator-hq/pricerelay/pkg/config"
)

var validateFlags struct {
	env bool
}

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a configuration file",
	Long: `Load a configuration file, apply defaults and report every invalid field.

The file defaults to --config. With --env, PRICERELAY_* environment overrides
are applied before validation, as the other commands do.

Examples:
  pricerelay validate relay.yaml
  PRICERELAY_UPSTREAM_BASE_URL=ftp://x pricerelay validate relay.yaml --env`,
	Args: cobra.MaximumNArgs(1),
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.env, "env", false, "apply environment overrides before validating")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return cli.NewConfigError("", "no configuration file given")
	}

	var err error
	if validateFlags.env {
		_, err = config.LoadConfigWithEnvOverrides(path)
	} else {
		_, err = config.LoadConfig(path)
	}

	out := cmd.OutOrStdout()
	if err == nil {
		fmt.Fprintf(out, "✓ %s is valid\n", path)
		return nil
	}

	var verr config.ValidationError
	if !errors.As(err, &verr) {
		return cli.NewConfigError("", err.Error())
	}

	fmt.Fprintf(out, "✗ %s has %d invalid field(s):\n", path, len(verr.Errors))
	for _, fe := range verr.Errors {
		fmt.Fprintf(out, "  - %s: %s\n", fe.Field, fe.Message)
	}
	return cli.NewConfigError("", fmt.Sprintf("%s is invalid", path))
}
