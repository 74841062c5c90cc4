package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configFile, _ := cmd.Flags().GetString("config")
			if code := doValidate(configFile, cmd.OutOrStdout(), cmd.ErrOrStderr()); code != 0 {
				return errConfigInvalid
			}
			return nil
		},
	}
}

// doValidate validates configPath and writes the outcome to the provided
// writers. Returns the exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	_, warnings, err := loadConfig(configPath)
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "Configuration valid.")
	return 0
}
