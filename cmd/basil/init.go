package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hammamikhairi/basil/internal/config"
)

func newInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				target = config.DefaultPath
			}
			if err := config.CreateSample(target); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintf(out, "Put provider keys in .env or export %s, %s, %s.\n",
				config.EnvGeminiKey, config.EnvOpenAIKey, config.EnvAzureSpeechKey)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	return cmd
}
