package main

import (
	"github.com/spf13/cobra"

	"github.com/hammamikhairi/basil/internal/config"
	"github.com/hammamikhairi/basil/internal/logger"
)

// rootFlags are the global flags. Set flags override the config file.
type rootFlags struct {
	configPath string
	verbose    bool
	quiet      bool
	logFile    string
	noSpeech   bool
	noImages   bool
	recipesDir string
	voice      bool
}

// commandContext loads the configuration once per invocation.
type commandContext struct {
	flags *rootFlags
	cmd   *cobra.Command
	cfg   *config.Config
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, _, _, err := config.Load(c.flags.configPath)
	if err != nil {
		return nil, err
	}
	c.applyFlags(cfg)
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) applyFlags(cfg *config.Config) {
	f := c.flags
	changed := func(name string) bool {
		if c.cmd == nil {
			return false
		}
		fl := c.cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}

	switch {
	case f.quiet:
		cfg.Logging.Level = logger.LevelOff.String()
	case f.verbose:
		cfg.Logging.Level = logger.LevelVerbose.String()
	}
	if changed("log-file") {
		cfg.Logging.File = f.logFile
	}
	if f.noSpeech {
		cfg.Speech.Enabled = false
	}
	if f.noImages {
		cfg.Images.Enabled = false
	}
	if changed("recipes-dir") {
		cfg.Recipes.Dir = f.recipesDir
	}
	if f.voice {
		cfg.Voice.Enabled = true
	}
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}
	ctx := &commandContext{flags: flags}

	rootCmd := &cobra.Command{
		Use:           "basil",
		Short:         "Cook along with a recipe, one timed step at a time",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx.cmd = cmd
			if cmd.Annotations["skipConfigLoad"] == "true" {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCook(cmd.Context(), ctx)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Configuration file path (default basil.toml or $"+config.EnvConfigPath+")")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVarP(&flags.quiet, "quiet", "q", false, "Disable all logging")
	pf.StringVar(&flags.logFile, "log-file", "", "File to write logs to (\"stderr\" logs to the console)")
	pf.BoolVar(&flags.noSpeech, "no-speech", false, "Disable narration")
	pf.BoolVar(&flags.noImages, "no-images", false, "Disable step images")
	pf.StringVar(&flags.recipesDir, "recipes-dir", "", "Directory of extra YAML recipes")
	pf.BoolVar(&flags.voice, "voice", false, "Enable voice commands via local Whisper")

	rootCmd.AddCommand(newCookCommand(ctx))
	rootCmd.AddCommand(newRecipesCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newInitCommand())

	return rootCmd
}
