package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"nullguard/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [configuration]",
	Short: "Validate a check configuration and print its canonical form",
	Long: `Parse a configuration string (a preset such as "standard", a single check
name, or publicApi=<CHECK>:privateApi=<CHECK>[:returnValue=<CHECK>]) and print
its canonical form. Without an argument the configuration in effect is shown:
NULLGUARD_CONFIG, then the project file, then the standard preset.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfig,
}

func init() {
	configCmd.Flags().String("format", "text", "output format (text|json|yaml)")
	configCmd.Flags().String("project", "", "project file (default: nullguard.toml found upwards from the working directory)")
}

// configView is the structured output of the config command.
type configView struct {
	Canonical   string        `json:"canonical" yaml:"canonical"`
	Origin      config.Origin `json:"origin" yaml:"origin"`
	PublicAPI   config.Check  `json:"publicApi" yaml:"publicApi"`
	PrivateAPI  config.Check  `json:"privateApi" yaml:"privateApi"`
	ReturnValue config.Check  `json:"returnValue" yaml:"returnValue"`
}

func runConfig(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}

	var src config.Sources
	if len(args) == 1 {
		src.Flag = args[0]
	} else {
		env, err := config.LoadEnvironment(".")
		if err != nil {
			return err
		}
		src.Env = env.Config
		project, err := loadProject(cmd)
		if err != nil {
			return err
		}
		if project != nil {
			src.Project = project.Config.Instrument.Config
		}
	}
	cfg, origin, err := src.Resolve()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		origin = config.OriginFlag
	}
	return renderConfig(cmd.OutOrStdout(), strings.ToLower(format), cfg, origin)
}

func renderConfig(w io.Writer, format string, cfg config.Configuration, origin config.Origin) error {
	view := configView{
		Canonical:   cfg.String(),
		Origin:      origin,
		PublicAPI:   cfg.PublicAPI,
		PrivateAPI:  cfg.PrivateAPI,
		ReturnValue: cfg.ReturnValue,
	}
	switch format {
	case "text":
		_, err := fmt.Fprintln(w, view.Canonical)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(view); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown format %q (expected text|json|yaml)", format)
}
