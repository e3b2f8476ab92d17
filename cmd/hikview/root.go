package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hikforensics/hikview/internal/applog"
	"github.com/hikforensics/hikview/internal/config"
)

var cmdLog = applog.New("hikview/cmd")

type globalFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "hikview",
		Short: "Forensic reader for Hikvision DVR disk images",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.verbose {
				applog.SetVerbose()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "hikview.yaml", "optional YAML file with default image/output_dir/extra_offset values")
	root.PersistentFlags().BoolVar(&flags.verbose, "verbose", false, "enable debug-level logging")

	root.AddCommand(newMasterCmd(flags))
	root.AddCommand(newHikbtreeCmd(flags))
	root.AddCommand(newLogsCmd(flags))
	root.AddCommand(newExtractCmd(flags))

	return root
}

func loadDefaults(flags *globalFlags) *config.Defaults {
	defaults, err := config.Load(flags.configPath)
	if err != nil {
		cmdLog.Warningf(nil, "ignoring config file %s: %v", flags.configPath, err)
		return &config.Defaults{}
	}
	return defaults
}

// writeDoc prints a single completion document to stdout as one JSON line,
// the progress-reporting contract every subcommand shares.
func writeDoc(doc any) error {
	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(doc)
}

// writeErrorDoc prints the single-line JSON error record the spec requires
// on any fatal failure.
func writeErrorDoc(err error) error {
	_ = json.NewEncoder(os.Stdout).Encode(map[string]string{
		"type":    "error",
		"message": err.Error(),
	})
	return fmt.Errorf("%w", err)
}

// writeJSONFile marshals doc as indented JSON to path.
func writeJSONFile(path string, doc any) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling output document: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
