package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/raytchel123/raytchel/pkg/flowgraph"
)

var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Check flow definition files for graph consistency",
	Long:  `Validates each YAML flow definition and reports dangling references, missing start nodes and unreachable nodes.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := false
		for _, path := range args {
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			var def seedFlow
			if err := yaml.Unmarshal(raw, &def); err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}

			res := flowgraph.Validate(def.Graph)
			for _, w := range res.Warnings {
				fmt.Printf("%s: warning: %s\n", path, w)
			}
			if !res.Valid {
				failed = true
				for _, e := range res.Errors {
					fmt.Printf("%s: error: %s\n", path, e)
				}
				continue
			}
			fmt.Printf("%s: ok\n", path)
		}
		if failed {
			return fmt.Errorf("validation failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
