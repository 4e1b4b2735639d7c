package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oriys/rift/internal/analysis"
	"github.com/oriys/rift/internal/domain"
)

func lintStubsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint-stubs <file>",
		Short: "Run stub-set diagnostics over an imposter JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			var imp domain.Imposter
			if err := json.Unmarshal(data, &imp); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			warnings := analysis.Analyze(imp.Stubs())
			if len(warnings) == 0 {
				fmt.Println("no warnings")
				return nil
			}
			for _, w := range warnings {
				fmt.Printf("[%s] stub %d: %s\n", w.Kind, w.StubIndex, w.Message)
			}
			return nil
		},
	}
	return cmd
}
