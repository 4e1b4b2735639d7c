package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oriys/rift/internal/config"
	"github.com/oriys/rift/internal/fault"
	"github.com/oriys/rift/internal/proxy"
	"github.com/oriys/rift/internal/scriptpool"
)

func validateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load and compile a config file without starting any server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if _, err := proxy.NewRouter(cfg); err != nil {
				return fmt.Errorf("routing: %w", err)
			}

			for _, rule := range cfg.Rules {
				if _, err := fault.Compile(rule); err != nil {
					return fmt.Errorf("rule %q: %w", rule.ID, err)
				}
			}

			for _, rule := range cfg.ScriptRules {
				engine := rule.Engine
				if engine == "" {
					engine = cfg.ScriptEngine.Engine
				}
				if err := scriptpool.Validate(engine, rule.Script); err != nil {
					return fmt.Errorf("script rule %q: %w", rule.ID, err)
				}
			}

			fmt.Printf("config valid: %d rule(s), %d script rule(s), %d route(s)\n", len(cfg.Rules), len(cfg.ScriptRules), len(cfg.Routing))
			return nil
		},
	}
}
