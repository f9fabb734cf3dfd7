package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/watchtower/internal/config"
)

// NewValidateCmd creates the validate command.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate watchtower.yaml without connecting to any backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(".")
			if err != nil {
				return err
			}

			registry := newRegistry()
			for _, det := range cfg.Detectors {
				if _, ok := registry.GroupType(det.Type); !ok {
					return fmt.Errorf("detector %d: unknown type %q", det.ID, det.Type)
				}
				if det.ConditionGroup == nil || len(det.ConditionGroup.Conditions) == 0 {
					color.Yellow("detector %d has no conditions and will never trigger", det.ID)
				}
			}

			color.Green("configuration OK: %d detectors, %d workflows",
				len(cfg.Detectors), len(cfg.Workflows))
			return nil
		},
	}
}
