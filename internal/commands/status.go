package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/watchtower/internal/config"
	ddbstore "github.com/dwsmith1983/watchtower/internal/store/dynamodb"
	"github.com/dwsmith1983/watchtower/pkg/types"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	var detectorID int64

	cmd := &cobra.Command{
		Use:   "status [detector-id]",
		Short: "Show detector trigger state per group",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid detector id %q", args[0])
				}
				detectorID = id
			}
			return runStatus(detectorID)
		},
	}
	return cmd
}

func runStatus(detectorID int64) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	rows, err := ddbstore.New(cfg.DynamoDB)
	if err != nil {
		return fmt.Errorf("creating DynamoDB store: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := rows.Ping(ctx); err != nil {
		return fmt.Errorf("connecting to DynamoDB: %w", err)
	}

	for _, det := range cfg.Detectors {
		if detectorID != 0 && det.ID != detectorID {
			continue
		}
		if err := showDetector(ctx, rows, det); err != nil {
			return err
		}
	}
	return nil
}

func showDetector(ctx context.Context, rows *ddbstore.RowStore, det types.Detector) error {
	states, err := rows.ListDetectorStates(ctx, det.ID)
	if err != nil {
		return fmt.Errorf("listing state for detector %d: %w", det.ID, err)
	}

	bold := color.New(color.Bold)
	_, _ = bold.Printf("Detector %d: %s (%s)\n", det.ID, det.Name, det.Type)

	if len(states) == 0 {
		fmt.Println("  no state recorded")
		fmt.Println()
		return nil
	}

	for _, row := range states {
		groupKey := row.GroupKey
		if groupKey == "" {
			groupKey = "(ungrouped)"
		}

		statusStr := color.GreenString("OK")
		if row.IsTriggered {
			switch row.Status {
			case types.PriorityHigh:
				statusStr = color.RedString("HIGH")
			case types.PriorityMedium:
				statusStr = color.YellowString("MEDIUM")
			default:
				statusStr = color.YellowString(row.Status.String())
			}
		}

		fmt.Printf("  %-30s %-10s updated=%s\n",
			groupKey, statusStr, row.UpdatedAt.Format(time.RFC3339))
	}
	fmt.Println()
	return nil
}
