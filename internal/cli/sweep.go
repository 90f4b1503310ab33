package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"studyhub-contest-service/internal/config"
)

// NewSweepCmd force-submits expired attempts once and exits; meant for cron
// when the in-process sweeper is not running.
func NewSweepCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Force-submit attempts of ended contests",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			service, cleanup, err := buildService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			submitted, err := service.SweepExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("force-submitted %d attempts\n", submitted)
			return nil
		},
	}
}
