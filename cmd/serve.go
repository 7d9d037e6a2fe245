package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"tasnim.dev/vpcctl/internal/demo"
	"tasnim.dev/vpcctl/internal/logging"
	"tasnim.dev/vpcctl/internal/topology"
	"tasnim.dev/vpcctl/internal/vpc"
)

// NewServeCmd is the demo web server launched by deploy-app inside a subnet
// namespace. It is hidden because it is not meant to be run by hand.
func NewServeCmd() *cobra.Command {
	var (
		dir  string
		port int
	)

	cmd := &cobra.Command{
		Use:    "serve",
		Short:  "Serve a directory over HTTP (used by deploy-app)",
		Hidden: true,
		Args:   exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				return fmt.Errorf("%w: --dir is required", topology.ErrInvalidInput)
			}
			if _, err := os.Stat(dir); err != nil {
				return fmt.Errorf("%w: %v", topology.ErrInvalidInput, err)
			}
			// Output lands in the deploy-app server log, so write JSON lines.
			lc := logging.DefaultConfig()
			lc.Environment = logging.EnvironmentProduction
			logger, err := logging.NewLogger(lc)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return demo.Serve(ctx, ":"+strconv.Itoa(port), dir, logger)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "directory to serve")
	cmd.Flags().IntVar(&port, "port", vpc.DefaultAppPort, "port to listen on")

	return cmd
}
