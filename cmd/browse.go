package cmd

import (
	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"

	"tasnim.dev/vpcctl/internal/tui"
)

func NewBrowseCmd(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse the topology interactively",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				model := tui.NewModel(a.svc.Snapshot, a.cfg.StatePath)
				_, err := tea.NewProgram(model).Run()
				return err
			})
		},
	}
}
