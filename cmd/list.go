package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tasnim.dev/vpcctl/internal/topology"
	"tasnim.dev/vpcctl/internal/tui"
)

// Output formats accepted by list.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

func NewListCmd(opts *GlobalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List VPCs, subnets and peerings",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				st, err := a.svc.Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				return writeState(cmd.OutOrStdout(), st, output)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", OutputText, "output format: text, json or yaml")

	return cmd
}

func writeState(w io.Writer, st *topology.State, format string) error {
	switch format {
	case OutputText, "":
		_, err := lipgloss.Fprint(w, tui.Describe(st))
		return err
	case OutputJSON:
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(st); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: unknown output format %q", topology.ErrInvalidInput, format)
	}
}
