package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/lockstep/internal/harness"
)

// ProgramInfo describes a registered program.
type ProgramInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NewProgramsCommand creates the programs command.
func NewProgramsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "programs",
		Short:         "List the programs run and test can execute",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var infos []ProgramInfo
			for _, p := range harness.Programs() {
				infos = append(infos, ProgramInfo{Name: p.Name, Description: p.Description})
			}
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if f.Format == "json" {
				return f.encode(CLIResponse{Status: "ok", Data: infos})
			}
			for _, p := range infos {
				fmt.Fprintf(f.Writer, "%-13s %s\n", p.Name, p.Description)
			}
			return nil
		},
	}
}
