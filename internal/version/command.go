package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AttachCobraVersionCommand attaches a `version` subcommand to root.
// The printed line names root's binary.
func AttachCobraVersionCommand(root *cobra.Command) {
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: fmt.Sprintf("Print the %s version.", root.Name()),
		Long: fmt.Sprintf("Print the %s build of the %s suite: semantic version, commit hash and build timestamp. "+
			"The values are injected at build time through ldflags.", root.Name(), Project),
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), Full(root.Name()))
		},
	})
}
