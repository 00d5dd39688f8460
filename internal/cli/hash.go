package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var hashCmd = &cobra.Command{
	Use:   "hash <plugin-key>",
	Short: "Print the MD5 of a loaded plugin's deployed artifacts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := loadPlugins(cmd)
		if err != nil {
			return err
		}
		defer l.Shutdown(cmd.Context())

		u, err := l.Registry().Get(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		sum, err := u.Artifacts.Primary.MD5()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s  %s\n", sum, u.Artifacts.Primary.Name())

		if u.Artifacts.HasCompressed() {
			sum, err := u.Artifacts.Compressed.MD5()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s  %s\n", sum, u.Artifacts.Compressed.Name())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashCmd)
}
