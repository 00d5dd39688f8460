package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentx-labs/pluginhost/internal/consent"
)

var consentCmd = &cobra.Command{
	Use:   "consent",
	Short: "Show the external plugin risk consent",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v := consent.NewVerifier(loadConfig(), nil)
		state, set, err := v.State()
		if err != nil {
			return err
		}
		if !set {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (not set)\n", state)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), state)
		return nil
	},
}

var consentAcceptCmd = &cobra.Command{
	Use:   "accept",
	Short: "Accept the risk of running external plugins",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := consent.NewVerifier(loadConfig(), nil).Accept(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Risk consent accepted.")
		return nil
	},
}

func init() {
	consentCmd.AddCommand(consentAcceptCmd)
	rootCmd.AddCommand(consentCmd)
}
