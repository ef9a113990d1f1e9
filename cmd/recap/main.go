// recap fetches the yearly GitHub activity report of a user and writes it as JSON.
//
// Usage:
//
//	recap fetch --user octocat --year 2023
//	GITHUB_TOKEN=... recap fetch -u octocat -y 2023 -o octocat-2023.json
package main

import (
	"github.com/spf13/cobra"
)

func main() {
	cobra.CheckErr(newRootCmd().Execute())
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "recap",
		Short:         "Build yearly GitHub activity reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newFetchCmd())
	return root
}
