package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// sslModes contains valid PostgreSQL SSL modes for shell completion.
var sslModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

var credentialSources = []string{"static", "env", "pgpass", "aws", "azure", "google"}

var logLevels = []string{"debug", "info", "warn", "error"}

var logFormats = []string{"text", "json"}

// completeFromList provides shell completion over a fixed value set.
func completeFromList(values []string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var matches []string
		for _, v := range values {
			if strings.HasPrefix(v, toComplete) {
				matches = append(matches, v)
			}
		}
		return matches, cobra.ShellCompDirectiveNoFileComp
	}
}

func registerFlagCompletions(cmd *cobra.Command) {
	_ = cmd.RegisterFlagCompletionFunc("sslmode", completeFromList(sslModes))
	_ = cmd.RegisterFlagCompletionFunc("credentials", completeFromList(credentialSources))
	_ = cmd.RegisterFlagCompletionFunc("log-level", completeFromList(logLevels))
	_ = cmd.RegisterFlagCompletionFunc("log-format", completeFromList(logFormats))
}
