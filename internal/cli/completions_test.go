package cli

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestCompleteFromList(t *testing.T) {
	cmd := &cobra.Command{}
	complete := completeFromList(sslModes)

	t.Run("returns all values for empty input", func(t *testing.T) {
		completions, directive := complete(cmd, nil, "")
		if len(completions) != len(sslModes) {
			t.Errorf("expected %d completions, got %d", len(sslModes), len(completions))
		}
		if directive != cobra.ShellCompDirectiveNoFileComp {
			t.Errorf("expected ShellCompDirectiveNoFileComp, got %v", directive)
		}
	})

	t.Run("filters by prefix", func(t *testing.T) {
		completions, _ := complete(cmd, nil, "ver")
		if len(completions) != 2 {
			t.Errorf("expected 2 completions (verify-ca, verify-full), got %d: %v", len(completions), completions)
		}
	})

	t.Run("no match yields empty list", func(t *testing.T) {
		completions, _ := complete(cmd, nil, "zzz")
		if len(completions) != 0 {
			t.Errorf("expected no completions, got %v", completions)
		}
	})
}

func TestCompletionValueSets(t *testing.T) {
	// The completion lists must stay in sync with what the config layer
	// accepts; a drift here means completions offer rejected values.
	tests := []struct {
		name   string
		values []string
		want   int
	}{
		{"ssl modes", sslModes, 6},
		{"credential sources", credentialSources, 6},
		{"log levels", logLevels, 4},
		{"log formats", logFormats, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.values) != tt.want {
				t.Errorf("expected %d values, got %d: %v", tt.want, len(tt.values), tt.values)
			}
		})
	}
}

func TestRegisterFlagCompletions(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.PersistentFlags().String("sslmode", "", "")
	cmd.PersistentFlags().String("credentials", "", "")
	cmd.PersistentFlags().String("log-level", "", "")
	cmd.PersistentFlags().String("log-format", "", "")

	// Registration must not panic or error on a command carrying the flags.
	registerFlagCompletions(cmd)
}
