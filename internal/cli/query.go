package cli

import (
	"time"

	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query <sql> [param...]",
	Short: "Run a SQL statement through the resilient executor",
	Long: `Query runs one statement with retry and timeout handling and prints the
result. Positional arguments after the SQL are bound to $1, $2, ... as
text; the server casts them to the column types.

Failed attempts are retried up to the attempt budget. Errors that point
at a broken pool additionally force a pool recreation before the next
attempt, so a query issued against a dead connection heals the pool in
passing.

Examples:
  # Simple query against the environment connection
  db3 query "SELECT now()"

  # Bound parameters
  db3 query "SELECT * FROM users WHERE id = \$1" 42

  # First row only, as JSON
  db3 query --one --json "SELECT * FROM users WHERE email = \$1" a@b.c

  # Tight per-attempt timeout with a larger budget
  db3 query --timeout 2s --attempts 5 "SELECT count(*) FROM events"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var queryFlags struct {
	timeout  time.Duration
	attempts int
	jsonOut  bool
	one      bool
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().DurationVar(&queryFlags.timeout, "timeout", 0,
		"Per-attempt statement timeout (default: 10s, or query.timeout in db3.yaml)")
	queryCmd.Flags().IntVar(&queryFlags.attempts, "attempts", 0,
		"Total attempt budget including the first try (default: 3)")
	queryCmd.Flags().BoolVar(&queryFlags.jsonOut, "json", false,
		"Print rows as JSON instead of a table")
	queryCmd.Flags().BoolVar(&queryFlags.one, "one", false,
		"Print only the first row; an empty result prints nothing")
}

func runQuery(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := s.queryDefaults()
	if cmd.Flags().Changed("timeout") {
		opts.Timeout = queryFlags.timeout
	}
	if cmd.Flags().Changed("attempts") {
		opts.MaxAttempts = queryFlags.attempts
	}

	params := make([]any, 0, len(args)-1)
	for _, a := range args[1:] {
		params = append(params, a)
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if queryFlags.one {
		row, err := s.executor.QueryOne(ctx, args[0], params, opts)
		if err != nil {
			return err
		}
		if row == nil {
			return nil
		}
		if queryFlags.jsonOut {
			return printJSON(out, row)
		}
		return printTable(out, []map[string]any{row})
	}

	res, err := s.executor.ExecuteQuery(ctx, args[0], params, opts)
	if err != nil {
		return err
	}
	return printResult(out, res, queryFlags.jsonOut)
}
