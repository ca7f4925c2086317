package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/voca9204/db3-sub002/pkg/db3"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Create a pool, probe the server, and report latency",
	Long: `Ping creates a connection pool against the resolved target, which
includes the initial health probe, then runs one round trip through the
executor. It reports both latencies and exits non-zero when the server
is unreachable, making it suitable for readiness checks.

Examples:
  db3 ping
  db3 ping --host db.internal -U app -d orders`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()

	start := time.Now()
	if _, err := s.manager.GetPool(ctx); err != nil {
		return err
	}
	connect := time.Since(start)

	start = time.Now()
	if _, err := s.executor.ExecuteQuery(ctx, "SELECT 1", nil, db3.QueryOptions{}); err != nil {
		return err
	}
	roundTrip := time.Since(start)

	snap := s.manager.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "pool %s: connected in %s, round trip %s\n",
		snap.PoolID, connect.Round(time.Millisecond), roundTrip.Round(time.Millisecond))
	return nil
}
