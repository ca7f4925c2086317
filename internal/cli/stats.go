package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/voca9204/db3-sub002/pkg/db3"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show connection pool statistics",
	Long: `Stats prints a point-in-time snapshot of the managed pool: its status,
identity, age, idle time, and driver connection counters.

By default the command connects first so the snapshot describes a live
pool. With --no-connect it reports the manager state without touching
the database, which for a fresh process is always "absent".

Examples:
  db3 stats
  db3 stats --json
  db3 stats --no-connect`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

var statsFlags struct {
	jsonOut   bool
	noConnect bool
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().BoolVar(&statsFlags.jsonOut, "json", false,
		"Print the snapshot as JSON")
	statsCmd.Flags().BoolVar(&statsFlags.noConnect, "no-connect", false,
		"Report without creating a pool")
}

func runStats(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if !statsFlags.noConnect {
		if _, err := s.manager.GetPool(cmd.Context()); err != nil {
			return err
		}
	}

	return printStats(cmd.OutOrStdout(), s.manager.Stats(), statsFlags.jsonOut)
}

func printStats(w io.Writer, snap db3.StatsSnapshot, asJSON bool) error {
	if asJSON {
		view := map[string]any{
			"status": string(snap.Status),
		}
		if snap.Status == db3.StatusActive {
			view["pool_id"] = snap.PoolID
			view["created_at"] = snap.CreatedAt
			view["last_used"] = snap.LastUsed
			view["idle_seconds"] = snap.IdleTime.Seconds()
			view["lifetime_seconds"] = snap.Lifetime.Seconds()
			view["total_conns"] = snap.Conns.TotalConns
			view["idle_conns"] = snap.Conns.IdleConns
			view["acquired_conns"] = snap.Conns.AcquiredConns
		}
		return printJSON(w, view)
	}

	fmt.Fprintf(w, "status:    %s\n", snap.Status)
	if snap.Status != db3.StatusActive {
		return nil
	}
	fmt.Fprintf(w, "pool:      %s\n", snap.PoolID)
	fmt.Fprintf(w, "created:   %s\n", snap.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "last used: %s\n", snap.LastUsed.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "idle:      %s\n", snap.IdleTime.Round(time.Millisecond))
	fmt.Fprintf(w, "lifetime:  %s\n", snap.Lifetime.Round(time.Millisecond))
	fmt.Fprintf(w, "conns:     total=%d idle=%d acquired=%d\n",
		snap.Conns.TotalConns, snap.Conns.IdleConns, snap.Conns.AcquiredConns)
	return nil
}
