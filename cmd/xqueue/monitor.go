package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newMonitorCmd(a *app) *cobra.Command {
	var watch time.Duration
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Print the broker's status report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c, err := a.client()
			if err != nil {
				return err
			}
			defer c.Close(ctx)

			m := c.NewMonitor()
			if err := m.Connect(ctx, a.cfg.Monitor.Address); err != nil {
				return err
			}

			for {
				st, err := m.Stats(ctx)
				if err != nil {
					return err
				}
				for _, e := range st.Entries() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", e.Key, e.Value)
				}
				if watch <= 0 {
					return nil
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(watch):
				}
			}
		},
	}
	cmd.Flags().DurationVarP(&watch, "watch", "w", 0, "repeat every interval until interrupted")
	return cmd
}
