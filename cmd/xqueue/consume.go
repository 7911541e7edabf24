package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xqueue"
)

func newConsumeCmd(a *app) *cobra.Command {
	var (
		count    int
		noAck    bool
		noFilter bool
		nonBlock bool
	)
	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Receive assignments, print them and acknowledge completion",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c, err := a.client()
			if err != nil {
				return err
			}
			defer c.Close(context.WithoutCancel(ctx))

			cs := c.NewConsumer()
			if noFilter {
				cs.SetFilterExpired(false)
			}
			if err := cs.Connect(ctx, a.cfg.Consumer.Address); err != nil {
				return err
			}

			for n := 0; count <= 0 || n < count; n++ {
				msg, err := cs.Consume(ctx, !nonBlock)
				switch {
				case errors.Is(err, xqueue.ErrNoMessage):
					fmt.Fprintln(cmd.OutOrStdout(), "no message")
					return nil
				case ctx.Err() != nil:
					return nil
				case err != nil:
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", msg.ID(), joinFrames(msg.Payload()))
				if noAck {
					continue
				}
				if err := cs.Ack(ctx, msg); err != nil {
					a.logger.With(xlog.Str("message_id", msg.ID())).Warn().Err(err).Msg("completion ack failed")
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "stop after n assignments (0: until interrupted)")
	cmd.Flags().BoolVar(&noAck, "no-ack", false, "do not acknowledge completion")
	cmd.Flags().BoolVar(&noFilter, "no-filter", false, "deliver expired assignments too")
	cmd.Flags().BoolVar(&nonBlock, "non-blocking", false, "return immediately when nothing is pending")
	return cmd
}

func joinFrames(frames [][]byte) string {
	parts := make([]string, len(frames))
	for i, f := range frames {
		parts[i] = string(f)
	}
	return strings.Join(parts, " | ")
}
