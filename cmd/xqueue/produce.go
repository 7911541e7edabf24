package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/trickstertwo/xqueue"
)

func newProduceCmd(a *app) *cobra.Command {
	var (
		id      string
		count   int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "produce [flags] FRAME...",
		Short: "Hand work to the broker and wait for the accept ack",
		Long: `Each argument becomes one payload frame. Without --id a random id is used
for every message. The command fails on the first message the broker does not
accept within the timeout.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if id != "" && count > 1 {
				return fmt.Errorf("--id can not be combined with --count > 1")
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			defer c.Close(cmd.Context())

			p := c.NewProducer()
			if err := p.Connect(cmd.Context(), a.cfg.Producer.Address); err != nil {
				return err
			}
			if timeout <= 0 {
				timeout = a.cfg.Producer.Timeout
			}

			frames := make([][]byte, len(args))
			for i, s := range args {
				frames[i] = []byte(s)
			}

			for range count {
				msgID := id
				if msgID == "" {
					msgID = uuid.NewString()
				}
				msg := xqueue.NewMessage(msgID, frames...)
				if err := p.ProduceTimeout(cmd.Context(), msg, timeout); err != nil {
					return fmt.Errorf("produce %s: %w", msgID, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "accepted %s\n", msgID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "message id (default: random uuid)")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of messages to send")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "accept ack timeout (default: producer.timeout)")
	return cmd
}
