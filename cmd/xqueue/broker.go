package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trickstertwo/xqueue"
	"github.com/trickstertwo/xqueue/xqueuetest"
)

func newBrokerCmd(a *app) *cobra.Command {
	var (
		ackTimeout time.Duration
		redeliver  bool
	)
	cmd := &cobra.Command{
		Use:   "broker",
		Short: "Run the in-memory reference broker on the configured addresses",
		Long: `Runs a development broker that keeps everything in memory. It binds the
producer, consumer and monitor addresses from the config file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			tr, err := xqueue.NewTransport(a.cfg.Transport.Name, a.cfg.Transport.Options)
			if err != nil {
				return err
			}
			defer tr.Close(ctx)

			l, ok := tr.(xqueue.Listener)
			if !ok {
				return fmt.Errorf("transport %q can not listen", a.cfg.Transport.Name)
			}
			b, err := xqueuetest.Start(ctx, l, xqueuetest.Config{
				ProducerAddr:     a.cfg.Producer.Address,
				ConsumerAddr:     a.cfg.Consumer.Address,
				MonitorAddr:      a.cfg.Monitor.Address,
				AckTimeout:       ackTimeout,
				RedeliverExpired: redeliver,
				Logger:           a.logger,
			})
			if err != nil {
				return err
			}
			defer b.Close()

			a.logger.Debug().Msg("broker running")
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().DurationVar(&ackTimeout, "ack-timeout", 30*time.Second, "assignment lifetime (0: never expires)")
	cmd.Flags().BoolVar(&redeliver, "redeliver", true, "requeue assignments whose ack timeout elapsed")
	return cmd
}
