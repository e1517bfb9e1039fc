package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/notnil/twai"
)

var (
	monitorOpts = struct {
		async       bool
		injectEvery time.Duration
	}{}

	monitorCmd = &cobra.Command{
		Use:   "monitor",
		Short: "Log received messages and bus events until interrupted",
		RunE:  runMonitor,
	}
)

func init() {
	monitorCmd.Flags().BoolVar(&monitorOpts.async, "async", true, "poll from the controller's background task")
	monitorCmd.Flags().DurationVar(&monitorOpts.injectEvery, "inject-every", 0, "loopback only: inject a counter frame at this period")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	c, loop, err := openController(cmd, logger)
	if err != nil {
		return err
	}

	c.OnMessage(func(m twai.Message) {
		logger.Info("message", "id", m.ID, "extended", m.Extended, "frame", m.String())
	})
	c.OnBusOff(func() { logger.Warn("bus-off") })
	c.OnBusRecovered(func() { logger.Info("bus recovered") })
	c.OnRxQueueFull(func() { logger.Warn("rx queue full") })

	if err := c.Install(); err != nil {
		return err
	}
	if err := c.Start(monitorOpts.async); err != nil {
		return err
	}
	logger.Info("monitoring", "iface", rootOpts.iface, "bitrate", c.Timing().Bitrate, "mode", c.Config().Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if loop != nil && monitorOpts.injectEvery > 0 {
		go injectCounter(ctx, loop, monitorOpts.injectEvery)
	}

	if monitorOpts.async {
		<-ctx.Done()
	} else {
		tick := time.NewTicker(c.Config().PollInterval)
		defer tick.Stop()
	polling:
		for {
			select {
			case <-ctx.Done():
				break polling
			case <-tick.C:
				c.Poll()
			}
		}
	}
	return c.End()
}

func injectCounter(ctx context.Context, d *twai.LoopbackDriver, every time.Duration) {
	tick := time.NewTicker(every)
	defer tick.Stop()
	var n uint8
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			_ = d.Inject(twai.MustMessage(0x100, []byte{n}))
			n++
		}
	}
}
