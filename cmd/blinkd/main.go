// Command blinkd drives two GPIO outputs as a square wave, counts rising edges
// on an input, and reports both over MQTT and a small HTTP status page.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sweeney/blinkd/internal/blink"
	"github.com/sweeney/blinkd/internal/config"
	"github.com/sweeney/blinkd/internal/gpio"
	"github.com/sweeney/blinkd/internal/logic"
	"github.com/sweeney/blinkd/internal/mqtt"
	"github.com/sweeney/blinkd/internal/status"
	"github.com/sweeney/blinkd/internal/web"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	queueSize    = 256
	statusPeriod = time.Second
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          "blinkd",
		Short:        "Blink two GPIO outputs and count rising edges on an input",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd)
		},
	}
	root.SetOut(out)
	config.Flags(root.PersistentFlags())

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Load the module and run until SIGINT or SIGTERM (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "read",
		Short: "Print the input line level and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return readInput(cmd)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "blinkd %s\n", version)
		},
	})
	return root
}

func runDaemon(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	settings, err := cfg.Blink().Normalize()
	if err != nil {
		return err
	}
	log := cfg.Logger()

	platform, err := gpio.NewRealPlatform(cfg.Chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer func() {
		if err := platform.Close(); err != nil {
			log.WithError(err).Warn("close gpio")
		}
	}()

	var (
		publisher mqtt.Publisher        = mqtt.NopPublisher{}
		conn      mqtt.ConnectionStatus = mqtt.NopPublisher{}
	)
	if cfg.Broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.Broker, log)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher, conn = p, p
	} else {
		log.Info("mqtt disabled")
	}
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), statusConfig(cfg, settings))

	queue := mqtt.NewQueue(publisher, queueSize, log)
	defer queue.Close()

	module := blink.New(blink.Options{
		Platform: platform,
		Log:      log,
		Observer: &observer{tracker: tracker, queue: queue, now: time.Now},
	})

	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("http server")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.WithField("addr", cfg.HTTP).Info("http status server listening")
	}

	ticker := time.NewTicker(statusPeriod)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return runLoop(loopDeps{
		module:    module,
		config:    cfg.Blink(),
		publisher: publisher,
		conn:      conn,
		tracker:   tracker,
		log:       log,
	}, cfg.Heartbeat, time.Now, ticker.C, sigCh)
}

// loopDeps are the collaborators runLoop drives.
type loopDeps struct {
	module    *blink.Module
	config    blink.Config
	publisher mqtt.Publisher
	conn      mqtt.ConnectionStatus
	tracker   *status.Tracker
	log       logrus.FieldLogger
}

// runLoop loads the module, then refreshes status on every tick until a
// signal arrives, at which point it unloads. A failed load is reported as a
// LOAD_FAILED system event and returned.
func runLoop(d loopDeps, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	if err := d.module.Load(d.config); err != nil {
		d.tracker.SetError(err.Error())
		d.refresh()
		d.publishSystem(now(), "LOAD_FAILED", err.Error())
		return fmt.Errorf("load: %w", err)
	}
	d.tracker.SetError("")
	d.refresh()
	d.publishSystem(now(), "STARTUP", "")

	hb := logic.NewHeartbeat(heartbeat, now())

	for {
		select {
		case s := <-sig:
			reason := signalName(s)
			d.log.WithField("signal", reason).Info("shutting down")
			d.module.Unload()
			d.refresh()
			d.publishSystem(now(), "SHUTDOWN", reason)
			return nil

		case <-tick:
			d.tracker.SetMQTTConnected(d.conn.IsConnected())

			snap := d.module.Snapshot()
			hbData := hb.Check(now(), logic.Counts{Firings: snap.Firings, Edges: snap.Edges})
			if hbData == nil {
				continue
			}
			d.log.WithFields(logrus.Fields{
				"uptime":  hbData.Uptime,
				"firings": hbData.Counts.Firings,
				"edges":   hbData.Counts.Edges,
			}).Info("heartbeat")
			d.refresh()
			d.publishSystem(hbData.Timestamp, "HEARTBEAT", "")
		}
	}
}

// refresh copies the module's state into the tracker.
func (d loopDeps) refresh() {
	snap := d.module.Snapshot()
	d.tracker.Update(snap.Running, logic.StateOf(snap.Level), logic.Counts{Firings: snap.Firings, Edges: snap.Edges})
	d.tracker.SetMQTTConnected(d.conn.IsConnected())
}

// publishSystem sends a lifecycle event carrying the full status snapshot.
// Heartbeats are not retained; everything else is.
func (d loopDeps) publishSystem(t time.Time, event, reason string) {
	e := mqtt.SystemEvent{
		Timestamp:  t,
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(d.tracker.Snapshot(), event, reason),
	}
	log := d.log.WithField("event", event)
	if err := d.publisher.PublishSystem(e); err != nil {
		log.WithError(err).Warn("publish system event failed")
		return
	}
	log.Debug("published system event")
}

// observer forwards firing and edge notifications to the tracker and the
// publish queue. Neither call blocks.
type observer struct {
	tracker *status.Tracker
	queue   *mqtt.Queue
	now     func() time.Time
}

func (o *observer) Fired(level bool, firing uint64) {
	o.tracker.RecordFiring(level, firing)
	o.queue.Enqueue(logic.LevelEvent(o.now(), level, firing))
}

func (o *observer) Edge(count uint64) {
	o.tracker.RecordEdge(count)
	o.queue.Enqueue(logic.EdgeEvent(o.now(), count))
}

func readInput(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	settings, err := cfg.Blink().Normalize()
	if err != nil {
		return err
	}
	platform, err := gpio.NewRealPlatform(cfg.Chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer platform.Close()

	return printInput(cmd.OutOrStdout(), platform, settings.InputPin)
}

// printInput claims pin as an input, prints its level and releases it.
func printInput(w io.Writer, p gpio.Platform, pin blink.PinID) error {
	line, err := blink.Claim(p, pin, blink.Input, false)
	if err != nil {
		return err
	}
	defer line.Release()

	on, err := line.Read()
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	fmt.Fprintf(w, "input %d: %s\n", pin, logic.StateOf(on))
	return nil
}

func statusConfig(cfg config.Daemon, s blink.Settings) status.Config {
	return status.Config{
		Chip:         cfg.Chip,
		PrimaryPin:   uint(s.PrimaryPin),
		SecondaryPin: uint(s.SecondaryPin),
		InputPin:     uint(s.InputPin),
		TogglePeriod: s.TogglePeriod,
		Heartbeat:    cfg.Heartbeat,
		Broker:       cfg.Broker,
		HTTP:         cfg.HTTP,
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
