package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AaronLay10/SentientFX/internal/api"
	"github.com/AaronLay10/SentientFX/internal/condition"
	"github.com/AaronLay10/SentientFX/internal/config"
	"github.com/AaronLay10/SentientFX/internal/events"
	"github.com/AaronLay10/SentientFX/internal/mqtt"
	"github.com/AaronLay10/SentientFX/internal/orchestrator"
	"github.com/AaronLay10/SentientFX/internal/state"
	"github.com/AaronLay10/SentientFX/internal/storage"
	"github.com/AaronLay10/SentientFX/internal/version"
)

func main() {
	configPath := flag.String("config", os.Getenv("SENTIENT_CONFIG"), "path to engine.yaml")
	flag.Parse()

	events.SetOutput(os.Stdout)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	hostname, _ := os.Hostname()
	events.Emit("info", "system.startup", "orchestrator starting", map[string]interface{}{
		"service":   "orchestrator",
		"version":   version.Version,
		"hostname":  hostname,
		"pid":       os.Getpid(),
		"tick_rate": cfg.TickRate(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		events.Emit("error", "system.error", err.Error(), nil)
		events.CloseAllSubscribers()
		log.Fatalf("orchestrator failed: %v", err)
	}

	events.Emit("info", "system.shutdown", "orchestrator stopped", nil)
	events.CloseAllSubscribers()
}

func run(ctx context.Context, cfg *config.EngineConfig) error {
	dsn, err := cfg.StoreDSN()
	if err != nil {
		return err
	}
	store, err := storage.Open(cfg.Store.Driver, dsn)
	if err != nil {
		return err
	}
	opts := api.Options{Importer: condition.Importer{}}
	if store != nil {
		defer store.Close()
		sink := events.NewAsyncSink(store, 1024)
		defer sink.Close()
		events.SetSink(sink)
		defer events.SetSink(nil)
		opts.Scenes = store
	}

	scene, err := startupScene(ctx, cfg, store)
	if err != nil {
		return err
	}
	orchestrator.EmitStartupRestore(scene)

	st := state.NewStore()
	rt := orchestrator.NewRuntime(scene, st)
	sched := orchestrator.NewScheduler(rt, cfg.TickRate())
	opts.Scheduler = sched
	opts.State = st

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(ctx) })

	if cfg.Network.MQTTURL != "" || len(cfg.Sources) > 0 {
		client := mqtt.NewClient(cfg.Network.MQTTURL, "sentient-fx-"+hostnameOr("engine"))

		registry, err := mqtt.NewSourceRegistryFromConfig(cfg.Sources, time.Now())
		if err != nil {
			return err
		}
		sub := mqtt.NewStateSubscriber(client, registry, st)
		client.OnConnect(func() { _ = sub.Resubscribe() })

		monitor := mqtt.NewMonitor(registry, st)
		monitor.Start(time.Second)
		defer monitor.Stop()

		// Auto-reconnect keeps trying in the background; the engine runs
		// without external state until the broker is reachable.
		if err := client.Connect(); err != nil {
			events.Emit("error", "system.error", "mqtt connect failed", map[string]interface{}{
				"broker": client.Broker(),
				"error":  err.Error(),
			})
		}
		defer client.Disconnect()

		publisher := mqtt.NewFramePublisher(client, cfg.Network.FrameTopic)
		g.Go(func() error { return publisher.Run(ctx, rt) })
		opts.MQTTConnected = client.IsConnected
	}

	tlsCfg, err := api.TLSFromEnv()
	if err != nil {
		return err
	}
	srv := api.NewServer(rt, opts)
	g.Go(func() error { return srv.ListenAndServe(ctx, cfg.APIPort(), tlsCfg) })

	return g.Wait()
}

// startupScene loads the scene named in engine.yaml, or restores the one
// marked active in the store.
func startupScene(ctx context.Context, cfg *config.EngineConfig, store storage.Store) (*orchestrator.Scene, error) {
	if cfg.Engine.Scene == "" {
		if store == nil {
			return nil, nil
		}
		return orchestrator.RestoreScene(ctx, store, condition.Importer{})
	}
	doc, err := orchestrator.LoadSceneFile(cfg.Engine.Scene)
	if err != nil {
		return nil, err
	}
	scene, repairs, err := orchestrator.BuildScene(doc, condition.Importer{})
	if scene == nil {
		return nil, err
	}
	orchestrator.ReportLoad(scene.ID, repairs, err)
	return scene, nil
}

func hostnameOr(fallback string) string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return fallback
}
