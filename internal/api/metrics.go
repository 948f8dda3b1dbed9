package api

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/AaronLay10/SentientFX/internal/events"
	"github.com/AaronLay10/SentientFX/internal/version"
)

// metricsHandler returns Prometheus-compatible metrics in text format.
func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	stats := s.rt.Stats()
	uptime := time.Since(s.started).Seconds()

	mqttConnected := 0
	if s.opts.MQTTConnected != nil && s.opts.MQTTConnected() {
		mqttConnected = 1
	}

	var stateVersion uint64
	if s.opts.State != nil {
		stateVersion = s.opts.State.Version()
	}

	tickRate := 0
	if s.opts.Scheduler != nil {
		tickRate = s.opts.Scheduler.TickRate()
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	writeMetric := func(name, mtype, help string, value interface{}, labels string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		if labels != "" {
			fmt.Fprintf(w, "%s{%s} %v\n", name, labels, value)
		} else {
			fmt.Fprintf(w, "%s %v\n", name, value)
		}
	}

	labels := fmt.Sprintf(`scene="%s",instance="%s",version="%s"`, s.rt.SceneID(), hostname, version.Version)

	writeMetric("sentient_uptime_seconds", "gauge",
		"Number of seconds since the engine started", uptime, labels)
	writeMetric("sentient_ticks_total", "counter",
		"Total number of ticks evaluated", stats.Ticks, labels)
	writeMetric("sentient_tick_overruns_total", "counter",
		"Ticks that started later than one interval past their deadline", stats.Overruns, labels)
	writeMetric("sentient_tick_duration_seconds", "gauge",
		"Wall time spent evaluating the last tick", stats.LastTick.Seconds(), labels)
	writeMetric("sentient_tick_rate", "gauge",
		"Configured ticks per second (0 when not scheduled)", tickRate, labels)
	writeMetric("sentient_edits_applied_total", "counter",
		"Scene edits applied", stats.EditsApplied, labels)
	writeMetric("sentient_edits_rejected_total", "counter",
		"Scene edits that returned an error", stats.EditsRejected, labels)
	writeMetric("sentient_graphs_invalid", "gauge",
		"Bindings whose graph failed in the last tick", stats.InvalidGraphs, labels)
	writeMetric("sentient_entities", "gauge",
		"Entities in the active scene", stats.Entities, labels)
	writeMetric("sentient_parameters", "gauge",
		"Parameters in the active scene", stats.Parameters, labels)
	writeMetric("sentient_state_version", "counter",
		"Writes applied to the external state document", stateVersion, labels)
	writeMetric("sentient_events_total", "counter",
		"Total number of events emitted since startup", events.TotalCount(), labels)
	writeMetric("sentient_events_dropped_total", "counter",
		"Events missed by subscribers that fell behind", events.Dropped(), labels)
	writeMetric("sentient_event_sink_dropped_total", "counter",
		"Events not persisted because the store writer fell behind", events.SinkDropped(), labels)
	writeMetric("sentient_mqtt_connected", "gauge",
		"Whether MQTT broker is connected (1) or not (0)", mqttConnected, labels)
	writeMetric("sentient_ws_clients", "gauge",
		"Number of active WebSocket client connections", s.WSClients(), labels)
}
