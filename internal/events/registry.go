package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// element
	"element.activated":   {},
	"element.released":    {},
	"element.deactivated": {},

	// graph
	"graph.invalid":   {},
	"graph.recovered": {},

	// scene
	"scene.loaded":    {},
	"scene.repaired":  {},
	"scene.saved":     {},
	"entity.rejected": {},
	"edit.rejected":   {},

	// tick
	"tick.overrun":      {},
	"tick.rate_changed": {},

	// state
	"state.source_seen":     {},
	"state.source_stale":    {},
	"state.update_rejected": {},

	// mqtt
	"mqtt.connected":    {},
	"mqtt.disconnected": {},

	// api
	"api.client_connected":    {},
	"api.client_disconnected": {},

	// system
	"system.startup":         {},
	"system.startup_restore": {},
	"system.shutdown":        {},
	"system.error":           {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
