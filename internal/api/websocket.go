package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/SentientFX/internal/events"
)

const (
	// Number of recent events to send on connection
	recentEventsCount = 50

	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Renderers and dashboards connect from anywhere on the show network.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsEventsHandler streams the event log: the most recent events first,
// then every new one. ?topic= narrows both to matching event names.
func (s *Server) wsEventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	prefixes := topicPrefixes(r)
	var initial [][]byte
	for _, e := range events.RecentEvents(recentEventsCount, prefixes...) {
		if data, err := json.Marshal(e); err == nil {
			initial = append(initial, data)
		}
	}
	s.clientConnected("events", r)
	sub := events.Subscribe(prefixes...)

	next := make(chan []byte)
	stop := make(chan struct{})
	go func() {
		defer close(next)
		for {
			select {
			case <-stop:
				return
			case e, ok := <-sub:
				if !ok {
					return
				}
				data, err := json.Marshal(e)
				if err != nil {
					continue
				}
				select {
				case next <- data:
				case <-stop:
					return
				}
			}
		}
	}()

	s.pump(conn, initial, next)
	close(stop)
	events.Unsubscribe(sub)
	s.clientDisconnected("events", r)
}

// wsFramesHandler streams every published frame, starting with the
// latest one. Clients that fall behind skip frames.
func (s *Server) wsFramesHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	var initial [][]byte
	if data, err := json.Marshal(s.rt.Frame()); err == nil {
		initial = append(initial, data)
	}
	s.clientConnected("frames", r)
	frames := s.rt.Subscribe()

	next := make(chan []byte)
	stop := make(chan struct{})
	go func() {
		defer close(next)
		for {
			select {
			case <-stop:
				return
			case f, ok := <-frames:
				if !ok {
					return
				}
				data, err := json.Marshal(f)
				if err != nil {
					continue
				}
				select {
				case next <- data:
				case <-stop:
					return
				}
			}
		}
	}()

	s.pump(conn, initial, next)
	close(stop)
	s.rt.Unsubscribe(frames)
	s.clientDisconnected("frames", r)
}

// pump writes initial, then everything from next, pinging the peer to
// detect dead connections. It returns once the peer is gone or next is
// closed, and closes conn.
func (s *Server) pump(conn *websocket.Conn, initial [][]byte, next <-chan []byte) {
	defer conn.Close()

	for _, data := range initial {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("ws write recent message failed: %v", err)
			return
		}
	}

	// Reader goroutine - handles pongs and close messages
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case data, ok := <-next:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("ws write failed: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) clientConnected(stream string, r *http.Request) {
	s.wsClients.Add(1)
	events.Emit("info", "api.client_connected", "", map[string]interface{}{
		"stream": stream,
		"remote": r.RemoteAddr,
	})
}

func (s *Server) clientDisconnected(stream string, r *http.Request) {
	s.wsClients.Add(-1)
	events.Emit("info", "api.client_disconnected", "", map[string]interface{}{
		"stream": stream,
		"remote": r.RemoteAddr,
	})
}

// WSClients returns the number of open websocket connections.
func (s *Server) WSClients() int64 { return s.wsClients.Load() }
