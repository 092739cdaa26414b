// Package ws serves read-only observers over websocket. A client sends
// one SUBSCRIBE, receives a WELCOME, then a stream of STATE snapshots at
// the world's broadcast interval. Slow clients lose frames, never stall
// the simulation.
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"colonycraft.ai/internal/protocol"
	"colonycraft.ai/internal/sim/world"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
	sinkDepth        = 8
)

type Server struct {
	world    *world.World
	logger   *log.Logger
	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(os.Stderr, "ws: ", log.LstdFlags)
	}
	return &Server{
		world:  w,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		s.logger.Printf("upgrade: %v", err)
		return
	}
	defer conn.Close()

	sub, code, msg := readSubscribe(conn)
	if code != "" {
		s.reject(conn, code, msg)
		return
	}
	name := sub.Observer
	if name == "" {
		name = r.RemoteAddr
	}

	var welcome protocol.WelcomeMsg
	sink := make(chan protocol.StateMsg, sinkDepth)
	var sinkID uint64
	s.world.Do(func(w *world.World) {
		welcome = w.Welcome()
		sinkID = w.AttachSink(sink)
	})
	defer s.world.Do(func(w *world.World) { w.DetachSink(sinkID) })

	if err := writeJSON(conn, welcome); err != nil {
		return
	}
	s.logger.Printf("observer %s subscribed at tick %d", name, welcome.Tick)

	// Reader: observers send nothing after SUBSCRIBE; we only watch for
	// the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			s.logger.Printf("observer %s disconnected", name)
			return
		case state := <-sink:
			if err := writeJSON(conn, state); err != nil {
				s.logger.Printf("observer %s: write: %v", name, err)
				return
			}
		}
	}
}

// readSubscribe validates the handshake. A non-empty code means the
// client must be rejected with that code.
func readSubscribe(conn *websocket.Conn) (protocol.SubscribeMsg, string, string) {
	var sub protocol.SubscribeMsg
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, raw, err := conn.ReadMessage()
	conn.SetReadDeadline(time.Time{})
	if err != nil {
		return sub, protocol.ErrNotSubscribed, "no subscribe before deadline"
	}
	if err := json.Unmarshal(raw, &sub); err != nil {
		return sub, protocol.ErrBadJSON, err.Error()
	}
	if sub.Type != protocol.TypeSubscribe {
		return sub, protocol.ErrBadType, "expected " + protocol.TypeSubscribe
	}
	if sub.Version != protocol.Version {
		return sub, protocol.ErrVersionMismatch, "server speaks " + protocol.Version
	}
	return sub, "", ""
}

func (s *Server) reject(conn *websocket.Conn, code, msg string) {
	_ = writeJSON(conn, protocol.ErrorMsg{Type: protocol.TypeError, Code: code, Msg: msg})
}

func writeJSON(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}
