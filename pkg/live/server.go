package live

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/synapview/synapview/pkg/remote"
	"github.com/synapview/synapview/pkg/viewer"
	"github.com/synapview/synapview/pkg/viewport"
)

// Server streams the live simulation over WebSocket and applies client
// interaction commands to the shared viewer. Every connected session sees
// the same graph; ticks are broadcast, commands are serialized through
// the viewer's own synchronization.
type Server struct {
	upgrader websocket.Upgrader
	viewer   *viewer.Viewer

	mu       sync.RWMutex
	sessions map[string]*Session

	tickCancel func()
}

// Session represents one live connection
type Session struct {
	ID        string
	conn      *websocket.Conn
	sendChan  chan []byte
	closeChan chan struct{}
	closeOnce sync.Once

	server *Server
}

// NewServer creates a live server over a viewer.
func NewServer(v *viewer.Viewer) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: restrict origins once the embedding host is known
				return true
			},
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		viewer:   v,
		sessions: make(map[string]*Session),
	}
}

// Start hooks the server into the simulation tick stream.
func (s *Server) Start() {
	s.tickCancel = s.viewer.Engine().OnTick(func(alpha float64) {
		s.Broadcast(s.tickFrame(alpha))
	})
}

// Stop detaches from the tick stream and closes every session.
func (s *Server) Stop() {
	if s.tickCancel != nil {
		s.tickCancel()
		s.tickCancel = nil
	}
	s.mu.Lock()
	for id, session := range s.sessions {
		session.close()
		delete(s.sessions, id)
	}
	s.mu.Unlock()
}

// SessionCount returns the number of connected sessions.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// HandleWebSocket handles WebSocket upgrade and session management
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimPrefix(r.URL.Path, "/live/")
	if sessionID == "" || sessionID == r.URL.Path {
		http.Error(w, "session id required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[live] failed to upgrade connection: %v", err)
		return
	}

	session := &Session{
		ID:        sessionID,
		conn:      conn,
		sendChan:  make(chan []byte, 256),
		closeChan: make(chan struct{}),
		server:    s,
	}

	s.mu.Lock()
	if old, exists := s.sessions[sessionID]; exists {
		old.close()
	}
	s.sessions[sessionID] = session
	s.mu.Unlock()

	go session.run()
}

// Broadcast queues a frame for every connected session. Sessions with a
// full send buffer drop the frame; the next tick supersedes it anyway.
func (s *Server) Broadcast(frame []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions {
		select {
		case session.sendChan <- frame:
		default:
		}
	}
}

func (s *Server) tickFrame(alpha float64) []byte {
	// Snapshot, not the live arena: session goroutines keep applying
	// gestures while this encodes.
	nodes := s.viewer.Snapshot().Nodes
	positions := make([]TickPosition, len(nodes))
	for i := range nodes {
		positions[i] = TickPosition{ID: nodes[i].ID, X: nodes[i].X, Y: nodes[i].Y}
	}
	return EncodeTick(alpha, positions)
}

func (s *Server) removeSession(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// run manages the WebSocket connection for a session
func (sess *Session) run() {
	defer func() {
		sess.close()
		sess.server.removeSession(sess.ID)
	}()

	go sess.writer()

	// Greet, then send the full snapshot so the client can render before
	// the first tick arrives.
	sess.sendControl("HELLO")
	sess.sendChan <- EncodeGraph(sess.server.viewer.Snapshot())
	log.Printf("[live %s] session connected, snapshot sent", sess.ID)

	sess.conn.SetReadDeadline(time.Now().Add(300 * time.Second))
	sess.conn.SetPongHandler(func(string) error {
		sess.conn.SetReadDeadline(time.Now().Add(300 * time.Second))
		return nil
	})

	for {
		messageType, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[live %s] unexpected close: %v", sess.ID, err)
			}
			return
		}
		if messageType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}
		sess.handleFrame(data)
	}
}

// writer drains the send queue onto the socket and keeps the connection
// alive with periodic pings.
func (sess *Session) writer() {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-sess.sendChan:
			sess.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				sess.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sess.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				log.Printf("[live %s] write failed: %v", sess.ID, err)
				return
			}

		case <-ticker.C:
			sess.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-sess.closeChan:
			return
		}
	}
}

func (sess *Session) handleFrame(data []byte) {
	switch MessageType(data[0]) {
	case FrameCommand:
		cmd, err := DecodeCommand(data)
		if err != nil {
			log.Printf("[live %s] bad command frame: %v", sess.ID, err)
			return
		}
		sess.handleCommand(cmd)

	case FrameControl:
		d := NewDecoder(bytes.NewReader(data[1:]))
		msgType, err := d.ReadString()
		if err != nil {
			log.Printf("[live %s] bad control frame: %v", sess.ID, err)
			return
		}
		if msgType == "PING" {
			sess.sendControl("PONG")
		}
	}
}

// handleCommand applies one interaction command to the shared viewer.
// Errors (stale node ids after a concurrent reload, backend failures) are
// logged and dropped; the client state converges on the next tick.
func (sess *Session) handleCommand(cmd Command) {
	v := sess.server.viewer
	var err error

	switch cmd.Type {
	case CommandPin:
		err = v.Pin(cmd.NodeID, cmd.X, cmd.Y)
	case CommandUnpin:
		err = v.Unpin(cmd.NodeID)
	case CommandUnpinAll:
		v.UnpinAll()
	case CommandDragStart:
		err = v.DragStart(cmd.NodeID)
	case CommandDragMove:
		v.DragMove(cmd.X, cmd.Y)
	case CommandDragEnd:
		v.DragEnd()
	case CommandViewport:
		v.Viewport().SetTransform(viewport.Transform{PanX: cmd.X, PanY: cmd.Y, Scale: cmd.Scale})
	case CommandSetPhysics:
		v.SetEnabled(cmd.On)
	case CommandHover:
		v.Hover(cmd.NodeID)
	case CommandExpand:
		go func() {
			if _, err := v.Expand(context.Background(), remote.SubgraphRequest{CenterID: cmd.NodeID}); err != nil {
				log.Printf("[live %s] expand %q failed: %v", sess.ID, cmd.NodeID, err)
				return
			}
			// Everyone sees the grown graph, not just the requester.
			sess.server.Broadcast(EncodeGraph(v.Snapshot()))
		}()
	default:
		log.Printf("[live %s] unknown command 0x%02x", sess.ID, byte(cmd.Type))
	}

	if err != nil {
		log.Printf("[live %s] command 0x%02x failed: %v", sess.ID, byte(cmd.Type), err)
	}
}

func (sess *Session) sendControl(msgType string) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	e.WriteBytes([]byte{byte(FrameControl)})
	e.WriteString(msgType)

	select {
	case sess.sendChan <- buf.Bytes():
	default:
	}
}

func (sess *Session) close() {
	sess.closeOnce.Do(func() {
		close(sess.closeChan)
		sess.conn.Close()
	})
}

