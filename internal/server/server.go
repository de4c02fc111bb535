// ABOUTME: Development karaoke server serving the song queue, song files, and the channel
// ABOUTME: Players poll the queue over HTTP and receive Stop pushes over WebSocket
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/karaoke-go/cdg-player/internal/discovery"
	"github.com/karaoke-go/cdg-player/internal/protocol"
)

const (
	listenerBuffer = 8
	pingInterval   = 20 * time.Second
	writeDeadline  = 10 * time.Second
)

// Config holds server configuration
type Config struct {
	Name        string
	Port        int    // queue and song files
	ChannelPort int    // notification channel
	SongsDir    string // holds <id>.mp3 and <id>.cdg pairs
	Subprotocol string
	Service     string // mDNS service type
	EnableMDNS  bool
	UseTUI      bool
	Debug       bool
}

// Server is a karaoke server for local players
type Server struct {
	config   Config
	serverID string
	queue    *Queue

	upgrader   websocket.Upgrader
	mux        *http.ServeMux
	channelMux *http.ServeMux

	httpServer    *http.Server
	channelServer *http.Server

	listeners   map[string]*listener
	listenersMu sync.RWMutex

	advert *discovery.Advertisement
	tui    *ServerTUI

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// listener is a player connected to the notification channel
type listener struct {
	ID        string
	Addr      string
	Connected time.Time
	conn      *websocket.Conn
	sendChan  chan string
}

// New creates a server over queue
func New(config Config, queue *Queue) *Server {
	if config.Subprotocol == "" {
		config.Subprotocol = protocol.DefaultSubprotocol
	}
	if config.ChannelPort == 0 {
		config.ChannelPort = protocol.DefaultChannelPort
	}
	if config.Service == "" {
		config.Service = "_karaoke._tcp"
	}
	if queue == nil {
		queue = NewQueue()
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		queue:    queue,
		upgrader: websocket.Upgrader{
			Subprotocols: []string{config.Subprotocol},
			// Players connect from any origin on the local network
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux:        http.NewServeMux(),
		channelMux: http.NewServeMux(),
		listeners:  make(map[string]*listener),
		stopChan:   make(chan struct{}),
	}

	s.mux.HandleFunc(protocol.NextSongPath, s.handleNextSong)
	s.mux.HandleFunc(protocol.QueuePath, s.handleQueue)
	s.mux.HandleFunc(protocol.AddPath, s.handleAdd)
	s.mux.HandleFunc(protocol.NextPath, s.handleNext)
	s.mux.HandleFunc(protocol.StopPath, s.handleStop)
	s.mux.HandleFunc(protocol.ClearPath, s.handleClear)
	s.mux.Handle(protocol.SongsPrefix, http.StripPrefix(protocol.SongsPrefix, http.FileServer(http.Dir(config.SongsDir))))

	s.channelMux.HandleFunc("/", s.handleChannel)

	return s
}

// Handler returns the HTTP handler for the queue and song files
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ChannelHandler returns the HTTP handler for the notification channel
func (s *Server) ChannelHandler() http.Handler {
	return s.channelMux
}

// Queue returns the song queue
func (s *Server) Queue() *Queue {
	return s.queue
}

// Start runs the server until Stop is called, the TUI quits, or a listener fails
func (s *Server) Start() error {
	if s.config.UseTUI {
		s.tui = NewServerTUI()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.tui.Start(s.status()); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
	}

	log.Printf("Server starting: %s (ID: %s)", s.config.Name, s.serverID)

	if s.config.EnableMDNS {
		advert, err := discovery.Advertise(discovery.AdvertiseConfig{
			Name:    s.config.Name,
			Service: s.config.Service,
			Port:    s.config.Port,
			Info:    []string{fmt.Sprintf("channel=%d", s.config.ChannelPort)},
		})
		if err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			s.advert = advert
		}
	}

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.mux,
	}
	s.channelServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.ChannelPort),
		Handler: s.channelMux,
	}

	errChan := make(chan error, 2)
	for _, srv := range []*http.Server{s.httpServer, s.channelServer} {
		go func(srv *http.Server) {
			log.Printf("Listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				errChan <- err
			}
		}(srv)
	}

	var tuiQuitChan <-chan struct{}
	if s.tui != nil {
		tuiQuitChan = s.tui.QuitChan()
	}

	var serverErr error
	select {
	case <-s.stopChan:
		log.Printf("Server shutting down...")
	case <-tuiQuitChan:
		log.Printf("TUI quit requested, shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.tui != nil {
		s.tui.Stop()
	}

	if s.advert != nil {
		s.advert.Shutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, srv := range []*http.Server{s.httpServer, s.channelServer} {
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}

	// Hijacked channel connections are not closed by Shutdown
	s.closeListeners()

	s.wg.Wait()
	log.Printf("Server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// handleNextSong hands the head of the queue to a player
func (s *Server) handleNextSong(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, ok := s.queue.Pop()
	if ok {
		log.Printf("Handing out song %s to %s", id, r.RemoteAddr)
		s.updateTUI()
	}
	writeJSON(w, protocol.NewQueueResponse(id))
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, protocol.QueueListing{Queue: s.queue.Songs()})
}

// handleAdd queues a song, or plays it right away when now=true
func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.FormValue("song")
	if id == "" {
		http.Error(w, "missing song", http.StatusBadRequest)
		return
	}
	if err := s.songExists(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	if r.FormValue("now") == "true" {
		s.queue.PlayNow(id)
		s.Broadcast(protocol.CommandStop)
		log.Printf("Playing %s now", id)
	} else {
		s.queue.Add(id)
		log.Printf("Queued %s", id)
	}

	s.updateTUI()
	writeJSON(w, protocol.NewQueueResponse(""))
}

// handleNext stops the current song when another one is waiting
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.queue.Len() > 0 {
		s.Broadcast(protocol.CommandStop)
	}
	writeJSON(w, protocol.NewQueueResponse(""))
}

// handleStop clears the queue and stops the current song
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.queue.Clear()
	s.Broadcast(protocol.CommandStop)
	s.updateTUI()
	writeJSON(w, protocol.NewQueueResponse(""))
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.queue.Clear()
	s.updateTUI()
	writeJSON(w, protocol.NewQueueResponse(""))
}

// songExists checks that both files of a song are present
func (s *Server) songExists(id string) error {
	if id != filepath.Base(id) || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid song id %q", id)
	}
	for _, path := range []string{protocol.AudioPath(id), protocol.GraphicsPath(id)} {
		name := filepath.Join(s.config.SongsDir, filepath.Base(path))
		if _, err := os.Stat(name); err != nil {
			return fmt.Errorf("song %s: %w", id, err)
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

// handleChannel upgrades players offering the channel sub-protocol
func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	if !offersSubprotocol(r, s.config.Subprotocol) {
		log.Printf("Connection from %s attempted without sub-protocol %s", r.RemoteAddr, s.config.Subprotocol)
		http.Error(w, "unsupported sub-protocol", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("Connection from %s", r.RemoteAddr)
	s.handleListener(conn, r.RemoteAddr)
}

func offersSubprotocol(r *http.Request, want string) bool {
	for _, p := range websocket.Subprotocols(r) {
		if p == want {
			return true
		}
	}
	return false
}

// handleListener registers a player and reads until it disconnects
func (s *Server) handleListener(conn *websocket.Conn, addr string) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Printf("Rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	l := &listener{
		ID:        uuid.New().String(),
		Addr:      addr,
		Connected: time.Now(),
		conn:      conn,
		sendChan:  make(chan string, listenerBuffer),
	}
	l.sendChan <- protocol.ServerGreeting

	s.listenersMu.Lock()
	s.listeners[l.ID] = l
	s.listenersMu.Unlock()
	s.updateTUI()

	defer func() {
		s.listenersMu.Lock()
		delete(s.listeners, l.ID)
		close(l.sendChan)
		s.listenersMu.Unlock()
		log.Printf("Player disconnected: %s", addr)
		s.updateTUI()
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.listenerWriter(l)
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("WebSocket error from %s: %v", addr, err)
			}
			return
		}
		if messageType == websocket.TextMessage {
			log.Printf("%s sent: %s", addr, string(data))
		}
	}
}

// listenerWriter delivers queued text and keep-alive pings
func (s *Server) listenerWriter(l *listener) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case text, ok := <-l.sendChan:
			if !ok {
				return
			}
			l.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := l.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
				log.Printf("Error writing to %s: %v", l.Addr, err)
				return
			}
			if s.config.Debug {
				log.Printf("[DEBUG] Sent %q to %s", text, l.Addr)
			}

		case <-ticker.C:
			if err := l.conn.WriteControl(websocket.PingMessage, []byte("Ping"), time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

// Broadcast queues text for every connected player and returns how many
// players it was queued for. Players with a full buffer are skipped.
func (s *Server) Broadcast(text string) int {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()

	sent := 0
	for _, l := range s.listeners {
		select {
		case l.sendChan <- text:
			sent++
		default:
			log.Printf("Dropping %q for %s: send buffer full", text, l.Addr)
		}
	}

	log.Printf("Broadcast %q to %d player(s)", text, sent)
	return sent
}

// ListenerCount returns the number of connected players
func (s *Server) ListenerCount() int {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	return len(s.listeners)
}

func (s *Server) closeListeners() {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()

	for _, l := range s.listeners {
		l.conn.Close()
	}
}
