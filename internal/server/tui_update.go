// ABOUTME: TUI update helpers for server
// ABOUTME: Functions to send queue and player state updates to TUI
package server

import "sort"

// updateTUI sends current server state to TUI
func (s *Server) updateTUI() {
	if s.tui == nil {
		return
	}
	s.tui.Update(s.status())
}

// status collects the queue and connected players
func (s *Server) status() ServerStatus {
	s.listenersMu.RLock()
	players := make([]PlayerInfo, 0, len(s.listeners))
	for _, l := range s.listeners {
		players = append(players, PlayerInfo{
			ID:        l.ID,
			Addr:      l.Addr,
			Connected: l.Connected,
		})
	}
	s.listenersMu.RUnlock()

	sort.Slice(players, func(i, j int) bool {
		return players[i].Connected.Before(players[j].Connected)
	})

	return ServerStatus{
		Name:        s.config.Name,
		Port:        s.config.Port,
		ChannelPort: s.config.ChannelPort,
		Queue:       s.queue.Songs(),
		Players:     players,
	}
}
