// ABOUTME: Karaoke server message definitions
// ABOUTME: Queue responses over HTTP and text commands over the notification channel
package protocol

import "fmt"

// Queue endpoint and asset layout on the karaoke server
const (
	NextSongPath = "/player/next"
	songsDir     = "songs"
	SongsPrefix  = "/" + songsDir + "/"
)

// Queue control endpoints of the karaoke server
const (
	QueuePath = "/api/queue"
	AddPath   = "/api/add"
	NextPath  = "/api/next"
	StopPath  = "/api/stop"
	ClearPath = "/api/clear"
)

// Channel defaults
const (
	DefaultSubprotocol = "rust-websocket"
	DefaultGreeting    = "Hello Server!"
	ServerGreeting     = "Hello"
	DefaultChannelPort = 9090
)

// Commands the server may push over the notification channel
const (
	CommandStop = "Stop"
)

// StatusOK is the status value of a successful queue response
const StatusOK = "ok"

// QueueResponse is the JSON body returned by the queue endpoint.
// Message carries the next song id, or null when nothing is queued.
type QueueResponse struct {
	Status  string  `json:"status"`
	Message *string `json:"message"`
}

// NewQueueResponse builds a queue response; an empty id means nothing is queued
func NewQueueResponse(id string) QueueResponse {
	r := QueueResponse{Status: StatusOK}
	if id != "" {
		r.Message = &id
	}
	return r
}

// QueueListing is the JSON body of the queue listing endpoint
type QueueListing struct {
	Queue []string `json:"queue"`
}

// SongID returns the queued song id, if any
func (r QueueResponse) SongID() (string, bool) {
	if r.Message == nil || *r.Message == "" {
		return "", false
	}
	return *r.Message, true
}

// AudioPath returns the server path of a song's audio track
func AudioPath(id string) string {
	return fmt.Sprintf("%s/%s.mp3", songsDir, id)
}

// GraphicsPath returns the server path of a song's graphics stream
func GraphicsPath(id string) string {
	return fmt.Sprintf("%s/%s.cdg", songsDir, id)
}
