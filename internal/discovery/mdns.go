// ABOUTME: mDNS lookup of the karaoke server
// ABOUTME: Browses for the server service and resolves it to an HTTP base URL
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/hashicorp/mdns"
)

// ErrNotFound is returned when no server answered before the timeout
var ErrNotFound = errors.New("no karaoke server found")

// Config holds discovery configuration
type Config struct {
	Service string // e.g. _karaoke._tcp
	Domain  string // defaults to local
	Timeout time.Duration
}

// ServerInfo describes a discovered server
type ServerInfo struct {
	Name string
	Host string
	Port int
}

// Addr returns host:port
func (s *ServerInfo) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// BaseURL returns the HTTP origin of the server
func (s *ServerInfo) BaseURL() string {
	return "http://" + s.Addr()
}

// Lookup returns the first server answering for the configured service
func Lookup(ctx context.Context, config Config) (*ServerInfo, error) {
	if config.Domain == "" {
		config.Domain = "local"
	}
	if config.Timeout <= 0 {
		config.Timeout = 3 * time.Second
	}

	entries := make(chan *mdns.ServiceEntry, 10)
	params := &mdns.QueryParam{
		Service: config.Service,
		Domain:  config.Domain,
		Timeout: config.Timeout,
		Entries: entries,
	}

	queryErr := make(chan error, 1)
	go func() {
		queryErr <- mdns.Query(params)
		close(entries)
	}()

	log.Printf("Browsing for %s", config.Service)

	// Late answers are discarded once a server has been chosen
	drain := func() {
		go func() {
			for range entries {
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			drain()
			return nil, ctx.Err()
		case entry, ok := <-entries:
			if !ok {
				if err := <-queryErr; err != nil {
					return nil, fmt.Errorf("mdns query failed: %w", err)
				}
				return nil, ErrNotFound
			}
			if server, ok := fromEntry(entry); ok {
				log.Printf("Discovered server: %s at %s", server.Name, server.Addr())
				drain()
				return server, nil
			}
		}
	}
}

// fromEntry converts a browse result, skipping entries without an address
func fromEntry(entry *mdns.ServiceEntry) (*ServerInfo, bool) {
	if entry == nil || entry.Port <= 0 {
		return nil, false
	}

	var host string
	switch {
	case entry.AddrV4 != nil:
		host = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		host = entry.AddrV6.String()
	default:
		return nil, false
	}

	return &ServerInfo{
		Name: entry.Name,
		Host: host,
		Port: entry.Port,
	}, true
}
