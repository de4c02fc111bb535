// ABOUTME: mDNS advertisement of a karaoke server
// ABOUTME: Publishes the HTTP port under the karaoke service type until shut down
package discovery

import (
	"fmt"
	"log"
	"net"

	"github.com/hashicorp/mdns"
)

// AdvertiseConfig describes the service to publish
type AdvertiseConfig struct {
	Name    string
	Service string // e.g. _karaoke._tcp
	Port    int
	Info    []string // TXT records
}

// Advertisement is a running mDNS responder
type Advertisement struct {
	server *mdns.Server
}

// Advertise starts answering mDNS queries for the service
func Advertise(config AdvertiseConfig) (*Advertisement, error) {
	ips, err := getLocalIPs()
	if err != nil {
		return nil, fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		config.Name,
		config.Service,
		"",
		"",
		config.Port,
		ips,
		config.Info,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", config.Name, config.Port, config.Service)

	return &Advertisement{server: server}, nil
}

// Shutdown stops answering queries
func (a *Advertisement) Shutdown() {
	if err := a.server.Shutdown(); err != nil {
		log.Printf("mDNS shutdown error: %v", err)
	}
}

// getLocalIPs returns the non-loopback IPv4 addresses of interfaces that are up
func getLocalIPs() ([]net.IP, error) {
	ips := []net.IP{}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
				ips = append(ips, ipnet.IP)
			}
		}
	}

	return ips, nil
}
