// ABOUTME: Configuration validation
// ABOUTME: Rejects settings that would break timing or rendering at startup
package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
)

// Validate ensures the configuration is usable
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateDisplay(); err != nil {
		return err
	}
	if c.Queue.Autoplay && c.Queue.PollIntervalSeconds <= 0 {
		return errors.New("queue.poll_interval_seconds must be positive when autoplay is enabled")
	}
	if c.Channel.Enabled && c.Channel.PingIntervalSeconds < 0 {
		return errors.New("channel.ping_interval_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.BaseURL == "" {
		if c.Discovery.Enabled {
			return nil
		}
		return errors.New("server.base_url must be set unless discovery is enabled")
	}
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server.base_url %q is not an absolute URL", c.Server.BaseURL)
	}
	if c.Server.RequestTimeoutSeconds < 0 {
		return errors.New("server.request_timeout_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateSync() error {
	d := c.Sync.SectorDurationSeconds
	if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return fmt.Errorf("sync.sector_duration_seconds must be positive, got %v", d)
	}
	if c.Sync.PollIntervalMS <= 0 {
		return errors.New("sync.poll_interval_ms must be positive")
	}
	return nil
}

func (c *Config) validateDisplay() error {
	d := c.Display
	if d.FrameWidth <= 0 || d.FrameHeight <= 0 {
		return errors.New("display.frame_width and display.frame_height must be positive")
	}
	if d.DisplayWidth <= 0 || d.DisplayHeight <= 0 {
		return errors.New("display.display_width and display.display_height must be positive")
	}
	if d.DisplayWidth > d.FrameWidth || d.DisplayHeight > d.FrameHeight {
		return errors.New("display area must fit inside the frame")
	}
	if d.Scale <= 0 || math.IsNaN(d.Scale) || math.IsInf(d.Scale, 0) {
		return fmt.Errorf("display.scale must be positive, got %v", d.Scale)
	}
	if d.ViewportWidth <= 0 || d.ViewportHeight <= 0 {
		return errors.New("display.viewport_width and display.viewport_height must be positive")
	}
	if d.BackdropSourceWidth < 0 || d.BackdropSourceHeight < 0 {
		return errors.New("display backdrop source size must not be negative")
	}
	return nil
}
