package config

import (
	"fmt"
	"strings"
)

// Validate checks that a loaded configuration is usable before the node
// touches storage or opens sockets.
func Validate(c *Config) error {
	if c == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress is required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir is required")
	}
	if strings.TrimSpace(c.AdminAddress) == "" {
		return fmt.Errorf("config: AdminAddress is required")
	}
	if _, err := c.Admin(); err != nil {
		return err
	}
	if _, _, err := c.Collector(); err != nil {
		return err
	}
	return nil
}
