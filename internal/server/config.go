package server

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// ServerConfig represents the complete broker configuration.
type ServerConfig struct {
	Server ServerSettings `hcl:"server,block"`
	Limits LimitSettings  `hcl:"limits,block"`
}

// ServerSettings contains listener-level configuration.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// LimitSettings bounds per-connection resources.
type LimitSettings struct {
	// SendBuffer is the outbound channel capacity per connection.
	SendBuffer int `hcl:"send_buffer,optional"`
	// MaxMessageSize caps inbound frame size in bytes.
	MaxMessageSize int64 `hcl:"max_message_size,optional"`
}

// DefaultServerConfig returns the default broker configuration.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Limits: LimitSettings{
			SendBuffer:     256,
			MaxMessageSize: 8192,
		},
	}
}

// LoadServerConfig loads configuration from an HCL file, falling back
// to defaults when the file does not exist.
func LoadServerConfig(filename string) (*ServerConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultServerConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ServerConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	applyDefaults(&config)
	return &config, nil
}

func applyDefaults(c *ServerConfig) {
	def := DefaultServerConfig()
	if c.Server.Address == "" {
		c.Server.Address = def.Server.Address
	}
	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = def.Server.LogLevel
	}
	if c.Limits.SendBuffer == 0 {
		c.Limits.SendBuffer = def.Limits.SendBuffer
	}
	if c.Limits.MaxMessageSize == 0 {
		c.Limits.MaxMessageSize = def.Limits.MaxMessageSize
	}
}

// Validate validates the broker configuration.
func (c *ServerConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Limits.SendBuffer < 1 {
		return fmt.Errorf("send buffer must be positive, got %d", c.Limits.SendBuffer)
	}
	if c.Limits.MaxMessageSize < 1 {
		return fmt.Errorf("max message size must be positive, got %d", c.Limits.MaxMessageSize)
	}
	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Server.LogLevel)
	}
	return nil
}

// ListenAddress returns the host:port the broker should bind.
func (c *ServerConfig) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
