package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Transport configuration structs
// --------------------------------------------------------------------------

// SocketConf holds socket options applied to every connection of a transport
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
	TCPNoDelay      bool
	TCPKeepAliveSec int
	// TCPLingerSec < 0 keeps the os default
	TCPLingerSec int
}

// ServerTransportConf holds the listening side of a transport
type ServerTransportConf struct {
	SocketConf
	Endpoint       string
	WorkersPerConn int
	BufferSize     int
}

// ClientTransportConf holds the connecting side of a transport
type ClientTransportConf struct {
	SocketConf
	Endpoints              []string
	RetryCount             int
	ConnectionsPerEndpoint int
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of a parameter server node
type ServerConfig struct {
	// Servers are the parameter server indices hosted by this node
	Servers []int32

	// LayoutFile is the matrix layout, empty for an even default layout
	LayoutFile string

	// TimeoutSecond is the read/write timeout of connections, 0 disables it
	TimeoutSecond int64

	Transport ServerTransportConf

	// MetricsEndpoint serves prometheus metrics, empty disables it
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Workers Per Conn", strconv.Itoa(c.Transport.WorkersPerConn))
	addField("Buffer Size", fmt.Sprintf("%d bytes", c.Transport.BufferSize))
	addSocketFields(addField, c.Transport.SocketConf)

	addSection("Metrics")
	if c.MetricsEndpoint == "" {
		addField("Endpoint", "disabled")
	} else {
		addField("Endpoint", c.MetricsEndpoint)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Parameter servers
	addSection("Parameter Servers")
	if c.LayoutFile == "" {
		addField("Layout", "even (default)")
	} else {
		addField("Layout", c.LayoutFile)
	}
	for i, ps := range c.Servers {
		addField(strconv.Itoa(i), fmt.Sprintf("ps-%d", ps))
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	TimeoutSecond int
	Transport     ClientTransportConf
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(max(1, c.Transport.ConnectionsPerEndpoint)))
	addSocketFields(addField, c.Transport.SocketConf)

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}

// addSocketFields adds the socket options to a config listing
func addSocketFields(addField func(name, value string), s SocketConf) {
	addField("TCP No Delay", strconv.FormatBool(s.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", s.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", s.TCPLingerSec))
	addField("Read Buffer", fmt.Sprintf("%d bytes", s.ReadBufferSize))
	addField("Write Buffer", fmt.Sprintf("%d bytes", s.WriteBufferSize))
}
