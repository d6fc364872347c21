package util

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dPS/lib/partition"
	"github.com/ValentinKolb/dPS/rpc/common"
	"github.com/ValentinKolb/dPS/rpc/transport"
	"github.com/ValentinKolb/dPS/rpc/transport/http"
	"github.com/ValentinKolb/dPS/rpc/transport/tcp"
	"github.com/ValentinKolb/dPS/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Environment and flags
// --------------------------------------------------------------------------

// InitEnv loads .env files and binds environment variables with the DPS_ prefix
func InitEnv() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dps")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// SetupLayoutFlags adds the flags describing the matrix layout
func SetupLayoutFlags(cmd *cobra.Command) {
	key := "layout"
	cmd.PersistentFlags().String(key, "", WrapString("Path of a TOML layout file. If empty, a single matrix is partitioned evenly using the matrix-* flags"))

	key = "matrix-id"
	cmd.PersistentFlags().Int32(key, 1, WrapString("ID of the default matrix"))

	key = "matrix-rows"
	cmd.PersistentFlags().Int32(key, 1, WrapString("Rows of the default matrix"))

	key = "matrix-cols"
	cmd.PersistentFlags().Int64(key, 1000, WrapString("Columns of the default matrix"))

	key = "matrix-partitions"
	cmd.PersistentFlags().Int(key, 2, WrapString("Number of column partitions of the default matrix"))

	key = "matrix-servers"
	cmd.PersistentFlags().Int(key, 1, WrapString("Number of parameter servers the default matrix is spread over"))
}

// GetLayout loads the layout file or creates the default layout
func GetLayout() (*partition.Layout, error) {
	if path := viper.GetString("layout"); path != "" {
		return partition.LoadLayout(path)
	}

	l := &partition.Layout{Matrices: []partition.MatrixLayout{partition.EvenLayout(
		viper.GetInt32("matrix-id"),
		viper.GetInt32("matrix-rows"),
		viper.GetInt64("matrix-cols"),
		viper.GetInt("matrix-partitions"),
		viper.GetInt("matrix-servers"),
	)}}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// SetupSocketFlags adds the socket option flags shared by client and server
func SetupSocketFlags(cmd *cobra.Command) {
	key := "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the socket write buffer (in KB, ignored for http)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the socket read buffer (in KB, ignored for http)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, -1, WrapString("The linger time (in seconds, only for tcp, -1 keeps the os default)"))
}

// GetSocketConf reads the socket options from viper
func GetSocketConf() common.SocketConf {
	return common.SocketConf{
		WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
		ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
		TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
		TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
	}
}

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of a request, checkpoints never time out"))

	key = "transport-endpoints"
	cmd.PersistentFlags().String(key, "localhost:8080", WrapString("The address of the dPS server. For transports that support load balancing, multiple endpoints can be specified as a comma-separated list"))

	key = "transport-conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections per endpoint - for transports that support this feature"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to try a request"))

	SetupSocketFlags(cmd)
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		TimeoutSecond: viper.GetInt("timeout"),
		Transport: common.ClientTransportConf{
			SocketConf:             GetSocketConf(),
			RetryCount:             viper.GetInt("transport-retries"),
			Endpoints:              strings.Split(viper.GetString("transport-endpoints"), ","),
			ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
		},
	}
}

// GetTransport creates the client transport based on configuration
func GetTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpClientTransport(), nil
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// --------------------------------------------------------------------------
// Argument parsing
// --------------------------------------------------------------------------

// ParseInt32List parses a comma-separated list of integers
func ParseInt32List(s string) ([]int32, error) {
	var out []int32
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseInt(field, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", field, err)
		}
		out = append(out, int32(v))
	}
	return out, nil
}

// ParseEntries parses sparse entries of the form "col:value,col:value"
func ParseEntries(s string) ([]int32, []float64, error) {
	var cols []int32
	var values []float64
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		col, value, ok := strings.Cut(field, ":")
		if !ok {
			return nil, nil, fmt.Errorf("invalid entry %q (expected col:value)", field)
		}
		c, err := strconv.ParseInt(col, 10, 32)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid column %q: %w", col, err)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid value %q: %w", value, err)
		}
		cols = append(cols, int32(c))
		values = append(values, v)
	}
	return cols, values, nil
}
