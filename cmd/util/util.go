package util

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openhydrogen/hydrogen/lib/shm"
	"github.com/openhydrogen/hydrogen/wire/common"
	"github.com/openhydrogen/hydrogen/wire/transport"
	"github.com/openhydrogen/hydrogen/wire/transport/tcp"
	"github.com/openhydrogen/hydrogen/wire/transport/unix"
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

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig initializes configuration from environment variables. The
// format of the environment variables is HYDROGEN_<flag> with dashes
// replaced by underscores (e.g. HYDROGEN_TCP_ENDPOINT=:7624)
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("hydrogen")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetAllocator creates a shared-buffer allocator based on configuration.
// "memfd" falls back to the heap allocator on platforms without memfd
// support, which disables cross-process zero-copy delivery.
func GetAllocator() (shm.IAllocator, error) {
	switch kind := viper.GetString("allocator"); kind {
	case "memfd":
		alloc, err := shm.NewMemfdAllocator()
		if err != nil {
			shm.Logger.Warningf("memfd unavailable (%v), falling back to heap allocator", err)
			return shm.NewHeapAllocator(nil), nil
		}
		return alloc, nil
	case "heap":
		return shm.NewHeapAllocator(nil), nil
	default:
		return nil, fmt.Errorf("invalid allocator %s (expected memfd or heap)", kind)
	}
}

// GetTransports creates the configured listener transports
func GetTransports(config common.ServerConfig) ([]transport.IStreamServerTransport, error) {
	var transports []transport.IStreamServerTransport
	if config.Transport.TCPEndpoint != "" {
		transports = append(transports, tcp.NewTCPServerTransport())
	}
	if config.Transport.UnixEndpoint != "" {
		transports = append(transports, unix.NewUnixServerTransport())
	}
	if len(transports) == 0 {
		return nil, fmt.Errorf("no listener configured (set tcp-endpoint or unix-endpoint)")
	}
	return transports, nil
}
