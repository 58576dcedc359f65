package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/nupi-ai/chartfeed/internal/config"
	cfversion "github.com/nupi-ai/chartfeed/internal/version"
	"github.com/spf13/cobra"
)

// OutputFormatter handles output in JSON or human-readable format
type OutputFormatter struct {
	jsonMode bool
	out      io.Writer
}

// newOutputFormatter creates a new formatter based on the command's --json flag
func newOutputFormatter(cmd *cobra.Command) *OutputFormatter {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &OutputFormatter{jsonMode: jsonMode, out: cmd.OutOrStdout()}
}

// Print outputs data in the appropriate format
func (f *OutputFormatter) Print(data interface{}) error {
	if !f.jsonMode {
		if s, ok := data.(string); ok {
			fmt.Fprintln(f.out, s)
			return nil
		}
	}
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(f.out, string(jsonBytes))
	return nil
}

// Error outputs an error message
func (f *OutputFormatter) Error(message string, err error) error {
	if f.jsonMode {
		output := map[string]interface{}{
			"success": false,
			"error":   message,
		}
		if err != nil {
			output["details"] = err.Error()
		}
		jsonBytes, _ := json.MarshalIndent(output, "", "  ")
		fmt.Fprintln(os.Stderr, string(jsonBytes))
	} else {
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", message, err)
		} else {
			fmt.Fprintln(os.Stderr, message)
		}
	}
	return fmt.Errorf("%s: %w", message, err)
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chartfeed",
		Short: "chartfeed - stream chart points from a websocket data source",
		Long: `chartfeed keeps a series of (x, y) points fed by a remote data source.

Each session is bound to a streaming mode and a chunk size. Points are
requested straight away and then periodically; only the answer to the most
recent request is appended.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.Version = cfversion.String()
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")

	rootCmd.AddCommand(newModesCommand())
	rootCmd.AddCommand(newStreamCommand())
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogging sends log output to stderr and, when logFile is set, to that
// file as well. "-" keeps stderr only; "default" uses ~/.chartfeed/logs.
func setupLogging(logFile string) (io.Closer, error) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetOutput(os.Stderr)

	switch logFile {
	case "", "-":
		return io.NopCloser(nil), nil
	case "default":
		paths, err := config.EnsureDirs()
		if err != nil {
			return nil, fmt.Errorf("create logs directory: %w", err)
		}
		logFile = filepath.Join(paths.Logs, "chartfeed.log")
	default:
		logFile = config.ExpandPath(logFile)
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	log.Printf("=== chartfeed %s starting (PID: %d) ===", cfversion.FormatVersion(cfversion.String()), os.Getpid())
	log.Printf("Log file: %s", logFile)
	return f, nil
}
