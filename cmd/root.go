package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-library/internal/config"
	"github.com/kozaktomas/photo-library/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "photo-library",
	Short: "A self-hosted photo library that recognises the people in your photos",
	Long: `photo-library is a self-hosted photo library. The server ingests uploaded photos,
derives thumbnails, detects the faces in them and groups the faces into people.
The upload command bulk-sends a directory tree of photos to a running server.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig reads the configuration and installs the default logger.
// The returned closer flushes the log file, if any.
func loadConfig() (*config.Config, io.Closer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	closer, err := logging.Init(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logging: %w", err)
	}
	return cfg, closer, nil
}

// printError writes err followed by its cause chain, one cause per line.
func printError(w io.Writer, err error) {
	levels := errorChain(err)
	fmt.Fprintf(w, "Error: %s\n", levels[0])
	if len(levels) == 1 {
		return
	}
	fmt.Fprintln(w, "\nCaused by:")
	for i, msg := range levels[1:] {
		fmt.Fprintf(w, "    %d: %s\n", i, msg)
	}
}

// errorChain splits err into one message per Unwrap level, each without
// the text of the error it wraps.
func errorChain(err error) []string {
	var levels []string
	for err != nil {
		inner := errors.Unwrap(err)
		msg := err.Error()
		if inner != nil {
			msg = strings.TrimSuffix(msg, ": "+inner.Error())
		}
		levels = append(levels, msg)
		err = inner
	}
	return levels
}
