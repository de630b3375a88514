package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "1.0.0" // Set during build with -ldflags
	config  *Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "memkv",
	Short: "memkv - in-memory key-value store over TCP",
	Long: `memkv is an in-memory key-value store exposed over a TCP server.

Clients issue binary-framed commands (GET, SET, DELETE, METRICS) over a
persistent socket; the server executes them on a bounded worker pool
against a shared store guarded by a writer-priority reader/writer lock.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		config, err = LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := config.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return nil
	},
}

// serverCmd runs the memkv server until interrupted
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the memkv server",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := config.NewLogger()
		server := NewMemKVServer(config, log)

		// Handle graceful shutdown
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		errChan := make(chan error, 1)
		go func() {
			errChan <- server.Start()
		}()

		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("shutting down")
			server.Stop()
			return nil
		case err := <-errChan:
			return err
		}
	},
}

// newClient builds a client from the loaded configuration.
func newClient() *Client {
	client := NewClient(config.Host, config.Port, config.NewLogger())
	client.SetMaxRetries(config.MaxRetries)
	return client
}

var getCmd = &cobra.Command{
	Use:   "get key [key ...]",
	Short: "Fetch the values for one or more keys",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		defer client.Close()

		kvs, err := client.Get(args)
		if err != nil {
			return err
		}
		printKeyValues(kvs)
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set key value [key value ...]",
	Short: "Store one or more key/value pairs",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kvs, err := parseSetArgs(args)
		if err != nil {
			return err
		}

		client := newClient()
		defer client.Close()

		keys, err := client.Set(kvs)
		if err != nil {
			return err
		}
		printKeyList("stored", keys)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete key [key ...]",
	Short: "Remove one or more keys",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		defer client.Close()

		keys, err := client.Delete(args)
		if err != nil {
			return err
		}
		printKeyList("deleted", keys)
		return nil
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show server metrics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		defer client.Close()

		metrics, err := client.AllMetrics()
		if err != nil {
			return err
		}
		printMetrics(metrics)
		return nil
	},
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive memkv shell",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		defer client.Close()
		return runREPL(client)
	},
}

// configCmd shows current configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("memkv configuration:")
		fmt.Printf("Host: %s\n", config.Host)
		fmt.Printf("Port: %d\n", config.Port)
		fmt.Printf("Worker Count: %d\n", config.WorkerCount)
		fmt.Printf("Debug: %t\n", config.Debug)
		fmt.Printf("Log Level: %s\n", config.LogLevel)
		fmt.Printf("Log Format: %s\n", config.LogFormat)
		fmt.Printf("Max Retries: %d\n", config.MaxRetries)
		fmt.Printf("Read Timeout: %v\n", config.ReadTimeout)
		fmt.Printf("Write Timeout: %v\n", config.WriteTimeout)
		return nil
	},
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("memkv v%s\n", version)
		fmt.Printf("Built with Go %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringP("host", "H", "127.0.0.1", "Host to bind or connect to")
	rootCmd.PersistentFlags().IntP("port", "p", 9001, "Port to listen or connect on")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format (console, json)")

	serverCmd.Flags().Int("worker-count", 10, "Number of command execution workers")
	serverCmd.Flags().Duration("read-timeout", 0, "Per-read socket deadline (0 disables)")
	serverCmd.Flags().Duration("write-timeout", 0, "Per-write socket deadline (0 disables)")

	rootCmd.PersistentFlags().Int("max-retries", DefaultMaxRetries, "Client retry budget for transport errors")

	// Bind flags to viper
	viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("max_retries", rootCmd.PersistentFlags().Lookup("max-retries"))
	viper.BindPFlag("worker_count", serverCmd.Flags().Lookup("worker-count"))
	viper.BindPFlag("read_timeout", serverCmd.Flags().Lookup("read-timeout"))
	viper.BindPFlag("write_timeout", serverCmd.Flags().Lookup("write-timeout"))

	// Add subcommands
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute is the main entry point for the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
