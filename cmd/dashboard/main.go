package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trading-bot-dashboard/internal/api"
	"trading-bot-dashboard/internal/logger"
	"trading-bot-dashboard/internal/trace"
	"trading-bot-dashboard/internal/types"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Simulated sentiment trading bot dashboard",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeSystem()
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(stateCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(botCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", trace.ServiceName, trace.ServiceVersion)
		},
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, *configPath)
		},
	}
}

func runServer(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return err
	}

	d := initializeDashboard(ctx, cfg)
	defer func() {
		d.close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := trace.Shutdown(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "Tracer shutdown failed", "error", err)
		}
	}()

	go d.loop.Run(ctx)

	if err := d.seed(ctx, cfg); err != nil {
		return fmt.Errorf("seed dashboard: %w", err)
	}

	logger.Info(ctx, "Dashboard ready",
		"addr", cfg.Server.Addr,
		"log_capacity", cfg.Log.Capacity,
		"tick_delay_ms", fmt.Sprintf("%d-%d", cfg.Simulator.MinDelayMs, cfg.Simulator.MaxDelayMs),
	)

	err = d.srv.ListenAndServe(ctx, cfg.Server.Addr,
		time.Duration(cfg.Server.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.Server.WriteTimeoutSec)*time.Second,
	)
	logger.Info(context.Background(), "Shutting down...")
	return err
}

// clientOptions holds the flags shared by the commands that talk to a
// running server.
type clientOptions struct {
	addr    string
	timeout time.Duration
	headers map[string]string
}

func clientFlags(cmd *cobra.Command, o *clientOptions) {
	cmd.Flags().StringVar(&o.addr, "addr", "http://localhost:8080", "Dashboard server base URL")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 10*time.Second, "Request timeout")
	cmd.Flags().StringToStringVarP(&o.headers, "header", "H", nil, "Extra request header as key=value (repeatable)")
}

func (o *clientOptions) client() *api.Client {
	opts := []api.ClientOption{
		api.WithBaseURL(o.addr),
		api.WithTimeout(o.timeout),
		api.WithLogging(logger.IsDebugEnabled()),
	}
	for k, v := range o.headers {
		opts = append(opts, api.WithHeader(k, v))
	}
	return api.NewClient(opts...)
}

func stateCmd() *cobra.Command {
	var co clientOptions
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Print the current dashboard snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := co.client().State(cmd.Context())
			if err != nil {
				return err
			}
			return printState(st)
		},
	}
	clientFlags(cmd, &co)
	return cmd
}

func loginCmd() *cobra.Command {
	var co clientOptions
	var apiKey, apiSecret string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Connect the dashboard to (simulated) Kite",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := types.CredentialsPatch{}
			if apiKey != "" {
				body.APIKey = &apiKey
			}
			if apiSecret != "" {
				body.APISecret = &apiSecret
			}
			st, err := co.client().Post(cmd.Context(), "/api/login", body)
			if err != nil {
				return err
			}
			fmt.Println("Login accepted, session is established after the login latency")
			return printState(st)
		},
	}
	clientFlags(cmd, &co)
	cmd.Flags().StringVar(&apiKey, "api-key", os.Getenv("KITE_API_KEY"), "Kite API key")
	cmd.Flags().StringVar(&apiSecret, "api-secret", os.Getenv("KITE_API_SECRET"), "Kite API secret")
	return cmd
}

func botCmd() *cobra.Command {
	var co clientOptions
	cmd := &cobra.Command{
		Use:       "bot start|stop",
		Short:     "Start or stop the trading bot",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"start", "stop"},
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := co.client().Post(cmd.Context(), "/api/bot/"+args[0], nil)
			if err != nil {
				return err
			}
			return printState(st)
		},
	}
	clientFlags(cmd, &co)
	return cmd
}

func printState(st types.State) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
