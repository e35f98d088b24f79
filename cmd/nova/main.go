package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hrygo/nova/internal/profile"
	"github.com/hrygo/nova/plugin/ai/timeout"
	"github.com/hrygo/nova/server"
	"github.com/hrygo/nova/store"
	"github.com/hrygo/nova/store/db"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:          "nova",
	Short:        "Nova nightlife companion server",
	SilenceUsage: true,
	RunE:         runServe,
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Event log maintenance",
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run the retention jobs once and exit",
	RunE:  runCleanup,
}

func init() {
	registerFlags(rootCmd.PersistentFlags())
	eventsCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(eventsCmd)
}

func registerFlags(flags *pflag.FlagSet) {
	flags.String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	flags.String("addr", "", "address of server")
	flags.Int("port", 8081, "port of server")
	flags.String("data", "", "data directory")
	flags.String("driver", "sqlite", "store driver, sqlite or memory")
	flags.String("dsn", "", "database source name")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadProfile resolves flags and NOVA_* environment variables into a validated profile.
func loadProfile(flags *pflag.FlagSet) (*profile.Profile, error) {
	v := viper.New()
	v.SetEnvPrefix("nova")
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, errors.Wrap(err, "failed to bind flags")
	}

	p := &profile.Profile{
		Mode:    v.GetString("mode"),
		Addr:    v.GetString("addr"),
		Port:    v.GetInt("port"),
		Data:    v.GetString("data"),
		Driver:  v.GetString("driver"),
		DSN:     v.GetString("dsn"),
		Version: version,
	}
	p.FromEnv()
	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return p, nil
}

func setupLogger(p *profile.Profile) {
	var handler slog.Handler
	if p.IsDev() {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}

func openStore(p *profile.Profile) (*store.Store, error) {
	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, err
	}
	return store.New(driver, p), nil
}

// bootstrap loads configuration and builds the server with its store.
func bootstrap(ctx context.Context, cmd *cobra.Command) (*server.Server, error) {
	p, err := loadProfile(cmd.Flags())
	if err != nil {
		return nil, err
	}
	setupLogger(p)

	st, err := openStore(p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open store")
	}
	s, err := server.NewServer(ctx, p, st)
	if err != nil {
		if cerr := st.Close(); cerr != nil {
			slog.Error("failed to close store", "error", cerr)
		}
		return nil, errors.Wrap(err, "failed to create server")
	}
	return s, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := bootstrap(ctx, cmd)
	if err != nil {
		return err
	}
	printGreetings(s.Profile)
	return s.Start(ctx)
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	s, err := bootstrap(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout.ShutdownTimeout)
		defer cancel()
		s.Shutdown(shutdownCtx)
	}()

	res := s.Cleanup.RunOnce(ctx)
	names := make([]string, 0, len(res.Removed))
	for name := range res.Removed {
		names = append(names, name)
	}
	sort.Strings(names)
	out := cmd.OutOrStdout()
	for _, name := range names {
		fmt.Fprintf(out, "%-12s %d removed\n", name, res.Removed[name])
	}
	fmt.Fprintf(out, "done in %s\n", res.Duration)
	return nil
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("Nova %s started successfully!\n", p.Version)
	fmt.Printf("Mode: %s, driver: %s\n", p.Mode, p.Driver)
	if p.Driver == "sqlite" {
		fmt.Printf("Database: %s\n", p.DSN)
	}
	fmt.Printf("Listening on %s:%d\n", p.Addr, p.Port)
	if !p.IsLLMEnabled() {
		fmt.Println("No LLM key configured, chat answers from local context only")
	}
}
