package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	x402 "github.com/davedumto/nex402"
	"github.com/davedumto/nex402/logger"
	"github.com/davedumto/nex402/metrics"
	"github.com/davedumto/nex402/payment"
	"github.com/davedumto/nex402/types"
	"github.com/davedumto/nex402/utils"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().execute(ctx); err != nil {
		printError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// app is the state shared by all subcommands of one invocation.
type app struct {
	root    *cobra.Command
	v       *viper.Viper
	cfgFile string

	log        *logger.ZapLogger
	rec        *metrics.PrometheusRecorder
	invocation string
}

func newApp() *app {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "nex402",
		Short: "Inspect and pay x402 payment-gated endpoints",
		Long: `nex402 talks to HTTP endpoints protected by x402 "402 Payment Required".

  nex402 inspect api.example.com/premium       show what an endpoint charges
  nex402 pay api.example.com/premium --key 0x… pay and fetch the resource`,
		SilenceUsage:       true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default ~/.nex402/config.yaml)")
	flags.String("log-level", "warn", "log level: debug, info, warn or error")
	flags.Duration("timeout", 0, "per-request timeout, e.g. 30s; 0 disables")
	flags.String("metrics-textfile", "", "write Prometheus metrics to this file on exit")
	_ = a.v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("timeout", flags.Lookup("timeout"))
	_ = a.v.BindPFlag("metrics_textfile", flags.Lookup("metrics-textfile"))

	root.AddCommand(newInspectCmd(a))
	root.AddCommand(newPayCmd(a))
	root.AddCommand(newVersionCmd())
	a.root = root
	return a
}

// execute runs the command tree and then flushes logs and metrics, also
// when the command failed.
func (a *app) execute(ctx context.Context) error {
	err := a.root.ExecuteContext(ctx)
	if terr := a.teardown(); terr != nil && err == nil {
		err = terr
	}
	return err
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		home, _ := os.UserHomeDir()
		a.v.AddConfigPath(home + "/.nex402")
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}
	a.v.SetEnvPrefix("NEX402")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	a.v.SetDefault("secrets_file", payment.DefaultSecretsFile)

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return types.NewError(types.ErrConfigError, "failed to read config", err)
		}
	}

	log, err := logger.NewZapLogger(a.v.GetString("log_level"))
	if err != nil {
		return types.NewError(types.ErrConfigError, "invalid log level", err)
	}
	a.invocation = uuid.NewString()
	a.log = log.With(map[string]any{"invocation": a.invocation})
	a.rec = metrics.NewPrometheusRecorder()

	a.log.Debug("starting", map[string]any{"command": cmd.Name(), "version": version})
	return nil
}

func (a *app) teardown() error {
	if a.log != nil {
		_ = a.log.Sync()
	}
	if path := a.v.GetString("metrics_textfile"); path != "" && a.rec != nil {
		return a.rec.WriteTextfile(path)
	}
	return nil
}

// client builds the library client from the resolved configuration.
func (a *app) client() (*x402.Client, error) {
	opts := []x402.Option{
		x402.WithLogger(a.log),
		x402.WithMetrics(a.rec),
		x402.WithTimeout(a.v.GetDuration("timeout")),
		x402.WithSecretsFile(a.v.GetString("secrets_file")),
	}

	if s := a.v.GetString("max_amount"); s != "" {
		limit, err := parseMaxAmount(s)
		if err != nil {
			return nil, err
		}
		opts = append(opts, x402.WithMaxAmount(limit))
	}
	return x402.New(opts...), nil
}

func parseMaxAmount(s string) (*big.Int, error) {
	n, err := utils.ValidateAtomicAmount(strings.TrimSpace(s))
	if err != nil {
		return nil, types.NewError(types.ErrConfigError, fmt.Sprintf("invalid --max-amount %q", s), err)
	}
	return n, nil
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "\n  Error: %s\n", err)
	if hint := types.Remediation(err); hint != "" {
		fmt.Fprintln(w)
		for _, line := range strings.Split(hint, "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	fmt.Fprintln(w)
}
