// Package cmd wires up the CLI flags and runs the console against a link.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"microcli/config"
	"microcli/console"
	"microcli/internal/link"
	"microcli/internal/metrics"
	"microcli/internal/transport"
	"microcli/tunnel"
	"microcli/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X microcli/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// flags that steer the command itself rather than the session.
type cliOptions struct {
	configPath  string
	verbose     int
	dryRun      bool
	showVersion bool
	showHelp    bool
}

// Execute parses args and runs a console session on the terminal.
func Execute(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdin, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	// ── config file ──────────────────────────────────────────────
	// The file sits below env and flags, so it is located and loaded
	// before the real flag set is built on top of it.
	cfgPath := preScanConfig(args)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	opts := &cliOptions{configPath: cfgPath}
	fs := newFlagSet(cfg, opts)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(stderr, fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if opts.showHelp || len(args) == 0 {
		printUsage(stderr, fs)
		return nil
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "microcli %s\n", version)
		return nil
	}
	if opts.verbose > 0 {
		cfg.Verbose = opts.verbose
	}

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── tunnel spec ──────────────────────────────────────────────
	if err := cfg.ApplyTunnelSpec(); err != nil {
		return err
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	if opts.dryRun {
		return dumpConfig(stdout, cfg)
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	logger.SetOutput(stderr)
	if cfg.Log.File != "" {
		logger.TeeFile(cfg.Log.FileConfig())
	}
	defer logger.Close() //nolint:errcheck

	dialer, addr, err := buildDialer(cfg, logger)
	if err != nil {
		return err
	}

	stats := metrics.New()
	lk := link.New(link.Options{
		Address:        addr,
		Dialer:         dialer,
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		MaxLineLength:  cfg.MaxLineLength,
		StopTimeout:    cfg.StopTimeout,
		Logger:         logger,
		Metrics:        stats,
	})
	defer shutdown(lk, logger)

	in := stdin
	if len(cfg.Send) > 0 {
		in = strings.NewReader(strings.Join(cfg.Send, "\n") + "\n")
	}

	con := &console.Console{
		Link:   lk,
		In:     in,
		Out:    stdout,
		Styles: console.StylesFor(stdout, cfg.NoColor),
		Macros: cfg.Macros,
		Wait:   cfg.Wait,
		Logger: logger,
	}
	if opts.configPath != "" {
		logger.Verbose("config file %s", opts.configPath)
	}
	logger.Verbose("microcli %s: board %s", version, addr)

	err = con.Run(ctx)

	if cfg.Stats {
		fmt.Fprintln(stderr, stats.JSON())
	}
	if err != nil {
		return err
	}
	if n := len(cfg.Send); n > 0 && stats.LinesOut() < int64(n) {
		return fmt.Errorf("script: %d of %d lines sent to %s", stats.LinesOut(), n, addr)
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────

func newFlagSet(cfg *config.Config, opts *cliOptions) *flag.FlagSet {
	fs := flag.NewFlagSet("microcli", flag.ContinueOnError)

	// Every default is the value already loaded from file and env, so
	// a flag only overrides what it is given.

	// ── connection ───────────────────────────────────────────────
	fs.IntVarP(&cfg.LocalPort, "local-port", "p", cfg.LocalPort, "Local source port")
	fs.BoolVarP(&cfg.NoDNS, "no-dns", "n", cfg.NoDNS, "Numeric-only, no DNS resolution")
	fs.DurationVarP(&cfg.ConnectTimeout, "timeout", "w", cfg.ConnectTimeout, "Connect timeout")
	fs.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "Fault after this long without a line (0 = never)")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "Per-send write timeout (0 = none)")
	fs.DurationVar(&cfg.StopTimeout, "stop-timeout", cfg.StopTimeout, "How long a stop waits for the reader")
	fs.IntVar(&cfg.MaxLineLength, "max-line", cfg.MaxLineLength, "Longest accepted line in bytes (0 = unlimited)")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "SSH tunnel via [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")
	fs.DurationVar(&cfg.SSHKeepAlive, "ssh-keepalive", cfg.SSHKeepAlive, "SSH keepalive interval (0 = off)")

	// ── console ──────────────────────────────────────────────────
	fs.StringArrayVarP(&cfg.Send, "send", "s", cfg.Send, "Send a line and exit after --wait (repeatable)")
	fs.DurationVar(&cfg.Wait, "wait", cfg.Wait, "How long to keep printing replies after input ends")
	fs.BoolVar(&cfg.NoColor, "no-color", cfg.NoColor, "Disable coloured output")
	fs.BoolVar(&cfg.Stats, "stats", cfg.Stats, "Print link counters on exit")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&opts.verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.StringVar(&cfg.Log.File, "log-file", cfg.Log.File, "Also log to this file (rotated)")

	// ── meta ─────────────────────────────────────────────────────
	fs.StringVarP(&opts.configPath, "config", "f", opts.configPath, "YAML config file (env "+config.EnvConfigPath+")")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "Print the effective configuration and exit")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&opts.showHelp, "help", "h", false, "Show this help")

	return fs
}

// preScanConfig finds --config/-f ahead of the full parse.  Everything
// else is ignored here and parsed properly later.
func preScanConfig(args []string) string {
	pre := flag.NewFlagSet("microcli", flag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.SetOutput(io.Discard)
	pre.Usage = func() {}
	path := pre.StringP("config", "f", os.Getenv(config.EnvConfigPath), "")
	_ = pre.Parse(args)
	return *path
}

func parsePositional(cfg *config.Config, remaining []string) error {
	switch len(remaining) {
	case 0: // host and port from defaults, file or env
	case 1:
		cfg.Host = remaining[0]
	case 2:
		cfg.Host = remaining[0]
		port, err := config.ParsePort(remaining[1])
		if err != nil {
			return fmt.Errorf("port: %w", err)
		}
		cfg.Port = port
	default:
		return fmt.Errorf("too many arguments: expected [host [port]]")
	}
	return nil
}

// buildDialer returns the dialer for cfg and the address to give it.
// Through a tunnel the gateway resolves the board's name.
func buildDialer(cfg *config.Config, logger *util.Logger) (transport.Dialer, string, error) {
	if cfg.TunnelEnabled {
		d := transport.NewSSHDialer(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			Password:      cfg.SSHSecret,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   cfg.ConnectTimeout,
			KeepAlive:     cfg.SSHKeepAlive,
		}, logger)
		return d, cfg.Address(), nil
	}

	addr, err := util.ResolveAddr(cfg.Host, cfg.Port, cfg.NoDNS)
	if err != nil {
		return nil, "", err
	}
	return &transport.TCPDialer{Timeout: cfg.ConnectTimeout, LocalPort: cfg.LocalPort}, addr, nil
}

// shutdown closes the link and drains what the console did not print.
func shutdown(lk *link.Controller, logger *util.Logger) {
	if err := lk.Close(); err != nil {
		logger.Verbose("close: %v", err)
	}
	for ev := range lk.Events() {
		logger.Debug("unprinted event: %v", ev)
	}
}

func dumpConfig(w io.Writer, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("dry-run: %w", err)
	}
	fmt.Fprintf(w, "# microcli %s: effective configuration for %s\n", version, cfg.Address())
	_, err = w.Write(data)
	return err
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `microcli: line console for networked microcontroller boards v%s

Talks to a board over a persistent TCP connection: every line you type
is sent with CRLF, every line the board sends back is printed.

Usage:
  microcli [options] [<host> [<port>]]        Interactive console
  microcli -s <line> [-s <line>...] <host>    Send lines, print replies, exit
  microcli -T user@gateway <host> <port>      Through an SSH gateway

Host and port default to %s:%d.

Options:
`, version, config.DefaultHost, config.DefaultPort)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Console commands:
  :quit  :reconnect  :stats  :help  :<macro>  ::text

Examples:
  microcli 192.168.1.1 2000                   Connect to the board
  microcli -s "toggle LED3" --wait 2s         Toggle an LED from a script
  microcli -f lab.yaml -v                     Settings from a file
  microcli -T pi@gateway.lan 10.0.0.7 2000    Reach a board behind a Pi
`)
}
