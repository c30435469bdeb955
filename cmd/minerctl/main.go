// Command minerctl queries and controls Whatsminer devices.
//
// Usage:
//
//	minerctl [flags] <command> [args]
//
// Flags:
//
//	-config string        YAML file listing machines
//	-machine string       Only use the named machine from -config
//	-host string          Device host (ignored with -config)
//	-port int             Device API port (default 4028)
//	-password string      Admin password (default $WHATSMINER_PASSWORD)
//	-timeout duration     Exchange timeout (default 10s)
//	-parallel int         Machines queried at once (default 8)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-protocol-log string  File path for protocol event logging (CBOR format)
//	-interactive          Read commands from a prompt
//
// Commands:
//
//	summary, pools, details, psu, version, status, online
//	restart, power-on, power-off, reboot
//	freq <percent>, power-pct <percent>, fast-boot on|off
//	watch [interval]
//	log <file.mlog>
//
// Examples:
//
//	# Read the summary of one device
//	minerctl -host 10.0.0.10 -password admin summary
//
//	# Limit power on every machine of a rack
//	minerctl -config rack.yaml power-pct 80
//
//	# Record the protocol exchange and view it afterwards
//	minerctl -host 10.0.0.10 -protocol-log run.mlog status
//	minerctl log run.mlog
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/whatsminer-go/whatsminer/pkg/client"
	"github.com/whatsminer-go/whatsminer/pkg/config"
	mlog "github.com/whatsminer-go/whatsminer/pkg/log"
	"github.com/whatsminer-go/whatsminer/pkg/miner"
	"github.com/whatsminer-go/whatsminer/pkg/transport"
)

var (
	configFile  = flag.String("config", "", "YAML file listing machines")
	machineName = flag.String("machine", "", "Only use the named machine from -config")
	host        = flag.String("host", "", "Device host (ignored with -config)")
	port        = flag.Int("port", client.DefaultPort, "Device API port")
	password    = flag.String("password", "", "Admin password (default $"+config.PasswordEnv+")")
	timeout     = flag.Duration("timeout", transport.DefaultTimeout, "Exchange timeout")
	parallel    = flag.Int("parallel", defaultParallel, "Machines queried at once")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	protocolLog = flag.String("protocol-log", "", "File path for protocol event logging (CBOR format)")
	interactive = flag.Bool("interactive", false, "Read commands from a prompt")
)

func main() {
	flag.Parse()
	setupLogging(*logLevel)

	args := flag.Args()
	if len(args) > 0 && args[0] == "log" {
		// Reading a log file needs no device.
		if err := viewLog(os.Stdout, args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if len(args) == 0 && !*interactive {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var protocolLogger *mlog.FileLogger
	if *protocolLog != "" {
		protocolLogger, err = mlog.NewFileLogger(*protocolLog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create protocol logger: %v\n", err)
			os.Exit(1)
		}
		defer protocolLogger.Close()
		log.Printf("Protocol logging to: %s", *protocolLog)
	}

	opLogger := newSlogLogger(*logLevel)
	// Failures and availability changes reach the console at info level;
	// the file gets every event.
	protoLogger := mlog.NewMultiLogger(mlog.NewSlogAdapter(opLogger))
	if protocolLogger != nil {
		protoLogger.Add(protocolLogger)
		defer func() {
			written, dropped := protocolLogger.Stats()
			log.Printf("Protocol log: %d events written, %d dropped", written, dropped)
		}()
	}

	targets := newTargets(cfg, opLogger, protoLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("Received signal: %v", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	r := &runner{
		targets:      targets,
		timeout:      cfg.Timeout.Std(),
		pollInterval: cfg.PollInterval.Std(),
		parallel:     *parallel,
		logger:       opLogger,
		protoLogger:  protoLogger,
	}

	if *interactive {
		if err := runInteractive(ctx, cancel, r); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := r.run(ctx, os.Stdout, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if protocolLogger != nil {
			protocolLogger.Close()
		}
		os.Exit(1)
	}
}

// loadConfig builds the machine list from -config or from -host.
func loadConfig() (*config.Config, error) {
	if *configFile != "" {
		cfg, err := config.Load(*configFile)
		if err != nil {
			return nil, err
		}
		if flagSet("timeout") {
			cfg.Timeout = config.Duration(*timeout)
		}
		if *machineName != "" {
			m, ok := cfg.Machine(*machineName)
			if !ok {
				return nil, fmt.Errorf("machine %q not in %s", *machineName, *configFile)
			}
			cfg.Machines = []config.Machine{m}
		}
		return cfg, nil
	}

	if *host == "" {
		return nil, errors.New("a device is required (-host or -config)")
	}
	cfg := &config.Config{
		Timeout:  config.Duration(*timeout),
		Machines: []config.Machine{{Host: *host, Port: *port, Password: *password}},
	}
	cfg.ApplyDefaults(os.Getenv(config.PasswordEnv))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newTargets(cfg *config.Config, logger *slog.Logger, protoLogger mlog.Logger) []target {
	targets := make([]target, 0, len(cfg.Machines))
	for _, m := range cfg.Machines {
		opts := []client.Option{
			client.WithTimeout(cfg.Timeout.Std()),
			client.WithLogger(logger.With("machine", m.Name)),
		}
		// Only set the protocol logger when non-nil to avoid a typed-nil interface.
		if protoLogger != nil {
			opts = append(opts, client.WithProtocolLogger(protoLogger))
		}
		c := client.New(m.Client(), opts...)
		targets = append(targets, target{name: m.Name, client: c, miner: miner.New(c)})
	}
	return targets
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func setupLogging(level string) {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	switch level {
	case "debug":
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
	case "warn", "error":
		log.SetFlags(log.Ltime)
	}
}

func newSlogLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

