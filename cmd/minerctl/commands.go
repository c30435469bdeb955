package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/whatsminer-go/whatsminer/pkg/client"
	mlog "github.com/whatsminer-go/whatsminer/pkg/log"
	"github.com/whatsminer-go/whatsminer/pkg/miner"
	"github.com/whatsminer-go/whatsminer/pkg/wire"
)

// Usage errors.
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("usage")
	ErrSomeFailed     = errors.New("command failed on some machines")
)

// target is one machine the CLI talks to.
type target struct {
	name   string
	client *client.Client
	miner  *miner.Miner
}

// runner executes CLI commands against its targets.
type runner struct {
	targets      []target
	timeout      time.Duration
	pollInterval time.Duration
	parallel     int // machines queried at once; <= 0 means defaultParallel
	logger       *slog.Logger
	protoLogger  mlog.Logger
}

// defaultParallel bounds the fan-out so a large rack does not open a
// connection to every machine at once.
const defaultParallel = 8

// commandFunc runs one command against one machine and prints the result.
type commandFunc func(ctx context.Context, w io.Writer, t target, args []string) error

var commands = map[string]commandFunc{
	"summary":   cmdSummary,
	"pools":     cmdPools,
	"details":   cmdDetails,
	"psu":       cmdPSU,
	"version":   cmdVersion,
	"status":    cmdStatus,
	"online":    cmdOnline,
	"restart":   writeCmd("restarted", func(ctx context.Context, m *miner.Miner) error { return m.Restart(ctx) }),
	"power-on":  writeCmd("powered on", func(ctx context.Context, m *miner.Miner) error { return m.PowerOn(ctx) }),
	"power-off": writeCmd("powered off", func(ctx context.Context, m *miner.Miner) error { return m.PowerOff(ctx) }),
	"reboot":    writeCmd("rebooting", func(ctx context.Context, m *miner.Miner) error { return m.Reboot(ctx) }),
	"freq":      cmdFreq,
	"power-pct": cmdPowerPct,
	"fast-boot": cmdFastBoot,
}

// run executes name on every target concurrently and prints each
// machine's output as one block, in config order.
func (r *runner) run(ctx context.Context, w io.Writer, name string, args []string) error {
	switch name {
	case "watch":
		return r.watch(ctx, w, args)
	case "log":
		return viewLog(w, args)
	}

	fn, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	if err := checkArgs(name, args); err != nil {
		return err
	}

	outputs := make([]bytes.Buffer, len(r.targets))
	errs := make([]error, len(r.targets))

	limit := r.parallel
	if limit <= 0 {
		limit = defaultParallel
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, t := range r.targets {
		g.Go(func() error {
			// Per-machine failures are reported, not propagated, so one
			// dead machine does not cancel the others.
			errs[i] = fn(ctx, &outputs[i], t, args)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	multi := len(r.targets) > 1
	for i, t := range r.targets {
		if multi {
			fmt.Fprintf(w, "== %s (%s)\n", t.name, t.client.Address())
		}
		_, _ = w.Write(outputs[i].Bytes())
		if errs[i] != nil {
			failed++
			fmt.Fprintf(w, "error: %v\n", describeError(errs[i]))
		}
	}
	if failed > 0 {
		if !multi {
			return errs[0]
		}
		return fmt.Errorf("%w (%d of %d)", ErrSomeFailed, failed, len(r.targets))
	}
	return nil
}

// checkArgs validates arguments before any machine is contacted.
func checkArgs(name string, args []string) error {
	switch name {
	case "freq", "power-pct":
		if len(args) != 1 {
			return fmt.Errorf("%w: %s <percent>", ErrUsage, name)
		}
		if _, err := strconv.Atoi(args[0]); err != nil {
			return fmt.Errorf("%w: %s <percent>: %q is not a number", ErrUsage, name, args[0])
		}
	case "fast-boot":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return fmt.Errorf("%w: fast-boot on|off", ErrUsage)
		}
	}
	return nil
}

// describeError adds a hint for errors an operator can act on.
func describeError(err error) string {
	var we *wire.Error
	if !errors.As(err, &we) {
		return err.Error()
	}
	switch {
	case we.Kind == wire.KindInvalidAuth:
		return err.Error() + " (check the admin password)"
	case we.Kind == wire.KindTokenExceeded:
		return err.Error() + " (too many sessions, retry later)"
	case we.Kind == wire.KindPermissionDenied:
		return err.Error() + " (enable the write API on the device)"
	case we.Kind.NeedsReauth():
		return err.Error() + " (session dropped, retry)"
	case we.Kind.Transient():
		return err.Error() + " (transient)"
	}
	return err.Error()
}

func cmdSummary(ctx context.Context, w io.Writer, t target, _ []string) error {
	s, err := t.miner.Summary(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Hashrate:     %.2f TH/s (5s: %.2f TH/s)\n", s.HashrateAvg/1e6, s.Hashrate5s/1e6)
	fmt.Fprintf(w, "Power:        %.0f W (limit %.0f W, mode %s)\n", s.Power, s.PowerLimit, orDash(s.PowerMode))
	fmt.Fprintf(w, "Temperature:  %.1f °C (chips %.1f °C)\n", s.Temperature, s.ChipTempAvg)
	fmt.Fprintf(w, "Fans:         in %d rpm, out %d rpm\n", s.FanSpeedIn, s.FanSpeedOut)
	fmt.Fprintf(w, "Shares:       %d accepted, %d rejected\n", s.Accepted, s.Rejected)
	fmt.Fprintf(w, "Elapsed:      %s\n", s.Elapsed)
	if s.MAC != "" {
		fmt.Fprintf(w, "MAC:          %s\n", s.MAC)
	}
	return nil
}

func cmdPools(ctx context.Context, w io.Writer, t target, _ []string) error {
	pools, err := t.miner.Pools(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%-4s %-8s %-6s %-40s %s\n", "ID", "Status", "Active", "URL", "User")
	for _, p := range pools {
		active := ""
		if p.StratumActive {
			active = "*"
		}
		fmt.Fprintf(w, "%-4d %-8s %-6s %-40s %s\n", p.ID, p.Status, active, p.URL, p.User)
	}
	return nil
}

func cmdDetails(ctx context.Context, w io.Writer, t target, _ []string) error {
	details, err := t.miner.DeviceDetails(ctx)
	if err != nil {
		return err
	}
	for _, d := range details {
		fmt.Fprintf(w, "Board %d: %s (%s, %s)\n", d.ID, d.Model, orDash(d.Name), orDash(d.Driver))
	}
	return nil
}

func cmdPSU(ctx context.Context, w io.Writer, t target, _ []string) error {
	p, err := t.miner.PSU(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Name:     %s\n", p.Name)
	fmt.Fprintf(w, "Model:    %s\n", orDash(p.Model))
	fmt.Fprintf(w, "Serial:   %s\n", orDash(p.SerialNo))
	fmt.Fprintf(w, "Firmware: %s / %s\n", orDash(p.HWVersion), orDash(p.SWVersion))
	fmt.Fprintf(w, "Input:    %.0f / %.0f (current / voltage)\n", p.InputCurrent, p.InputVoltage)
	fmt.Fprintf(w, "Fan:      %d rpm\n", p.FanSpeed)
	return nil
}

func cmdVersion(ctx context.Context, w io.Writer, t target, _ []string) error {
	v, err := t.miner.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "API:      %s\n", v.API)
	fmt.Fprintf(w, "Firmware: %s\n", v.Firmware)
	if v.Platform != "" || v.Chip != "" {
		fmt.Fprintf(w, "Platform: %s %s\n", orDash(v.Platform), v.Chip)
	}
	return nil
}

func cmdStatus(ctx context.Context, w io.Writer, t target, _ []string) error {
	s, err := t.miner.Status(ctx)
	if err != nil {
		return err
	}
	state := "mining"
	if s.MinerOff {
		state = "stopped"
	}
	fmt.Fprintf(w, "Miner:    %s\n", state)
	if s.Firmware != "" {
		fmt.Fprintf(w, "Firmware: %s\n", s.Firmware)
	}
	return nil
}

func cmdOnline(ctx context.Context, w io.Writer, t target, _ []string) error {
	online, err := t.miner.Online(ctx)
	if err != nil {
		return err
	}
	if online {
		fmt.Fprintln(w, "online")
	} else {
		fmt.Fprintln(w, "offline")
	}
	return nil
}

func writeCmd(done string, fn func(context.Context, *miner.Miner) error) commandFunc {
	return func(ctx context.Context, w io.Writer, t target, _ []string) error {
		if err := fn(ctx, t.miner); err != nil {
			return err
		}
		fmt.Fprintln(w, done)
		return nil
	}
}

func cmdFreq(ctx context.Context, w io.Writer, t target, args []string) error {
	pct, _ := strconv.Atoi(args[0])
	if err := t.miner.SetTargetFrequency(ctx, pct); err != nil {
		return err
	}
	fmt.Fprintf(w, "target frequency set to %+d%%\n", pct)
	return nil
}

func cmdPowerPct(ctx context.Context, w io.Writer, t target, args []string) error {
	pct, _ := strconv.Atoi(args[0])
	if err := t.miner.SetPowerPercent(ctx, pct); err != nil {
		return err
	}
	fmt.Fprintf(w, "power limit set to %d%%\n", pct)
	return nil
}

func cmdFastBoot(ctx context.Context, w io.Writer, t target, args []string) error {
	on := args[0] == "on"
	if err := t.miner.SetFastBoot(ctx, on); err != nil {
		return err
	}
	fmt.Fprintf(w, "fast boot %s\n", strings.ToLower(args[0]))
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
