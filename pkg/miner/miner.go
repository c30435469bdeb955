package miner

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/whatsminer-go/whatsminer/pkg/client"
	"github.com/whatsminer-go/whatsminer/pkg/wire"
)

// Parameter ranges, in percent.
const (
	MinTargetFreq = -10
	MaxTargetFreq = 100
	MinPowerPct   = 0
	MaxPowerPct   = 100
)

// ErrOutOfRange is returned for arguments outside their range. No request
// is sent.
var ErrOutOfRange = errors.New("value out of range")

// Sender dispatches one command. Implemented by *client.Client.
type Sender interface {
	Send(ctx context.Context, cmd wire.Command) (map[string]any, error)
}

var _ Sender = (*client.Client)(nil)

// Miner exposes typed operations of one device.
type Miner struct {
	sender Sender
}

// New creates a Miner sending through sender.
func New(sender Sender) *Miner {
	return &Miner{sender: sender}
}

// Summary reads the telemetry summary.
func (m *Miner) Summary(ctx context.Context) (*Summary, error) {
	payload, err := m.sender.Send(ctx, wire.NewRead(wire.CmdSummary))
	if err != nil {
		return nil, err
	}
	items, err := list(wire.CmdSummary, payload, sectionSummary)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, malformed(wire.CmdSummary, payload, &KeyError{Section: sectionSummary, Key: "0", Err: ErrMissingKey})
	}
	s := parseSummary(items[0])
	if items[0].err != nil {
		return nil, malformed(wire.CmdSummary, payload, items[0].err)
	}
	return &s, nil
}

// Pools reads the pool list.
func (m *Miner) Pools(ctx context.Context) ([]Pool, error) {
	payload, err := m.sender.Send(ctx, wire.NewRead(wire.CmdPools))
	if err != nil {
		return nil, err
	}
	items, err := list(wire.CmdPools, payload, sectionPools)
	if err != nil {
		return nil, err
	}
	pools := make([]Pool, 0, len(items))
	for _, f := range items {
		p := parsePool(f)
		if f.err != nil {
			return nil, malformed(wire.CmdPools, payload, f.err)
		}
		pools = append(pools, p)
	}
	return pools, nil
}

// DeviceDetails reads the hash board details.
func (m *Miner) DeviceDetails(ctx context.Context) ([]DeviceDetail, error) {
	payload, err := m.sender.Send(ctx, wire.NewRead(wire.CmdDevDetails))
	if err != nil {
		return nil, err
	}
	items, err := list(wire.CmdDevDetails, payload, sectionDevDetails)
	if err != nil {
		// Older firmware numbers the boards as DEVDETAILS0, DEVDETAILS1, ...
		numbered, nerr := indexed(wire.CmdDevDetails, payload, sectionDevDetails)
		if nerr != nil {
			return nil, nerr
		}
		if len(numbered) == 0 {
			return nil, err
		}
		items = numbered
	}
	details := make([]DeviceDetail, 0, len(items))
	for i, f := range items {
		d := parseDeviceDetail(f, i)
		if f.err != nil {
			return nil, malformed(wire.CmdDevDetails, payload, f.err)
		}
		details = append(details, d)
	}
	return details, nil
}

// Model returns the model of the first hash board.
func (m *Miner) Model(ctx context.Context) (string, error) {
	details, err := m.DeviceDetails(ctx)
	if err != nil {
		return "", err
	}
	if len(details) == 0 {
		return "", malformed(wire.CmdDevDetails, nil, &KeyError{Section: sectionDevDetails, Key: "0", Err: ErrMissingKey})
	}
	return details[0].Model, nil
}

// PSU reads the power supply details.
func (m *Miner) PSU(ctx context.Context) (*PSU, error) {
	f, payload, err := m.readMsg(ctx, wire.CmdGetPSU)
	if err != nil {
		return nil, err
	}
	p := parsePSU(f)
	if f.err != nil {
		return nil, malformed(wire.CmdGetPSU, payload, f.err)
	}
	return &p, nil
}

// Version reads the firmware and API versions.
func (m *Miner) Version(ctx context.Context) (*Version, error) {
	f, payload, err := m.readMsg(ctx, wire.CmdGetVersion)
	if err != nil {
		return nil, err
	}
	v := parseVersion(f)
	if f.err != nil {
		return nil, malformed(wire.CmdGetVersion, payload, f.err)
	}
	return &v, nil
}

// Status reads the mining process status.
func (m *Miner) Status(ctx context.Context) (*Status, error) {
	f, payload, err := m.readMsg(ctx, wire.CmdStatus)
	if err != nil {
		return nil, err
	}
	s := parseStatus(f)
	if f.err != nil {
		return nil, malformed(wire.CmdStatus, payload, f.err)
	}
	return &s, nil
}

// Online reports whether the device answers. DeviceUnreachable yields
// false; other errors are returned.
func (m *Miner) Online(ctx context.Context) (bool, error) {
	_, err := m.sender.Send(ctx, wire.NewRead(wire.CmdStatus))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, wire.ErrDeviceUnreachable) {
		return false, nil
	}
	return false, err
}

func (m *Miner) readMsg(ctx context.Context, cmd string) (*fields, map[string]any, error) {
	payload, err := m.sender.Send(ctx, wire.NewRead(cmd))
	if err != nil {
		return nil, nil, err
	}
	f, err := section(cmd, payload, sectionMsg)
	if err != nil {
		return nil, nil, err
	}
	return f, payload, nil
}

// Restart restarts the mining process.
func (m *Miner) Restart(ctx context.Context) error {
	return m.write(ctx, wire.NewWrite(wire.CmdRestartBTMiner))
}

// PowerOn starts hashing.
func (m *Miner) PowerOn(ctx context.Context) error {
	return m.write(ctx, wire.NewWrite(wire.CmdPowerOn))
}

// PowerOff stops hashing. The device replies before it acts.
func (m *Miner) PowerOff(ctx context.Context) error {
	return m.write(ctx, wire.NewWrite(wire.CmdPowerOff, wire.P("respbefore", "true")))
}

// SetTargetFrequency sets the target frequency offset in percent,
// within [MinTargetFreq, MaxTargetFreq].
func (m *Miner) SetTargetFrequency(ctx context.Context, percent int) error {
	if percent < MinTargetFreq || percent > MaxTargetFreq {
		return fmt.Errorf("%w: target frequency %d not in [%d, %d]", ErrOutOfRange, percent, MinTargetFreq, MaxTargetFreq)
	}
	return m.write(ctx, wire.NewWrite(wire.CmdSetTargetFreq, wire.P("percent", strconv.Itoa(percent))))
}

// SetPowerPercent sets the power limit in percent, within
// [MinPowerPct, MaxPowerPct].
func (m *Miner) SetPowerPercent(ctx context.Context, percent int) error {
	if percent < MinPowerPct || percent > MaxPowerPct {
		return fmt.Errorf("%w: power percent %d not in [%d, %d]", ErrOutOfRange, percent, MinPowerPct, MaxPowerPct)
	}
	return m.write(ctx, wire.NewWrite(wire.CmdSetPowerPct, wire.P("percent", strconv.Itoa(percent))))
}

// SetFastBoot enables or disables fast boot.
func (m *Miner) SetFastBoot(ctx context.Context, enabled bool) error {
	cmd := wire.CmdDisableFastBoot
	if enabled {
		cmd = wire.CmdEnableFastBoot
	}
	return m.write(ctx, wire.NewWrite(cmd))
}

// Reboot reboots the device. The device drops the connection while
// rebooting, so no reply is awaited.
func (m *Miner) Reboot(ctx context.Context) error {
	cmd := wire.NewWrite(wire.CmdReboot)
	cmd.ExpectResponse = false
	_, err := m.sender.Send(ctx, cmd)
	return err
}

func (m *Miner) write(ctx context.Context, cmd wire.Command) error {
	_, err := m.sender.Send(ctx, cmd)
	return err
}
