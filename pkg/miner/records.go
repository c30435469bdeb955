package miner

import (
	"strings"
	"time"
)

// Reply section keys.
const (
	sectionSummary    = "SUMMARY"
	sectionPools      = "POOLS"
	sectionDevDetails = "DEVDETAILS"
	sectionMsg        = "Msg"
)

// Summary is the telemetry of the summary command.
type Summary struct {
	Elapsed     time.Duration
	HashrateAvg float64 // MH/s
	Hashrate5s  float64 // MH/s
	Temperature float64 // °C
	ChipTempAvg float64 // °C
	Power       float64 // W
	PowerLimit  float64 // W
	FanSpeedIn  int64   // RPM
	FanSpeedOut int64   // RPM
	Accepted    int64
	Rejected    int64
	TargetFreq  int64
	FactoryGHS  float64
	PowerMode   string
	MAC         string
	Uptime      time.Duration
}

func parseSummary(f *fields) Summary {
	return Summary{
		Elapsed:     time.Duration(f.integer("Elapsed", true)) * time.Second,
		HashrateAvg: f.number("MHS av", true),
		Hashrate5s:  f.number("MHS 5s", false),
		Temperature: f.number("Temperature", true),
		ChipTempAvg: f.number("Chip Temp Avg", false),
		Power:       f.number("Power", true),
		PowerLimit:  f.number("Power Limit", false),
		FanSpeedIn:  f.integer("Fan Speed In", false),
		FanSpeedOut: f.integer("Fan Speed Out", false),
		Accepted:    f.integer("Accepted", false),
		Rejected:    f.integer("Rejected", false),
		TargetFreq:  f.integer("Target Freq", false),
		FactoryGHS:  f.number("Factory GHS", false),
		PowerMode:   f.text("Power Mode", false),
		MAC:         f.text("MAC", false),
		Uptime:      time.Duration(f.integer("Uptime", false)) * time.Second,
	}
}

// Pool is one configured mining pool.
type Pool struct {
	ID            int64
	URL           string
	Status        string
	Priority      int64
	User          string
	Accepted      int64
	Rejected      int64
	StratumActive bool
}

func parsePool(f *fields) Pool {
	return Pool{
		ID:            f.integer("POOL", true),
		URL:           f.text("URL", true),
		Status:        f.text("Status", true),
		Priority:      f.integer("Priority", false),
		User:          f.text("User", false),
		Accepted:      f.integer("Accepted", false),
		Rejected:      f.integer("Rejected", false),
		StratumActive: f.flag("Stratum Active", false),
	}
}

// DeviceDetail describes one hash board.
type DeviceDetail struct {
	ID     int64
	Name   string
	Driver string
	Model  string
}

// parseDeviceDetail reads one board. Numbered sections (DEVDETAILS0, ...)
// may omit ID; their index is the ID then.
func parseDeviceDetail(f *fields, index int) DeviceDetail {
	id := int64(index)
	if f.section == sectionDevDetails {
		id = f.integer("ID", true)
	} else if _, ok := f.m["ID"]; ok {
		id = f.integer("ID", true)
	}
	return DeviceDetail{
		ID:     id,
		Name:   f.text("Name", false),
		Driver: f.text("Driver", false),
		Model:  f.text("Model", true),
	}
}

// PSU describes the power supply.
type PSU struct {
	Name         string
	Model        string
	Vendor       string
	SerialNo     string
	HWVersion    string
	SWVersion    string
	InputCurrent float64 // raw device units
	InputVoltage float64 // raw device units
	FanSpeed     int64
}

func parsePSU(f *fields) PSU {
	return PSU{
		Name:         f.text("name", true),
		Model:        f.text("model", false),
		Vendor:       f.text("vendor", false),
		SerialNo:     f.text("serial_no", false),
		HWVersion:    f.text("hw_version", false),
		SWVersion:    f.text("sw_version", false),
		InputCurrent: f.number("iin", true),
		InputVoltage: f.number("vin", true),
		FanSpeed:     f.integer("fan_speed", false),
	}
}

// Version holds the firmware and API versions.
type Version struct {
	API      string
	Firmware string
	Platform string
	Chip     string
}

func parseVersion(f *fields) Version {
	return Version{
		API:      f.text("api_ver", true),
		Firmware: f.text("fw_ver", true),
		Platform: f.text("platform", false),
		Chip:     f.text("chip", false),
	}
}

// Status reports whether the mining process runs.
type Status struct {
	MinerOff bool
	Firmware string
}

func parseStatus(f *fields) Status {
	return Status{
		MinerOff: f.flag("btmineroff", true),
		Firmware: strings.Trim(f.text("Firmware Version", false), "'"),
	}
}
