package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk shape consumed by cmd/gramsim. It exists only at the
// YAML boundary; everywhere else in the module talks in the validated
// PhySettings/GeomSettings/TimingSettings/ControllerSettings types.
type File struct {
	Memtype string `yaml:"memtype"`

	DataBits    int `yaml:"data_bits"`
	DFIDataBits int `yaml:"dfi_data_bits"`
	NPhases     int `yaml:"nphases"`
	NRanks      int `yaml:"nranks"`
	CL          int `yaml:"cl"`
	CWL         int `yaml:"cwl"`
	ReadLatency int `yaml:"read_latency"`
	WriteLatency int `yaml:"write_latency"`
	RDPhase     int `yaml:"rdphase"`
	WRPhase     int `yaml:"wrphase"`
	RDCmdPhase  int `yaml:"rdcmdphase"`
	WRCmdPhase  int `yaml:"wrcmdphase"`

	BankBits int `yaml:"bank_bits"`
	RowBits  int `yaml:"row_bits"`
	ColBits  int `yaml:"col_bits"`

	Timing struct {
		TRP   int `yaml:"trp"`
		TRCD  int `yaml:"trcd"`
		TWR   int `yaml:"twr"`
		TWTR  int `yaml:"twtr"`
		TREFI int `yaml:"trefi"`
		TRFC  int `yaml:"trfc"`
		TFAW  int `yaml:"tfaw"`
		TCCD  int `yaml:"tccd"`
		TRRD  int `yaml:"trrd"`
		TRC   int `yaml:"trc"`
		TRAS  int `yaml:"tras"`
		TZQCS int `yaml:"tzqcs"`
	} `yaml:"timing"`

	Controller struct {
		CmdBufferDepth    int     `yaml:"cmd_buffer_depth"`
		ReadTime          int     `yaml:"read_time"`
		WriteTime         int     `yaml:"write_time"`
		WithRefresh       bool    `yaml:"with_refresh"`
		RefreshZQCSFreq   float64 `yaml:"refresh_zqcs_freq"`
		RefreshPostponing int     `yaml:"refresh_postponing"`
		WithAutoPrecharge bool    `yaml:"with_auto_precharge"`
	} `yaml:"controller"`
}

var memtypeNames = map[string]Memtype{
	"SDR": SDR, "DDR": DDR, "DDR2": DDR2, "DDR3": DDR3, "DDR4": DDR4, "LPDDR": LPDDR,
}

// LoadFile reads and validates a gramctl configuration from path, returning
// the four immutable settings structs cmd/gramsim wires into a Controller.
func LoadFile(path string) (PhySettings, GeomSettings, TimingSettings, ControllerSettings, error) {
	var zero4 ControllerSettings
	raw, err := os.ReadFile(path)
	if err != nil {
		return PhySettings{}, GeomSettings{}, TimingSettings{}, zero4, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return PhySettings{}, GeomSettings{}, TimingSettings{}, zero4, fmt.Errorf("config: parse %s: %w", path, err)
	}

	mt, ok := memtypeNames[f.Memtype]
	if !ok {
		return PhySettings{}, GeomSettings{}, TimingSettings{}, zero4, fmt.Errorf("%w: %q", ErrUnsupportedMemtype, f.Memtype)
	}

	phy, err := NewPhySettings(PhySettings{
		Memtype: mt, DataBits: f.DataBits, DFIDataBits: f.DFIDataBits,
		NPhases: f.NPhases, NRanks: f.NRanks, CL: f.CL, CWL: f.CWL,
		ReadLatency: f.ReadLatency, WriteLatency: f.WriteLatency,
		RDPhase: f.RDPhase, WRPhase: f.WRPhase, RDCmdPhase: f.RDCmdPhase, WRCmdPhase: f.WRCmdPhase,
	})
	if err != nil {
		return PhySettings{}, GeomSettings{}, TimingSettings{}, zero4, err
	}

	geom, err := NewGeomSettings(GeomSettings{BankBits: f.BankBits, RowBits: f.RowBits, ColBits: f.ColBits})
	if err != nil {
		return PhySettings{}, GeomSettings{}, TimingSettings{}, zero4, err
	}

	timing, err := NewTimingSettings(TimingSettings{
		TRP: f.Timing.TRP, TRCD: f.Timing.TRCD, TWR: f.Timing.TWR, TWTR: f.Timing.TWTR,
		TREFI: f.Timing.TREFI, TRFC: f.Timing.TRFC, TFAW: f.Timing.TFAW, TCCD: f.Timing.TCCD,
		TRRD: f.Timing.TRRD, TRC: f.Timing.TRC, TRAS: f.Timing.TRAS, TZQCS: f.Timing.TZQCS,
	})
	if err != nil {
		return PhySettings{}, GeomSettings{}, TimingSettings{}, zero4, err
	}

	cs := DefaultControllerSettings()
	if f.Controller.CmdBufferDepth != 0 {
		cs.CmdBufferDepth = f.Controller.CmdBufferDepth
	}
	if f.Controller.ReadTime != 0 {
		cs.ReadTime = f.Controller.ReadTime
	}
	if f.Controller.WriteTime != 0 {
		cs.WriteTime = f.Controller.WriteTime
	}
	cs.WithRefresh = f.Controller.WithRefresh
	if f.Controller.RefreshZQCSFreq != 0 {
		cs.RefreshZQCSFreq = f.Controller.RefreshZQCSFreq
	}
	if f.Controller.RefreshPostponing != 0 {
		cs.RefreshPostponing = f.Controller.RefreshPostponing
	}
	cs.WithAutoPrecharge = f.Controller.WithAutoPrecharge

	cs, err = NewControllerSettings(cs)
	if err != nil {
		return PhySettings{}, GeomSettings{}, TimingSettings{}, zero4, err
	}

	return phy, geom, timing, cs, nil
}
