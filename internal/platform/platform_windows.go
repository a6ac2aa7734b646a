//go:build windows

package platform

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"capbench/internal/capture"
	"capbench/internal/collector/gpu"
	"capbench/internal/config"
	"capbench/internal/domain"
	"capbench/internal/logger"
)

var (
	moduser32 = windows.NewLazySystemDLL("user32.dll")

	procEnumDisplayMonitors = moduser32.NewProc("EnumDisplayMonitors")
	procGetMonitorInfoW     = moduser32.NewProc("GetMonitorInfoW")
	procEnumDisplaySettings = moduser32.NewProc("EnumDisplaySettingsW")
)

const enumCurrentSettings = 0xFFFFFFFF

type rect struct {
	Left, Top, Right, Bottom int32
}

type monitorInfoEx struct {
	Size    uint32
	Monitor rect
	Work    rect
	Flags   uint32
	Device  [32]uint16
}

type devMode struct {
	DeviceName       [32]uint16
	SpecVersion      uint16
	DriverVersion    uint16
	Size             uint16
	DriverExtra      uint16
	Fields           uint32
	Position         [2]int32
	Orientation      uint32
	FixedOutput      uint32
	Color            int16
	Duplex           int16
	YResolution      int16
	TTOption         int16
	Collate          int16
	FormName         [32]uint16
	LogPixels        uint16
	BitsPerPel       uint32
	PelsWidth        uint32
	PelsHeight       uint32
	DisplayFlags     uint32
	DisplayFrequency uint32
	ICMMethod        uint32
	ICMIntent        uint32
	MediaType        uint32
	DitherType       uint32
	Reserved1        uint32
	Reserved2        uint32
	PanningWidth     uint32
	PanningHeight    uint32
}

// windowsPlatform reads GPU engine counters through PDH and duplicates
// outputs through DXGI. Graphics capture needs WinRT activation, which this
// build does not bind, so the event-driven pass is not offered.
type windowsPlatform struct {
	pdh pdhSubsystem
	log logger.Logger
}

func newWindows(log logger.Logger) (Platform, error) {
	if err := modpdh.Load(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedPlatform, err)
	}
	return &windowsPlatform{log: log}, nil
}

func (p *windowsPlatform) Name() string {
	return "windows"
}

func (p *windowsPlatform) Counters() gpu.Subsystem {
	return p.pdh
}

func (p *windowsPlatform) Passes() []string {
	return []string{config.PassBaseline, config.PassDDA}
}

// Adapters lists DXGI adapters by driver description. Without DXGI the list
// is derived from the LUIDs that GPU engine counter instances name.
func (p *windowsPlatform) Adapters() ([]domain.Adapter, error) {
	adapters, err := dxgiAdapters()
	if err == nil {
		p.log.Debug("platform: adapters enumerated", "adapters", len(adapters))
		return adapters, nil
	}
	p.log.Warn("platform: dxgi enumeration failed, naming adapters by luid", "error", err)

	return p.counterAdapters()
}

func (p *windowsPlatform) counterAdapters() ([]domain.Adapter, error) {
	names, err := p.pdh.InstanceNames()
	if err != nil {
		return nil, fmt.Errorf("list gpu engine instances: %w", err)
	}

	luids := gpu.DetectAdapters(names)
	adapters := make([]domain.Adapter, len(luids))
	for i, l := range luids {
		adapters[i] = domain.Adapter{LUID: l, Name: fmt.Sprintf("GPU %s", l)}
	}

	p.log.Debug("platform: adapters detected", "instances", len(names), "adapters", len(adapters))
	return adapters, nil
}

func (p *windowsPlatform) Monitors() ([]domain.Monitor, error) {
	var handles []windows.Handle
	cb := windows.NewCallback(func(hmon, hdc, clip, data uintptr) uintptr {
		handles = append(handles, windows.Handle(hmon))
		return 1
	})

	if r, _, err := procEnumDisplayMonitors.Call(0, 0, cb, 0); r == 0 {
		return nil, fmt.Errorf("enum display monitors: %w", err)
	}

	monitors := make([]domain.Monitor, 0, len(handles))
	for i, h := range handles {
		info := monitorInfoEx{}
		info.Size = uint32(unsafe.Sizeof(info))
		if r, _, err := procGetMonitorInfoW.Call(uintptr(h), uintptr(unsafe.Pointer(&info))); r == 0 {
			return nil, fmt.Errorf("get monitor info: %w", err)
		}

		mode := devMode{}
		mode.Size = uint16(unsafe.Sizeof(mode))
		var freq uint32
		if r, _, _ := procEnumDisplaySettings.Call(uintptr(unsafe.Pointer(&info.Device[0])), enumCurrentSettings, uintptr(unsafe.Pointer(&mode))); r != 0 {
			freq = mode.DisplayFrequency
		}

		monitors = append(monitors, domain.Monitor{
			Index:       i,
			Handle:      uint64(h),
			Name:        windows.UTF16ToString(info.Device[:]),
			FrequencyHz: freq,
		})
	}

	return monitors, nil
}

func (p *windowsPlatform) NewFramePool(mon domain.Monitor, _ capture.FramePoolOptions) (capture.FramePool, error) {
	return nil, fmt.Errorf("%w: graphics capture is not bound on monitor %d", capture.ErrCaptureUnavailable, mon.Index)
}

func (p *windowsPlatform) Output(mon domain.Monitor) (capture.Output, error) {
	out, err := openOutput(mon)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *windowsPlatform) Close() error {
	return nil
}
