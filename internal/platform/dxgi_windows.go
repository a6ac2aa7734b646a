//go:build windows

package platform

import (
	"errors"
	"fmt"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"capbench/internal/capture"
	"capbench/internal/domain"
)

var (
	moddxgi  = windows.NewLazySystemDLL("dxgi.dll")
	modd3d11 = windows.NewLazySystemDLL("d3d11.dll")

	procCreateDXGIFactory1 = moddxgi.NewProc("CreateDXGIFactory1")
	procD3D11CreateDevice  = modd3d11.NewProc("D3D11CreateDevice")
)

var (
	iidDXGIFactory1 = windows.GUID{Data1: 0x770aae78, Data2: 0xf26f, Data3: 0x4dba, Data4: [8]byte{0xa8, 0x29, 0x25, 0x3c, 0x83, 0xd1, 0xb3, 0x87}}
	iidDXGIOutput1  = windows.GUID{Data1: 0x00cd7c0e, Data2: 0x4532, Data3: 0x4feb, Data4: [8]byte{0x8a, 0x23, 0x6d, 0x2b, 0x0b, 0xc0, 0xf4, 0x5e}}
)

// vtable slots
const (
	slotQueryInterface = 0
	slotRelease        = 2

	slotFactoryEnumAdapters1 = 12
	slotAdapterEnumOutputs   = 7
	slotAdapterGetDesc1      = 10
	slotOutputGetDesc        = 7
	slotOutputDuplicate      = 22
	slotDuplAcquireNextFrame = 8
	slotDuplReleaseFrame     = 14
)

const (
	dxgiErrorNotFound    = hresult(0x887A0002)
	dxgiErrorAccessLost  = hresult(0x887A0026)
	dxgiErrorWaitTimeout = hresult(0x887A0027)

	d3dDriverTypeUnknown         = 0
	d3d11CreateDeviceBGRASupport = 0x20
	d3d11SDKVersion              = 7
)

type hresult uint32

func (h hresult) Error() string {
	switch h {
	case dxgiErrorAccessLost:
		return "dxgi access lost"
	case dxgiErrorNotFound:
		return "dxgi not found"
	}
	return fmt.Sprintf("hresult 0x%08X", uint32(h))
}

func check(r uintptr) error {
	if int32(r) < 0 {
		return hresult(uint32(r))
	}
	return nil
}

// comObject is a raw COM interface pointer.
type comObject uintptr

func (o comObject) method(slot int) uintptr {
	vtbl := (*[64]uintptr)(unsafe.Pointer(*(*uintptr)(unsafe.Pointer(o))))
	return vtbl[slot]
}

func (o comObject) call(slot int, args ...uintptr) error {
	r, _, _ := syscall.SyscallN(o.method(slot), append([]uintptr{uintptr(o)}, args...)...)
	return check(r)
}

func (o comObject) queryInterface(iid *windows.GUID) (comObject, error) {
	var out comObject
	err := o.call(slotQueryInterface, uintptr(unsafe.Pointer(iid)), uintptr(unsafe.Pointer(&out)))
	return out, err
}

func (o comObject) release() {
	if o == 0 {
		return
	}
	syscall.SyscallN(o.method(slotRelease), uintptr(o))
}

type dxgiAdapterDesc1 struct {
	Description           [128]uint16
	VendorID              uint32
	DeviceID              uint32
	SubSysID              uint32
	Revision              uint32
	DedicatedVideoMemory  uintptr
	DedicatedSystemMemory uintptr
	SharedSystemMemory    uintptr
	LUIDLow               uint32
	LUIDHigh              int32
	Flags                 uint32
}

type dxgiOutputDesc struct {
	DeviceName         [32]uint16
	DesktopCoordinates rect
	AttachedToDesktop  int32
	Rotation           uint32
	Monitor            uintptr
}

type dxgiOutduplFrameInfo struct {
	LastPresentTime           int64
	LastMouseUpdateTime       int64
	AccumulatedFrames         uint32
	RectsCoalesced            int32
	ProtectedContentMaskedOut int32
	PointerX                  int32
	PointerY                  int32
	PointerVisible            int32
	TotalMetadataBufferSize   uint32
	PointerShapeBufferSize    uint32
}

type dxgiAdapter struct {
	obj  comObject
	desc dxgiAdapterDesc1
}

func (a dxgiAdapter) toAdapter() domain.Adapter {
	return domain.Adapter{
		LUID: domain.LUID{High: a.desc.LUIDHigh, Low: a.desc.LUIDLow},
		Name: windows.UTF16ToString(a.desc.Description[:]),
	}
}

// openFactory returns the factory and its adapters in enumeration order.
// The caller releases all of them with releaseAll.
func openFactory() (comObject, []dxgiAdapter, error) {
	if err := moddxgi.Load(); err != nil {
		return 0, nil, err
	}

	var factory comObject
	r, _, _ := procCreateDXGIFactory1.Call(uintptr(unsafe.Pointer(&iidDXGIFactory1)), uintptr(unsafe.Pointer(&factory)))
	if err := check(r); err != nil {
		return 0, nil, fmt.Errorf("create dxgi factory: %w", err)
	}

	var adapters []dxgiAdapter
	for i := uintptr(0); ; i++ {
		var obj comObject
		err := factory.call(slotFactoryEnumAdapters1, i, uintptr(unsafe.Pointer(&obj)))
		if errors.Is(err, dxgiErrorNotFound) {
			break
		}
		if err != nil {
			releaseAll(factory, adapters)
			return 0, nil, fmt.Errorf("enum adapter %d: %w", i, err)
		}

		a := dxgiAdapter{obj: obj}
		if err := obj.call(slotAdapterGetDesc1, uintptr(unsafe.Pointer(&a.desc))); err != nil {
			obj.release()
			releaseAll(factory, adapters)
			return 0, nil, fmt.Errorf("describe adapter %d: %w", i, err)
		}
		adapters = append(adapters, a)
	}

	return factory, adapters, nil
}

func releaseAll(factory comObject, adapters []dxgiAdapter) {
	for _, a := range adapters {
		a.obj.release()
	}
	factory.release()
}

// dxgiAdapters lists adapters with their driver descriptions.
func dxgiAdapters() ([]domain.Adapter, error) {
	factory, adapters, err := openFactory()
	if err != nil {
		return nil, err
	}
	defer releaseAll(factory, adapters)

	out := make([]domain.Adapter, len(adapters))
	for i, a := range adapters {
		out[i] = a.toAdapter()
	}
	return out, nil
}

// findOutput returns the output showing monitor, with its adapter.
func findOutput(adapters []dxgiAdapter, monitor uint64) (comObject, dxgiAdapter, error) {
	for _, a := range adapters {
		for j := uintptr(0); ; j++ {
			var out comObject
			err := a.obj.call(slotAdapterEnumOutputs, j, uintptr(unsafe.Pointer(&out)))
			if errors.Is(err, dxgiErrorNotFound) {
				break
			}
			if err != nil {
				return 0, dxgiAdapter{}, fmt.Errorf("enum output %d: %w", j, err)
			}

			var desc dxgiOutputDesc
			if err := out.call(slotOutputGetDesc, uintptr(unsafe.Pointer(&desc))); err == nil && uint64(desc.Monitor) == monitor {
				return out, a, nil
			}
			out.release()
		}
	}
	return 0, dxgiAdapter{}, domain.ErrMonitorNotFound
}

func createDevice(adapter comObject) (comObject, error) {
	if err := modd3d11.Load(); err != nil {
		return 0, err
	}

	var device comObject
	r, _, _ := procD3D11CreateDevice.Call(
		uintptr(adapter),
		d3dDriverTypeUnknown,
		0,
		d3d11CreateDeviceBGRASupport,
		0,
		0,
		d3d11SDKVersion,
		uintptr(unsafe.Pointer(&device)),
		0,
		0,
	)
	if err := check(r); err != nil {
		return 0, fmt.Errorf("create d3d11 device: %w", err)
	}
	return device, nil
}

// openOutput prepares output duplication of monitor on the adapter that
// drives it.
func openOutput(monitor domain.Monitor) (*dxgiOutput, error) {
	factory, adapters, err := openFactory()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", capture.ErrCaptureUnavailable, err)
	}
	defer releaseAll(factory, adapters)

	out, adapter, err := findOutput(adapters, monitor.Handle)
	if err != nil {
		return nil, fmt.Errorf("%w: monitor %d: %v", capture.ErrCaptureUnavailable, monitor.Index, err)
	}
	defer out.release()

	out1, err := out.queryInterface(&iidDXGIOutput1)
	if err != nil {
		return nil, fmt.Errorf("%w: output duplication interface: %v", capture.ErrCaptureUnavailable, err)
	}

	device, err := createDevice(adapter.obj)
	if err != nil {
		out1.release()
		return nil, err
	}

	return &dxgiOutput{output: out1, device: device, adapter: adapter.toAdapter().Name}, nil
}

// dxgiOutput is good for one duplication, which takes over its references.
type dxgiOutput struct {
	output  comObject
	device  comObject
	adapter string
}

func (o *dxgiOutput) release() {
	o.output.release()
	o.device.release()
	o.output, o.device = 0, 0
}

func (o *dxgiOutput) DuplicateOutput() (capture.Duplication, error) {
	if o.output == 0 {
		return nil, fmt.Errorf("%w: output already duplicated", capture.ErrCaptureUnavailable)
	}

	var dup comObject
	if err := o.output.call(slotOutputDuplicate, uintptr(o.device), uintptr(unsafe.Pointer(&dup))); err != nil {
		o.release()
		return nil, fmt.Errorf("duplicate output on %s: %w", o.adapter, err)
	}

	d := &dxgiDuplication{dup: dup, output: *o}
	o.output, o.device = 0, 0
	return d, nil
}

type dxgiDuplication struct {
	dup    comObject
	output dxgiOutput
}

func (d *dxgiDuplication) AcquireNextFrame(timeout time.Duration) error {
	var info dxgiOutduplFrameInfo
	var resource comObject

	err := d.dup.call(slotDuplAcquireNextFrame,
		uintptr(uint32(timeout.Milliseconds())),
		uintptr(unsafe.Pointer(&info)),
		uintptr(unsafe.Pointer(&resource)),
	)
	if errors.Is(err, dxgiErrorWaitTimeout) {
		return capture.ErrWaitTimeout
	}
	if err != nil {
		return err
	}

	resource.release()
	return nil
}

func (d *dxgiDuplication) ReleaseFrame() error {
	return d.dup.call(slotDuplReleaseFrame)
}

func (d *dxgiDuplication) Close() error {
	d.dup.release()
	d.dup = 0
	d.output.release()
	return nil
}
