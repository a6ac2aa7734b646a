//go:build windows

package platform

import (
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"

	"capbench/internal/collector/gpu"
	"capbench/internal/domain"
)

const (
	pdhFmtDouble         = 0x00000200
	pdhMoreData          = 0x800007D2
	pdhCstatusValidData  = 0x00000000
	pdhCstatusNewData    = 0x00000001
	pdhCstatusNoInstance = 0x800007D1
	pdhCstatusNoObject   = 0xC0000BB8
	pdhCstatusNoCounter  = 0xC0000BB9
)

var (
	modpdh = windows.NewLazySystemDLL("pdh.dll")

	procPdhOpenQueryW               = modpdh.NewProc("PdhOpenQueryW")
	procPdhAddEnglishCounterW       = modpdh.NewProc("PdhAddEnglishCounterW")
	procPdhExpandWildCardPathW      = modpdh.NewProc("PdhExpandWildCardPathW")
	procPdhCollectQueryData         = modpdh.NewProc("PdhCollectQueryData")
	procPdhGetFormattedCounterValue = modpdh.NewProc("PdhGetFormattedCounterValue")
	procPdhCloseQuery               = modpdh.NewProc("PdhCloseQuery")
)

type pdhError uint32

func (e pdhError) Error() string {
	return fmt.Sprintf("pdh status 0x%08X", uint32(e))
}

func pdhCall(p *windows.LazyProc, args ...uintptr) error {
	r, _, _ := p.Call(args...)
	if r != 0 {
		return pdhError(r)
	}
	return nil
}

type pdhFmtCounterValue struct {
	CStatus     uint32
	DoubleValue float64
}

// pdhSubsystem is the Windows performance counter subsystem.
type pdhSubsystem struct{}

// expand resolves a wildcard counter path into one path per instance.
func (pdhSubsystem) expand(path string) ([]string, error) {
	wild, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}

	var size uint32
	err = pdhCall(procPdhExpandWildCardPathW, 0, uintptr(unsafe.Pointer(wild)), 0, uintptr(unsafe.Pointer(&size)), 0)
	switch err {
	case nil:
		return nil, nil
	case pdhError(pdhMoreData):
	case pdhError(pdhCstatusNoInstance), pdhError(pdhCstatusNoObject), pdhError(pdhCstatusNoCounter):
		return nil, nil
	default:
		return nil, err
	}

	buf := make([]uint16, size)
	if err := pdhCall(procPdhExpandWildCardPathW, 0, uintptr(unsafe.Pointer(wild)),
		uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&size)), 0); err != nil {
		return nil, err
	}

	var paths []string
	start := 0
	for i, c := range buf {
		if c != 0 {
			continue
		}
		if i == start {
			break
		}
		paths = append(paths, windows.UTF16ToString(buf[start:i]))
		start = i + 1
	}
	return paths, nil
}

func (s pdhSubsystem) OpenQuery(path string) (gpu.Query, error) {
	paths, err := s.expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand %s: %w", path, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrCounterUnavailable, path)
	}

	q := &pdhQuery{}
	if err := pdhCall(procPdhOpenQueryW, 0, 0, uintptr(unsafe.Pointer(&q.handle))); err != nil {
		return nil, fmt.Errorf("open query: %w", err)
	}

	for _, p := range paths {
		ptr, err := windows.UTF16PtrFromString(p)
		if err != nil {
			q.Close()
			return nil, err
		}

		var counter windows.Handle
		if err := pdhCall(procPdhAddEnglishCounterW, uintptr(q.handle), uintptr(unsafe.Pointer(ptr)), 0, uintptr(unsafe.Pointer(&counter))); err != nil {
			q.Close()
			return nil, fmt.Errorf("add counter %s: %w", p, err)
		}
		q.counters = append(q.counters, counter)
	}

	return q, nil
}

// InstanceNames lists every GPU engine counter instance on the machine.
func (s pdhSubsystem) InstanceNames() ([]string, error) {
	paths, err := s.expand(gpu.InstanceWildcardPath())
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(paths))
	for _, p := range paths {
		lo := strings.Index(p, "(")
		hi := strings.LastIndex(p, ")")
		if lo >= 0 && hi > lo {
			names = append(names, p[lo+1:hi])
		}
	}
	return names, nil
}

type pdhQuery struct {
	mu       sync.Mutex
	handle   windows.Handle
	counters []windows.Handle
}

func (q *pdhQuery) Collect() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.handle == 0 {
		return domain.ErrCounterClosed
	}
	return pdhCall(procPdhCollectQueryData, uintptr(q.handle))
}

func (q *pdhQuery) Values() ([]float64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.handle == 0 {
		return nil, domain.ErrCounterClosed
	}

	values := make([]float64, 0, len(q.counters))
	for _, c := range q.counters {
		var v pdhFmtCounterValue
		if err := pdhCall(procPdhGetFormattedCounterValue, uintptr(c), pdhFmtDouble, 0, uintptr(unsafe.Pointer(&v))); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCounterReadFailed, err)
		}
		if v.CStatus != pdhCstatusValidData && v.CStatus != pdhCstatusNewData {
			return nil, fmt.Errorf("%w: counter status 0x%08X", domain.ErrCounterReadFailed, v.CStatus)
		}
		values = append(values, v.DoubleValue)
	}
	return values, nil
}

func (q *pdhQuery) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.handle == 0 {
		return nil
	}
	err := pdhCall(procPdhCloseQuery, uintptr(q.handle))
	q.handle = 0
	q.counters = nil
	return err
}
