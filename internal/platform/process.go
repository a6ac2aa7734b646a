package platform

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v4/process"

	"capbench/internal/domain"
)

// ResolvePID returns pid when it is set, otherwise the pid of the first
// running process whose name matches name case-insensitively.
func ResolvePID(ctx context.Context, name string, pid uint32) (uint32, error) {
	if pid != 0 {
		return pid, nil
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("list processes: %w", err)
	}

	for _, p := range procs {
		pname, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if strings.EqualFold(pname, name) {
			return uint32(p.Pid), nil
		}
	}

	return 0, fmt.Errorf("%w: %s", domain.ErrProcessNotFound, name)
}
