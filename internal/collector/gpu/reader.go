package gpu

import (
	"fmt"

	"capbench/internal/domain"
)

const (
	engineObject      = `\GPU Engine`
	utilizationSuffix = `\Utilization Percentage`
)

// CounterPath builds the 3D engine utilization path for pid, scoped to
// adapter when one is given.
func CounterPath(pid uint32, adapter *domain.Adapter) string {
	if adapter == nil {
		return fmt.Sprintf(`%s(pid_%d*engtype_3D)%s`, engineObject, pid, utilizationSuffix)
	}

	return fmt.Sprintf(`%s(pid_%d_%s*engtype_3D)%s`, engineObject, pid, adapter.LUID, utilizationSuffix)
}

// InstanceWildcardPath matches every GPU engine instance on the machine.
func InstanceWildcardPath() string {
	return engineObject + `(*)` + utilizationSuffix
}
