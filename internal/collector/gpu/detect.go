package gpu

import (
	"sort"
	"strconv"
	"strings"

	"capbench/internal/domain"
)

// Instance is a parsed GPU Engine counter instance name, for example
// "pid_1234_luid_0x00000000_0x0000D1F5_phys_0_eng_0_engtype_3D".
type Instance struct {
	PID        uint32
	LUID       domain.LUID
	Phys       int
	Engine     int
	EngineType string
}

func ParseInstance(name string) (Instance, bool) {
	var inst Instance

	fields := strings.Split(name, "_")
	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "pid":
			if i+1 >= len(fields) {
				return inst, false
			}
			pid, err := strconv.ParseUint(fields[i+1], 10, 32)
			if err != nil {
				return inst, false
			}
			inst.PID = uint32(pid)
			i++
		case "luid":
			if i+2 >= len(fields) {
				return inst, false
			}
			high, errHigh := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(fields[i+1]), "0x"), 16, 32)
			low, errLow := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(fields[i+2]), "0x"), 16, 32)
			if errHigh != nil || errLow != nil {
				return inst, false
			}
			inst.LUID = domain.LUID{High: int32(uint32(high)), Low: uint32(low)}
			i += 2
		case "phys":
			if i+1 < len(fields) {
				inst.Phys, _ = strconv.Atoi(fields[i+1])
				i++
			}
		case "eng":
			if i+1 < len(fields) {
				inst.Engine, _ = strconv.Atoi(fields[i+1])
				i++
			}
		case "engtype":
			inst.EngineType = strings.Join(fields[i+1:], "_")
			i = len(fields)
		}
	}

	return inst, inst.LUID != (domain.LUID{})
}

// DetectAdapters returns the distinct adapter LUIDs named by a set of GPU
// Engine instances, ordered by LUID.
func DetectAdapters(instances []string) []domain.LUID {
	seen := make(map[domain.LUID]struct{})
	var out []domain.LUID

	for _, name := range instances {
		inst, ok := ParseInstance(name)
		if !ok {
			continue
		}
		if _, dup := seen[inst.LUID]; dup {
			continue
		}
		seen[inst.LUID] = struct{}{}
		out = append(out, inst.LUID)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].High != out[j].High {
			return out[i].High < out[j].High
		}
		return out[i].Low < out[j].Low
	})

	return out
}
