// Package domain
package domain

import "fmt"

// LUID is the locally unique identifier the OS assigns to a GPU adapter.
type LUID struct {
	High int32  `json:"high" yaml:"high"`
	Low  uint32 `json:"low"  yaml:"low"`
}

// String renders the LUID the way GPU performance counter instances name it.
func (l LUID) String() string {
	return fmt.Sprintf("luid_0x%08X_0x%08X", uint32(l.High), l.Low)
}

type Adapter struct {
	LUID LUID   `json:"luid" yaml:"luid"`
	Name string `json:"name" yaml:"name"`
}

type Monitor struct {
	Index       int    `json:"index"        yaml:"index"`
	Handle      uint64 `json:"handle"       yaml:"handle"`
	Name        string `json:"name"         yaml:"name"`
	FrequencyHz uint32 `json:"frequency_hz" yaml:"frequency_hz"`
}
