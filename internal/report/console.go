// Package report renders benchmarking results to the console, to structured
// documents and to a live websocket stream.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"capbench/internal/domain"
)

// Console prints the human readable report.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) RunStarted(_ context.Context, info domain.RunInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	m := info.Monitor
	fmt.Fprintln(&b, "Monitor details:")
	fmt.Fprintf(&b, "  index: %d\n", m.Index)
	fmt.Fprintf(&b, "  handle: %010X\n", m.Handle)
	fmt.Fprintf(&b, "  name: %s\n", m.Name)
	fmt.Fprintf(&b, "  frequency: %d Hz\n", m.FrequencyHz)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "Adapters:")
	for i, a := range info.Adapters {
		fmt.Fprintf(&b, "  %d - %s\n", i, a.Name)
	}
	fmt.Fprintln(&b)

	_, err := io.WriteString(c.w, b.String())
	return err
}

func (c *Console) PassStarted(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := fmt.Fprintf(c.w, "Recording %s...\n", passLabel(name))
	return err
}

func (c *Console) PassFinished(_ context.Context, _ domain.RunInfo, pass domain.PassResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := io.WriteString(c.w, FormatAverages(pass))
	return err
}

func (c *Console) RunFinished(context.Context, domain.RunReport) error {
	return nil
}

// FormatAverages renders one pass the way the console shows it.
func FormatAverages(pass domain.PassResult) string {
	var b strings.Builder

	fmt.Fprintln(&b, "Average GPU 3D engine utilization by adapter:")
	for _, a := range pass.Adapters {
		fmt.Fprintf(&b, "  %d - %6.2f%% - %s\n", a.Index, a.Average, a.Name)
	}
	if pass.Sink != "" {
		fmt.Fprintf(&b, "  frames captured: %d\n", pass.Frames)
	}
	fmt.Fprintln(&b)

	return b.String()
}

func passLabel(name string) string {
	if name == "baseline" {
		return name
	}
	return strings.ToUpper(name)
}
