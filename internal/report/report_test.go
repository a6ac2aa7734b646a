package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"capbench/internal/bench"
	"capbench/internal/domain"
	"capbench/internal/logger"
)

func sampleInfo() domain.RunInfo {
	return domain.RunInfo{
		RunID:     uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2"),
		ProcessID: 1234,
		Monitor:   domain.Monitor{Index: 0, Handle: 0x10001, Name: `\\.\DISPLAY1`, FrequencyHz: 144},
		Adapters: []domain.Adapter{
			{LUID: domain.LUID{Low: 0xD1F5}, Name: "NVIDIA GeForce RTX 4070"},
			{LUID: domain.LUID{Low: 0xE000}, Name: "Microsoft Basic Render Driver"},
		},
		Duration: 5 * time.Second,
	}
}

func samplePass() domain.PassResult {
	return domain.PassResult{
		Name:   "wgc",
		Sink:   "wgc",
		Frames: 720,
		Adapters: []domain.AdapterResult{
			{Index: 0, Name: "NVIDIA GeForce RTX 4070", LUID: "luid_0x00000000_0x0000D1F5", Average: 25, Samples: domain.SampleSeries{10, 20, 30, 40}},
			{Index: 1, Name: "Microsoft Basic Render Driver", LUID: "luid_0x00000000_0x0000E000"},
		},
	}
}

func TestConsoleLayout(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	ctx := context.Background()

	require.NoError(t, c.RunStarted(ctx, sampleInfo()))
	require.NoError(t, c.PassStarted(ctx, "baseline"))
	require.NoError(t, c.PassStarted(ctx, "wgc"))
	require.NoError(t, c.PassFinished(ctx, sampleInfo(), samplePass()))

	want := strings.Join([]string{
		"Monitor details:",
		"  index: 0",
		"  handle: 0000010001",
		`  name: \\.\DISPLAY1`,
		"  frequency: 144 Hz",
		"",
		"Adapters:",
		"  0 - NVIDIA GeForce RTX 4070",
		"  1 - Microsoft Basic Render Driver",
		"",
		"Recording baseline...",
		"Recording WGC...",
		"Average GPU 3D engine utilization by adapter:",
		"  0 -  25.00% - NVIDIA GeForce RTX 4070",
		"  1 -   0.00% - Microsoft Basic Render Driver",
		"  frames captured: 720",
		"",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestFormatAveragesBaselineOmitsFrames(t *testing.T) {
	pass := samplePass()
	pass.Name, pass.Sink, pass.Frames = "baseline", "", 0

	out := FormatAverages(pass)
	assert.NotContains(t, out, "frames captured")
	assert.Contains(t, out, "  0 -  25.00% - NVIDIA GeForce RTX 4070\n")
}

func TestStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewStructured(&buf, FormatJSON)
	require.NoError(t, err)

	report := domain.RunReport{RunInfo: sampleInfo(), Passes: []domain.PassResult{samplePass()}}
	require.NoError(t, s.RunFinished(context.Background(), report))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "7d444840-9dc0-11d1-b245-5ffdce74fad2", decoded["run_id"])

	passes := decoded["passes"].([]any)
	require.Len(t, passes, 1)
	adapters := passes[0].(map[string]any)["adapters"].([]any)
	assert.Equal(t, 25.0, adapters[0].(map[string]any)["average"])
}

func TestStructuredYAML(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewStructured(&buf, FormatYAML)
	require.NoError(t, err)

	report := domain.RunReport{RunInfo: sampleInfo(), Passes: []domain.PassResult{samplePass()}}
	require.NoError(t, s.RunFinished(context.Background(), report))

	var decoded struct {
		RunID  string `yaml:"run_id"`
		Passes []struct {
			Name     string `yaml:"name"`
			Frames   int    `yaml:"frames"`
			Adapters []struct {
				Average float64   `yaml:"average"`
				Samples []float64 `yaml:"samples"`
			} `yaml:"adapters"`
		} `yaml:"passes"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "7d444840-9dc0-11d1-b245-5ffdce74fad2", decoded.RunID)
	require.Len(t, decoded.Passes, 1)
	assert.Equal(t, 720, decoded.Passes[0].Frames)
	assert.Equal(t, []float64{10, 20, 30, 40}, decoded.Passes[0].Adapters[0].Samples)
}

func TestStructuredRejectsUnknownFormat(t *testing.T) {
	_, err := NewStructured(&bytes.Buffer{}, "csv")
	assert.Error(t, err)
}

type failingReporter struct{ err error }

func (f failingReporter) RunStarted(context.Context, domain.RunInfo) error { return f.err }
func (f failingReporter) PassStarted(context.Context, string) error        { return f.err }
func (f failingReporter) PassFinished(context.Context, domain.RunInfo, domain.PassResult) error {
	return f.err
}
func (f failingReporter) RunFinished(context.Context, domain.RunReport) error { return f.err }

func TestMultiReachesEveryReporter(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("boom")

	var m bench.Reporter = Multi{failingReporter{err: boom}, NewConsole(&buf)}

	err := m.PassStarted(context.Background(), "dda")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "Recording DDA...\n", buf.String())
}

func TestPublisherStreamsEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan domain.WsReportEvent, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var ev domain.WsReportEvent
			if err := conn.ReadJSON(&ev); err != nil {
				close(received)
				return
			}
			received <- ev
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx := context.Background()

	p, err := Dial(ctx, url, "run-1", logger.Nop())
	require.NoError(t, err)

	require.NoError(t, p.RunStarted(ctx, sampleInfo()))
	require.NoError(t, p.PassFinished(ctx, sampleInfo(), samplePass()))
	require.NoError(t, p.Close(ctx))
	assert.ErrorIs(t, p.RunFinished(ctx, domain.RunReport{}), ErrPublisherClosed)

	var events []string
	for ev := range received {
		assert.Equal(t, "run-1", ev.RunID)
		events = append(events, ev.Event)
	}
	assert.Equal(t, []string{domain.WsEventRunStarted, domain.WsEventPassFinished}, events)
}
