package domain

const (
	WsEventRunStarted   = "run_started"
	WsEventPassFinished = "pass_finished"
	WsEventRunFinished  = "run_finished"
)

type WsReportEvent struct {
	RunID   string `json:"run_id"`
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}
