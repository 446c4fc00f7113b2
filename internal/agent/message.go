package agent

import "time"

// Message is one utterance produced during an agent turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Agent     string    `json:"agent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Agent names surfaced in responses and stored with each message.
const (
	AgentSupervisor         = "supervisor"
	AgentContentResearcher  = "ContentResearcher"
	AgentWorksheetGenerator = "WorksheetGenerator"
)
