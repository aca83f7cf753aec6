// Package streamfabric implements the sync→async event bridge, audience
// inbox with token-bucket rate limiting, and multi-loop registry
// described in spec §4.6/§4.7. It generalizes conversation.DebateSession's
// Clients map + Broadcast method and is grounded closely on
// original_source's aragora/server/stream.py (SyncEventEmitter,
// AudienceInbox, TokenBucket, LoopInstance).
package streamfabric

import "time"

// EventKind is the type tag carried by every StreamEvent (spec §6
// "Event stream (WebSocket)").
type EventKind string

const (
	EventDebateStart     EventKind = "debate_start"
	EventRoundStart      EventKind = "round_start"
	EventAgentMessage    EventKind = "agent_message"
	EventCritique        EventKind = "critique"
	EventVote            EventKind = "vote"
	EventConsensus       EventKind = "consensus"
	EventDebateEnd       EventKind = "debate_end"
	EventTokenStart      EventKind = "token_start"
	EventTokenDelta      EventKind = "token_delta"
	EventTokenEnd        EventKind = "token_end"
	EventCycleStart      EventKind = "cycle_start"
	EventCycleEnd        EventKind = "cycle_end"
	EventPhaseStart      EventKind = "phase_start"
	EventPhaseEnd        EventKind = "phase_end"
	EventTaskStart       EventKind = "task_start"
	EventTaskComplete    EventKind = "task_complete"
	EventTaskRetry       EventKind = "task_retry"
	EventVerifyStart     EventKind = "verification_start"
	EventVerifyResult    EventKind = "verification_result"
	EventCommit          EventKind = "commit"
	EventBackupCreated   EventKind = "backup_created"
	EventBackupRestored  EventKind = "backup_restored"
	EventError           EventKind = "error"
	EventLogMessage      EventKind = "log_message"
	EventLoopRegister    EventKind = "loop_register"
	EventLoopUnregister  EventKind = "loop_unregister"
	EventLoopList        EventKind = "loop_list"
	EventUserVote        EventKind = "user_vote"
	EventUserSuggestion  EventKind = "user_suggestion"
	EventAudienceSummary EventKind = "audience_summary"
	EventAudienceMetrics EventKind = "audience_metrics"
	EventAudienceDrain   EventKind = "audience_drain"
	EventMemoryRecall    EventKind = "memory_recall"
	EventInsightExtract  EventKind = "insight_extracted"
	EventMatchRecorded   EventKind = "match_recorded"
	EventLeaderboard     EventKind = "leaderboard_update"
	EventFlipDetected    EventKind = "flip_detected"
	EventProbeStart      EventKind = "probe_start"
	EventProbeResult     EventKind = "probe_result"
	EventProbeComplete   EventKind = "probe_complete"
	EventAuditStart      EventKind = "audit_start"
	EventAuditRound      EventKind = "audit_round"
	EventAuditFinding    EventKind = "audit_finding"
	EventAuditCrossExam  EventKind = "cross_exam"
	EventAuditVerdict    EventKind = "audit_verdict"
	EventSync            EventKind = "sync"
)

// StreamEvent is the envelope broadcast to every WebSocket client (spec
// §4.6: "{kind, data, timestamp, round, agent, loop_id}").
type StreamEvent struct {
	Kind      EventKind `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	Round     int       `json:"round,omitempty"`
	Agent     string    `json:"agent,omitempty"`
	LoopID    string    `json:"loop_id,omitempty"`
}

// AudienceMessageKind distinguishes the two downstream client→server
// payload shapes (spec §6 "Audience protocol").
type AudienceMessageKind string

const (
	AudienceVote       AudienceMessageKind = "user_vote"
	AudienceSuggestion AudienceMessageKind = "user_suggestion"
)

// AudienceMessage is one inbound message from an audience member.
type AudienceMessage struct {
	Kind      AudienceMessageKind
	LoopID    string
	Payload   any
	Timestamp time.Time
	ClientID  string
}

// VotePayload is the decoded payload of an AudienceVote message.
type VotePayload struct {
	Choice    string
	Intensity int
}

// SuggestionPayload is the decoded payload of an AudienceSuggestion message.
type SuggestionPayload struct {
	Text string
}
