package streamfabric

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"

	"github.com/quic-go/quic-go"
)

// QUICAudienceIngress accepts audience vote/suggestion datagrams over a
// QUIC listener and feeds them into the same Inbox used by the public
// WebSocket path, subject to the same token-bucket backpressure. This gives the
// teacher's otherwise-unused quic-go dependency a real, bounded role: a
// low-latency ingress for trusted, co-located audience collectors (e.g.
// a broadcast mixer), per SPEC_FULL.md's DOMAIN STACK wiring decision.
type QUICAudienceIngress struct {
	addr   string
	tlsCfg *tls.Config
	inbox  *Inbox
}

// NewQUICAudienceIngress constructs an ingress listening on addr, feeding
// messages into inbox.
func NewQUICAudienceIngress(addr string, tlsCfg *tls.Config, inbox *Inbox) *QUICAudienceIngress {
	return &QUICAudienceIngress{addr: addr, tlsCfg: tlsCfg, inbox: inbox}
}

type quicAudienceFrame struct {
	Kind      string `json:"kind"`
	LoopID    string `json:"loop_id"`
	ClientID  string `json:"client_id"`
	Choice    string `json:"choice,omitempty"`
	Intensity int    `json:"intensity,omitempty"`
	Text      string `json:"text,omitempty"`
}

// Serve blocks accepting QUIC connections and streams until ctx is
// cancelled. Each accepted stream carries a single JSON frame.
func (q *QUICAudienceIngress) Serve(ctx context.Context) error {
	listener, err := quic.ListenAddr(q.addr, q.tlsCfg, nil)
	if err != nil {
		return fmt.Errorf("listen quic audience ingress: %w", err)
	}
	defer listener.Close()

	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		go q.handleConn(ctx, conn)
	}
}

func (q *QUICAudienceIngress) handleConn(ctx context.Context, conn quic.Connection) {
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		go q.handleStream(stream)
	}
}

func (q *QUICAudienceIngress) handleStream(stream quic.Stream) {
	defer stream.Close()
	data, err := io.ReadAll(io.LimitReader(stream, 64*1024))
	if err != nil {
		return
	}

	var frame quicAudienceFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}
	if !q.inbox.Allow(frame.ClientID) {
		return
	}

	switch frame.Kind {
	case string(AudienceVote):
		q.inbox.Put(AudienceMessage{
			Kind:     AudienceVote,
			LoopID:   frame.LoopID,
			ClientID: frame.ClientID,
			Payload:  VotePayload{Choice: frame.Choice, Intensity: frame.Intensity},
		})
	case string(AudienceSuggestion):
		q.inbox.Put(AudienceMessage{
			Kind:     AudienceSuggestion,
			LoopID:   frame.LoopID,
			ClientID: frame.ClientID,
			Payload:  SuggestionPayload{Text: frame.Text},
		})
	}
}
