package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/centrifugal/centrifuge"

	"github.com/pscheid92/rankpulse/internal/adapter/metrics"
	"github.com/pscheid92/rankpulse/internal/domain"
)

// Sink publishes domain events to LeaderboardChannel.
type Sink struct {
	node      *centrifuge.Node
	wsMetrics *metrics.WebSocketMetrics
}

func NewSink(node *centrifuge.Node, wsMetrics *metrics.WebSocketMetrics) *Sink {
	return &Sink{node: node, wsMetrics: wsMetrics}
}

func (s *Sink) Name() string { return "websocket" }

func (s *Sink) Send(_ context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Kind, err)
	}

	if _, err := s.node.Publish(LeaderboardChannel, data); err != nil {
		return fmt.Errorf("publish to channel %s: %w", LeaderboardChannel, err)
	}

	if s.wsMetrics != nil {
		s.wsMetrics.MessagesPublished.WithLabelValues(string(event.Kind)).Inc()
	}
	return nil
}
