package activation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/lucid-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/lucid-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/lucid-core/internal/toolbar"
)

// Request asks for the control labelled Label on tab Tab to be activated.
type Request struct {
	RequestID string `json:"request_id,omitempty"`
	Tab       string `json:"tab"`
	Label     string `json:"label"`
}

// Response reports the result of a Request.
type Response struct {
	RequestID  string          `json:"request_id,omitempty"`
	Beamline   string          `json:"beamline"`
	Tab        string          `json:"tab"`
	Label      string          `json:"label"`
	Kind       string          `json:"kind,omitempty"`
	OK         bool            `json:"ok"`
	Error      string          `json:"error,omitempty"`
	Outputs    []CommandOutput `json:"outputs,omitempty"`
	PIDs       []int           `json:"pids,omitempty"`
	DurationMS float64         `json:"duration_ms"`
}

// Locator finds controls by tab and label.
type Locator interface {
	Find(tab, label string) (toolbar.Control, bool)
}

// Publisher sends responses.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// Recorder stores activation telemetry.
type Recorder interface {
	WriteActivation(r influxdb.ActivationRecord)
}

// Service answers activation requests arriving over MQTT.
type Service struct {
	activator *Activator
	locator   Locator
	publisher Publisher
	recorder  Recorder
	topics    mqtt.Topics

	mu       sync.Mutex
	draining bool
	inflight sync.WaitGroup
}

// NewService wires an activator to a control locator and a publisher.
// recorder may be nil.
func NewService(a *Activator, loc Locator, pub Publisher, topics mqtt.Topics, recorder Recorder) *Service {
	return &Service{
		activator: a,
		locator:   loc,
		publisher: pub,
		recorder:  recorder,
		topics:    topics,
	}
}

// Handle processes one request for beamline and returns the response.
func (s *Service) Handle(ctx context.Context, beamline string, req Request) Response {
	resp := Response{RequestID: req.RequestID, Beamline: beamline, Tab: req.Tab, Label: req.Label}

	if strings.TrimSpace(req.Tab) == "" || strings.TrimSpace(req.Label) == "" {
		resp.Error = fmt.Errorf("%w: tab and label are required", ErrInvalidRequest).Error()
		return resp
	}

	control, ok := s.locator.Find(req.Tab, req.Label)
	if !ok {
		resp.Error = fmt.Errorf("%w: %s/%s", ErrControlNotFound, req.Tab, req.Label).Error()
		return resp
	}

	out, err := s.activator.Activate(ctx, control)
	resp.Kind = control.Kind.String()
	resp.Outputs = out.Outputs
	resp.PIDs = out.PIDs
	resp.DurationMS = float64(out.Duration) / float64(time.Millisecond)
	resp.OK = err == nil
	if err != nil {
		resp.Error = err.Error()
		s.activator.logger.Warn("activation failed", "beamline", beamline, "tab", req.Tab, "label", req.Label, "error", err)
	} else {
		s.activator.logger.Info("control activated", "beamline", beamline, "tab", req.Tab, "label", req.Label, "kind", resp.Kind)
	}

	if s.recorder != nil {
		s.recorder.WriteActivation(influxdb.ActivationRecord{
			Beamline: beamline,
			Tab:      req.Tab,
			Label:    req.Label,
			Kind:     resp.Kind,
			Success:  resp.OK,
			Duration: out.Duration,
		})
	}
	return resp
}

// MessageHandler returns an MQTT handler for the activate topics. The
// beamline is taken from the topic and the response is published on the
// matching activation topic.
//
// Each request is handled on its own goroutine so that a long command never
// holds up the MQTT client. Requests arriving after Drain are rejected.
func (s *Service) MessageHandler(ctx context.Context) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		beamline, ok := s.topics.BeamlineOf(topic)
		if !ok {
			return fmt.Errorf("%w: unexpected topic %q", ErrInvalidRequest, topic)
		}

		s.mu.Lock()
		if s.draining {
			s.mu.Unlock()
			return ErrDraining
		}
		s.inflight.Add(1)
		s.mu.Unlock()

		data := append([]byte(nil), payload...)
		go func() {
			defer s.inflight.Done()
			if err := s.respond(ctx, beamline, data); err != nil {
				s.activator.logger.Error("activation response failed", "beamline", beamline, "error", err)
			}
		}()
		return nil
	}
}

// Drain stops accepting requests and blocks until every accepted request
// has been answered.
func (s *Service) Drain() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	s.inflight.Wait()
}

func (s *Service) respond(ctx context.Context, beamline string, payload []byte) error {
	var req Request
	var resp Response
	if err := json.Unmarshal(payload, &req); err != nil {
		resp = Response{Beamline: beamline, Error: fmt.Errorf("%w: %v", ErrInvalidRequest, err).Error()}
	} else {
		resp = s.Handle(ctx, beamline, req)
	}

	if err := s.publisher.PublishJSON(s.topics.Activation(beamline), resp, false); err != nil {
		return fmt.Errorf("publishing activation result: %w", err)
	}
	return nil
}
