package relay

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/balixgaruda/powermon-core/internal/telemetry"
)

// fakePublisher records publishes and optionally fails them.
type fakePublisher struct {
	topics   []string
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

// fakeStatusStore records relay status updates and optionally fails.
type fakeStatusStore struct {
	devices  []string
	statuses []telemetry.RelayStatus
	err      error
}

func (s *fakeStatusStore) UpdateRelayStatus(_ context.Context, deviceID string, status telemetry.RelayStatus) error {
	if s.err != nil {
		return s.err
	}
	s.devices = append(s.devices, deviceID)
	s.statuses = append(s.statuses, status)
	return nil
}

// fakeLogRepo records inserted entries and optionally fails.
type fakeLogRepo struct {
	entries []LogEntry
	err     error
}

func (r *fakeLogRepo) Insert(_ context.Context, entry *LogEntry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeLogRepo) List(_ context.Context, _ int) ([]LogEntry, error) {
	return r.entries, nil
}

// fakeArchiver records archived relay events.
type fakeArchiver struct {
	events []struct {
		deviceID, command, outcome string
	}
}

func (a *fakeArchiver) WriteRelayEvent(deviceID, command, outcome string) {
	a.events = append(a.events, struct {
		deviceID, command, outcome string
	}{deviceID, command, outcome})
}

func testCommand(relayID, command string) Command {
	return Command{
		RelayID:     relayID,
		Command:     command,
		Reason:      "MANUAL",
		InitiatedBy: "user",
	}
}

func newTestCoordinator(pub *fakePublisher, store *fakeStatusStore, log *fakeLogRepo) *Coordinator {
	return NewCoordinator(pub, store, log, NewResolver("ESP32-01"), nil)
}

func TestCoordinator_IssueCommand(t *testing.T) {
	t.Run("happy path publishes, updates and logs", func(t *testing.T) {
		pub := &fakePublisher{}
		store := &fakeStatusStore{}
		logRepo := &fakeLogRepo{}
		coord := newTestCoordinator(pub, store, logRepo)

		result, err := coord.IssueCommand(context.Background(), testCommand("Relay-ESP32-02", "ON"))
		if err != nil {
			t.Fatalf("IssueCommand() error = %v", err)
		}

		if result.Outcome != OutcomePublished {
			t.Errorf("Outcome = %q, want published", result.Outcome)
		}
		if result.DeviceID != "ESP32-02" {
			t.Errorf("DeviceID = %q, want ESP32-02", result.DeviceID)
		}

		if len(pub.topics) != 1 || pub.topics[0] != "iot/command/ESP32-02" {
			t.Errorf("published topics = %v, want [iot/command/ESP32-02]", pub.topics)
		}

		var payload struct {
			Command string `json:"command"`
			RelayID string `json:"relay_id"`
		}
		if err := json.Unmarshal(pub.payloads[0], &payload); err != nil {
			t.Fatalf("unmarshalling payload: %v", err)
		}
		if payload.Command != "ON" || payload.RelayID != "Relay-ESP32-02" {
			t.Errorf("payload = %+v, want command ON relay Relay-ESP32-02", payload)
		}

		if len(store.devices) != 1 || store.devices[0] != "ESP32-02" || store.statuses[0] != telemetry.RelayOn {
			t.Errorf("status updates = %v/%v, want ESP32-02/ON", store.devices, store.statuses)
		}

		if len(logRepo.entries) != 1 {
			t.Fatalf("log entries = %d, want 1", len(logRepo.entries))
		}
		entry := logRepo.entries[0]
		if !entry.Delivered {
			t.Error("log entry Delivered = false, want true")
		}
		if entry.ESPID != "ESP32-02" || entry.NewStatus != "ON" {
			t.Errorf("log entry = %+v, want ESP32-02/ON", entry)
		}
	})

	t.Run("bare relay id targets default device", func(t *testing.T) {
		pub := &fakePublisher{}
		coord := newTestCoordinator(pub, &fakeStatusStore{}, &fakeLogRepo{})

		result, err := coord.IssueCommand(context.Background(), testCommand("Relay-1", "OFF"))
		if err != nil {
			t.Fatalf("IssueCommand() error = %v", err)
		}
		if result.DeviceID != "ESP32-01" {
			t.Errorf("DeviceID = %q, want ESP32-01", result.DeviceID)
		}
		if pub.topics[0] != "iot/command/ESP32-01" {
			t.Errorf("published topic = %q, want iot/command/ESP32-01", pub.topics[0])
		}
	})

	t.Run("invalid command has no side effects", func(t *testing.T) {
		pub := &fakePublisher{}
		store := &fakeStatusStore{}
		logRepo := &fakeLogRepo{}
		coord := newTestCoordinator(pub, store, logRepo)

		_, err := coord.IssueCommand(context.Background(), testCommand("Relay-1", "TOGGLE"))
		if !errors.Is(err, ErrInvalidCommand) {
			t.Fatalf("IssueCommand() error = %v, want ErrInvalidCommand", err)
		}

		if len(pub.topics) != 0 || len(store.devices) != 0 || len(logRepo.entries) != 0 {
			t.Error("invalid command caused side effects")
		}
	})

	t.Run("unresolvable relay skips publish but logs", func(t *testing.T) {
		pub := &fakePublisher{}
		store := &fakeStatusStore{}
		logRepo := &fakeLogRepo{}
		coord := newTestCoordinator(pub, store, logRepo)

		result, err := coord.IssueCommand(context.Background(), testCommand("Relay-garage", "ON"))
		if err != nil {
			t.Fatalf("IssueCommand() error = %v, want accepted", err)
		}

		if result.Outcome != OutcomeSkippedUnresolved {
			t.Errorf("Outcome = %q, want skipped_unresolved", result.Outcome)
		}
		if len(pub.topics) != 0 {
			t.Errorf("published %d messages, want 0", len(pub.topics))
		}
		if len(store.devices) != 0 {
			t.Errorf("updated %d statuses, want 0", len(store.devices))
		}

		if len(logRepo.entries) != 1 {
			t.Fatalf("log entries = %d, want 1", len(logRepo.entries))
		}
		if logRepo.entries[0].Delivered {
			t.Error("log entry Delivered = true, want false")
		}
	})

	t.Run("publish failure still updates status and logs", func(t *testing.T) {
		pub := &fakePublisher{err: errors.New("broker down")}
		store := &fakeStatusStore{}
		logRepo := &fakeLogRepo{}
		coord := newTestCoordinator(pub, store, logRepo)

		result, err := coord.IssueCommand(context.Background(), testCommand("Relay-ESP32-03", "OFF"))
		if err != nil {
			t.Fatalf("IssueCommand() error = %v, want accepted", err)
		}

		if result.Outcome != OutcomePublishFailed {
			t.Errorf("Outcome = %q, want publish_failed", result.Outcome)
		}
		if len(store.devices) != 1 || store.statuses[0] != telemetry.RelayOff {
			t.Errorf("status updates = %v, want one OFF update", store.statuses)
		}
		if len(logRepo.entries) != 1 || logRepo.entries[0].Delivered {
			t.Errorf("log entries = %+v, want one undelivered entry", logRepo.entries)
		}
	})

	t.Run("store failure is returned after publish", func(t *testing.T) {
		pub := &fakePublisher{}
		store := &fakeStatusStore{err: errors.New("disk full")}
		logRepo := &fakeLogRepo{}
		coord := newTestCoordinator(pub, store, logRepo)

		_, err := coord.IssueCommand(context.Background(), testCommand("Relay-1", "ON"))
		if err == nil {
			t.Fatal("IssueCommand() expected error for store failure")
		}

		// The publish is not rolled back.
		if len(pub.topics) != 1 {
			t.Errorf("published %d messages, want 1", len(pub.topics))
		}
	})

	t.Run("log failure is returned", func(t *testing.T) {
		pub := &fakePublisher{}
		coord := newTestCoordinator(pub, &fakeStatusStore{}, &fakeLogRepo{err: errors.New("disk full")})

		_, err := coord.IssueCommand(context.Background(), testCommand("Relay-1", "ON"))
		if err == nil {
			t.Fatal("IssueCommand() expected error for log failure")
		}
	})

	t.Run("archiver receives executed commands", func(t *testing.T) {
		pub := &fakePublisher{}
		archiver := &fakeArchiver{}
		coord := newTestCoordinator(pub, &fakeStatusStore{}, &fakeLogRepo{})
		coord.SetArchiver(archiver)

		if _, err := coord.IssueCommand(context.Background(), testCommand("Relay-ESP32-02", "ON")); err != nil {
			t.Fatalf("IssueCommand() error = %v", err)
		}

		if len(archiver.events) != 1 {
			t.Fatalf("archived events = %d, want 1", len(archiver.events))
		}
		event := archiver.events[0]
		if event.deviceID != "ESP32-02" || event.command != "ON" || event.outcome != string(OutcomePublished) {
			t.Errorf("archived event = %+v, want ESP32-02/ON/published", event)
		}
	})

	t.Run("archiver skipped for unresolvable relays", func(t *testing.T) {
		archiver := &fakeArchiver{}
		coord := newTestCoordinator(&fakePublisher{}, &fakeStatusStore{}, &fakeLogRepo{})
		coord.SetArchiver(archiver)

		if _, err := coord.IssueCommand(context.Background(), testCommand("Relay-garage", "ON")); err != nil {
			t.Fatalf("IssueCommand() error = %v", err)
		}

		if len(archiver.events) != 0 {
			t.Errorf("archived events = %d, want 0", len(archiver.events))
		}
	})
}
