package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/balixgaruda/powermon-core/internal/infrastructure/mqtt"
	"github.com/balixgaruda/powermon-core/internal/telemetry"
)

// commandQoS is the MQTT QoS for relay commands. At-least-once is safe
// because ON/OFF commands are idempotent on the device.
const commandQoS = 1

// Publisher is the subset of the MQTT client the coordinator needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// StatusStore is the subset of the telemetry store the coordinator needs.
type StatusStore interface {
	UpdateRelayStatus(ctx context.Context, deviceID string, status telemetry.RelayStatus) error
}

// Logger is the minimal logging interface used by the coordinator.
type Logger interface {
	Warn(msg string, args ...any)
}

// Archiver mirrors executed commands into the time-series database.
// Implemented by the InfluxDB client; optional.
type Archiver interface {
	WriteRelayEvent(deviceID, command, outcome string)
}

// Coordinator executes relay commands as a best-effort dual write:
// publish to the device, overwrite the stored relay status, append an
// audit log entry. There is no rollback; a failed publish is recorded
// (delivered=false) and the device's next report corrects any drift.
type Coordinator struct {
	publisher Publisher
	store     StatusStore
	log       LogRepository
	resolver  *Resolver
	logger    Logger
	archiver  Archiver

	topics mqtt.Topics
}

// NewCoordinator creates a coordinator. logger may be nil.
func NewCoordinator(publisher Publisher, store StatusStore, log LogRepository, resolver *Resolver, logger Logger) *Coordinator {
	return &Coordinator{
		publisher: publisher,
		store:     store,
		log:       log,
		resolver:  resolver,
		logger:    logger,
	}
}

// SetArchiver enables mirroring executed commands into the archive.
func (c *Coordinator) SetArchiver(a Archiver) {
	c.archiver = a
}

// commandPayload is the JSON wire format published to the device.
type commandPayload struct {
	Command     string `json:"command"`
	RelayID     string `json:"relay_id"`
	Reason      string `json:"reason"`
	InitiatedBy string `json:"initiated_by"`
}

// IssueCommand runs the command saga, in order: validate, resolve,
// publish, update stored status, append log entry.
//
// Step failures behave differently:
//   - invalid command: ErrInvalidCommand, no side effects
//   - unresolvable relay: publish and status update skipped, the log
//     entry is still recorded and the command is accepted
//   - publish failure: logged, saga continues (the device's next report
//     reconciles the stored status)
//   - store or log failure: returned to the caller; the publish, if it
//     happened, is not rolled back
func (c *Coordinator) IssueCommand(ctx context.Context, cmd Command) (*Result, error) {
	status := telemetry.RelayStatus(cmd.Command)
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCommand, cmd.Command)
	}

	deviceID, err := c.resolver.Resolve(cmd.RelayID)
	if err != nil {
		// Preserved behavior: an unknown relay is accepted and audited,
		// not rejected. The outcome makes the skip visible to callers.
		c.warn("relay command skipped, relay unresolvable",
			"relay_id", cmd.RelayID, "command", cmd.Command)

		entry := c.newLogEntry(cmd, "")
		if err := c.log.Insert(ctx, entry); err != nil {
			return nil, fmt.Errorf("recording relay log: %w", err)
		}

		return &Result{
			RelayID: cmd.RelayID,
			Command: cmd.Command,
			Outcome: OutcomeSkippedUnresolved,
		}, nil
	}

	outcome := OutcomePublished
	delivered := true

	payload, err := json.Marshal(commandPayload{
		Command:     cmd.Command,
		RelayID:     cmd.RelayID,
		Reason:      cmd.Reason,
		InitiatedBy: cmd.InitiatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding relay command: %w", err)
	}

	topic := c.topics.DeviceCommand(deviceID)
	if err := c.publisher.Publish(topic, payload, commandQoS, false); err != nil {
		c.warn("relay command publish failed",
			"topic", topic, "relay_id", cmd.RelayID, "error", err)
		outcome = OutcomePublishFailed
		delivered = false
	}

	if err := c.store.UpdateRelayStatus(ctx, deviceID, status); err != nil {
		return nil, fmt.Errorf("updating relay status: %w", err)
	}

	entry := c.newLogEntry(cmd, deviceID)
	entry.Delivered = delivered
	if err := c.log.Insert(ctx, entry); err != nil {
		return nil, fmt.Errorf("recording relay log: %w", err)
	}

	if c.archiver != nil {
		c.archiver.WriteRelayEvent(deviceID, cmd.Command, string(outcome))
	}

	return &Result{
		RelayID:  cmd.RelayID,
		DeviceID: deviceID,
		Command:  cmd.Command,
		Outcome:  outcome,
	}, nil
}

func (c *Coordinator) newLogEntry(cmd Command, deviceID string) *LogEntry {
	return &LogEntry{
		ESPID:       deviceID,
		RelayID:     cmd.RelayID,
		Command:     cmd.Command,
		Reason:      cmd.Reason,
		InitiatedBy: cmd.InitiatedBy,
		NewStatus:   cmd.Command,
	}
}

func (c *Coordinator) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
