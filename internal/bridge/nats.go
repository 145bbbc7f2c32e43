package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/muurk/powerview-ble/internal/logging"
	"github.com/muurk/powerview-ble/internal/shade"
)

// NATS subjects
const (
	subjectPrefix       = "powerview.shade."
	telemetrySuffix     = ".telemetry"
	commandSuffix       = ".command"
	CommandSubscription = subjectPrefix + "*" + commandSuffix
)

// TelemetrySubject returns the subject telemetry for address is published on
func TelemetrySubject(address string) string {
	return subjectPrefix + address + telemetrySuffix
}

// CommandSubject returns the subject commands for address are received on
func CommandSubject(address string) string {
	return subjectPrefix + address + commandSuffix
}

// addressFromSubject extracts the address token of a command subject
func addressFromSubject(subject string) (string, bool) {
	if len(subject) <= len(subjectPrefix)+len(commandSuffix) ||
		!strings.HasPrefix(subject, subjectPrefix) || !strings.HasSuffix(subject, commandSuffix) {
		return "", false
	}
	addr := subject[len(subjectPrefix) : len(subject)-len(commandSuffix)]
	if strings.Contains(addr, ".") {
		return "", false
	}
	return addr, true
}

// NATSBridge publishes telemetry and serves command requests over NATS
type NATSBridge struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	manager *shade.Manager
	timeout time.Duration
}

// ConnectNATS connects to url and subscribes to shade commands
func ConnectNATS(url string, manager *shade.Manager, timeout time.Duration) (*NATSBridge, error) {
	nc, err := nats.Connect(url,
		nats.Name("pvble-bridge"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logging.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect NATS %s: %w", url, err)
	}
	return newNATSBridge(nc, manager, timeout)
}

func newNATSBridge(nc *nats.Conn, manager *shade.Manager, timeout time.Duration) (*NATSBridge, error) {
	b := &NATSBridge{nc: nc, manager: manager, timeout: timeout}
	sub, err := nc.Subscribe(CommandSubscription, b.handleCommand)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe %s: %w", CommandSubscription, err)
	}
	b.sub = sub

	logging.Info("NATS bridge started",
		zap.String("url", nc.ConnectedUrl()),
		zap.String("commands", CommandSubscription),
	)
	return b, nil
}

// Publish sends a telemetry event for address
func (b *NATSBridge) Publish(address string, data []byte) {
	if err := b.nc.Publish(TelemetrySubject(address), data); err != nil {
		logging.Warn("NATS publish failed", zap.String("address", address), zap.Error(err))
	}
}

// Close unsubscribes and closes the connection
func (b *NATSBridge) Close() {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	b.nc.Close()
}

// handleCommand runs a command and replies with a Result when the message
// carries a reply subject
func (b *NATSBridge) handleCommand(msg *nats.Msg) {
	result := resultFor(b.execute(msg))
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		logging.Error("Failed to marshal NATS reply", zap.Error(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		logging.Warn("NATS reply failed", zap.String("subject", msg.Subject), zap.Error(err))
	}
}

func (b *NATSBridge) execute(msg *nats.Msg) error {
	address, ok := addressFromSubject(msg.Subject)
	if !ok {
		return fmt.Errorf("%w: unexpected subject %q", ErrBadRequest, msg.Subject)
	}

	var cmd Command
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	sh, err := b.manager.Get(address)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	err = Execute(ctx, sh, cmd)
	if err != nil {
		logging.Warn("NATS command failed",
			zap.String("device", sh.Name()),
			zap.String("action", cmd.Action),
			zap.Error(err),
		)
	}
	return err
}
