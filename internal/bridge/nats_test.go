package bridge

import (
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/muurk/powerview-ble/internal/shade"
)

func TestSubjects(t *testing.T) {
	if got := TelemetrySubject(testAddress); got != "powerview.shade.AA:BB:CC:DD:EE:01.telemetry" {
		t.Errorf("TelemetrySubject() = %q", got)
	}
	if got := CommandSubject(testAddress); got != "powerview.shade.AA:BB:CC:DD:EE:01.command" {
		t.Errorf("CommandSubject() = %q", got)
	}
}

func TestAddressFromSubject(t *testing.T) {
	tests := []struct {
		subject string
		want    string
		ok      bool
	}{
		{CommandSubject(testAddress), testAddress, true},
		{"powerview.shade..command", "", false},
		{"powerview.shade.a.b.command", "", false},
		{TelemetrySubject(testAddress), "", false},
		{"other.shade.AA.command", "", false},
	}

	for _, tt := range tests {
		got, ok := addressFromSubject(tt.subject)
		if got != tt.want || ok != tt.ok {
			t.Errorf("addressFromSubject(%q) = %q, %v, want %q, %v", tt.subject, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNATSExecute(t *testing.T) {
	tb := newTestBridge(t, false)
	tb.register(t, nil)
	b := &NATSBridge{manager: tb.manager, timeout: time.Second}

	tests := []struct {
		name    string
		subject string
		data    string
		check   func(error) bool
	}{
		{"stop", CommandSubject(testAddress), `{"action":"stop"}`, func(err error) bool { return err == nil }},
		{"scene", CommandSubject(testAddress), `{"action":"scene","index":1}`, func(err error) bool { return err == nil }},
		{"unknown action", CommandSubject(testAddress), `{"action":"dance"}`, func(err error) bool { return errors.Is(err, ErrBadRequest) }},
		{"bad json", CommandSubject(testAddress), `{`, func(err error) bool { return errors.Is(err, ErrBadRequest) }},
		{"bad subject", "powerview.shade.command", `{"action":"stop"}`, func(err error) bool { return errors.Is(err, ErrBadRequest) }},
		{"unknown shade", CommandSubject("11:22:33:44:55:66"), `{"action":"stop"}`, func(err error) bool { return errors.Is(err, shade.ErrUnknownShade) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.execute(&nats.Msg{Subject: tt.subject, Data: []byte(tt.data)})
			if !tt.check(err) {
				t.Errorf("execute() error = %v", err)
			}
		})
	}
}
