package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/muurk/powerview-ble/internal/protocol"
	"github.com/muurk/powerview-ble/internal/shade"
)

// Actions accepted by Execute
const (
	ActionPosition = "position"
	ActionOpen     = "open"
	ActionClose    = "close"
	ActionStop     = "stop"
	ActionScene    = "scene"
	ActionIdentify = "identify"
)

// ErrBadRequest marks invalid input from a client
var ErrBadRequest = errors.New("bad request")

// Command is a shade command received over HTTP or NATS
type Command struct {
	Action   string `json:"action"`
	Position *int   `json:"position,omitempty"`
	Tilt     *int   `json:"tilt,omitempty"`
	Velocity *int   `json:"velocity,omitempty"`
	Index    *int   `json:"index,omitempty"`
	Beeps    *int   `json:"beeps,omitempty"`
}

// Result is the reply to a command
type Result struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Execute runs cmd against s
func Execute(ctx context.Context, s *shade.Shade, cmd Command) error {
	switch cmd.Action {
	case ActionPosition:
		if cmd.Position == nil {
			return fmt.Errorf("%w: position is required", ErrBadRequest)
		}
		var opts []protocol.PositionOption
		if cmd.Tilt != nil {
			opts = append(opts, protocol.WithTilt(*cmd.Tilt))
		}
		if cmd.Velocity != nil {
			if *cmd.Velocity < 0 || *cmd.Velocity > 255 {
				return fmt.Errorf("%w: velocity must be 0-255", ErrBadRequest)
			}
			opts = append(opts, protocol.WithVelocity(uint8(*cmd.Velocity)))
		}
		return s.MoveTo(ctx, *cmd.Position, opts...)
	case ActionOpen:
		return s.Open(ctx)
	case ActionClose:
		return s.Close(ctx)
	case ActionStop:
		return s.Stop(ctx)
	case ActionScene:
		if cmd.Index == nil {
			return fmt.Errorf("%w: index is required", ErrBadRequest)
		}
		return s.ActivateScene(ctx, *cmd.Index)
	case ActionIdentify:
		beeps := shade.DefaultIdentifyBeeps
		if cmd.Beeps != nil {
			beeps = *cmd.Beeps
		}
		return s.Identify(ctx, beeps)
	default:
		return fmt.Errorf("%w: unknown action %q", ErrBadRequest, cmd.Action)
	}
}

// StatusCode maps an error from Execute or the shade manager to an HTTP status
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrBadRequest), shade.IsFrameError(err):
		return http.StatusBadRequest
	case errors.Is(err, shade.ErrUnknownShade):
		return http.StatusNotFound
	case errors.Is(err, shade.ErrControlsUnavailable):
		return http.StatusConflict
	case shade.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case shade.IsTransportError(err), shade.IsDescriptorReadError(err), shade.IsVerificationError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// resultFor builds the reply for err
func resultFor(err error) Result {
	if err != nil {
		return Result{OK: false, Error: err.Error()}
	}
	return Result{OK: true}
}
