package watch

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/muurk/powerview-ble/internal/link"
	"github.com/muurk/powerview-ble/internal/logging"
	"github.com/muurk/powerview-ble/internal/protocol"
	"github.com/muurk/powerview-ble/internal/shade"
)

// updateBuffer is the number of snapshots queued for the dashboard before
// new ones are dropped
const updateBuffer = 64

// Run scans with scanner, feeds advertisements to manager and shows the
// dashboard until the user quits or ctx ends.
func Run(ctx context.Context, manager *shade.Manager, scanner link.Scanner, timeout time.Duration) error {
	updates := make(chan shade.State, updateBuffer)
	manager.OnTelemetry(func(s *shade.Shade, _ *protocol.Telemetry) {
		select {
		case updates <- s.State():
		default:
		}
	})

	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	scanErr := make(chan error, 1)
	go func() {
		scanErr <- scanner.Scan(scanCtx, manager.HandleAdvertisement)
	}()

	p := tea.NewProgram(New(manager, updates, timeout), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	cancel()

	if serr := <-scanErr; serr != nil && !errors.Is(serr, context.Canceled) {
		logging.Warn("Scan ended with error", zap.Error(serr))
		if err == nil {
			err = serr
		}
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
