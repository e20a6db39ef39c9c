package cli

import (
	"context"
	"errors"
	"fmt"

	"pavolctl/internal/adapter/secondary/command"
	"pavolctl/internal/adapter/secondary/proxy"
	"pavolctl/internal/adapter/secondary/status"
	"pavolctl/internal/config"
	"pavolctl/internal/domain"
	"pavolctl/internal/logging"
	"pavolctl/internal/usecase"
)

// app holds the wired use case for one command invocation.
type app struct {
	cfg      config.Config
	uc       usecase.VolumeUseCase
	states   chan domain.StateChange
	sendErrs chan error

	// dry is set for --dry-run and records what would have been sent.
	dry *command.NoopChannel
}

func newApp(cfg config.Config, dryRun bool) (*app, error) {
	dialer, err := proxy.NewDialer(cfg.Proxy.SOCKS5, cfg.Timeout())
	if err != nil {
		return nil, err
	}
	logger := logging.Logger()

	a := &app{
		cfg:      cfg,
		states:   make(chan domain.StateChange, 16),
		sendErrs: make(chan error, 64),
	}
	onState := func(sc domain.StateChange) {
		select {
		case a.states <- sc:
		default:
		}
	}
	onSendError := func(err error) {
		logging.Errorf("%v", err)
		select {
		case a.sendErrs <- err:
		default:
		}
	}

	var ch domain.CommandChannel
	if dryRun {
		noop := command.NewNoopChannel()
		noop.OnStateChange = onState
		ch = noop
		a.dry = noop
	} else {
		ch = command.NewTCPChannel(command.Options{
			Dialer:        dialer,
			Logger:        logger,
			OnStateChange: onState,
			OnSendError:   onSendError,
		})
	}

	fetcher := status.NewHTTPFetcher(proxy.NewHTTPClient(dialer, cfg.Timeout()), cfg.Timeout(), logger)

	uc, err := usecase.NewVolumeUseCase(ch, fetcher, cfg.CommandEndpoint(), cfg.StatusEndpoint())
	if err != nil {
		return nil, err
	}
	a.uc = uc
	return a, nil
}

// waitReady blocks until the command channel is ready or has failed.
func (a *app) waitReady(ctx context.Context) error {
	for {
		select {
		case sc := <-a.states:
			switch sc.State {
			case domain.StateReady:
				return nil
			case domain.StateFailed:
				return sc.Err
			case domain.StateCancelled:
				return errors.New("command channel cancelled")
			}
		case <-ctx.Done():
			return fmt.Errorf("waiting for command channel: %w", ctx.Err())
		}
	}
}

// sendError returns the first reported send failure, if any.
func (a *app) sendError() error {
	select {
	case err := <-a.sendErrs:
		return err
	default:
		return nil
	}
}
