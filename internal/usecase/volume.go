package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"pavolctl/internal/domain"
	"pavolctl/internal/logging"
)

// VolumeUseCase is the primary port used by the CLI and the web API.
type VolumeUseCase interface {
	Connect()
	SetVolume(percent float64, class domain.DeviceClass) error
	GetVolumes(ctx context.Context) (domain.StatusSnapshot, error)
	GetVolumesAsync(ctx context.Context) <-chan VolumesResult
	Watch(ctx context.Context, interval time.Duration, fn func(VolumesResult))
	ConnState() domain.StateChange
	Close() error
}

// VolumesResult carries the outcome of one status query.
type VolumesResult struct {
	Snapshot domain.StatusSnapshot
	Err      error
	At       time.Time
}

// volumeInteractor implements VolumeUseCase.
// It depends only on the domain layer and secondary ports.
type volumeInteractor struct {
	channel  domain.CommandChannel
	fetcher  domain.StatusFetcher
	cmdEP    domain.Endpoint
	statusEP domain.Endpoint

	closeOnce sync.Once
}

// NewVolumeUseCase wires the command channel and the status fetcher to their endpoints.
func NewVolumeUseCase(
	channel domain.CommandChannel,
	fetcher domain.StatusFetcher,
	cmdEP domain.Endpoint,
	statusEP domain.Endpoint,
) (VolumeUseCase, error) {
	if channel == nil || fetcher == nil {
		return nil, errors.New("channel and fetcher are required")
	}
	return &volumeInteractor{
		channel:  channel,
		fetcher:  fetcher,
		cmdEP:    cmdEP,
		statusEP: statusEP,
	}, nil
}

// Connect starts establishing the command channel; the outcome arrives as state changes.
func (v *volumeInteractor) Connect() {
	logging.Debugf("connecting command channel to %s", v.cmdEP)
	v.channel.Connect(v.cmdEP)
}

// SetVolume converts percent to native units and sends it to the default device of class.
// Only validation errors are returned; delivery failures are reported by the channel.
func (v *volumeInteractor) SetVolume(percent float64, class domain.DeviceClass) error {
	if err := domain.ValidatePercent(percent); err != nil {
		return err
	}
	native := domain.ToNative(percent)
	logging.Infof("set %s volume %.0f%% (native %d)", class, percent, native)
	v.channel.Send(domain.VolumeCommand(class, native))
	return nil
}

// GetVolumes fetches and parses a fresh status report.
// A fetch failure aborts the query; no partial snapshot is returned.
func (v *volumeInteractor) GetVolumes(ctx context.Context) (domain.StatusSnapshot, error) {
	text, err := v.fetcher.FetchStatus(ctx, v.statusEP)
	if err != nil {
		return domain.StatusSnapshot{}, err
	}
	snap := domain.ParseVolumes(text)
	logging.Tracef("parsed status: sink=%v source=%v", snap.SinkVolumePercent, snap.SourceVolumePercent)
	return snap, nil
}

// GetVolumesAsync runs GetVolumes in the background.
// The returned channel receives exactly one result and is then closed.
func (v *volumeInteractor) GetVolumesAsync(ctx context.Context) <-chan VolumesResult {
	out := make(chan VolumesResult, 1)
	go func() {
		defer close(out)
		snap, err := v.GetVolumes(ctx)
		out <- VolumesResult{Snapshot: snap, Err: err, At: time.Now()}
	}()
	return out
}

// Watch polls the status every interval until ctx is cancelled.
// fn is called for the first result, for every changed snapshot and for every error.
func (v *volumeInteractor) Watch(ctx context.Context, interval time.Duration, fn func(VolumesResult)) {
	var last *domain.StatusSnapshot

	poll := func() {
		snap, err := v.GetVolumes(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			// The next success is reported even if it matches the last snapshot.
			last = nil
			fn(VolumesResult{Err: err, At: time.Now()})
			return
		}
		if !domain.Changed(last, snap) {
			return
		}
		last = &snap
		fn(VolumesResult{Snapshot: snap, At: time.Now()})
	}

	poll()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}

// ConnState returns the last command channel transition.
func (v *volumeInteractor) ConnState() domain.StateChange {
	return v.channel.State()
}

// Close releases the command channel.
func (v *volumeInteractor) Close() error {
	var err error
	v.closeOnce.Do(func() {
		err = v.channel.Close()
	})
	return err
}
