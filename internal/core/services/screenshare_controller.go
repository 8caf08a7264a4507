package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sharecast/internal/core/domain"
	"sharecast/internal/core/ports"
	"sharecast/pkg/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// MixPolicy decides whether capture audio and an active microphone are mixed.
type MixPolicy string

const (
	MixAlways MixPolicy = "always"
	MixNever  MixPolicy = "never"
)

// RestorePolicy decides when a microphone is reacquired after a share ends.
type RestorePolicy string

const (
	// RestoreWhenSilent reacquires whenever the participant holds no audio track.
	RestoreWhenSilent RestorePolicy = "when_silent"
	// RestoreWhenConsumed reacquires only if the share consumed the microphone.
	RestoreWhenConsumed RestorePolicy = "when_consumed"
)

type ControllerConfig struct {
	MixPolicy     MixPolicy
	RestorePolicy RestorePolicy

	// OnError receives every failure that should be shown to the user.
	// Capture permission denials never reach it.
	OnError func(error)
	Events  ports.ShareEventSink
	Metrics ports.ShareMetrics
}

type shareCandidate struct {
	track  *domain.LocalTrack
	source domain.TrackSource
	mix    *domain.MixResult
}

type activeShare struct {
	id          domain.ShareID
	session     *domain.CaptureSession
	mix         *domain.MixResult
	published   domain.PublishedSet
	consumedMic bool
	ordinals    map[domain.MediaKind]int
	startedAt   time.Time
}

func (s *activeShare) nextTrackName(kind domain.MediaKind) string {
	ordinal := s.ordinals[kind]
	s.ordinals[kind] = ordinal + 1
	return fmt.Sprintf("screen-%s-%d-%s", kind, ordinal, shortID(string(s.id)))
}

// ScreenShareController owns the screen-share state machine. Start and stop
// hold guard from the moment they leave a stable state until they reach one,
// so a second toggle can never observe an intermediate state.
type ScreenShareController struct {
	capture   ports.CaptureSource
	mixer     ports.AudioMixer
	mics      *MicrophoneRegistry
	publisher ports.TrackPublisher
	cfg       ControllerConfig

	guard sync.Mutex

	stateMu sync.RWMutex
	state   domain.SharingState
	active  *activeShare

	logger *zap.SugaredLogger
}

func NewScreenShareController(
	capture ports.CaptureSource,
	mixer ports.AudioMixer,
	mics *MicrophoneRegistry,
	publisher ports.TrackPublisher,
	cfg ControllerConfig,
	logger *zap.SugaredLogger,
) *ScreenShareController {
	if cfg.MixPolicy == "" {
		cfg.MixPolicy = MixAlways
	}
	if cfg.RestorePolicy == "" {
		cfg.RestorePolicy = RestoreWhenSilent
	}
	return &ScreenShareController{
		capture:   capture,
		mixer:     mixer,
		mics:      mics,
		publisher: publisher,
		cfg:       cfg,
		state:     domain.SharingIdle,
		logger:    logger,
	}
}

func (c *ScreenShareController) State() domain.SharingState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *ScreenShareController) IsSharing() bool {
	return c.State() == domain.SharingActive
}

func (c *ScreenShareController) Status() domain.ShareStatus {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	status := domain.ShareStatus{State: c.state, Tracks: []string{}}
	if c.active != nil {
		status.ShareID = c.active.id
		status.Tracks = c.active.published.Names()
	}
	return status
}

// Toggle starts a share from Idle and stops one from Sharing. A toggle that
// arrives while a transition is in flight is dropped and returns ErrShareBusy.
func (c *ScreenShareController) Toggle(ctx context.Context) error {
	if !c.guard.TryLock() {
		c.logger.Infow("toggle dropped, transition in flight", "state", c.State())
		return domain.ErrShareBusy
	}
	defer c.guard.Unlock()

	switch c.State() {
	case domain.SharingIdle:
		return c.start(ctx)
	case domain.SharingActive:
		return c.stop(ctx, "toggle")
	default:
		return domain.ErrShareBusy
	}
}

// Start begins a share. It is a no-op returning ErrShareBusy unless Idle.
func (c *ScreenShareController) Start(ctx context.Context) error {
	if !c.guard.TryLock() {
		return domain.ErrShareBusy
	}
	defer c.guard.Unlock()

	if c.State() != domain.SharingIdle {
		return domain.ErrShareBusy
	}
	return c.start(ctx)
}

// Stop ends the active share. It waits for an in-flight start to finish and
// returns ErrNoActiveSession without side effects when nothing is shared.
func (c *ScreenShareController) Stop(ctx context.Context) error {
	c.guard.Lock()
	defer c.guard.Unlock()

	if c.State() != domain.SharingActive {
		return domain.ErrNoActiveSession
	}
	return c.stop(ctx, "stop")
}

// Shutdown stops any active share; used when the process exits.
func (c *ScreenShareController) Shutdown(ctx context.Context) {
	if err := c.Stop(ctx); err != nil && !errors.Is(err, domain.ErrNoActiveSession) {
		c.logger.Warnw("failed to stop share on shutdown", "error", err)
	}
}

// handleCaptureEnded runs the regular stop sequence when the environment
// ends capture out of band.
func (c *ScreenShareController) handleCaptureEnded(shareID domain.ShareID, cause error) {
	c.guard.Lock()
	defer c.guard.Unlock()

	c.stateMu.RLock()
	current := c.active
	state := c.state
	c.stateMu.RUnlock()

	if state != domain.SharingActive || current == nil || current.id != shareID {
		return
	}

	c.logger.Infow("capture ended by environment", "share_id", shareID, "cause", cause)
	if err := c.stop(context.Background(), "capture_ended"); err != nil {
		c.logger.Warnw("stop after capture end failed", "share_id", shareID, "error", err)
	}
}

func (c *ScreenShareController) start(ctx context.Context) error {
	ctx, span := tracing.TraceShareOperation(context.WithoutCancel(ctx), "start", "")
	defer span.End()
	defer tracing.MeasureDuration(ctx, time.Now(), "share.start")

	if !c.transition(domain.SharingIdle, domain.SharingAcquiring) {
		return domain.ErrShareBusy
	}

	session, err := c.capture.Acquire(ctx)
	if err != nil {
		c.transition(domain.SharingAcquiring, domain.SharingIdle)
		if !domain.IsSurfaced(err) {
			c.logger.Infow("screen capture cancelled", "error", err)
			return err
		}
		c.report(ctx, "", err)
		return err
	}

	share := &activeShare{
		id:        domain.ShareID(uuid.NewString()),
		session:   session,
		ordinals:  make(map[domain.MediaKind]int),
		startedAt: time.Now(),
	}
	c.setActive(share)
	span.SetAttributes(tracing.ShareIDKey.String(string(share.id)))

	for _, track := range session.Tracks() {
		id := share.id
		track.OnEnded(func(cause error) {
			go c.handleCaptureEnded(id, cause)
		})
	}

	candidates := []shareCandidate{}
	if session.Video != nil {
		candidates = append(candidates, shareCandidate{track: session.Video, source: domain.SourceScreenShare})
	}
	if session.HasAudio() {
		audio := shareCandidate{track: session.Audio, source: domain.SourceScreenShareAudio}
		mic := c.mics.Inspect(c.publisher.Publications())
		if mic.Present && c.cfg.MixPolicy == MixAlways {
			if mix := c.mixMicrophone(ctx, share, mic); mix != nil {
				audio = shareCandidate{track: mix.Composed, source: domain.SourceScreenShareAudio, mix: mix}
			}
		}
		candidates = append(candidates, audio)
	}

	c.transition(domain.SharingAcquiring, domain.SharingPublishing)

	var failures []error
	for _, cand := range candidates {
		if err := c.publish(ctx, share, cand); err != nil {
			failures = append(failures, err)
		}
	}

	if share.published.Len() == 0 {
		c.teardown(ctx, share)
		c.setActive(nil)
		c.transition(domain.SharingPublishing, domain.SharingIdle)

		err := domain.NewControllerError(domain.ControllerNothingPublished, errors.Join(failures...))
		c.report(ctx, share.id, err)
		return err
	}

	c.transition(domain.SharingPublishing, domain.SharingActive)
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.ShareStarted()
	}
	span.SetAttributes(attribute.Int("share.tracks", share.published.Len()))
	return nil
}

// mixMicrophone folds the active microphone into the capture audio. On
// failure the microphone is handed back and nil is returned.
func (c *ScreenShareController) mixMicrophone(ctx context.Context, share *activeShare, mic domain.MicrophoneState) *domain.MixResult {
	c.mics.Detach(mic.Track)

	mix, err := c.mixer.Combine(ctx, share.session.Audio, mic.Track)
	if err != nil {
		c.mics.Attach(mic.Track)
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.MixFailed()
		}
		c.logger.Warnw("audio mix failed, publishing capture audio unmixed", "share_id", share.id, "error", err)
		c.report(ctx, share.id, err)
		return nil
	}

	share.mix = mix
	share.consumedMic = true
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.MixCreated()
	}

	// The microphone now reaches the session through the mix only.
	if mic.Publication != nil {
		if err := c.publisher.Unpublish(ctx, mic.Publication.Handle); err != nil {
			c.logger.Warnw("failed to unpublish mixed microphone", "track", mic.Publication.Handle.Name, "error", err)
		}
		c.publisher.EmitTrackUnpublished(*mic.Publication)
		c.emitTrackEvent(ctx, domain.EventTrackUnpublished, share.id, *mic.Publication)
	}
	return mix
}

func (c *ScreenShareController) publish(ctx context.Context, share *activeShare, cand shareCandidate) error {
	kind := cand.track.Kind()
	name := share.nextTrackName(kind)
	cand.track.AssignName(name)

	opts := domain.PublishOptions{Name: name, Priority: domain.PriorityLow, Source: cand.source}
	handle, err := c.publisher.Publish(ctx, cand.track, opts)
	if err != nil {
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.PublishFailed(kind)
		}
		c.report(ctx, share.id, err)
		c.discard(cand)
		if cand.mix != nil {
			c.recoverMixedMicrophone(ctx, share)
		}
		return err
	}

	pub := domain.Publication{
		Track:       cand.track,
		Handle:      handle,
		Source:      cand.source,
		Priority:    opts.Priority,
		Mix:         cand.mix,
		PublishedAt: time.Now(),
	}
	c.stateMu.Lock()
	share.published.Append(pub)
	c.stateMu.Unlock()

	if c.cfg.Metrics != nil {
		c.cfg.Metrics.TrackPublished(kind)
	}
	c.emitTrackEvent(ctx, domain.EventTrackPublished, share.id, pub)
	c.logger.Infow("track published", "share_id", share.id, "track", name, "kind", kind, "sid", handle.SID)
	return nil
}

// discard stops a track whose publish failed.
func (c *ScreenShareController) discard(cand shareCandidate) {
	var err error
	if cand.mix != nil {
		err = cand.mix.Release()
	} else {
		err = cand.track.Stop()
	}
	if err != nil {
		c.logger.Warnw("failed to stop unpublished track", "track", cand.track.Name(), "error", err)
	}
}

// recoverMixedMicrophone publishes a fresh microphone after the composed
// audio was rejected, since releasing the mix stopped the original one.
func (c *ScreenShareController) recoverMixedMicrophone(ctx context.Context, share *activeShare) {
	share.mix = nil
	if err := c.publishMicrophone(ctx, share.id); err != nil {
		c.logger.Warnw("microphone not recovered after mix publish failure", "share_id", share.id, "error", err)
		return
	}
	share.consumedMic = false
	c.logger.Infow("microphone recovered after mix publish failure", "share_id", share.id)
}

func (c *ScreenShareController) stop(ctx context.Context, reason string) error {
	ctx, span := tracing.TraceShareOperation(context.WithoutCancel(ctx), "stop", "")
	defer span.End()
	defer tracing.MeasureDuration(ctx, time.Now(), "share.stop")

	c.stateMu.RLock()
	share := c.active
	c.stateMu.RUnlock()

	if !c.transition(domain.SharingActive, domain.SharingStopping) {
		return domain.ErrNoActiveSession
	}
	span.SetAttributes(tracing.ShareIDKey.String(string(share.id)), attribute.String("share.stop_reason", reason))

	for _, pub := range share.published.Entries() {
		if err := c.publisher.Unpublish(ctx, pub.Handle); err != nil {
			c.logger.Warnw("failed to unpublish track", "share_id", share.id, "track", pub.Handle.Name, "error", err)
		}
		c.publisher.EmitTrackUnpublished(pub)
		c.emitTrackEvent(ctx, domain.EventTrackUnpublished, share.id, pub)

		var err error
		if pub.Mix != nil {
			err = pub.Mix.Release()
		} else {
			err = pub.Track.Stop()
		}
		if err != nil {
			c.logger.Warnw("failed to stop track", "share_id", share.id, "track", pub.Handle.Name, "error", err)
		}
	}

	c.stateMu.Lock()
	share.published.Clear()
	c.stateMu.Unlock()

	c.teardown(ctx, share)
	c.setActive(nil)
	c.transition(domain.SharingStopping, domain.SharingIdle)

	if c.cfg.Metrics != nil {
		c.cfg.Metrics.ShareStopped(time.Since(share.startedAt).Seconds())
	}
	c.logger.Infow("screen share stopped", "share_id", share.id, "reason", reason)
	return nil
}

// teardown releases the mix and capture grant, then restores the microphone.
// The order is strict: reacquiring before release can duplicate the device.
func (c *ScreenShareController) teardown(ctx context.Context, share *activeShare) {
	if share.mix != nil {
		if err := share.mix.Release(); err != nil {
			c.logger.Warnw("failed to release audio mix", "share_id", share.id, "error", err)
		}
	}
	if err := c.capture.Release(share.session); err != nil {
		c.logger.Warnw("failed to release capture session", "share_id", share.id, "error", err)
	}
	c.restoreMicrophone(ctx, share)
}

func (c *ScreenShareController) restoreMicrophone(ctx context.Context, share *activeShare) {
	if c.cfg.RestorePolicy == RestoreWhenConsumed && !share.consumedMic {
		return
	}
	if domain.CountKind(c.publisher.Publications(), domain.MediaKindAudio) > 0 {
		return
	}
	if err := c.publishMicrophone(ctx, share.id); err != nil {
		c.logger.Warnw("microphone not restored", "share_id", share.id, "error", err)
	}
}

// PublishMicrophone opens and publishes the default microphone when the
// participant holds no audio track. It is used when joining a call.
func (c *ScreenShareController) PublishMicrophone(ctx context.Context) error {
	if !c.guard.TryLock() {
		return domain.ErrShareBusy
	}
	defer c.guard.Unlock()

	if c.State() != domain.SharingIdle {
		return domain.ErrShareBusy
	}
	if domain.CountKind(c.publisher.Publications(), domain.MediaKindAudio) > 0 {
		return nil
	}
	return c.publishMicrophone(ctx, "")
}

func (c *ScreenShareController) publishMicrophone(ctx context.Context, shareID domain.ShareID) error {
	track, err := c.mics.Reacquire(ctx)
	if err != nil {
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.MicrophoneReacquired(false)
		}
		return err
	}

	name := "microphone-" + shortID(uuid.NewString())
	track.AssignName(name)
	opts := domain.PublishOptions{Name: name, Priority: domain.PriorityStandard, Source: domain.SourceMicrophone}
	handle, err := c.publisher.Publish(ctx, track, opts)
	if err != nil {
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.MicrophoneReacquired(false)
		}
		c.mics.Detach(track)
		if stopErr := track.Stop(); stopErr != nil {
			c.logger.Warnw("failed to stop microphone", "error", stopErr)
		}
		return err
	}

	if c.cfg.Metrics != nil {
		c.cfg.Metrics.MicrophoneReacquired(true)
	}
	pub := domain.Publication{Track: track, Handle: handle, Source: opts.Source, Priority: opts.Priority, PublishedAt: time.Now()}
	c.emitTrackEvent(ctx, domain.EventTrackPublished, shareID, pub)
	return nil
}

// transition moves the state machine along a legal edge. It reports false
// and leaves the state untouched when the current state is not from.
func (c *ScreenShareController) transition(from, to domain.SharingState) bool {
	c.stateMu.Lock()
	if c.state != from || !domain.CanTransition(from, to) {
		current := c.state
		c.stateMu.Unlock()
		c.logger.Errorw("illegal share state transition", "from", from, "to", to, "current", current)
		return false
	}
	c.state = to
	var shareID domain.ShareID
	if c.active != nil {
		shareID = c.active.id
	}
	c.stateMu.Unlock()

	c.logger.Debugw("share state changed", "from", from, "to", to, "share_id", shareID)
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.StateChanged(to)
	}
	c.emit(context.Background(), domain.ShareEvent{Type: domain.EventStateChanged, ShareID: shareID, State: to.String()})
	return true
}

func (c *ScreenShareController) setActive(share *activeShare) {
	c.stateMu.Lock()
	c.active = share
	c.stateMu.Unlock()
}

// report surfaces err through OnError unless it is a permission denial.
func (c *ScreenShareController) report(ctx context.Context, shareID domain.ShareID, err error) {
	if !domain.IsSurfaced(err) {
		return
	}
	tracing.RecordError(ctx, err)
	c.logger.Errorw("screen share error", "share_id", shareID, "error", err)
	if c.cfg.OnError != nil {
		c.cfg.OnError(err)
	}
	c.emit(ctx, domain.ShareEvent{Type: domain.EventShareError, ShareID: shareID, Error: err.Error()})
}

func (c *ScreenShareController) emitTrackEvent(ctx context.Context, typ domain.EventType, shareID domain.ShareID, pub domain.Publication) {
	event := domain.ShareEvent{
		Type:      typ,
		ShareID:   shareID,
		TrackName: pub.Handle.Name,
		TrackSID:  pub.Handle.SID,
		Source:    pub.Source,
	}
	if pub.Track != nil {
		event.Kind = pub.Track.Kind().String()
	}
	c.emit(ctx, event)
}

func (c *ScreenShareController) emit(ctx context.Context, event domain.ShareEvent) {
	if c.cfg.Events == nil {
		return
	}
	event.Timestamp = time.Now()
	c.cfg.Events.Emit(ctx, event)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
