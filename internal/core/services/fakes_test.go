package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"sharecast/internal/core/domain"

	"github.com/google/uuid"
)

// callLog records the order of boundary calls across fakes.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	l.calls = append(l.calls, call)
	l.mu.Unlock()
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

func (l *callLog) reset() {
	l.mu.Lock()
	l.calls = nil
	l.mu.Unlock()
}

type fakeMedia struct {
	id    string
	stops atomic.Int32

	mu    sync.Mutex
	ended func(error)
}

func newFakeMedia(prefix string) *fakeMedia {
	return &fakeMedia{id: prefix + "-" + uuid.NewString()[:8]}
}

func (m *fakeMedia) ID() string { return m.id }

func (m *fakeMedia) Stop() error {
	m.stops.Add(1)
	return nil
}

func (m *fakeMedia) OnEnded(fn func(error)) {
	m.mu.Lock()
	m.ended = fn
	m.mu.Unlock()
}

// End simulates the environment ending the media out of band.
func (m *fakeMedia) End(err error) {
	m.mu.Lock()
	fn := m.ended
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func mediaOf(track *domain.LocalTrack) *fakeMedia {
	return track.Media().(*fakeMedia)
}

type fakeCapture struct {
	withAudio bool
	err       error
	log       *callLog

	// gate, when set, blocks Acquire until closed; entered is signalled first.
	gate    chan struct{}
	entered chan struct{}

	mu       sync.Mutex
	acquires int
	releases int
	sessions []*domain.CaptureSession
}

func (c *fakeCapture) Acquire(ctx context.Context) (*domain.CaptureSession, error) {
	if c.entered != nil {
		c.entered <- struct{}{}
	}
	if c.gate != nil {
		<-c.gate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.acquires++
	if c.err != nil {
		return nil, c.err
	}

	session := &domain.CaptureSession{
		ID:    uuid.NewString(),
		Video: domain.NewLocalTrack(newFakeMedia("screen-video"), domain.MediaKindVideo, domain.OriginCapture),
	}
	if c.withAudio {
		session.Audio = domain.NewLocalTrack(newFakeMedia("screen-audio"), domain.MediaKindAudio, domain.OriginCapture)
	}
	c.sessions = append(c.sessions, session)
	return session, nil
}

func (c *fakeCapture) Release(session *domain.CaptureSession) error {
	c.log.add("release")
	if !session.MarkReleased() {
		return nil
	}

	c.mu.Lock()
	c.releases++
	c.mu.Unlock()

	for _, track := range session.Tracks() {
		if track.IsConsumed() {
			continue
		}
		_ = track.Stop()
	}
	return nil
}

func (c *fakeCapture) lastSession() *domain.CaptureSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sessions) == 0 {
		return nil
	}
	return c.sessions[len(c.sessions)-1]
}

func (c *fakeCapture) counts() (acquires, releases int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquires, c.releases
}

type fakeMixer struct {
	err error

	mu       sync.Mutex
	combines int
	mixes    []*domain.MixResult
}

func (m *fakeMixer) Combine(ctx context.Context, a, b *domain.LocalTrack) (*domain.MixResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.combines++

	if m.err != nil {
		return nil, m.err
	}
	if a.Kind() != domain.MediaKindAudio || b.Kind() != domain.MediaKindAudio {
		return nil, domain.NewMixError(domain.MixWrongKind, nil)
	}
	if err := domain.ConsumePair(a, b); err != nil {
		return nil, domain.NewMixError(domain.MixEngineUnavailable, err)
	}

	composed := domain.NewLocalTrack(newFakeMedia("mix"), domain.MediaKindAudio, domain.OriginMix)
	mix := domain.NewMixResult(composed, a, b, func() error {
		_ = composed.Stop()
		_ = a.ReleaseConsumed()
		_ = b.ReleaseConsumed()
		return nil
	})
	m.mixes = append(m.mixes, mix)
	return mix, nil
}

func (m *fakeMixer) combineCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.combines
}

type fakeInput struct {
	err error
	log *callLog

	mu     sync.Mutex
	opens  int
	opened []*domain.LocalTrack
}

func (i *fakeInput) OpenDefault(ctx context.Context) (*domain.LocalTrack, error) {
	i.log.add("reacquire")

	i.mu.Lock()
	defer i.mu.Unlock()
	i.opens++
	if i.err != nil {
		return nil, i.err
	}
	track := domain.NewLocalTrack(newFakeMedia("mic"), domain.MediaKindAudio, domain.OriginMicrophone)
	i.opened = append(i.opened, track)
	return track, nil
}

func (i *fakeInput) openCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.opens
}

type fakePublisher struct {
	log *callLog

	// fail decides whether a publish is rejected.
	fail         func(opts domain.PublishOptions) error
	unpublishErr error

	mu          sync.Mutex
	pubs        []domain.Publication
	published   []domain.PublishOptions
	unpublished []domain.Publication
	listeners   []func(domain.Publication)
}

func (p *fakePublisher) Publish(ctx context.Context, track *domain.LocalTrack, opts domain.PublishOptions) (domain.PublicationHandle, error) {
	p.log.add("publish:" + opts.Name)
	if p.fail != nil {
		if err := p.fail(opts); err != nil {
			return domain.PublicationHandle{}, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	handle := domain.PublicationHandle{SID: "TR_" + uuid.NewString()[:8], Name: opts.Name}
	p.pubs = append(p.pubs, domain.Publication{
		Track:    track,
		Handle:   handle,
		Source:   opts.Source,
		Priority: opts.Priority,
	})
	p.published = append(p.published, opts)
	return handle, nil
}

func (p *fakePublisher) Unpublish(ctx context.Context, handle domain.PublicationHandle) error {
	p.log.add("unpublish:" + handle.Name)

	p.mu.Lock()
	defer p.mu.Unlock()
	for i, pub := range p.pubs {
		if pub.Handle.SID == handle.SID {
			p.pubs = append(p.pubs[:i], p.pubs[i+1:]...)
			break
		}
	}
	return p.unpublishErr
}

func (p *fakePublisher) Publications() []domain.Publication {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Publication, len(p.pubs))
	copy(out, p.pubs)
	return out
}

func (p *fakePublisher) EmitTrackUnpublished(pub domain.Publication) {
	p.mu.Lock()
	p.unpublished = append(p.unpublished, pub)
	listeners := append([]func(domain.Publication){}, p.listeners...)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(pub)
	}
}

func (p *fakePublisher) OnTrackUnpublished(fn func(domain.Publication)) func() {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
	return func() {}
}

func (p *fakePublisher) publishMicrophone(track *domain.LocalTrack) domain.Publication {
	handle, err := p.Publish(context.Background(), track, domain.PublishOptions{
		Name:     "microphone",
		Priority: domain.PriorityStandard,
		Source:   domain.SourceMicrophone,
	})
	if err != nil {
		panic(fmt.Sprintf("publish microphone: %v", err))
	}
	return domain.Publication{Track: track, Handle: handle, Source: domain.SourceMicrophone}
}

func (p *fakePublisher) unpublishedNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.unpublished))
	for _, pub := range p.unpublished {
		names = append(names, pub.Handle.Name)
	}
	return names
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.ShareEvent
}

func (s *recordingSink) Emit(ctx context.Context, event domain.ShareEvent) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *recordingSink) states() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var states []string
	for _, ev := range s.events {
		if ev.Type == domain.EventStateChanged {
			states = append(states, ev.State)
		}
	}
	return states
}

func (s *recordingSink) ofType(typ domain.EventType) []domain.ShareEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ShareEvent
	for _, ev := range s.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type errorRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *errorRecorder) record(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *errorRecorder) all() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}
