package webrtc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sharecast/internal/core/domain"
	"sharecast/pkg/config"
	"sharecast/pkg/tracing"

	"github.com/google/uuid"
	"github.com/pion/interceptor"
	"github.com/pion/mediadevices"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

// WebRTCConfig WebRTC configuration
type WebRTCConfig struct {
	ICEServers []webrtc.ICEServer
	PortRange  struct {
		Min uint16
		Max uint16
	}
}

func WebRTCConfigFrom(cfg *config.Config) WebRTCConfig {
	var out WebRTCConfig
	for _, server := range cfg.WebRTC.ICEServers {
		out.ICEServers = append(out.ICEServers, webrtc.ICEServer{
			URLs:       server.URLs,
			Username:   server.Username,
			Credential: server.Credential,
		})
	}
	out.PortRange.Min = cfg.WebRTC.PortRange.Min
	out.PortRange.Max = cfg.WebRTC.PortRange.Max
	return out
}

// NewPeerConnection builds the peer connection that carries the local
// participant's tracks. Codecs come from the selector when one is given.
func NewPeerConnection(cfg WebRTCConfig, codecs *mediadevices.CodecSelector) (*webrtc.PeerConnection, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if codecs != nil {
		codecs.Populate(mediaEngine)
	} else if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	settingEngine := webrtc.SettingEngine{}
	if cfg.PortRange.Min > 0 && cfg.PortRange.Max > 0 {
		if err := settingEngine.SetEphemeralUDPPortRange(cfg.PortRange.Min, cfg.PortRange.Max); err != nil {
			return nil, fmt.Errorf("port range: %w", err)
		}
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(settingEngine),
	)
	return api.NewPeerConnection(webrtc.Configuration{ICEServers: cfg.ICEServers})
}

// trackLocalSource is implemented by media sources that can feed a peer
// connection.
type trackLocalSource interface {
	TrackLocal() webrtc.TrackLocal
}

type publication struct {
	pub    domain.Publication
	sender *webrtc.RTPSender
}

// Publisher publishes local tracks on a single peer connection.
type Publisher struct {
	pc          *webrtc.PeerConnection
	prioritizer *TrackPrioritizer

	mu        sync.RWMutex
	pubs      map[string]*publication
	order     []string
	listeners map[uint64]func(domain.Publication)
	nextID    uint64

	logger *zap.SugaredLogger
}

func NewPublisher(pc *webrtc.PeerConnection, logger *zap.SugaredLogger) *Publisher {
	p := &Publisher{
		pc:          pc,
		prioritizer: NewTrackPrioritizer(),
		pubs:        make(map[string]*publication),
		listeners:   make(map[uint64]func(domain.Publication)),
		logger:      logger,
	}
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.logger.Infow("peer connection state changed", "connection_state", state)
	})
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		p.logger.Debugw("ice connection state changed", "ice_state", state)
	})
	return p
}

// OnNegotiationNeeded registers fn to run whenever published tracks change
// and the remote side must send a new offer.
func (p *Publisher) OnNegotiationNeeded(fn func()) {
	p.pc.OnNegotiationNeeded(fn)
}

func (p *Publisher) Publish(ctx context.Context, track *domain.LocalTrack, opts domain.PublishOptions) (domain.PublicationHandle, error) {
	ctx, span := tracing.TracePublish(ctx, "add", opts.Name, track.Kind().String())
	defer span.End()

	if err := ctx.Err(); err != nil {
		return domain.PublicationHandle{}, domain.NewPublishError(domain.PublishTransport, opts.Name, err)
	}
	if p.pc.ConnectionState() == webrtc.PeerConnectionStateClosed {
		return domain.PublicationHandle{}, domain.NewPublishError(domain.PublishTransport, opts.Name, webrtc.ErrConnectionClosed)
	}

	source, ok := track.Media().(trackLocalSource)
	if !ok {
		return domain.PublicationHandle{}, domain.NewPublishError(domain.PublishRejected, opts.Name,
			fmt.Errorf("media %T cannot be sent on a peer connection", track.Media()))
	}

	transceiver, err := p.pc.AddTransceiverFromTrack(source.TrackLocal(), webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendonly,
	})
	if err != nil {
		kind := domain.PublishRejected
		if errors.Is(err, webrtc.ErrConnectionClosed) {
			kind = domain.PublishTransport
		}
		return domain.PublicationHandle{}, domain.NewPublishError(kind, opts.Name, err)
	}

	handle := domain.PublicationHandle{SID: "TR_" + uuid.NewString()[:12], Name: opts.Name}
	entry := &publication{
		pub: domain.Publication{
			Track:       track,
			Handle:      handle,
			Source:      opts.Source,
			Priority:    opts.Priority,
			PublishedAt: time.Now(),
		},
		sender: transceiver.Sender(),
	}

	p.prioritizer.RegisterTrack(handle.SID, track.Kind(), opts.Priority)
	p.mu.Lock()
	p.pubs[handle.SID] = entry
	p.order = append(p.order, handle.SID)
	p.mu.Unlock()

	go p.readRTCP(handle, entry.sender)

	p.logger.Infow("track published on peer connection",
		"sid", handle.SID,
		"name", handle.Name,
		"kind", track.Kind(),
		"source", opts.Source,
		"priority", opts.Priority,
	)
	return handle, nil
}

func (p *Publisher) Unpublish(ctx context.Context, handle domain.PublicationHandle) error {
	p.mu.Lock()
	entry, exists := p.pubs[handle.SID]
	if exists {
		delete(p.pubs, handle.SID)
		for i, sid := range p.order {
			if sid == handle.SID {
				p.order = append(p.order[:i], p.order[i+1:]...)
				break
			}
		}
	}
	p.mu.Unlock()

	if !exists {
		return domain.NewPublishError(domain.PublishRejected, handle.Name, domain.ErrPublicationUnknown)
	}
	p.prioritizer.UnregisterTrack(handle.SID)

	if err := p.pc.RemoveTrack(entry.sender); err != nil {
		kind := domain.PublishRejected
		if errors.Is(err, webrtc.ErrConnectionClosed) {
			kind = domain.PublishTransport
		}
		return domain.NewPublishError(kind, handle.Name, err)
	}

	p.logger.Infow("track unpublished from peer connection", "sid", handle.SID, "name", handle.Name)
	return nil
}

// Publications lists current publications in publish order.
func (p *Publisher) Publications() []domain.Publication {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]domain.Publication, 0, len(p.order))
	for _, sid := range p.order {
		out = append(out, p.pubs[sid].pub)
	}
	return out
}

// SendOrder lists publication sids with the highest priority first.
func (p *Publisher) SendOrder() []string {
	p.mu.RLock()
	sids := make([]string, len(p.order))
	copy(sids, p.order)
	p.mu.RUnlock()
	return p.prioritizer.ForwardOrder(sids)
}

func (p *Publisher) EmitTrackUnpublished(pub domain.Publication) {
	p.mu.RLock()
	listeners := make([]func(domain.Publication), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.RUnlock()

	for _, fn := range listeners {
		fn(pub)
	}
}

func (p *Publisher) OnTrackUnpublished(fn func(domain.Publication)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// HandleOffer answers a remote offer once ICE gathering completes.
func (p *Publisher) HandleOffer(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set remote description: %w", err)
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}

	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return webrtc.SessionDescription{}, ctx.Err()
	}
	return *p.pc.LocalDescription(), nil
}

func (p *Publisher) Close() error {
	return p.pc.Close()
}

// readRTCP drains RTCP for a sender until it is removed.
func (p *Publisher) readRTCP(handle domain.PublicationHandle, sender *webrtc.RTPSender) {
	for {
		packets, _, err := sender.ReadRTCP()
		if err != nil {
			p.logger.Debugw("rtcp reader stopped", "sid", handle.SID, "error", err)
			return
		}
		p.processRTCPPackets(handle, packets)
	}
}

func (p *Publisher) processRTCPPackets(handle domain.PublicationHandle, packets []rtcp.Packet) {
	for _, packet := range packets {
		switch pkt := packet.(type) {
		case *rtcp.PictureLossIndication, *rtcp.FullIntraRequest:
			requests := p.prioritizer.KeyframeRequested(handle.SID)
			p.logger.Debugw("keyframe requested", "sid", handle.SID, "name", handle.Name, "requests", requests)

		case *rtcp.ReceiverEstimatedMaximumBitrate:
			p.logger.Debugw("bitrate estimate received",
				"sid", handle.SID,
				"estimate", pkt.Bitrate,
				"track_budget", p.prioritizer.BitrateShare(handle.SID, float64(pkt.Bitrate)),
			)

		case *rtcp.ReceiverReport:
			for _, report := range pkt.Reports {
				p.logger.Debugw("receiver report",
					"sid", handle.SID,
					"fraction_lost", report.FractionLost,
					"jitter", report.Jitter,
				)
			}
		}
	}
}
