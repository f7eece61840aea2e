package livekit

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	media "github.com/livekit/media-sdk"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	lkmedia "github.com/livekit/server-sdk-go/v2/pkg/media"
	"github.com/pion/webrtc/v4"

	"practicekit/core"
	"practicekit/utils/audio"
)

const (
	agentStateAttribute = "lk.agent.state"
	agentNameAttribute  = "lk.agent.name"
	participantKindAttr = "lk.participant.kind"
)

// RoomOptions configures how the agent joins a room.
type RoomOptions struct {
	AudioSampleRate  int    // Sample rate of the published agent track (default: 24000)
	AudioNumChannels int    // Channels of the published agent track (default: 1)
	AudioTrackName   string // Name of the published track (default: "agent_audio")
	AgentName        string // Value of the lk.agent.name attribute
	InputBuffer      int    // Decoded input chunks buffered before dropping (default: 64)
	// CloseOnParticipantLeave ends the session once the last non-agent
	// participant leaves.
	CloseOnParticipantLeave bool
}

func DefaultRoomOptions() RoomOptions {
	return RoomOptions{
		AudioSampleRate:         24000,
		AudioNumChannels:        1,
		AudioTrackName:          "agent_audio",
		AgentName:               "practice-assistant",
		InputBuffer:             64,
		CloseOnParticipantLeave: true,
	}
}

// Room is one agent connection to a LiveKit room. It delivers decoded
// participant audio and publishes the agent's speech.
type Room struct {
	url      string
	token    string
	name     string
	metadata string // metadata carried by the job, used until the room reports its own
	opts     RoomOptions
	logger   *core.Logger

	mu         sync.RWMutex
	client     *lksdk.Room
	audioTrack *lkmedia.PCMLocalTrack

	audioIn   chan core.AudioChunk
	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewRoom(url, token string, room *livekit.Room, opts RoomOptions, logger *core.Logger) *Room {
	defaults := DefaultRoomOptions()
	if opts.AudioSampleRate == 0 {
		opts.AudioSampleRate = defaults.AudioSampleRate
	}
	if opts.AudioNumChannels == 0 {
		opts.AudioNumChannels = defaults.AudioNumChannels
	}
	if opts.AudioTrackName == "" {
		opts.AudioTrackName = defaults.AudioTrackName
	}
	if opts.InputBuffer <= 0 {
		opts.InputBuffer = defaults.InputBuffer
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Room{
		url:      url,
		token:    token,
		name:     room.GetName(),
		metadata: room.GetMetadata(),
		opts:     opts,
		logger:   logger,
		audioIn:  make(chan core.AudioChunk, opts.InputBuffer),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (r *Room) Name() string {
	return r.name
}

func (r *Room) Metadata() string {
	r.mu.RLock()
	client := r.client
	r.mu.RUnlock()
	if client != nil {
		if md := client.Metadata(); md != "" {
			return md
		}
	}
	return r.metadata
}

func (r *Room) Done() <-chan struct{} {
	return r.done
}

func (r *Room) AudioInput() <-chan core.AudioChunk {
	return r.audioIn
}

// Connect joins the room and publishes the agent audio track. The
// connection is closed when ctx is cancelled.
func (r *Room) Connect(ctx context.Context) error {
	if r.name == "" {
		return errors.New("room name cannot be empty")
	}
	if r.token == "" {
		return errors.New("token cannot be empty")
	}

	r.logger.Info("connecting to room", "url", r.url)
	client, err := lksdk.ConnectToRoomWithToken(r.url, r.token, r.roomCallback(), lksdk.WithAutoSubscribe(true))
	if err != nil {
		return fmt.Errorf("connect with token: %w", err)
	}

	track, err := lkmedia.NewPCMLocalTrack(r.opts.AudioSampleRate, r.opts.AudioNumChannels, nil)
	if err != nil {
		client.Disconnect()
		return fmt.Errorf("create audio track: %w", err)
	}
	pub, err := client.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name:   r.opts.AudioTrackName,
		Source: livekit.TrackSource_MICROPHONE,
	})
	if err != nil {
		track.Close()
		client.Disconnect()
		return fmt.Errorf("publish audio track: %w", err)
	}

	r.mu.Lock()
	r.client = client
	r.audioTrack = track
	r.mu.Unlock()

	client.LocalParticipant.SetAttributes(map[string]string{
		agentStateAttribute: "listening",
		agentNameAttribute:  r.opts.AgentName,
	})

	go func() {
		select {
		case <-ctx.Done():
			r.Close()
		case <-r.ctx.Done():
		}
	}()

	r.logger.Info("connected to room",
		"identity", client.LocalParticipant.Identity(),
		"trackSID", pub.SID(),
	)
	return nil
}

func (r *Room) roomCallback() *lksdk.RoomCallback {
	return &lksdk.RoomCallback{
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: r.handleRemoteTrack,
		},
		OnParticipantDisconnected: r.handleParticipantDisconnected,
		OnReconnecting: func() {
			r.logger.Info("reconnecting to room")
		},
		OnReconnected: func() {
			r.logger.Info("reconnected to room")
		},
		OnDisconnected: func() {
			r.logger.Info("disconnected from room")
			r.markDone()
		},
	}
}

func (r *Room) markDone() {
	r.doneOnce.Do(func() { close(r.done) })
}

func (r *Room) handleParticipantDisconnected(rp *lksdk.RemoteParticipant) {
	r.logger.Info("participant disconnected", "identity", rp.Identity())
	if !r.opts.CloseOnParticipantLeave || isAgent(rp.Attributes()) {
		return
	}

	r.mu.RLock()
	client := r.client
	r.mu.RUnlock()
	if client == nil {
		return
	}
	for _, other := range client.GetRemoteParticipants() {
		if other.Identity() != rp.Identity() && !isAgent(other.Attributes()) {
			return
		}
	}
	r.logger.Info("last participant left, ending session")
	r.markDone()
}

func (r *Room) handleRemoteTrack(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	if track.Kind() != webrtc.RTPCodecTypeAudio || isAgent(rp.Attributes()) {
		return
	}

	decode, format, sampleRate, err := payloadDecoder(track.Codec().MimeType)
	if err != nil {
		r.logger.Warn("unsupported audio track", "trackID", track.ID(), "error", err)
		return
	}
	r.logger.Info("subscribed to track",
		"trackID", track.ID(),
		"codec", track.Codec().MimeType,
		"participant", rp.Identity(),
	)

	r.wg.Add(1)
	go r.readTrack(track, decode, format, sampleRate)
}

// payloadDecoder picks how RTP payloads of the given codec are turned into
// audio chunks.
func payloadDecoder(mimeType string) (func([]byte) ([]byte, error), core.AudioEncodingFormat, int, error) {
	switch {
	case strings.EqualFold(mimeType, webrtc.MimeTypeOpus):
		dec, err := audio.NewOpusDecoder(48000, 1)
		if err != nil {
			return nil, core.PCM, 0, err
		}
		return dec.Decode, core.PCM, dec.SampleRate(), nil
	case strings.EqualFold(mimeType, webrtc.MimeTypePCMU):
		return passthrough, core.ULAW, 8000, nil
	case strings.EqualFold(mimeType, webrtc.MimeTypePCMA):
		return passthrough, core.ALAW, 8000, nil
	default:
		return nil, core.PCM, 0, fmt.Errorf("codec %q", mimeType)
	}
}

func passthrough(payload []byte) ([]byte, error) {
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

func (r *Room) readTrack(track *webrtc.TrackRemote, decode func([]byte) ([]byte, error), format core.AudioEncodingFormat, sampleRate int) {
	defer r.wg.Done()
	for {
		if r.ctx.Err() != nil {
			return
		}
		if err := track.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
			return
		}
		packet, _, err := track.ReadRTP()
		if err != nil {
			var timeout interface{ Timeout() bool }
			if errors.As(err, &timeout) && timeout.Timeout() {
				continue
			}
			r.logger.Debug("track closed", "trackID", track.ID(), "error", err)
			return
		}
		if len(packet.Payload) == 0 {
			continue
		}

		data, err := decode(packet.Payload)
		if err != nil {
			r.logger.Debug("dropping undecodable packet", "error", err)
			continue
		}
		chunk := core.AudioChunk{
			Data:       &data,
			SampleRate: sampleRate,
			Channels:   1,
			Format:     format,
			Timestamp:  time.Now(),
		}
		select {
		case r.audioIn <- chunk:
		case <-r.ctx.Done():
			return
		default:
			r.logger.Debug("input buffer full, dropping chunk")
		}
	}
}

// WriteAudio queues agent speech on the published track.
func (r *Room) WriteAudio(chunk core.AudioChunk) error {
	r.mu.RLock()
	track := r.audioTrack
	r.mu.RUnlock()
	if track == nil {
		return errors.New("audio track not published")
	}
	if chunk.Data == nil || len(*chunk.Data) == 0 {
		return nil
	}
	pcm, err := audio.ConvertAudioChunk(chunk, core.PCM, r.opts.AudioNumChannels, r.opts.AudioSampleRate)
	if err != nil {
		return fmt.Errorf("convert audio: %w", err)
	}
	if err := track.WriteSample(bytesToPCM16(*pcm.Data)); err != nil {
		return fmt.Errorf("write audio sample: %w", err)
	}
	return nil
}

func (r *Room) ClearAudio() {
	r.mu.RLock()
	track := r.audioTrack
	r.mu.RUnlock()
	if track != nil {
		track.ClearQueue()
	}
}

// SetAgentState publishes listening, thinking or speaking to the room.
func (r *Room) SetAgentState(state string) error {
	r.mu.RLock()
	client := r.client
	r.mu.RUnlock()
	if client == nil || client.LocalParticipant == nil {
		return errors.New("not connected")
	}
	client.LocalParticipant.SetAttributes(map[string]string{agentStateAttribute: state})
	return nil
}

// Close unpublishes the agent track and leaves the room.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		r.cancel()
		r.wg.Wait()

		r.mu.Lock()
		if r.audioTrack != nil {
			r.audioTrack.Close()
			r.audioTrack = nil
		}
		client := r.client
		r.client = nil
		r.mu.Unlock()

		if client != nil {
			client.Disconnect()
		}
		r.markDone()
		r.logger.Info("left room")
	})
}

func isAgent(attributes map[string]string) bool {
	return attributes[participantKindAttr] == "agent" || attributes[agentStateAttribute] != ""
}

// bytesToPCM16 converts little endian int16 bytes to samples.
func bytesToPCM16(data []byte) media.PCM16Sample {
	samples := make(media.PCM16Sample, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}
