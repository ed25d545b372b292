package voice

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/genai"
)

const (
	defaultLiveModel = "gemini-2.5-flash-native-audio-preview-09-2025"

	// InputRate is the PCM rate the model expects from the microphone.
	InputRate = 16000
	// OutputRate is the PCM rate of the model's audio replies.
	OutputRate = 24000

	liveVoice             = "Zephyr"
	liveSystemInstruction = "You are a helpful, conversational AI assistant named Rock."
)

// Frame is one chunk of 16-bit little-endian mono PCM.
type Frame struct {
	Data       []byte
	SampleRate int
}

// AudioSource feeds microphone frames into the bridge. Read blocks until a
// frame is available and returns io.EOF when the capture ends.
type AudioSource interface {
	Read(ctx context.Context) (Frame, error)
}

// AudioSink schedules model audio for playback at an absolute start time
// and can flush everything still queued.
type AudioSink interface {
	Play(pcm []byte, at time.Time)
	Flush()
}

// PlaybackClock serializes reply chunks on a timeline so consecutive
// chunks play back to back with no gaps or overlap.
type PlaybackClock struct {
	mu   sync.Mutex
	next time.Time
}

// Schedule places a chunk of the given duration: it starts at the later of
// now and the end of the previous chunk, and advances the timeline.
func (c *PlaybackClock) Schedule(now time.Time, d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := now
	if c.next.After(start) {
		start = c.next
	}
	c.next = start.Add(d)
	return start
}

// Flush resets the timeline after an interruption so the next chunk plays
// immediately.
func (c *PlaybackClock) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = time.Time{}
}

// Duration is the playback length of a PCM16 chunk at the given rate.
func Duration(pcm []byte, sampleRate int) time.Duration {
	samples := len(pcm) / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// Resample converts 16-bit mono PCM between sample rates by nearest-sample
// selection. It is good enough for speech capture.
func Resample(pcm []byte, from, to int) []byte {
	if from == to || from <= 0 || to <= 0 {
		return pcm
	}
	in := len(pcm) / 2
	out := in * to / from
	resampled := make([]byte, out*2)
	for i := 0; i < out; i++ {
		src := i * from / to
		sample := binary.LittleEndian.Uint16(pcm[src*2:])
		binary.LittleEndian.PutUint16(resampled[i*2:], sample)
	}
	return resampled
}

// liveEvent is the subset of server messages the bridge reacts to.
type liveEvent struct {
	Audio        []byte
	Interrupted  bool
	TurnComplete bool
}

// liveSession abstracts the realtime connection for tests.
type liveSession interface {
	SendAudio(pcm []byte) error
	Receive() (liveEvent, error)
	Close() error
}

// dialLive opens the realtime connection. Swapped out in tests.
var dialLive = func(ctx context.Context, apiKey, model string) (liveSession, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	session, err := client.Live.Connect(ctx, model, &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: liveVoice},
			},
		},
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: liveSystemInstruction}},
		},
	})
	if err != nil {
		return nil, err
	}
	return &genaiLiveSession{session: session}, nil
}

type genaiLiveSession struct {
	session *genai.Session
}

func (g *genaiLiveSession) SendAudio(pcm []byte) error {
	return g.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{
			Data:     pcm,
			MIMEType: fmt.Sprintf("audio/pcm;rate=%d", InputRate),
		},
	})
}

func (g *genaiLiveSession) Receive() (liveEvent, error) {
	msg, err := g.session.Receive()
	if err != nil {
		return liveEvent{}, err
	}
	var ev liveEvent
	if sc := msg.ServerContent; sc != nil {
		ev.Interrupted = sc.Interrupted
		ev.TurnComplete = sc.TurnComplete
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part.InlineData != nil {
					ev.Audio = append(ev.Audio, part.InlineData.Data...)
				}
			}
		}
	}
	return ev, nil
}

func (g *genaiLiveSession) Close() error {
	return g.session.Close()
}

// Bridge pumps microphone audio up to the live model and schedules reply
// audio for playback. One Bridge serves one conversation.
type Bridge struct {
	apiKey string
	model  string
	source AudioSource
	sink   AudioSink

	clock PlaybackClock
	muted atomic.Bool
	now   func() time.Time
}

// NewBridge builds a bridge. An empty model selects the default live model.
func NewBridge(apiKey, model string, source AudioSource, sink AudioSink) *Bridge {
	if model == "" {
		model = defaultLiveModel
	}
	return &Bridge{
		apiKey: apiKey,
		model:  model,
		source: source,
		sink:   sink,
		now:    time.Now,
	}
}

// SetMuted pauses the upstream feed without tearing down the session.
func (b *Bridge) SetMuted(muted bool) { b.muted.Store(muted) }

// Run drives the session until the context ends, the source is exhausted,
// or the connection fails. It always closes the session on return.
func (b *Bridge) Run(ctx context.Context) error {
	session, err := dialLive(ctx, b.apiKey, b.model)
	if err != nil {
		return fmt.Errorf("connect live session: %w", err)
	}
	defer session.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	upErr := make(chan error, 1)
	go func() { upErr <- b.pumpUpstream(ctx, session) }()

	downErr := b.pumpDownstream(ctx, session)
	cancel()
	if err := <-upErr; err != nil && downErr == nil {
		return err
	}
	return downErr
}

func (b *Bridge) pumpUpstream(ctx context.Context, session liveSession) error {
	for {
		frame, err := b.source.Read(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read microphone: %w", err)
		}
		if b.muted.Load() {
			continue
		}
		pcm := Resample(frame.Data, frame.SampleRate, InputRate)
		if err := session.SendAudio(pcm); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("send audio: %w", err)
		}
	}
}

func (b *Bridge) pumpDownstream(ctx context.Context, session liveSession) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		ev, err := session.Receive()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive audio: %w", err)
		}
		if ev.Interrupted {
			b.sink.Flush()
			b.clock.Flush()
			continue
		}
		if len(ev.Audio) > 0 {
			start := b.clock.Schedule(b.now(), Duration(ev.Audio, OutputRate))
			b.sink.Play(ev.Audio, start)
		}
	}
}
