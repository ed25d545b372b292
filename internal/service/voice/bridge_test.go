package voice

import (
	"context"
	"encoding/binary"
	"io"
	"sync"
	"testing"
	"time"
)

func TestPlaybackClockPacksChunksBackToBack(t *testing.T) {
	var clock PlaybackClock
	now := time.Unix(100, 0)

	first := clock.Schedule(now, 2*time.Second)
	if !first.Equal(now) {
		t.Fatalf("first chunk starts at %v, want %v", first, now)
	}
	second := clock.Schedule(now.Add(500*time.Millisecond), time.Second)
	if !second.Equal(now.Add(2 * time.Second)) {
		t.Fatalf("second chunk starts at %v, want end of first", second)
	}

	// After the queue drains, scheduling returns to "now".
	late := now.Add(10 * time.Second)
	third := clock.Schedule(late, time.Second)
	if !third.Equal(late) {
		t.Fatalf("post-drain chunk starts at %v, want %v", third, late)
	}
}

func TestPlaybackClockFlushResetsTimeline(t *testing.T) {
	var clock PlaybackClock
	now := time.Unix(100, 0)
	clock.Schedule(now, time.Minute)
	clock.Flush()

	start := clock.Schedule(now.Add(time.Second), time.Second)
	if !start.Equal(now.Add(time.Second)) {
		t.Fatalf("flushed clock scheduled at %v, want immediately", start)
	}
}

func TestDuration(t *testing.T) {
	// One second of 24kHz PCM16 is 48000 bytes.
	if d := Duration(make([]byte, 48000), OutputRate); d != time.Second {
		t.Fatalf("duration = %v, want 1s", d)
	}
	if d := Duration(make([]byte, 16000), InputRate); d != 500*time.Millisecond {
		t.Fatalf("duration = %v, want 500ms", d)
	}
}

func TestResampleHalvesRate(t *testing.T) {
	in := make([]byte, 8*2)
	for i := 0; i < 8; i++ {
		binary.LittleEndian.PutUint16(in[i*2:], uint16(i))
	}
	out := Resample(in, 32000, 16000)
	if len(out) != 8 {
		t.Fatalf("resampled length = %d bytes, want 8", len(out))
	}
	for i := 0; i < 4; i++ {
		if got := binary.LittleEndian.Uint16(out[i*2:]); got != uint16(i*2) {
			t.Fatalf("sample %d = %d, want %d", i, got, i*2)
		}
	}
	if same := Resample(in, 16000, 16000); len(same) != len(in) {
		t.Fatalf("identity resample changed length")
	}
}

type scriptedSession struct {
	events []liveEvent
	idx    int
	sent   [][]byte
	mu     sync.Mutex
}

func (s *scriptedSession) SendAudio(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, pcm)
	return nil
}

func (s *scriptedSession) Receive() (liveEvent, error) {
	if s.idx >= len(s.events) {
		return liveEvent{}, io.EOF
	}
	ev := s.events[s.idx]
	s.idx++
	return ev, nil
}

func (s *scriptedSession) Close() error { return nil }

func (s *scriptedSession) sentFrames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.sent...)
}

type sliceSource struct {
	frames []Frame
	idx    int
}

func (s *sliceSource) Read(ctx context.Context) (Frame, error) {
	if s.idx >= len(s.frames) {
		// Block until the bridge shuts down.
		<-ctx.Done()
		return Frame{}, io.EOF
	}
	f := s.frames[s.idx]
	s.idx++
	return f, nil
}

type recordingSink struct {
	mu      sync.Mutex
	played  []time.Time
	flushes int
}

func (r *recordingSink) Play(_ []byte, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.played = append(r.played, at)
}

func (r *recordingSink) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
}

func withScriptedSession(t *testing.T, session *scriptedSession) {
	t.Helper()
	orig := dialLive
	dialLive = func(context.Context, string, string) (liveSession, error) {
		return session, nil
	}
	t.Cleanup(func() { dialLive = orig })
}

func TestBridgeSchedulesAndFlushes(t *testing.T) {
	chunk := make([]byte, 48000) // 1s at 24kHz
	session := &scriptedSession{events: []liveEvent{
		{Audio: chunk},
		{Audio: chunk},
		{Interrupted: true},
		{Audio: chunk},
	}}
	withScriptedSession(t, session)

	source := &sliceSource{frames: []Frame{{Data: make([]byte, 9600), SampleRate: 48000}}}
	sink := &recordingSink{}
	bridge := NewBridge("key", "", source, sink)
	base := time.Unix(500, 0)
	bridge.now = func() time.Time { return base }

	if err := bridge.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.played) != 3 {
		t.Fatalf("played %d chunks, want 3", len(sink.played))
	}
	if !sink.played[0].Equal(base) {
		t.Fatalf("first chunk at %v, want %v", sink.played[0], base)
	}
	if !sink.played[1].Equal(base.Add(time.Second)) {
		t.Fatalf("second chunk at %v, want queued after first", sink.played[1])
	}
	if sink.flushes != 1 {
		t.Fatalf("flushes = %d, want 1", sink.flushes)
	}
	// The interruption reset the timeline, so the final chunk plays now.
	if !sink.played[2].Equal(base) {
		t.Fatalf("post-interrupt chunk at %v, want %v", sink.played[2], base)
	}

	for _, frame := range session.sentFrames() {
		if len(frame) != 3200 { // 9600 bytes at 48kHz downsampled to 16kHz
			t.Fatalf("upstream frame is %d bytes, want 3200", len(frame))
		}
	}
}

func TestBridgeMuteStopsUpstream(t *testing.T) {
	session := &scriptedSession{}
	withScriptedSession(t, session)

	source := &sliceSource{frames: []Frame{
		{Data: make([]byte, 640), SampleRate: 16000},
		{Data: make([]byte, 640), SampleRate: 16000},
	}}
	bridge := NewBridge("key", "", source, &recordingSink{})
	bridge.SetMuted(true)

	if err := bridge.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := len(session.sentFrames()); got != 0 {
		t.Fatalf("muted bridge sent %d frames", got)
	}
}
