package audioio

import (
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voicelink/remote-audio/internal/protocol"
	"github.com/voicelink/remote-audio/internal/vad"
)

// testConfig binds an ephemeral port so tests can run in parallel CI.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Port = 0
	cfg.MetricsEnabled = false
	cfg.ShutdownTimeout = time.Second
	return cfg
}

func startTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()

	srv, err := New(cfg, vad.NewEnergyModel(0.1))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := srv.StartListening(); err != nil {
		t.Fatalf("StartListening() failed: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func dialTestServer(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()

	url := fmt.Sprintf("ws://%s/", srv.Addr())
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial(%s) failed: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) protocol.Frame {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() failed: %v", err)
	}
	frame, err := protocol.Decode(data)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	return frame
}

func sendFrame(t *testing.T, conn *websocket.Conn, f protocol.Frame) {
	t.Helper()

	data, err := protocol.Encode(f)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("WriteMessage() failed: %v", err)
	}
}

func TestNew_ThresholdValidation(t *testing.T) {
	for _, threshold := range []float64{0.0, 0.5, 1.0} {
		cfg := testConfig()
		cfg.VADThreshold = threshold
		if _, err := New(cfg, vad.NewEnergyModel(0)); err != nil {
			t.Errorf("New() with threshold %g failed: %v", threshold, err)
		}
	}

	for _, threshold := range []float64{-0.1, 1.1} {
		cfg := testConfig()
		cfg.VADThreshold = threshold
		if _, err := New(cfg, vad.NewEnergyModel(0)); err == nil {
			t.Errorf("Expected New() with threshold %g to fail", threshold)
		}
	}
}

func TestServer_ConfigFrameOnConnect(t *testing.T) {
	srv := startTestServer(t, testConfig())
	conn := dialTestServer(t, srv)

	frame := readFrame(t, conn)
	cfg, ok := frame.(protocol.Config)
	if !ok {
		t.Fatalf("Expected first frame to be config, got %T", frame)
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("Expected sample_rate 16000, got %d", cfg.SampleRate)
	}
	if cfg.ChunkSize != 1024 {
		t.Errorf("Expected chunk_size 1024, got %d", cfg.ChunkSize)
	}
	if cfg.Format != "float32" {
		t.Errorf("Expected format 'float32', got '%s'", cfg.Format)
	}
}

func TestServer_SilentChunkQueuedAsNonSpeech(t *testing.T) {
	srv := startTestServer(t, testConfig())
	conn := dialTestServer(t, srv)
	readFrame(t, conn) // config

	sendFrame(t, conn, protocol.NewAudio(make([]float32, 1024)))

	entry, ok := srv.SampleQueue().Pop(2 * time.Second)
	if !ok {
		t.Fatal("Expected a queued entry")
	}
	if len(entry.Chunk) != 1024 {
		t.Errorf("Expected 1024 samples, got %d", len(entry.Chunk))
	}
	if entry.IsSpeech {
		t.Error("Expected silence to be flagged as non-speech")
	}
}

func TestServer_LoudChunkQueuedAsSpeech(t *testing.T) {
	srv := startTestServer(t, testConfig())
	conn := dialTestServer(t, srv)
	readFrame(t, conn) // config

	loud := make([]float32, 1024)
	for i := range loud {
		loud[i] = 0.5
	}
	sendFrame(t, conn, protocol.NewAudio(loud))

	entry, ok := srv.SampleQueue().Pop(2 * time.Second)
	if !ok {
		t.Fatal("Expected a queued entry")
	}
	if !entry.IsSpeech {
		t.Error("Expected loud chunk to be flagged as speech")
	}
}

func TestServer_EmptyChunkSkipped(t *testing.T) {
	srv := startTestServer(t, testConfig())
	conn := dialTestServer(t, srv)
	readFrame(t, conn) // config

	sendFrame(t, conn, protocol.NewAudio([]float32{}))

	if _, ok := srv.SampleQueue().Pop(100 * time.Millisecond); ok {
		t.Error("Expected empty chunk to be skipped, not queued")
	}
}

func TestServer_PingPong(t *testing.T) {
	srv := startTestServer(t, testConfig())
	conn := dialTestServer(t, srv)
	readFrame(t, conn) // config

	sendFrame(t, conn, protocol.NewPing())

	frame := readFrame(t, conn)
	if _, ok := frame.(protocol.Pong); !ok {
		t.Fatalf("Expected pong, got %T", frame)
	}

	// No queue or playback side effects
	if srv.SampleQueue().Len() != 0 {
		t.Error("Expected ping to leave the sample queue untouched")
	}
	if srv.CheckIfSpeaking() {
		t.Error("Expected ping to leave playback state untouched")
	}
}

func TestServer_MalformedMessageKeepsConnectionOpen(t *testing.T) {
	srv := startTestServer(t, testConfig())
	conn := dialTestServer(t, srv)
	readFrame(t, conn) // config

	// Garbage, then an unknown type: both dropped without closing
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"audio","data":`))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"mystery"}`))

	sendFrame(t, conn, protocol.NewPing())
	frame := readFrame(t, conn)
	if _, ok := frame.(protocol.Pong); !ok {
		t.Fatalf("Expected connection to survive malformed messages, got %T", frame)
	}
}

func TestServer_CapacityReject(t *testing.T) {
	cfg := testConfig()
	cfg.MaxClients = 2
	srv := startTestServer(t, cfg)

	// Fill the server to capacity; reading the config frame synchronizes
	// on registration.
	for i := 0; i < 2; i++ {
		conn := dialTestServer(t, srv)
		readFrame(t, conn)
	}
	if srv.ConnectedClients() != 2 {
		t.Fatalf("Expected 2 connected clients, got %d", srv.ConnectedClients())
	}

	// The third connection gets an error frame, then the socket closes
	conn := dialTestServer(t, srv)
	frame := readFrame(t, conn)
	errFrame, ok := frame.(protocol.Error)
	if !ok {
		t.Fatalf("Expected error frame, got %T", frame)
	}
	if errFrame.Message != "Server at maximum capacity" {
		t.Errorf("Unexpected rejection message: '%s'", errFrame.Message)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected rejected connection to be closed")
	}

	// The first two sessions are unaffected
	if srv.ConnectedClients() != 2 {
		t.Errorf("Expected 2 connected clients after reject, got %d", srv.ConnectedClients())
	}
}

func TestServer_DisconnectPrunesSession(t *testing.T) {
	srv := startTestServer(t, testConfig())
	conn := dialTestServer(t, srv)
	readFrame(t, conn) // config

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.ConnectedClients() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected 0 connected clients after disconnect, got %d", srv.ConnectedClients())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServer_StartSpeakingBroadcast(t *testing.T) {
	srv := startTestServer(t, testConfig())
	conn := dialTestServer(t, srv)
	readFrame(t, conn) // config

	// 1600 samples at 16kHz: 100ms of audio
	samples := make([]float32, 1600)
	for i := range samples {
		samples[i] = 0.1
	}
	if err := srv.StartSpeaking(samples, 16000, "hello"); err != nil {
		t.Fatalf("StartSpeaking() failed: %v", err)
	}
	if !srv.CheckIfSpeaking() {
		t.Error("Expected CheckIfSpeaking() true during playback")
	}
	if interrupted, pct := srv.MeasurePercentageSpoken(len(samples), 16000); interrupted || pct != 0 {
		t.Errorf("Expected (false, 0) during playback, got (%v, %d)", interrupted, pct)
	}

	frame := readFrame(t, conn)
	playback, ok := frame.(protocol.AudioPlayback)
	if !ok {
		t.Fatalf("Expected audio_playback frame, got %T", frame)
	}
	if playback.SampleRate != 16000 {
		t.Errorf("Expected sample_rate 16000, got %d", playback.SampleRate)
	}
	if playback.Text != "hello" {
		t.Errorf("Expected text 'hello', got '%s'", playback.Text)
	}
	if len(playback.Data) != 1600 {
		t.Errorf("Expected 1600 samples, got %d", len(playback.Data))
	}

	// Simulated completion transitions the state back without any client
	// acknowledgment.
	deadline := time.Now().Add(2 * time.Second)
	for srv.CheckIfSpeaking() {
		if time.Now().After(deadline) {
			t.Fatal("Expected playback to complete after its duration")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if interrupted, pct := srv.MeasurePercentageSpoken(len(samples), 16000); !interrupted || pct != 100 {
		t.Errorf("Expected (true, 100) after completion, got (%v, %d)", interrupted, pct)
	}
}

func TestServer_StopSpeakingBroadcast(t *testing.T) {
	srv := startTestServer(t, testConfig())
	conn := dialTestServer(t, srv)
	readFrame(t, conn) // config

	if err := srv.StartSpeaking(make([]float32, 32000), 16000, ""); err != nil {
		t.Fatalf("StartSpeaking() failed: %v", err)
	}
	readFrame(t, conn) // audio_playback

	srv.StopSpeaking()

	if srv.CheckIfSpeaking() {
		t.Error("Expected CheckIfSpeaking() false after StopSpeaking")
	}

	frame := readFrame(t, conn)
	if _, ok := frame.(protocol.StopPlayback); !ok {
		t.Fatalf("Expected stop_playback frame, got %T", frame)
	}
}

func TestServer_StartSpeakingNoClients(t *testing.T) {
	srv := startTestServer(t, testConfig())

	if err := srv.StartSpeaking(make([]float32, 1024), 16000, ""); err != nil {
		t.Fatalf("StartSpeaking() with no clients failed: %v", err)
	}
	if srv.CheckIfSpeaking() {
		t.Error("Expected state to stay idle with no connected clients")
	}
}

func TestServer_StartSpeakingEmptyAudio(t *testing.T) {
	srv := startTestServer(t, testConfig())
	conn := dialTestServer(t, srv)
	readFrame(t, conn) // config

	if err := srv.StartSpeaking(nil, 16000, ""); err == nil {
		t.Error("Expected StartSpeaking(nil) to fail")
	}
	if srv.CheckIfSpeaking() {
		t.Error("Expected state to stay idle after rejected input")
	}
}

func TestServer_StartStopIdempotent(t *testing.T) {
	srv, err := New(testConfig(), vad.NewEnergyModel(0))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if err := srv.StartListening(); err != nil {
		t.Fatalf("StartListening() failed: %v", err)
	}
	addr := srv.Addr()
	if err := srv.StartListening(); err != nil {
		t.Fatalf("Second StartListening() failed: %v", err)
	}
	if srv.Addr() != addr {
		t.Error("Expected second StartListening to be a no-op")
	}

	srv.StopListening()
	srv.StopListening() // No-op

	if srv.Listening() {
		t.Error("Expected Listening() false after stop")
	}
}

func TestServer_StopListeningClosesSessions(t *testing.T) {
	srv := startTestServer(t, testConfig())
	conn := dialTestServer(t, srv)
	readFrame(t, conn) // config

	srv.StopListening()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected session to be closed by StopListening")
	}
	if srv.ConnectedClients() != 0 {
		t.Errorf("Expected 0 connected clients after stop, got %d", srv.ConnectedClients())
	}
}

func TestServer_FramesFromOneSessionStayOrdered(t *testing.T) {
	srv := startTestServer(t, testConfig())
	conn := dialTestServer(t, srv)
	readFrame(t, conn) // config

	for i := 0; i < 10; i++ {
		chunk := make([]float32, 4)
		chunk[0] = float32(i)
		sendFrame(t, conn, protocol.NewAudio(chunk))
	}

	for i := 0; i < 10; i++ {
		entry, ok := srv.SampleQueue().Pop(2 * time.Second)
		if !ok {
			t.Fatalf("Missing entry %d", i)
		}
		if entry.Chunk[0] != float32(i) {
			t.Fatalf("Entry %d out of order: got %v", i, entry.Chunk[0])
		}
	}
}
