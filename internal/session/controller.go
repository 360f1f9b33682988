package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ledgervoice/ledgervoice/internal/intent"
	"github.com/ledgervoice/ledgervoice/internal/observe"
	"github.com/ledgervoice/ledgervoice/internal/vad"
	"github.com/ledgervoice/ledgervoice/pkg/audio"
	"github.com/ledgervoice/ledgervoice/pkg/provider/stt"
	"github.com/ledgervoice/ledgervoice/pkg/provider/tts"
)

// Recognizer turns a final transcript into a structured intent.
type Recognizer interface {
	Recognize(ctx context.Context, text string) (intent.Result, error)
}

// Responder turns a recognized intent into spoken response text.
type Responder interface {
	Respond(ctx context.Context, result intent.Result) (string, error)
}

// apologyText is spoken when recognition or response generation fails.
// Failures never terminate the session.
const apologyText = "Sorry, I didn't catch that. Could you say it again?"

// silencePrompt is spoken after prolonged user silence while listening.
const silencePrompt = "Are you still there? I'm listening."

// NotificationType classifies controller notifications.
type NotificationType string

const (
	NotifyStateChange     NotificationType = "state_change"
	NotifyPartial         NotificationType = "partial_transcript"
	NotifyFinalTranscript NotificationType = "final_transcript"
	NotifyIntent          NotificationType = "intent"
	NotifySpeaking        NotificationType = "speaking"
	NotifyResumed         NotificationType = "resumed"
)

// Notification is an out-of-band event for the session's client (the
// gateway), mirroring what the user hears and what the orchestrator decided.
type Notification struct {
	Type   NotificationType
	Change *Change
	Text   string
	Intent *intent.Result
}

// Config holds the collaborators and tunables of a [Controller].
type Config struct {
	// STT, TTS and Recognizer are required.
	STT        stt.Provider
	TTS        tts.Provider
	Recognizer Recognizer

	// Responder is optional. When nil, the spoken response is a short
	// acknowledgement derived from the intent.
	Responder Responder

	// Voice selects the TTS voice.
	Voice tts.VoiceProfile

	// Stream configures the ASR stream. Zero values take the ASR adapter's
	// defaults.
	Stream stt.StreamConfig

	// Detector tunes voice activity detection.
	Detector vad.Config

	// InterruptionConfirm is how long user speech must be sustained during
	// playback before it counts as a barge-in. Default 500ms.
	InterruptionConfirm time.Duration

	// FalseInterruptionWindow is how long the controller waits for a final
	// transcript after a confirmed barge-in before resuming the interrupted
	// utterance. Default 3s.
	FalseInterruptionWindow time.Duration

	Logger  *slog.Logger
	Metrics *observe.Metrics
}

const (
	defaultInterruptionConfirm     = 500 * time.Millisecond
	defaultFalseInterruptionWindow = 3 * time.Second
)

// recognitionDone carries an asynchronous recognition result back into the
// run loop, tagged with the session version it was started under.
type recognitionDone struct {
	version uint64
	result  intent.Result
	reply   string
	err     error
}

// playbackDone signals that an utterance's audio channel closed.
type playbackDone struct {
	id  uint64
	err error
}

// transcriptMsg is a partial or final ASR transcript.
type transcriptMsg struct {
	text  string
	final bool
}

// playing tracks the agent utterance currently on the wire.
type playing struct {
	id          uint64
	utterance   tts.Utterance
	text        string
	interrupted bool
}

// Controller is the session orchestrator. It serializes audio frames, VAD
// events, transcripts, timer fires and asynchronous recognition results onto
// a single run loop, which is the sole mutator of session state.
//
// Create one with [NewController], then call [Controller.Start]. Audio
// frames enter through [Controller.ProcessFrame]; synthesized agent audio
// leaves through [Controller.AudioOut].
type Controller struct {
	cfg      Config
	logger   *slog.Logger
	metrics  *observe.Metrics
	machine  *Machine
	detector *vad.Detector
	inter    *interruption

	frames      chan audio.Frame
	transcripts chan transcriptMsg
	timers      chan timerFire
	results     chan recognitionDone
	playbacks   chan playbackDone

	notifications chan Notification
	audioOut      chan []byte

	// version advances on every accepted state transition; stale
	// asynchronous results are dropped by comparing against it.
	version uint64

	current  *playing
	playSeq  uint64
	pumps    sync.WaitGroup
	asr      stt.SessionHandle
	startSF  singleflight.Group
	started  atomic.Bool
	cancel   context.CancelFunc
	loopDone chan struct{}
}

// NewController validates cfg and creates a controller in [StateIdle].
func NewController(cfg Config) (*Controller, error) {
	if cfg.STT == nil {
		return nil, errors.New("session: STT provider must not be nil")
	}
	if cfg.TTS == nil {
		return nil, errors.New("session: TTS provider must not be nil")
	}
	if cfg.Recognizer == nil {
		return nil, errors.New("session: Recognizer must not be nil")
	}
	if cfg.InterruptionConfirm <= 0 {
		cfg.InterruptionConfirm = defaultInterruptionConfirm
	}
	if cfg.FalseInterruptionWindow <= 0 {
		cfg.FalseInterruptionWindow = defaultFalseInterruptionWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}

	c := &Controller{
		cfg:           cfg,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		detector:      vad.New(cfg.Detector),
		frames:        make(chan audio.Frame, 64),
		transcripts:   make(chan transcriptMsg, 16),
		timers:        make(chan timerFire, 4),
		results:       make(chan recognitionDone, 4),
		playbacks:     make(chan playbackDone, 4),
		notifications: make(chan Notification, 32),
		audioOut:      make(chan []byte, 256),
		loopDone:      make(chan struct{}),
	}
	c.machine = NewMachine(cfg.Logger, c.onTransition)
	c.inter = newInterruption(cfg.InterruptionConfirm, cfg.FalseInterruptionWindow, c.timers)
	return c, nil
}

// onTransition runs synchronously for every accepted state change.
func (c *Controller) onTransition(change Change) {
	c.version++
	c.metrics.RecordTransition(context.Background(), string(change.Old), string(change.New))
	c.notify(Notification{Type: NotifyStateChange, Change: &change})
}

// State returns the current session state.
func (c *Controller) State() State { return c.machine.Current() }

// Notifications returns the stream of controller notifications. The channel
// is closed when the session stops.
func (c *Controller) Notifications() <-chan Notification { return c.notifications }

// AudioOut returns synthesized agent audio as PCM chunks. The channel is
// closed when the session stops.
func (c *Controller) AudioOut() <-chan []byte { return c.audioOut }

// Start opens the ASR stream, transitions to [StateListening] and launches
// the run loop. Concurrent callers share a single start attempt: the second
// caller waits for the first and returns its outcome instead of
// double-starting the audio pipeline.
func (c *Controller) Start(ctx context.Context) error {
	_, err, _ := c.startSF.Do("start", func() (any, error) {
		return nil, c.start(ctx)
	})
	return err
}

func (c *Controller) start(ctx context.Context) error {
	if c.started.Load() {
		return errors.New("session: already started")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	handle, err := c.cfg.STT.StartStream(runCtx, c.cfg.Stream)
	if err != nil {
		cancel()
		return err
	}

	c.asr = handle
	c.cancel = cancel
	c.started.Store(true)
	c.machine.Transition(StateListening, "session start")
	c.metrics.ActiveSessions.Add(runCtx, 1)

	go c.forwardTranscripts(runCtx, handle.Partials(), false)
	go c.forwardTranscripts(runCtx, handle.Finals(), true)
	go c.run(runCtx)
	return nil
}

// ProcessFrame feeds one microphone frame into the session. Frames are
// dropped when the loop is backed up; audio is real-time, so late frames
// are worth less than current ones.
func (c *Controller) ProcessFrame(f audio.Frame) {
	select {
	case c.frames <- f:
	default:
		c.logger.Warn("dropping audio frame, controller backed up")
	}
}

// Stop cancels all timers and subscriptions, stops playback and lands the
// session in [StateIdle]. Stop is idempotent.
func (c *Controller) Stop() {
	if !c.started.CompareAndSwap(true, false) {
		return
	}
	c.cancel()
	<-c.loopDone
	c.metrics.ActiveSessions.Add(context.Background(), -1)
}

func (c *Controller) forwardTranscripts(ctx context.Context, ch <-chan stt.Transcript, final bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-ch:
			if !ok {
				return
			}
			select {
			case c.transcripts <- transcriptMsg{text: t.Text, final: final}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// run is the session event loop and the sole mutator of session state.
func (c *Controller) run(ctx context.Context) {
	defer close(c.loopDone)
	defer c.teardown()

	for {
		select {
		case <-ctx.Done():
			return
		case f := <-c.frames:
			c.handleFrame(ctx, f)
		case t := <-c.transcripts:
			c.handleTranscript(ctx, t)
		case fire := <-c.timers:
			c.handleTimer(ctx, fire)
		case res := <-c.results:
			c.handleResult(ctx, res)
		case pd := <-c.playbacks:
			c.handlePlaybackDone(ctx, pd)
		}
	}
}

func (c *Controller) teardown() {
	c.inter.reset()
	if c.current != nil {
		c.current.utterance.Stop()
		c.current = nil
	}
	if c.asr != nil {
		if err := c.asr.Close(); err != nil {
			c.logger.Warn("closing ASR stream", "error", err)
		}
	}
	c.machine.ForceState(StateIdle, "session stop")

	// Pumps may still be draining a stopped utterance; audioOut must not
	// close under them.
	c.pumps.Wait()
	close(c.notifications)
	close(c.audioOut)
}

func (c *Controller) handleFrame(ctx context.Context, f audio.Frame) {
	events := c.detector.ProcessFrame(f)

	// Forward audio to ASR only while listening, to avoid echo capture
	// during playback.
	if c.machine.Current() == StateListening {
		if err := c.asr.SendAudio(f.Data); err != nil {
			c.logger.Warn("forwarding audio to ASR", "error", err)
			c.metrics.RecordProviderError(ctx, "stt", "send_audio")
		}
	}

	for _, ev := range events {
		c.handleVADEvent(ctx, ev)
	}
}

func (c *Controller) handleVADEvent(ctx context.Context, ev vad.Event) {
	c.metrics.RecordVADEvent(ctx, string(ev.Type))

	switch ev.Type {
	case vad.SpeechStart:
		if c.machine.Current() == StateSpeaking {
			c.inter.onSpeechStart()
		}
	case vad.SpeechEnd:
		if c.inter.onSpeechEnd() {
			c.logger.Debug("interruption attempt cancelled, speech too short",
				"speech_duration", ev.Duration)
		}
	case vad.SilenceTimeout:
		if c.machine.Current() == StateListening {
			c.speak(ctx, silencePrompt, "silence timeout prompt")
		}
	}
}

func (c *Controller) handleTranscript(ctx context.Context, t transcriptMsg) {
	if !t.final {
		if t.text != "" {
			c.notify(Notification{Type: NotifyPartial, Text: t.text})
		}
		return
	}
	if t.text == "" {
		return
	}

	// A genuine utterance closes any open false-interruption window.
	if c.inter.phase == phaseWindow {
		c.metrics.RecordInterruption(ctx, "real")
	}
	c.inter.onTranscript()

	c.notify(Notification{Type: NotifyFinalTranscript, Text: t.text})

	if c.machine.Current() != StateListening {
		return
	}
	if !c.machine.Transition(StateThinking, "final transcript") {
		return
	}

	version := c.version
	go c.recognize(ctx, t.text, version)
}

// recognize runs off the loop goroutine; its result re-enters through the
// results channel and is dropped if the session version has advanced.
func (c *Controller) recognize(ctx context.Context, text string, version uint64) {
	start := time.Now()
	result, err := c.cfg.Recognizer.Recognize(ctx, text)
	c.metrics.RecognitionDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		c.postResult(ctx, recognitionDone{version: version, err: err})
		return
	}

	reply := acknowledgement(result)
	if c.cfg.Responder != nil {
		reply, err = c.cfg.Responder.Respond(ctx, result)
	}
	c.postResult(ctx, recognitionDone{version: version, result: result, reply: reply, err: err})
}

func (c *Controller) postResult(ctx context.Context, res recognitionDone) {
	select {
	case c.results <- res:
	case <-ctx.Done():
	}
}

func (c *Controller) handleResult(ctx context.Context, res recognitionDone) {
	if res.version != c.version {
		c.logger.Debug("dropping stale recognition result",
			"result_version", res.version, "current_version", c.version)
		return
	}

	if res.err != nil {
		c.logger.Warn("recognition failed, apologising", "error", res.err)
		c.speak(ctx, apologyText, "recognition failure")
		return
	}

	r := res.result
	c.notify(Notification{Type: NotifyIntent, Intent: &r})
	c.speak(ctx, res.reply, "intent response")
}

// speak transitions to speaking and starts TTS playback of text. On TTS
// failure the session falls back to listening with the text delivered over
// the notification channel only.
func (c *Controller) speak(ctx context.Context, text, reason string) {
	if !c.machine.Transition(StateSpeaking, reason) {
		return
	}
	c.notify(Notification{Type: NotifySpeaking, Text: text})

	start := time.Now()
	ut, err := c.cfg.TTS.Speak(ctx, text, c.cfg.Voice)
	c.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		c.logger.Warn("TTS failed, falling back to text", "error", err)
		c.metrics.RecordProviderError(ctx, "tts", "speak")
		c.machine.Transition(StateListening, "tts failure")
		return
	}

	c.playSeq++
	c.current = &playing{id: c.playSeq, utterance: ut, text: text}
	c.pumps.Add(1)
	go c.pump(ctx, c.playSeq, ut)
}

// pump copies utterance audio to the session output and reports completion.
func (c *Controller) pump(ctx context.Context, id uint64, ut tts.Utterance) {
	defer c.pumps.Done()
	for chunk := range ut.Audio() {
		select {
		case c.audioOut <- chunk:
		case <-ctx.Done():
			ut.Stop()
			return
		}
	}
	select {
	case c.playbacks <- playbackDone{id: id, err: ut.Err()}:
	case <-ctx.Done():
	}
}

func (c *Controller) handlePlaybackDone(ctx context.Context, pd playbackDone) {
	if c.current == nil || c.current.id != pd.id {
		return
	}
	interrupted := c.current.interrupted
	c.current = nil

	if pd.err != nil {
		c.logger.Warn("utterance playback failed", "error", pd.err)
		c.metrics.RecordProviderError(ctx, "tts", "stream")
	}
	if interrupted {
		// The barge-in path already moved the session to listening.
		return
	}
	c.machine.Transition(StateListening, "playback complete")
}

func (c *Controller) handleTimer(ctx context.Context, fire timerFire) {
	switch fire.kind {
	case timerConfirm:
		c.confirmInterruption(ctx, fire.epoch)
	case timerFalseInterruption:
		c.resumeAfterFalseInterruption(ctx, fire.epoch)
	}
}

// confirmInterruption promotes a sustained speech burst during playback into
// a real barge-in: playback stops, the session returns to listening, and the
// interrupted text is remembered for possible resumption.
func (c *Controller) confirmInterruption(ctx context.Context, epoch uint64) {
	if !c.inter.confirmFired(epoch) {
		return
	}
	if c.machine.Current() != StateSpeaking || c.current == nil {
		c.inter.reset()
		return
	}

	c.current.interrupted = true
	c.current.utterance.Stop()
	text := c.current.text

	c.machine.Transition(StateListening, "barge-in confirmed")
	c.inter.openWindow(text)
	c.logger.Info("barge-in confirmed, awaiting transcript",
		"window", c.cfg.FalseInterruptionWindow)
}

// resumeAfterFalseInterruption replays the interrupted utterance when the
// false-interruption window elapsed without a transcript.
func (c *Controller) resumeAfterFalseInterruption(ctx context.Context, epoch uint64) {
	text, ok := c.inter.windowFired(epoch)
	if !ok {
		return
	}
	if c.machine.Current() != StateListening {
		return
	}

	c.metrics.RecordInterruption(ctx, "false")
	c.logger.Info("false interruption, resuming utterance")
	c.notify(Notification{Type: NotifyResumed, Text: text})
	c.speak(ctx, text, "resume after false interruption")
}

func (c *Controller) notify(n Notification) {
	select {
	case c.notifications <- n:
	default:
		c.logger.Warn("dropping notification, client backed up", "type", n.Type)
	}
}

// acknowledgement is the built-in reply used when no [Responder] is wired.
func acknowledgement(r intent.Result) string {
	switch r.Type {
	case intent.TypeUnknown:
		return apologyText
	case intent.TypeConfirm:
		return "Done."
	case intent.TypeCancel:
		return "Cancelled."
	default:
		return "Okay."
	}
}
