package gateway

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/sync/errgroup"

	"github.com/ledgervoice/ledgervoice/internal/intent"
	"github.com/ledgervoice/ledgervoice/internal/observe"
	"github.com/ledgervoice/ledgervoice/internal/session"
	"github.com/ledgervoice/ledgervoice/pkg/audio"
)

// sessionHandler upgrades /v1/session requests to a WebSocket. The client
// streams 16-bit PCM as binary messages; the server sends JSON events as
// text messages and synthesized PCM as binary messages. Clients capturing at
// a different rate declare it with ?rate= and ?channels= query parameters
// and the handler converts inbound audio to the pipeline format.
type sessionHandler struct {
	sessions   SessionFactory
	sampleRate int
}

// event is the wire form of a controller notification.
type event struct {
	Type   string       `json:"type"`
	State  *stateEvent  `json:"state,omitempty"`
	Text   string       `json:"text,omitempty"`
	Intent *intentEvent `json:"intent,omitempty"`
}

type stateEvent struct {
	Old    string `json:"old"`
	New    string `json:"new"`
	Reason string `json:"reason,omitempty"`
}

type intentEvent struct {
	Type       intent.Type   `json:"type"`
	Confidence float64       `json:"confidence"`
	Slots      intent.Slots  `json:"slots,omitempty"`
	Source     intent.Source `json:"source"`
}

func (h *sessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Connection logs carry the trace identifiers stamped by the HTTP
	// middleware, so one session's events can be followed end to end.
	logger := observe.Logger(r.Context())

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctrl, err := h.sessions(r.Context())
	if err != nil {
		logger.Error("building session", "error", err)
		conn.Close(websocket.StatusInternalError, "session unavailable")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := ctrl.Start(ctx); err != nil {
		logger.Error("starting session", "error", err)
		conn.Close(websocket.StatusInternalError, "session start failed")
		return
	}
	defer ctrl.Stop()

	source := clientFormat(r, h.sampleRate)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.readFrames(ctx, conn, ctrl, source) })
	g.Go(func() error { return h.writeEvents(ctx, conn, ctrl) })

	err = g.Wait()
	if err != nil && websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
		logger.Warn("session connection ended", "error", err)
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// clientFormat reads the capture format declared by the client. Absent or
// unparseable parameters fall back to the pipeline format.
func clientFormat(r *http.Request, sampleRate int) audio.Format {
	src := audio.Format{SampleRate: sampleRate, Channels: 1}
	q := r.URL.Query()
	if rate, err := strconv.Atoi(q.Get("rate")); err == nil && rate > 0 {
		src.SampleRate = rate
	}
	if ch, err := strconv.Atoi(q.Get("channels")); err == nil && (ch == 1 || ch == 2) {
		src.Channels = ch
	}
	return src
}

// readFrames turns inbound binary messages into audio frames, converting them
// from the client's declared capture format to the pipeline format. Timestamps
// are derived from the accumulated sample count so detector timing is driven
// by audio time, not arrival time.
func (h *sessionHandler) readFrames(ctx context.Context, conn *websocket.Conn, ctrl *session.Controller, source audio.Format) error {
	conv := audio.FormatConverter{Target: audio.Format{SampleRate: h.sampleRate, Channels: 1}}
	var ts time.Duration
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageBinary {
			continue
		}
		f := conv.Convert(audio.Frame{
			Data:       data,
			SampleRate: source.SampleRate,
			Channels:   source.Channels,
			Timestamp:  ts,
		})
		if len(f.Data) == 0 {
			continue
		}
		ts += f.Duration()
		ctrl.ProcessFrame(f)
	}
}

// writeEvents is the sole writer on the connection, multiplexing controller
// notifications and synthesized audio. It returns nil once the controller
// has closed both channels.
func (h *sessionHandler) writeEvents(ctx context.Context, conn *websocket.Conn, ctrl *session.Controller) error {
	notifications := ctrl.Notifications()
	audioOut := ctrl.AudioOut()
	for notifications != nil || audioOut != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-notifications:
			if !ok {
				notifications = nil
				continue
			}
			if err := wsjson.Write(ctx, conn, toEvent(n)); err != nil {
				return err
			}
		case chunk, ok := <-audioOut:
			if !ok {
				audioOut = nil
				continue
			}
			if err := conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return err
			}
		}
	}
	return nil
}

func toEvent(n session.Notification) event {
	ev := event{Type: string(n.Type), Text: n.Text}
	if n.Change != nil {
		ev.State = &stateEvent{
			Old:    string(n.Change.Old),
			New:    string(n.Change.New),
			Reason: n.Change.Reason,
		}
	}
	if n.Intent != nil {
		ev.Intent = &intentEvent{
			Type:       n.Intent.Type,
			Confidence: n.Intent.Confidence,
			Slots:      n.Intent.Slots,
			Source:     n.Intent.Source,
		}
	}
	return ev
}
