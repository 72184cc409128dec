package slack

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/channel-sweeper/internal/platform"
)

type recordingHandler struct {
	mu       sync.Mutex
	ready    int
	messages []platform.Inbound
	block    chan struct{}
}

func (r *recordingHandler) OnReady(_ context.Context) { r.ready++ }

func (r *recordingHandler) OnMessage(_ context.Context, in platform.Inbound) {
	if r.block != nil && in.Text == "!slow" {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, in)
}

func (r *recordingHandler) Messages() []platform.Inbound {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]platform.Inbound(nil), r.messages...)
}

type recordingAcker struct {
	acked int
}

func (r *recordingAcker) Ack(_ socketmode.Request, _ ...interface{}) { r.acked++ }

func testApp() (*App, *recordingAcker) {
	ack := &recordingAcker{}
	return &App{acker: ack, botUserID: "UBOT", logger: zerolog.Nop()}, ack
}

func messageEvent(ev *slackevents.MessageEvent) socketmode.Event {
	return socketmode.Event{
		Type: socketmode.EventTypeEventsAPI,
		Data: slackevents.EventsAPIEvent{
			Type:       slackevents.CallbackEvent,
			InnerEvent: slackevents.EventsAPIInnerEvent{Type: "message", Data: ev},
		},
		Request: &socketmode.Request{EnvelopeID: "env-1"},
	}
}

func TestApp_DispatchConnectedSignalsReady(t *testing.T) {
	app, _ := testApp()
	h := &recordingHandler{}

	app.dispatch(context.Background(), socketmode.Event{Type: socketmode.EventTypeConnected}, h)
	assert.Equal(t, 1, h.ready)
}

func TestApp_DispatchUserMessage(t *testing.T) {
	app, ack := testApp()
	h := &recordingHandler{}

	app.dispatch(context.Background(), messageEvent(&slackevents.MessageEvent{
		User: "U1", Channel: "C1", Text: "!set_interval 30",
	}), h)
	app.handlers.Wait()

	assert.Equal(t, 1, ack.acked)
	msgs := h.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, platform.Inbound{ChannelID: "C1", UserID: "U1", Text: "!set_interval 30"}, msgs[0])
}

func TestApp_SlowCommandDoesNotHoldEventLoop(t *testing.T) {
	app, ack := testApp()
	h := &recordingHandler{block: make(chan struct{})}

	app.dispatch(context.Background(), messageEvent(&slackevents.MessageEvent{User: "U1", Channel: "C1", Text: "!slow"}), h)
	app.dispatch(context.Background(), messageEvent(&slackevents.MessageEvent{User: "U2", Channel: "C1", Text: "!set_cutoff_minutes 5"}), h)

	assert.Equal(t, 2, ack.acked)
	assert.Eventually(t, func() bool { return len(h.Messages()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "U2", h.Messages()[0].UserID)

	close(h.block)
	app.handlers.Wait()
	assert.Len(t, h.Messages(), 2)
}

func TestApp_DispatchSkipsBotsAndSubtypes(t *testing.T) {
	app, ack := testApp()
	h := &recordingHandler{}

	app.dispatch(context.Background(), messageEvent(&slackevents.MessageEvent{User: "UBOT", Channel: "C1", Text: "!x"}), h)
	app.dispatch(context.Background(), messageEvent(&slackevents.MessageEvent{User: "U1", Channel: "C1", SubType: "message_deleted"}), h)
	app.dispatch(context.Background(), messageEvent(&slackevents.MessageEvent{BotID: "B1", Channel: "C1", Text: "hi"}), h)

	app.handlers.Wait()
	assert.Equal(t, 3, ack.acked)
	assert.Empty(t, h.Messages())
}
