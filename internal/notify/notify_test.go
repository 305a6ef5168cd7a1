package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type recordingDispatcher struct {
	got []Message
	err error
}

func (r *recordingDispatcher) Dispatch(_ context.Context, m Message) error {
	r.got = append(r.got, m)
	return r.err
}

func sample() Message {
	return Message{
		Kind:      KindLeadAssigned,
		Recipient: Recipient{UserID: 3, Name: "Ann", Email: "ann@example.com", TelegramChatID: 42},
		Subject:   "New Lead Assigned: Jane <VIP>",
		Text:      "Name: Jane",
	}
}

func TestFanoutJoinsFailuresAndIgnoresMissingAddress(t *testing.T) {
	ok := &recordingDispatcher{}
	noAddr := &recordingDispatcher{err: ErrNoAddress}
	f := Fanout{ok, noAddr, nil}
	require.NoError(t, f.Dispatch(context.Background(), sample()))
	assert.Len(t, ok.got, 1)
	assert.Len(t, noAddr.got, 1)

	boom := errors.New("smtp down")
	err := Fanout{ok, &recordingDispatcher{err: boom}}.Dispatch(context.Background(), sample())
	assert.ErrorIs(t, err, boom)
	assert.Len(t, ok.got, 2)
}

type fakeMailer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeMailer) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

func TestEmailDispatcher(t *testing.T) {
	mailer := &fakeMailer{}
	d := &EmailDispatcher{dialer: mailer, from: "crm@example.com"}

	require.NoError(t, d.Dispatch(context.Background(), sample()))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"ann@example.com"}, mailer.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"New Lead Assigned: Jane <VIP>"}, mailer.sent[0].GetHeader("Subject"))

	msg := sample()
	msg.Recipient.Email = ""
	assert.ErrorIs(t, d.Dispatch(context.Background(), msg), ErrNoAddress)
	assert.Len(t, mailer.sent, 1)

	mailer.err = errors.New("refused")
	assert.Error(t, d.Dispatch(context.Background(), sample()))
}

func TestEmailDispatcherGivesUpOnSilentServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			// accept and never greet
			defer conn.Close()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	d := NewEmailDispatcher("127.0.0.1", addr.Port, "", "", "crm@example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	err = d.Dispatch(ctx, sample())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestEmailDispatcherSkipsSendOnDoneContext(t *testing.T) {
	mailer := &fakeMailer{}
	d := &EmailDispatcher{dialer: mailer, from: "crm@example.com"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Dispatch(ctx, sample()), context.Canceled)
	assert.Empty(t, mailer.sent)
}

type fakeBot struct {
	sent []tgbotapi.MessageConfig
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestTelegramDispatcherEscapesHTML(t *testing.T) {
	bot := &fakeBot{}
	d := &TelegramDispatcher{bot: bot}

	require.NoError(t, d.Dispatch(context.Background(), sample()))
	require.Len(t, bot.sent, 1)
	assert.Equal(t, int64(42), bot.sent[0].ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, bot.sent[0].ParseMode)
	assert.Contains(t, bot.sent[0].Text, "Jane &lt;VIP&gt;")

	msg := sample()
	msg.Recipient.TelegramChatID = 0
	assert.ErrorIs(t, d.Dispatch(context.Background(), msg), ErrNoAddress)
}

type fakeChannel struct {
	exchange, key string
	pub           amqp.Publishing
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.pub = exchange, key, msg
	return nil
}

func TestQueuePublisherPublishesPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	p := &QueuePublisher{ch: ch, topology: QueueTopology{Exchange: "ex.notifications", Queue: "q.assign"}}

	require.NoError(t, p.Dispatch(context.Background(), sample()))
	assert.Equal(t, "ex.notifications", ch.exchange)
	assert.Equal(t, "q.assign", ch.key)
	assert.Equal(t, amqp.Persistent, ch.pub.DeliveryMode)

	var back Message
	require.NoError(t, json.Unmarshal(ch.pub.Body, &back))
	assert.Equal(t, sample(), back)

	assert.Error(t, p.Dispatch(context.Background(), Message{Kind: KindWelcome}))
}

type closedChannel struct{}

func (closedChannel) PublishWithContext(context.Context, string, string, bool, bool, amqp.Publishing) error {
	return amqp.ErrClosed
}

func TestQueuePublisherRedialsClosedChannel(t *testing.T) {
	fresh := &fakeChannel{}
	dials := 0
	p := &QueuePublisher{ch: closedChannel{}, topology: QueueTopology{Exchange: "ex", Queue: "q"}}
	p.dial = func() (amqpPublisher, error) {
		dials++
		return fresh, nil
	}

	require.NoError(t, p.Dispatch(context.Background(), sample()))
	assert.Equal(t, 1, dials)
	assert.Equal(t, "q", fresh.key)

	require.NoError(t, p.Dispatch(context.Background(), sample()))
	assert.Equal(t, 1, dials, "a healthy channel is reused")
}

func TestQueuePublisherFallsBackWhenBrokerIsGone(t *testing.T) {
	direct := &recordingDispatcher{}
	p := &QueuePublisher{ch: closedChannel{}, topology: QueueTopology{Exchange: "ex", Queue: "q"}, fallback: direct}
	p.dial = func() (amqpPublisher, error) { return nil, errors.New("connection refused") }

	require.NoError(t, p.Dispatch(context.Background(), sample()))
	require.Len(t, direct.got, 1)
	assert.Equal(t, sample(), direct.got[0])

	p.fallback = nil
	assert.Error(t, p.Dispatch(context.Background(), sample()))
}

func TestQueueConsumerHandle(t *testing.T) {
	target := &recordingDispatcher{}
	c := NewQueueConsumer("", QueueTopology{}, target, func(_ context.Context, r Recipient) (Recipient, error) {
		r.TelegramChatID = 777
		return r, nil
	})

	body, _ := json.Marshal(sample())
	require.NoError(t, c.handle(context.Background(), body))
	require.Len(t, target.got, 1)
	assert.Equal(t, int64(777), target.got[0].Recipient.TelegramChatID)

	err := c.handle(context.Background(), []byte("{not json"))
	assert.ErrorIs(t, err, errMalformed)
	assert.Len(t, target.got, 1)
}
