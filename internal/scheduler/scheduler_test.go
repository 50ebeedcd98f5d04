package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TLISentinel/internal/analyzer"
	"TLISentinel/internal/collector"
	"TLISentinel/internal/inbox"
	"TLISentinel/internal/model"
)

type fakeMailbox struct {
	emails []inbox.Email
	err    error
	seen   []uint32
}

func (f *fakeMailbox) FetchUnread(context.Context) ([]inbox.Email, error) {
	return f.emails, f.err
}

func (f *fakeMailbox) MarkSeen(_ context.Context, uid uint32) error {
	f.seen = append(f.seen, uid)
	return nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSender) SendWithRetry(_ context.Context, text string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, text)
	return nil
}

type memRecorder struct {
	recorded []model.Analysis
	stored   []model.ExtractedSignal
}

func (m *memRecorder) RecordAnalysis(a *model.Analysis) error {
	m.recorded = append(m.recorded, *a)
	return nil
}

func (m *memRecorder) LatestSignals(int) ([]model.ExtractedSignal, error) { return m.stored, nil }
func (m *memRecorder) Close() error                                        { return nil }

func newTestScheduler(mb Mailbox) (*Scheduler, *fakeSender, *memRecorder) {
	sender := &fakeSender{}
	rec := &memRecorder{}
	an := analyzer.New(collector.NewMockProvider(100), analyzer.Options{})
	return NewScheduler(context.Background(), an, mb, sender, rec), sender, rec
}

func TestPollInbox(t *testing.T) {
	mb := &fakeMailbox{emails: []inbox.Email{
		{UID: 7, Subject: "TLI Daily", Body: "$AMD support at $95. Target $130 with stop at $90. Buy here."},
		{UID: 8, Subject: "Newsletter", Body: "hello, nothing to see this week"},
	}}
	s, sender, rec := newTestScheduler(mb)

	s.RunPollNow()

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "<b>TLI Daily</b>")
	assert.Contains(t, sender.sent[0], "<b>$AMD</b>")
	require.Len(t, rec.recorded, 1)
	assert.Equal(t, "AMD", rec.recorded[0].Signal.Symbol)
	assert.Equal(t, []uint32{7, 8}, mb.seen)
}

func TestPollInboxKeepsUndeliveredUnseen(t *testing.T) {
	mb := &fakeMailbox{emails: []inbox.Email{
		{UID: 7, Subject: "TLI", Body: "$AMD target $130."},
	}}
	s, sender, rec := newTestScheduler(mb)
	sender.err = errors.New("telegram down")

	s.RunPollNow()

	assert.Len(t, rec.recorded, 1)
	assert.Empty(t, mb.seen)
}

func TestPollInboxFetchError(t *testing.T) {
	mb := &fakeMailbox{err: errors.New("imap down")}
	s, sender, rec := newTestScheduler(mb)

	s.RunPollNow()

	assert.Empty(t, sender.sent)
	assert.Empty(t, rec.recorded)
}

func TestRunPollNowWithoutMailbox(t *testing.T) {
	s, sender, _ := newTestScheduler(nil)
	s.RunPollNow()
	assert.Empty(t, sender.sent)
}

func TestRefreshTask(t *testing.T) {
	s, sender, rec := newTestScheduler(nil)
	rec.stored = []model.ExtractedSignal{
		{Symbol: "NVDA", Sentiment: model.SentimentBuy, Confidence: 0.7, TargetPrice: model.Float(130), Levels: []model.PriceLevel{}},
	}

	s.refreshTask()

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "<b>Refresh</b>")
	assert.Contains(t, sender.sent[0], "<b>$NVDA</b>")
	require.Len(t, rec.recorded, 1)
	assert.Equal(t, "NVDA", rec.recorded[0].Recommendation.Symbol)
}

func TestRefreshTaskNothingStored(t *testing.T) {
	s, sender, rec := newTestScheduler(nil)
	s.refreshTask()
	assert.Empty(t, sender.sent)
	assert.Empty(t, rec.recorded)
}

func TestRegisterAll(t *testing.T) {
	s, _, _ := newTestScheduler(nil)
	require.NoError(t, s.RegisterAll("0 */5 * * * *", "0 0 22 * * 1-5"))
	assert.Len(t, s.Cron.Entries(), 1)

	s, _, _ = newTestScheduler(&fakeMailbox{})
	require.NoError(t, s.RegisterAll("0 */5 * * * *", "0 0 22 * * 1-5"))
	assert.Len(t, s.Cron.Entries(), 2)

	s, _, _ = newTestScheduler(&fakeMailbox{})
	assert.Error(t, s.RegisterAll("not a cron", "0 0 22 * * 1-5"))
}

func TestHandleCommand(t *testing.T) {
	s, _, rec := newTestScheduler(nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		command string
		want    []string
	}{
		{"help", "/help", []string{"Available commands", "/size"}},
		{"unknown", "what now", []string{"Available commands"}},
		{"size", "/size 10000 1 50 48", []string{"Shares: 50", "Position: $2500.00"}},
		{"size with symbols", "/SIZE $10,000 1% $50 $48", []string{"Shares: 50"}},
		{"size usage", "/size 10000 1", []string{"Usage: /size"}},
		{"size invalid", "/size 10000 1 50 50", []string{"❌", "cannot be the same"}},
		{"fib", "/fib 200 100", []string{"0.500 → $150.00", "1.618 → $261.80"}},
		{"fib inverted", "/fib 100 200", []string{"❌", "invalid input"}},
		{"fib usage", "/fib abc 100", []string{"Usage: /fib"}},
		{"analyze usage", "/analyze", []string{"Usage: /analyze"}},
		{"analyze", "/analyze@tli_bot $NVDA support at $120. Target $150.", []string{"<b>$NVDA</b>", "support $120.00"}},
		{"refresh empty", "/refresh", []string{"No stored signals yet."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := s.HandleCommand(ctx, tt.command)
			for _, w := range tt.want {
				assert.Contains(t, reply, w)
			}
		})
	}
	require.Len(t, rec.recorded, 1)
	assert.Equal(t, "NVDA", rec.recorded[0].Signal.Symbol)
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		in, name, args string
	}{
		{"/help", "/help", ""},
		{"  /Size 1 2 3 4 ", "/size", "1 2 3 4"},
		{"/analyze@tli_bot $AMD target $5", "/analyze", "$AMD target $5"},
		{"/analyze\n$AMD target $5", "/analyze", "$AMD target $5"},
	}
	for _, tt := range tests {
		name, args := splitCommand(tt.in)
		assert.Equal(t, tt.name, name, tt.in)
		assert.Equal(t, tt.args, args, tt.in)
	}
}
