package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/WarfarinBot/internal/flow"
	"github.com/BTreeMap/WarfarinBot/internal/line"
	"github.com/BTreeMap/WarfarinBot/internal/models"
	"github.com/BTreeMap/WarfarinBot/internal/store"
)

type failingDialogue struct{ err error }

func (d failingDialogue) HandleMessage(ctx context.Context, userID, text string) (flow.Result, error) {
	return flow.Result{}, d.err
}

func newLineHarness(t *testing.T, dialogue flow.Handler) (*ResponseHandler, *line.MockClient, *store.InMemoryStore) {
	t.Helper()
	client := line.NewMockClient()
	svc := NewLineService(client, testChannelSecret)
	t.Cleanup(func() { svc.Stop() })
	st := store.NewInMemoryStore()
	return NewResponseHandler(svc, dialogue, st), client, st
}

func lineEvent(id, text, token string) models.InboundEvent {
	return models.NewInboundEvent(id, testLineUser, text, token, time.Now())
}

func TestResponseHandler_ProcessEvent(t *testing.T) {
	dialogue := flow.NewWarfarinFlow(store.NewInMemorySessionStore())
	rh, client, _ := newLineHarness(t, dialogue)

	require.NoError(t, rh.ProcessEvent(context.Background(), lineEvent("m1", "warfarin", "tok-1")))
	require.Len(t, client.Replies, 1)
	assert.Equal(t, "tok-1", client.Replies[0].ReplyToken)
	assert.Equal(t, flow.PromptINR, client.Replies[0].Messages[0].Text)

	require.NoError(t, rh.ProcessEvent(context.Background(), lineEvent("m2", "2.5", "tok-2")))
	require.Len(t, client.Replies, 2)
	assert.Equal(t, flow.PromptTWD, client.Replies[1].Messages[0].Text)
}

func TestResponseHandler_DuplicateIsSkipped(t *testing.T) {
	dialogue := flow.NewWarfarinFlow(store.NewInMemorySessionStore())
	rh, client, st := newLineHarness(t, dialogue)

	evt := lineEvent("m1", "warfarin", "tok-1")
	require.NoError(t, rh.ProcessEvent(context.Background(), evt))
	require.NoError(t, rh.ProcessEvent(context.Background(), evt))
	assert.Len(t, client.Replies, 1)

	dup, err := st.IsDuplicate("m1")
	require.NoError(t, err)
	assert.True(t, dup)
}

func TestResponseHandler_MissingMessageIDGetsULID(t *testing.T) {
	dialogue := flow.NewWarfarinFlow(store.NewInMemorySessionStore())
	rh, client, _ := newLineHarness(t, dialogue)

	require.NoError(t, rh.ProcessEvent(context.Background(), lineEvent("", "warfarin", "tok-1")))
	require.NoError(t, rh.ProcessEvent(context.Background(), lineEvent("", "2.5", "tok-2")))
	assert.Len(t, client.Replies, 2)
}

func TestResponseHandler_DialogueErrorSendsApology(t *testing.T) {
	boom := errors.New("redis down")
	rh, client, _ := newLineHarness(t, failingDialogue{err: boom})

	err := rh.ProcessEvent(context.Background(), lineEvent("m1", "warfarin", "tok-1"))
	assert.ErrorIs(t, err, boom)
	require.Len(t, client.Replies, 1)
	assert.Equal(t, DefaultApology, client.Replies[0].Messages[0].Text)
}

func TestResponseHandler_EmptyUser(t *testing.T) {
	rh, _, _ := newLineHarness(t, failingDialogue{})
	err := rh.ProcessEvent(context.Background(), models.InboundEvent{Text: "x"})
	assert.ErrorIs(t, err, models.ErrEmptyUserID)
}

func TestResponseHandler_StartAndRecordReceipts(t *testing.T) {
	client := line.NewMockClient()
	svc := NewLineService(client, testChannelSecret)
	st := store.NewInMemoryStore()
	rh := NewResponseHandler(svc, flow.NewWarfarinFlow(store.NewInMemorySessionStore()), st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rh.Start(ctx)
	RecordReceipts(ctx, svc, st)

	require.True(t, svc.emitEvent(lineEvent("m1", "warfarin", "tok-1")))

	require.Eventually(t, func() bool {
		receipts, err := st.GetReceipts()
		return err == nil && len(receipts) == 1
	}, 2*time.Second, 10*time.Millisecond)

	receipts, err := st.GetReceipts()
	require.NoError(t, err)
	assert.Equal(t, testLineUser, receipts[0].To)
	assert.Equal(t, TransportLine, receipts[0].Transport)
	require.NoError(t, svc.Stop())
}
