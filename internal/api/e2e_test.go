package api_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/WarfarinBot/internal/flow"
	"github.com/BTreeMap/WarfarinBot/internal/models"
	"github.com/BTreeMap/WarfarinBot/internal/testutil"
	"github.com/BTreeMap/WarfarinBot/internal/warfarin"
)

const lineUser = "U4af4980629a0a3b8d1c2e3f405060708"

func TestLineConversationEndToEnd(t *testing.T) {
	env := testutil.NewTestServer(t)
	env.StartPipeline(t)
	h := env.Server.Handler()

	steps := []string{"warfarin", "2.5", "28", "no", warfarin.OptionNoneUsed}
	for i, text := range steps {
		token := fmt.Sprintf("reply-%d", i)
		rr := testutil.PostLine(t, h, testutil.LineTextEventBody(t, fmt.Sprintf("m%d", i), lineUser, token, text))
		testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "line callback")
		want := i + 1
		testutil.WaitFor(t, 2*time.Second, func() bool { return len(env.LineClient.Sent()) >= want },
			"reply to %q", text)
	}

	replies := env.LineClient.Sent()
	require.Len(t, replies, len(steps))
	for i, r := range replies {
		assert.Equal(t, fmt.Sprintf("reply-%d", i), r.ReplyToken)
	}
	assert.Equal(t, flow.PromptINR, replies[0].Messages[0].Text)
	assert.True(t, replies[3].Messages[0].IsMenu(), "supplement question is a menu on LINE")
	assert.Contains(t, replies[4].Messages[0].Text, "คงขนาดยาเดิม")

	sess, err := env.Sessions.Get(context.Background(), lineUser)
	require.NoError(t, err)
	assert.Nil(t, sess, "session is removed once a recommendation is sent")

	testutil.WaitFor(t, 2*time.Second, func() bool {
		receipts, _ := env.Store.GetReceipts()
		return len(receipts) == len(steps)
	}, "receipts recorded")
	receipts, err := env.Store.GetReceipts()
	require.NoError(t, err)
	for _, r := range receipts {
		assert.Equal(t, models.MessageStatusSent, r.Status)
	}
}

func TestLineRedeliveryIsAnsweredOnce(t *testing.T) {
	env := testutil.NewTestServer(t)
	env.StartPipeline(t)
	h := env.Server.Handler()

	body := testutil.LineTextEventBody(t, "dup-1", lineUser, "reply-a", "warfarin")
	testutil.PostLine(t, h, body)
	testutil.PostLine(t, h, body)
	next := testutil.LineTextEventBody(t, "m2", lineUser, "reply-b", "2.5")
	testutil.PostLine(t, h, next)

	testutil.WaitFor(t, 2*time.Second, func() bool { return len(env.LineClient.Sent()) >= 2 }, "two replies")
	time.Sleep(50 * time.Millisecond)
	replies := env.LineClient.Sent()
	require.Len(t, replies, 2)
	assert.Equal(t, "reply-a", replies[0].ReplyToken)
	assert.Equal(t, "reply-b", replies[1].ReplyToken)
	assert.Equal(t, flow.PromptTWD, replies[1].Messages[0].Text)
}

func TestTwilioConversationEndToEnd(t *testing.T) {
	env := testutil.NewTestServer(t)
	env.StartPipeline(t)
	h := env.Server.Handler()

	noneUsed := fmt.Sprint(len(warfarin.Catalog) + 1)
	steps := []string{"warfarin", "3.2", "35", "no", noneUsed}
	for i, text := range steps {
		form := url.Values{
			"From":       {"whatsapp:+66812345678"},
			"Body":       {text},
			"MessageSid": {fmt.Sprintf("SM%d", i)},
		}
		rr := testutil.PostTwilio(t, h, form)
		testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "twilio webhook")
		want := i + 1
		testutil.WaitFor(t, 2*time.Second, func() bool { return len(env.TwilioClient.Sent()) >= want },
			"reply to %q", text)
	}

	sent := env.TwilioClient.Sent()
	require.Len(t, sent, len(steps))
	for _, m := range sent {
		assert.Equal(t, "66812345678", m.To)
	}
	assert.Contains(t, sent[3].Body, "1. ", "menu is rendered as a numbered list")
	assert.NotContains(t, sent[4].Body, flow.ErrorPromptInternal)
	assert.NotEqual(t, flow.HelpText(flow.DefaultTriggers), sent[4].Body, "numeric answer resolved to the menu option")
}

func TestTwilioUnsignedWebhookRejected(t *testing.T) {
	env := testutil.NewTestServer(t)
	form := url.Values{"From": {"whatsapp:+66812345678"}, "Body": {"warfarin"}, "MessageSid": {"SM1"}}
	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/twilio/webhook", []byte(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rr := httptestRecorder(env.Server.Handler(), req)
	testutil.AssertHTTPStatus(t, http.StatusForbidden, rr.Code, "unsigned twilio webhook")
}

func TestReceiptsEndpoint(t *testing.T) {
	env := testutil.NewTestServer(t)
	require.NoError(t, env.Store.AddReceipt(models.Receipt{To: lineUser, Transport: "line", Status: models.MessageStatusSent, Time: 1}))

	req := testutil.CreateHTTPRequest(t, http.MethodGet, "/receipts", nil)
	rr := httptestRecorder(env.Server.Handler(), req)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "receipts")
	resp := testutil.AssertJSONResponse(t, rr, string(models.APIStatusOK))
	assert.Len(t, resp["result"], 1)
}

func httptestRecorder(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}
