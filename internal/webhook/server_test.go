package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/hubgate/internal/queue"
	"github.com/mattjoyce/hubgate/internal/signature"
	"github.com/mattjoyce/hubgate/internal/webhook/mocks"
)

const (
	testSecret = "s3cr3t"
	twitchPath = "/webhooks/twitch"
	twitchBody = `{"data":[{"id":"0123456789","user_id":"5678","game_id":"21779","community_ids":[],` +
		`"type":"live","title":"Best Stream Ever","viewer_count":417,"started_at":"2017-12-01T10:09:45Z",` +
		`"language":"en","thumbnail_url":"https://link/to/thumbnail.jpg"}]}`
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig() Config {
	return Config{
		Listen: "127.0.0.1:0",
		Endpoints: []EndpointConfig{
			{
				Path:      twitchPath,
				Receiver:  ReceiverTwitch,
				SecretRef: "twitch_secret",
			},
		},
	}
}

func newTestServer(t *testing.T, cfg Config, secrets signature.SecretSource) (*Server, *mocks.MockJobQueuer) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mq := mocks.NewMockJobQueuer(ctrl)
	return New(cfg, secrets, mq, testLogger()), mq
}

func signedRequest(target, body, header string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	if header != "" {
		req.Header.Set(signature.DefaultHeader, header)
	}
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestWebhook_Rejections(t *testing.T) {
	secrets := signature.SecretMap{"twitch_secret": testSecret}

	tests := []struct {
		name       string
		target     string
		header     string
		secrets    signature.SecretSource
		wantStatus int
		wantError  string
		wantDetail string
	}{
		{
			name:       "malformed header",
			target:     "https://hub.example" + twitchPath,
			header:     "notsha256hexatall",
			wantStatus: http.StatusBadRequest,
			wantError:  "malformed signature header",
			wantDetail: "notsha256hexatall",
		},
		{
			name:       "non-hex digest",
			target:     "https://hub.example" + twitchPath,
			header:     "sha256=not-hex",
			wantStatus: http.StatusBadRequest,
			wantError:  "malformed signature digest",
		},
		{
			name:       "wrong digest",
			target:     "https://hub.example" + twitchPath,
			header:     "sha256=" + strings.Repeat("00", 32),
			wantStatus: http.StatusForbidden,
			wantError:  "forbidden",
		},
		{
			name:       "plain http",
			target:     "http://hub.example" + twitchPath,
			header:     signature.Sign([]byte(testSecret), []byte(twitchBody)),
			wantStatus: http.StatusForbidden,
			wantError:  "secure connection required",
		},
		{
			name:       "secret not configured",
			target:     "https://hub.example" + twitchPath,
			header:     signature.Sign([]byte(testSecret), []byte(twitchBody)),
			secrets:    signature.SecretMap{},
			wantStatus: http.StatusInternalServerError,
			wantError:  "receiver not configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := tt.secrets
			if src == nil {
				src = secrets
			}
			s, mq := newTestServer(t, testConfig(), src)
			mq.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Times(0)

			rec := serve(s, signedRequest(tt.target, twitchBody, tt.header))

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Equal(t, tt.wantDetail, resp.Detail)
			assert.NotContains(t, rec.Body.String(), testSecret)
		})
	}
}

func TestWebhook_ValidSignatureEnqueuesTwitchEvent(t *testing.T) {
	s, mq := newTestServer(t, testConfig(), signature.SecretMap{"twitch_secret": testSecret})

	var got queue.EnqueueRequest
	mq.EXPECT().Enqueue(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req queue.EnqueueRequest) (queue.EnqueueResult, error) {
			got = req
			return queue.EnqueueResult{JobID: "job-123"}, nil
		})

	req := signedRequest("https://hub.example"+twitchPath, twitchBody, signature.Sign([]byte(testSecret), []byte(twitchBody)))
	rec := serve(s, req)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var resp TriggerResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "job-123", resp.JobID)
	assert.False(t, resp.Duplicate)

	assert.Equal(t, ReceiverTwitch, got.Receiver)
	assert.Equal(t, "stream.online", got.EventType)
	assert.Equal(t, "twitch:stream:0123456789:2017-12-01T10:09:45Z", got.DedupeKey)
	assert.Equal(t, "passed", got.Verification)
	assert.Equal(t, "webhook:"+twitchPath, got.SubmittedBy)
	assert.Equal(t, twitchBody, string(got.Payload))
	assert.NotEmpty(t, got.RequestID)
}

func TestWebhook_DuplicateDelivery(t *testing.T) {
	s, mq := newTestServer(t, testConfig(), signature.SecretMap{"twitch_secret": testSecret})
	mq.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(queue.EnqueueResult{JobID: "job-1", Duplicate: true}, nil)

	rec := serve(s, signedRequest("https://hub.example"+twitchPath, twitchBody, signature.Sign([]byte(testSecret), []byte(twitchBody))))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp TriggerResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Duplicate)
}

func TestWebhook_MissingHeaderIsSkipped(t *testing.T) {
	s, mq := newTestServer(t, testConfig(), signature.SecretMap{"twitch_secret": testSecret})
	mq.EXPECT().Enqueue(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req queue.EnqueueRequest) (queue.EnqueueResult, error) {
			assert.Equal(t, "skipped", req.Verification)
			assert.Equal(t, twitchBody, string(req.Payload))
			return queue.EnqueueResult{JobID: "job-9"}, nil
		})

	rec := serve(s, signedRequest("https://hub.example"+twitchPath, twitchBody, ""))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestWebhook_EmptyHeaderIsMalformed(t *testing.T) {
	s, mq := newTestServer(t, testConfig(), signature.SecretMap{"twitch_secret": testSecret})
	mq.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Times(0)

	req := httptest.NewRequest(http.MethodPost, "https://hub.example"+twitchPath, strings.NewReader(twitchBody))
	req.Header[signature.DefaultHeader] = []string{""}

	rec := serve(s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_GetIsNotVerified(t *testing.T) {
	s, mq := newTestServer(t, testConfig(), signature.SecretMap{"twitch_secret": testSecret})
	mq.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Times(0)

	req := httptest.NewRequest(http.MethodGet, "http://hub.example"+twitchPath, nil)
	req.Header.Set(signature.DefaultHeader, "garbage")

	rec := serve(s, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWebhook_UnknownPath(t *testing.T) {
	s, mq := newTestServer(t, testConfig(), signature.SecretMap{"twitch_secret": testSecret})
	mq.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Times(0)

	rec := serve(s, signedRequest("https://hub.example/webhooks/other", twitchBody, "garbage"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhook_ForwardedProto(t *testing.T) {
	tests := []struct {
		name       string
		trust      bool
		proto      string
		wantStatus int
	}{
		{name: "trusted https", trust: true, proto: "https", wantStatus: http.StatusAccepted},
		{name: "trusted http", trust: true, proto: "http", wantStatus: http.StatusForbidden},
		{name: "untrusted https", trust: false, proto: "https", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.TrustForwardedProto = tt.trust
			s, mq := newTestServer(t, cfg, signature.SecretMap{"twitch_secret": testSecret})
			mq.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(queue.EnqueueResult{JobID: "j"}, nil).AnyTimes()

			req := signedRequest("http://hub.example"+twitchPath, twitchBody, signature.Sign([]byte(testSecret), []byte(twitchBody)))
			req.Header.Set("X-Forwarded-Proto", tt.proto)

			rec := serve(s, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestWebhook_AllowInsecure(t *testing.T) {
	cfg := testConfig()
	cfg.AllowInsecure = true
	s, mq := newTestServer(t, cfg, signature.SecretMap{"twitch_secret": testSecret})
	mq.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(queue.EnqueueResult{JobID: "j"}, nil)

	rec := serve(s, signedRequest("http://hub.example"+twitchPath, twitchBody, signature.Sign([]byte(testSecret), []byte(twitchBody))))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestWebhook_BodyTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Endpoints[0].MaxBodySize = 16
	s, mq := newTestServer(t, cfg, signature.SecretMap{"twitch_secret": testSecret})
	mq.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Times(0)

	rec := serve(s, signedRequest("https://hub.example"+twitchPath, twitchBody, signature.Sign([]byte(testSecret), []byte(twitchBody))))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "payload too large", decodeError(t, rec).Error)
}

func TestWebhook_UnsignedBodyTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Endpoints[0].MaxBodySize = 16
	s, mq := newTestServer(t, cfg, signature.SecretMap{"twitch_secret": testSecret})
	mq.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Times(0)

	rec := serve(s, signedRequest("https://hub.example"+twitchPath, twitchBody, ""))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestWebhook_SpilledBodyStillVerifies(t *testing.T) {
	cfg := testConfig()
	cfg.Endpoints[0].Receiver = ReceiverGeneric
	cfg.Endpoints[0].BufferThreshold = 64
	s, mq := newTestServer(t, cfg, signature.SecretMap{"twitch_secret": testSecret})

	body := `{"blob":"` + strings.Repeat("x", 10000) + `"}`
	mq.EXPECT().Enqueue(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req queue.EnqueueRequest) (queue.EnqueueResult, error) {
			assert.Equal(t, body, string(req.Payload))
			assert.Equal(t, "webhook", req.EventType)
			assert.Empty(t, req.DedupeKey)
			return queue.EnqueueResult{JobID: "j"}, nil
		})

	rec := serve(s, signedRequest("https://hub.example"+twitchPath, body, signature.Sign([]byte(testSecret), []byte(body))))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestWebhook_SecretRotation(t *testing.T) {
	secrets := signature.SecretMap{"twitch_secret": testSecret}
	s, mq := newTestServer(t, testConfig(), secrets)
	mq.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(queue.EnqueueResult{JobID: "j"}, nil).Times(1)

	header := signature.Sign([]byte(testSecret), []byte(twitchBody))
	rec := serve(s, signedRequest("https://hub.example"+twitchPath, twitchBody, header))
	require.Equal(t, http.StatusAccepted, rec.Code)

	secrets["twitch_secret"] = "rotated"
	rec = serve(s, signedRequest("https://hub.example"+twitchPath, twitchBody, header))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhook_CustomSignatureHeader(t *testing.T) {
	cfg := testConfig()
	cfg.Endpoints[0].SignatureHeader = "X-Hub-Signature-256"
	s, mq := newTestServer(t, cfg, signature.SecretMap{"twitch_secret": testSecret})
	mq.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(queue.EnqueueResult{JobID: "j"}, nil)

	req := httptest.NewRequest(http.MethodPost, "https://hub.example"+twitchPath, strings.NewReader(twitchBody))
	req.Header.Set("X-Hub-Signature-256", signature.Sign([]byte(testSecret), []byte(twitchBody)))

	rec := serve(s, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestWebhook_InvalidTwitchPayload(t *testing.T) {
	s, mq := newTestServer(t, testConfig(), signature.SecretMap{"twitch_secret": testSecret})
	mq.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Times(0)

	body := `{"streams":[]}`
	rec := serve(s, signedRequest("https://hub.example"+twitchPath, body, signature.Sign([]byte(testSecret), []byte(body))))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid payload", decodeError(t, rec).Error)
}

func TestWebhook_OfflineNotification(t *testing.T) {
	s, mq := newTestServer(t, testConfig(), signature.SecretMap{"twitch_secret": testSecret})
	body := `{"data":[]}`
	mq.EXPECT().Enqueue(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req queue.EnqueueRequest) (queue.EnqueueResult, error) {
			assert.Equal(t, "stream.offline", req.EventType)
			assert.Empty(t, req.DedupeKey)
			return queue.EnqueueResult{JobID: "j"}, nil
		})

	rec := serve(s, signedRequest("https://hub.example"+twitchPath, body, signature.Sign([]byte(testSecret), []byte(body))))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestWebhook_EnqueueFailure(t *testing.T) {
	s, mq := newTestServer(t, testConfig(), signature.SecretMap{"twitch_secret": testSecret})
	mq.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(queue.EnqueueResult{}, errors.New("database locked"))

	rec := serve(s, signedRequest("https://hub.example"+twitchPath, twitchBody, signature.Sign([]byte(testSecret), []byte(twitchBody))))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "failed to enqueue job", decodeError(t, rec).Error)
	assert.NotContains(t, rec.Body.String(), "database locked")
}

func TestWebhook_StartStopsOnCancel(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), signature.SecretMap{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPRequest_HeaderPresence(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(nil))
	r.Header["X-Hub-Signature"] = []string{""}
	req := newHTTPRequest(httptest.NewRecorder(), r, &EndpointConfig{}, Config{})

	v, ok := req.Header("X-Hub-Signature")
	assert.True(t, ok)
	assert.Empty(t, v)

	_, ok = req.Header("X-Other")
	assert.False(t, ok)
}

func TestHTTPRequest_BodyWrappedLazily(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("payload"))
	req := newHTTPRequest(httptest.NewRecorder(), r, &EndpointConfig{MaxBodySize: 1024}, Config{})

	_, spooled := r.Body.(*signature.SpooledBody)
	assert.False(t, spooled)
	require.NoError(t, req.close())

	body := req.Body()
	_, spooled = r.Body.(*signature.SpooledBody)
	assert.True(t, spooled)
	got, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
	require.NoError(t, req.close())
}
