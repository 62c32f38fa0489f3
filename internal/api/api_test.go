package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aggressionjsk/ai-saas-app/internal/animator"
	"github.com/aggressionjsk/ai-saas-app/internal/asset"
	"github.com/aggressionjsk/ai-saas-app/internal/config"
	"github.com/aggressionjsk/ai-saas-app/internal/engine"
	"github.com/aggressionjsk/ai-saas-app/internal/failure"
	"github.com/aggressionjsk/ai-saas-app/internal/provider"
	"github.com/aggressionjsk/ai-saas-app/internal/recorder"
)

const (
	token       = "secret-token"
	shareSecret = "share-secret"
)

type stubGenerator struct {
	data []byte
	err  error
}

func (g *stubGenerator) Generate(context.Context, string) (*provider.Result, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &provider.Result{Data: g.data}, nil
}

type stubAnimator struct{ err error }

func (a *stubAnimator) Animate(_ context.Context, _ image.Image, opts animator.Options) (*asset.Asset, error) {
	if a.err != nil {
		return nil, a.err
	}
	return asset.NewVideo(asset.Meta{Name: opts.Name, Ext: ".webm", ContentType: "video/webm"},
		[]recorder.Chunk{{Seq: 0, Data: []byte("webm-")}, {Seq: 1, Data: []byte("bytes")}})
}

type stubRecorder struct{ err error }

func (r stubRecorder) Available() error { return r.err }

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return buf.Bytes()
}

type fixture struct {
	srv  *httptest.Server
	gen  *stubGenerator
	anim *stubAnimator
}

func newFixture(t *testing.T, mutate func(*Deps)) *fixture {
	t.Helper()
	f := &fixture{gen: &stubGenerator{data: pngBytes(t)}, anim: &stubAnimator{}}
	studio := engine.NewStudio(engine.Deps{
		Generator: f.gen,
		Animator:  f.anim,
		Options:   animator.DefaultOptions(),
		Logger:    zerolog.Nop(),
	})
	cfg := config.Default().Server
	cfg.RateLimit = 0
	cfg.ShareSecret = shareSecret
	d := Deps{
		Config:   cfg,
		Studio:   studio,
		Verifier: NewTokenVerifier([]string{token}),
		Recorder: stubRecorder{},
		Version:  "test",
	}
	if mutate != nil {
		mutate(&d)
	}
	f.srv = httptest.NewServer(New(d).Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body io.Reader, auth bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, body)
	require.NoError(t, err)
	if auth {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestLanding(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodGet, "/", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[landingResponse](t, resp)
	assert.Equal(t, "/sign-in", body.SignIn)
	assert.Equal(t, "/sign-up", body.SignUp)
	assert.NotEmpty(t, body.Title)

	resp = f.do(t, http.MethodGet, "/", nil, true)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
}

func TestSessionCookie(t *testing.T) {
	f := newFixture(t, nil)
	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+"/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	f := newFixture(t, nil)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/dashboard"},
		{http.MethodPut, "/api/prompt"},
		{http.MethodPost, "/api/image"},
		{http.MethodPost, "/api/video"},
		{http.MethodGet, "/api/assets/image"},
		{http.MethodGet, "/api/assets/video/qr"},
	} {
		resp := f.do(t, tc.method, tc.path, nil, false)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, tc.path)
	}
}

func TestImageFlow(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodPost, "/api/image", nil, true)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	st := decode[stateResponse](t, resp)
	require.NotNil(t, st.Failure)
	assert.Equal(t, failure.KindInvalid, st.Failure.Kind)

	resp = f.do(t, http.MethodPut, "/api/prompt", strings.NewReader(`{"prompt":"a lighthouse"}`), true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "a lighthouse", decode[stateResponse](t, resp).Prompt)

	resp = f.do(t, http.MethodGet, "/api/assets/image", nil, true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/image", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st = decode[stateResponse](t, resp)
	require.NotNil(t, st.Image)
	assert.Equal(t, "/api/assets/image", st.Links.Image)
	assert.Empty(t, st.Links.Video)

	resp = f.do(t, http.MethodGet, "/api/assets/image", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="zukku_generated.png"`, resp.Header.Get("Content-Disposition"))
	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, pngBytes(t), data)
}

func TestVideoFlow(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, http.MethodPut, "/api/prompt", strings.NewReader(`{"prompt":"waves"}`), true)

	resp := f.do(t, http.MethodGet, "/api/assets/video", nil, true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/video", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[stateResponse](t, resp)
	require.NotNil(t, st.Video)
	require.NotNil(t, st.Image, "video generation fetches an image first")
	assert.Equal(t, "/api/assets/video/qr", st.Links.VideoQR)

	resp = f.do(t, http.MethodGet, "/api/assets/video", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "video/webm", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="zukku_generated.webm"`, resp.Header.Get("Content-Disposition"))
	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "webm-bytes", string(data))

	resp = f.do(t, http.MethodGet, "/api/assets/"+st.Video.ID, nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/assets/video/qr", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	qr, _ := io.ReadAll(resp.Body)
	_, format, err := image.DecodeConfig(bytes.NewReader(qr))
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	resp = f.do(t, http.MethodGet, "/api/assets/nope", nil, true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestShareLinkServesVideoWithoutSession(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, http.MethodPut, "/api/prompt", strings.NewReader(`{"prompt":"waves"}`), true)
	resp := f.do(t, http.MethodPost, "/api/video", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := decode[stateResponse](t, resp).Video.ID

	signer := newShareSigner(shareSecret, time.Minute)
	link := signer.Link(id)
	require.True(t, strings.HasPrefix(link, "/share/"+id+"?"))

	resp = f.do(t, http.MethodGet, link, nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "video/webm", resp.Header.Get("Content-Type"))
	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "webm-bytes", string(data))

	u, err := url.Parse(link)
	require.NoError(t, err)
	q := u.Query()
	q.Set("sig", "AAAA")
	resp = f.do(t, http.MethodGet, u.Path+"?"+q.Encode(), nil, false)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodGet, newShareSigner("other-secret", time.Minute).Link(id), nil, false)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodGet, signer.Link("missing"), nil, false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestShareSignerExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := newShareSigner("k", time.Minute)
	s.now = func() time.Time { return now }

	u, err := url.Parse(s.Link("abc"))
	require.NoError(t, err)
	exp, sig := u.Query().Get("exp"), u.Query().Get("sig")
	assert.True(t, s.Verify("abc", exp, sig))
	assert.False(t, s.Verify("abd", exp, sig), "signature is bound to the id")
	assert.False(t, s.Verify("abc", "1800000000", sig), "signature is bound to the expiry")

	now = now.Add(2 * time.Minute)
	assert.False(t, s.Verify("abc", exp, sig), "expired")

	random := newShareSigner("", 0)
	assert.Len(t, random.key, 32)
	assert.Equal(t, 15*time.Minute, random.ttl)
}

func TestRequireSessionAttachesSession(t *testing.T) {
	s := New(Deps{Verifier: NewTokenVerifier([]string{"other", token})})

	var got Session
	var ok bool
	h := s.requireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = SessionFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, ok)
	assert.Equal(t, "token#1", got.Subject)

	_, ok = SessionFromContext(context.Background())
	assert.False(t, ok)
}

func TestActionStatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		genErr  error
		data    []byte
		animErr error
		path    string
		want    int
	}{
		{"fetch", failure.Newf(failure.KindFetch, "p", "503"), nil, nil, "/api/image", http.StatusBadGateway},
		{"decode", nil, []byte("not an image"), nil, "/api/image", http.StatusUnprocessableEntity},
		{"recorder unavailable", nil, nil, failure.Newf(failure.KindRecorderUnavailable, "v", "no ffmpeg"), "/api/video", http.StatusServiceUnavailable},
		{"encoding", nil, nil, failure.Newf(failure.KindEncoding, "v", "exit 1"), "/api/video", http.StatusInternalServerError},
		{"timeout", nil, nil, failure.New(failure.KindTimeout, "v", errors.New("stuck")), "/api/video", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.gen.err = tt.genErr
			if tt.data != nil {
				f.gen.data = tt.data
			}
			f.anim.err = tt.animErr
			f.do(t, http.MethodPut, "/api/prompt", strings.NewReader(`{"prompt":"x"}`), true)

			resp := f.do(t, http.MethodPost, tt.path, nil, true)
			assert.Equal(t, tt.want, resp.StatusCode)
			st := decode[stateResponse](t, resp)
			require.NotNil(t, st.Failure)
			assert.NotEmpty(t, st.Failure.Message)
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(failure.KindBusy))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(failure.KindOverloaded))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(failure.KindCanceled))
	assert.Equal(t, http.StatusInternalServerError, statusFor(failure.KindUnknown))
}

func TestPromptRejectsBadBody(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.do(t, http.MethodPut, "/api/prompt", strings.NewReader(`{"text":1}`), true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProcessVideoStub(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodGet, "/api/process-video?file=clip.webm", nil, false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	vtt := "WEBVTT\n\n" + strings.Repeat("é", 300)
	resp = f.do(t, http.MethodGet, "/api/process-video?file=clip.webm&vtt="+url.QueryEscape(vtt), nil, false)
	require.Equal(t, http.StatusNotImplemented, resp.StatusCode)
	body := decode[processVideoResponse](t, resp)
	assert.Equal(t, "clip.webm", body.FileName)
	assert.Equal(t, 203, len([]rune(body.VTTPreview)))
	assert.True(t, strings.HasSuffix(body.VTTPreview, "..."))
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Recorder = stubRecorder{err: errors.New("ffmpeg not found")}
	})

	resp := f.do(t, http.MethodGet, "/healthz", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	h := decode[healthResponse](t, resp)
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, "test", h.Version)

	resp = f.do(t, http.MethodGet, "/metrics", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "zukku_http_requests_total")
}

func TestRequestIDEchoed(t *testing.T) {
	f := newFixture(t, nil)
	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+"/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get(requestIDHeader))

	resp = f.do(t, http.MethodGet, "/healthz", nil, false)
	assert.Len(t, resp.Header.Get(requestIDHeader), 36)
}

func TestActionRateLimit(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Config.RateLimit = 1 })
	f.do(t, http.MethodPut, "/api/prompt", strings.NewReader(`{"prompt":"x"}`), true)

	resp := f.do(t, http.MethodPost, "/api/image", nil, true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = f.do(t, http.MethodPost, "/api/image", nil, true)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))

	// Reads are not limited.
	resp = f.do(t, http.MethodGet, "/dashboard", nil, true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
