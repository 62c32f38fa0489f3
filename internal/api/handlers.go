package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"github.com/aggressionjsk/ai-saas-app/internal/asset"
	"github.com/aggressionjsk/ai-saas-app/internal/engine"
	"github.com/aggressionjsk/ai-saas-app/internal/failure"
	xglog "github.com/aggressionjsk/ai-saas-app/internal/log"
	"github.com/aggressionjsk/ai-saas-app/internal/system"
)

const (
	maxPromptBody  = 16 << 10
	vttPreviewLen  = 200
	qrSize         = 256
	assetsBasePath = "/api/assets/"
)

type landingResponse struct {
	Title  string `json:"title"`
	SignIn string `json:"sign_in"`
	SignUp string `json:"sign_up"`
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.verifier.Verify(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, landingResponse{
		Title:  s.title,
		SignIn: "/sign-in",
		SignUp: "/sign-up",
	})
}

type links struct {
	Image   string `json:"image,omitempty"`
	Video   string `json:"video,omitempty"`
	VideoQR string `json:"video_qr,omitempty"`
}

type stateResponse struct {
	engine.View
	Links links `json:"links"`
}

func (s *Server) respondState(w http.ResponseWriter, code int, st engine.State) {
	resp := stateResponse{View: st.View()}
	if st.Image != nil {
		resp.Links.Image = assetsBasePath + "image"
	}
	if st.Video != nil {
		resp.Links.Video = assetsBasePath + "video"
		resp.Links.VideoQR = assetsBasePath + "video/qr"
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.respondState(w, http.StatusOK, s.studio.State())
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPromptBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.respondState(w, http.StatusOK, s.studio.SetPrompt(req.Prompt))
}

func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	st, err := s.studio.GenerateImage(r.Context())
	s.respondAction(w, r, st, err)
}

func (s *Server) handleGenerateVideo(w http.ResponseWriter, r *http.Request) {
	st, err := s.studio.GenerateVideo(r.Context())
	s.respondAction(w, r, st, err)
}

func (s *Server) respondAction(w http.ResponseWriter, r *http.Request, st engine.State, err error) {
	if err == nil {
		s.respondState(w, http.StatusOK, st)
		return
	}
	kind := failure.KindOf(err)
	logger := xglog.WithContext(r.Context(), s.logger)
	if sess, ok := SessionFromContext(r.Context()); ok {
		logger = logger.With().Str(xglog.FieldSubject, sess.Subject).Logger()
	}
	logger.Debug().
		Str(xglog.FieldKind, string(kind)).
		Str(xglog.FieldPath, r.URL.Path).
		Msg("action rejected")
	if kind == failure.KindBusy && (st.Failure == nil || st.Failure.Kind != kind) {
		st.Failure = engine.NewFailure(actionFor(r.URL.Path), err)
	}
	s.respondState(w, statusFor(kind), st)
}

func actionFor(path string) string {
	if strings.HasSuffix(path, "/video") {
		return engine.ActionVideo
	}
	return engine.ActionImage
}

func (s *Server) latest(kind asset.Kind) *asset.Asset {
	st := s.studio.State()
	if kind == asset.KindVideo {
		return st.Video
	}
	return st.Image
}

func (s *Server) handleDownload(kind asset.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a := s.latest(kind)
		if a == nil {
			writeNotFound(w)
			return
		}
		serveAsset(w, r, a)
	}
}

func (s *Server) handleAssetByID(w http.ResponseWriter, r *http.Request) {
	a, ok := s.studio.Store().Get(chi.URLParam(r, "id"))
	if !ok {
		writeNotFound(w)
		return
	}
	serveAsset(w, r, a)
}

func serveAsset(w http.ResponseWriter, r *http.Request, a *asset.Asset) {
	setDownloadHeaders(w, a.Filename(), a.ContentType())
	http.ServeContent(w, r, a.Filename(), a.CreatedAt(), a.Open())
}

func (s *Server) handleVideoQR(w http.ResponseWriter, r *http.Request) {
	a := s.latest(asset.KindVideo)
	if a == nil {
		writeNotFound(w)
		return
	}
	png, err := qrcode.Encode(s.baseURL(r)+s.share.Link(a.ID()), qrcode.Medium, qrSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "qr encode failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// baseURL prefers the configured public URL and falls back to the request.
func (s *Server) baseURL(r *http.Request) string {
	if s.cfg.PublicURL != "" {
		return strings.TrimRight(s.cfg.PublicURL, "/")
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

type processVideoResponse struct {
	FileName   string `json:"file_name"`
	VTTPreview string `json:"vtt_preview"`
	Message    string `json:"message"`
}

// handleProcessVideo accepts a caption burn request but does not transcode.
func (s *Server) handleProcessVideo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	file, vtt := q.Get("file"), q.Get("vtt")
	if file == "" || vtt == "" {
		writeError(w, http.StatusBadRequest, "Missing file or VTT data")
		return
	}
	writeJSON(w, http.StatusNotImplemented, processVideoResponse{
		FileName:   file,
		VTTPreview: preview(vtt, vttPreviewLen) + "...",
		Message:    "Caption burning is not implemented.",
	})
}

// preview cuts s to at most n runes.
func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

type healthResponse struct {
	Status   string        `json:"status"`
	Version  string        `json:"version,omitempty"`
	Uptime   string        `json:"uptime"`
	Recorder string        `json:"recorder"`
	System   *system.Stats `json:"system,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Version:  s.version,
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Recorder: "available",
	}
	if s.recorder != nil {
		if err := s.recorder.Available(); err != nil {
			resp.Status = "degraded"
			resp.Recorder = err.Error()
		}
	}
	if st, err := system.Snapshot(r.Context()); err == nil {
		resp.System = &st
	}
	writeJSON(w, http.StatusOK, resp)
}
