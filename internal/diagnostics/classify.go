package diagnostics

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/sendrec/devicelab/internal/device"
	"github.com/sendrec/devicelab/internal/httputil"
	"github.com/sendrec/devicelab/internal/validate"
)

const acceptClientHints = "Sec-CH-Viewport-Width, Sec-CH-Viewport-Height, Viewport-Width"

type classifyResponse struct {
	device.Classification
	Client    device.Client `json:"client"`
	Estimated bool          `json:"estimated,omitempty"`
}

func newClassifyResponse(s device.Snapshot) classifyResponse {
	return classifyResponse{
		Classification: device.Classify(s),
		Client:         device.DescribeClient(s.UserAgent),
	}
}

// ClassifyProbe classifies the signals a page posts. A probe without a user
// agent falls back to the request's User-Agent header.
func (h *Handler) ClassifyProbe(w http.ResponseWriter, r *http.Request) {
	var probe device.Probe
	if err := httputil.DecodeJSON(w, r, &probe); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if probe.UserAgent == "" {
		probe.UserAgent = r.UserAgent()
	}
	if msg := validate.Probe(probe); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, newClassifyResponse(probe.Snapshot()))
}

// ClassifyHeaders classifies a request from its headers alone. Viewport width
// comes from client hints; without one the classification is an estimate at
// desktop width. Hover and touch cannot be observed from headers and stay
// false.
func (h *Handler) ClassifyHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Accept-CH", acceptClientHints)
	w.Header().Add("Vary", acceptClientHints)

	snapshot, estimated := snapshotFromHeaders(r)
	if msg := validate.UserAgent(snapshot.UserAgent); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	resp := newClassifyResponse(snapshot)
	resp.Estimated = estimated
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func snapshotFromHeaders(r *http.Request) (device.Snapshot, bool) {
	s := device.Snapshot{UserAgent: r.UserAgent()}

	width, ok := headerDimension(r, "Sec-CH-Viewport-Width", "Viewport-Width")
	if !ok {
		width = device.DesktopBreakpoint
	}
	s.Width = width
	if height, hasHeight := headerDimension(r, "Sec-CH-Viewport-Height"); hasHeight {
		s.Height = height
	}
	return s, !ok
}

func headerDimension(r *http.Request, names ...string) (int, bool) {
	for _, name := range names {
		raw := strings.TrimSpace(r.Header.Get(name))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || validate.Width(v) != "" {
			continue
		}
		return v, true
	}
	return 0, false
}
