package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/banshee-data/risk.report/internal/httputil"
	"github.com/banshee-data/risk.report/internal/version"
)

// runDefaults is the effective run configuration served on /api/config.
type runDefaults struct {
	FrameCap           int     `json:"frame_cap"`
	Stride             int     `json:"stride"`
	FrameWidth         float64 `json:"frame_width"`
	FrameHeight        float64 `json:"frame_height"`
	BytesPerFrame      int64   `json:"bytes_per_frame"`
	MaxEstimatedFrames int     `json:"max_estimated_frames"`
	DetectionSource    string  `json:"detection_source"`
	KafkaEnabled       bool    `json:"kafka_enabled"`
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	source := "simulator"
	if s.cfg.GetReplayPath() != "" {
		source = "replay"
	}
	httputil.WriteJSONOK(w, runDefaults{
		FrameCap:           s.cfg.GetFrameCap(),
		Stride:             s.cfg.GetStride(),
		FrameWidth:         s.cfg.GetFrameWidth(),
		FrameHeight:        s.cfg.GetFrameHeight(),
		BytesPerFrame:      s.cfg.GetBytesPerFrame(),
		MaxEstimatedFrames: s.cfg.GetMaxEstimatedFrames(),
		DetectionSource:    source,
		KafkaEnabled:       s.cfg.GetKafkaEnabled(),
	})
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, version.Get())
}

func (s *Server) handlePlaces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.searcher == nil {
		httputil.NotFound(w, "place search is not configured")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		httputil.BadRequest(w, "Missing 'q' parameter")
		return
	}
	places, err := s.searcher.Search(r.Context(), q)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadGateway, fmt.Sprintf("Place search failed: %v", err))
		return
	}
	httputil.WriteJSONOK(w, places)
}
