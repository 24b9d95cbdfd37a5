package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/banshee-data/risk.report/internal/analysis"
)

// JSONLines writes each analysis as one JSON line. It is the publisher used
// when Kafka is disabled and a stream of records is still wanted.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLines creates a JSONLines publisher writing to w.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

// Publish implements analysis.Publisher.
func (j *JSONLines) Publish(_ context.Context, a *analysis.RiskAnalysis) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(a); err != nil {
		return fmt.Errorf("write analysis %s: %w", a.ID, err)
	}
	return nil
}
