package pose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"time"

	"github.com/banshee-data/strike.report/internal/httputil"
)

// DefaultInferTimeout bounds a single inference round-trip. The model's
// latency is unconstrained by contract, but a hung request must not wedge
// the inference loop forever.
const DefaultInferTimeout = 5 * time.Second

// HTTPSource sends JPEG-encoded frames to an external pose-estimation
// service and decodes the JSON observation list it returns. This is the
// production path: the model runs out of process and is a black box here.
type HTTPSource struct {
	endpoint string
	client   httputil.HTTPClient
	quality  int
}

// inferResponse is the wire shape returned by the pose service.
type inferResponse struct {
	Persons []PersonObservation `json:"persons"`
}

// NewHTTPSource creates a source that POSTs frames to endpoint. A nil client
// uses a default with DefaultInferTimeout.
func NewHTTPSource(endpoint string, client httputil.HTTPClient) *HTTPSource {
	if client == nil {
		client = httputil.NewStandardClient(&http.Client{Timeout: DefaultInferTimeout})
	}
	return &HTTPSource{
		endpoint: endpoint,
		client:   client,
		quality:  80,
	}
}

// Infer encodes img as JPEG, posts it to the pose service, and returns the
// decoded observations. An empty list is a normal outcome, not an error.
func (s *HTTPSource) Infer(ctx context.Context, img image.Image) ([]PersonObservation, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pose service returned %d: %s", resp.StatusCode, body)
	}

	var out inferResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode inference response: %w", err)
	}
	return out.Persons, nil
}
