package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kimjune01/slunk/internal/slunkerr"
)

// HTTPEncoder calls an OpenAI-style embeddings endpoint. It is the
// concrete Encoder this repo ships, grounded directly on the teacher's
// internal/embedding.EmbedText HTTP client, generalized into the Encoder
// interface Gateway expects.
type HTTPEncoder struct {
	BaseURL string
	Path    string
	Model   string
	APIKey  string
	Client  *http.Client
	Timeout time.Duration
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Encode implements Encoder.
func (e *HTTPEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	timeout := e.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Model: e.Model, Input: texts})
	if err != nil {
		return nil, slunkerr.Wrap(slunkerr.KindEmbedFailure, err, "marshal embed request")
	}

	req, err := http.NewRequestWithContext(cctx, http.MethodPost, e.BaseURL+e.Path, bytes.NewReader(body))
	if err != nil {
		return nil, slunkerr.Wrap(slunkerr.KindEmbedFailure, err, "build embed request")
	}
	req.Header.Set("Content-Type", "application/json")
	if e.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, slunkerr.Wrap(slunkerr.KindEmbedFailure, err, "call embed endpoint")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return nil, slunkerr.New(slunkerr.KindEmbedFailure, fmt.Sprintf("embed endpoint returned %s: %s", resp.Status, string(b)))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, slunkerr.Wrap(slunkerr.KindEmbedFailure, err, "decode embed response")
	}
	if len(parsed.Data) != len(texts) {
		return nil, slunkerr.New(slunkerr.KindEmbedFailure,
			fmt.Sprintf("embed endpoint returned %d vectors for %d inputs", len(parsed.Data), len(texts)))
	}

	out := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		out[i] = d.Embedding
	}
	return out, nil
}
