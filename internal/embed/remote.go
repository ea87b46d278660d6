package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	gerrors "github.com/gramps-project/grampsindex/internal/errors"
	"github.com/gramps-project/grampsindex/pkg/version"
)

// RemoteConfig configures RemoteEmbedder.
type RemoteConfig struct {
	// BaseURL of an OpenAI compatible API, e.g. https://api.openai.com/v1.
	BaseURL string
	APIKey  string
	Model   string

	// Dimensions is detected with a probe request when zero.
	Dimensions int
	BatchSize  int
	Timeout    time.Duration

	// Client overrides the HTTP client (tests).
	Client *http.Client
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingItem struct {
	Index     *int      `json:"index"`
	Embedding []float64 `json:"embedding"`
}

type embeddingResponse struct {
	Data  []embeddingItem `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// RemoteEmbedder calls POST {BaseURL}/embeddings of an OpenAI compatible
// service. Responses are reordered by their index field.
type RemoteEmbedder struct {
	mu        sync.RWMutex
	client    *http.Client
	transport *http.Transport
	config    RemoteConfig
	dims      int
	closed    bool
}

// NewRemoteEmbedder creates a remote embedder. When cfg.Dimensions is
// zero a one-text probe request detects it.
func NewRemoteEmbedder(ctx context.Context, cfg RemoteConfig) (*RemoteEmbedder, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, gerrors.ConfigError("embedding base URL is empty", nil)
	}
	if cfg.Model == "" {
		return nil, ErrSemanticDisabled
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	e := &RemoteEmbedder{config: cfg, dims: cfg.Dimensions}
	if cfg.Client != nil {
		e.client = cfg.Client
	} else {
		e.transport = &http.Transport{
			MaxIdleConns:        4,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     10 * time.Second,
		}
		// Per-request deadlines come from the context, not Client.Timeout.
		e.client = &http.Client{Transport: e.transport}
	}

	if e.dims == 0 {
		vecs, err := e.request(ctx, []string{"dimension probe"})
		if err != nil {
			e.closeIdle()
			return nil, err
		}
		e.dims = len(vecs[0])
	}
	return e, nil
}

// Embed embeds texts in batches of the configured size.
func (e *RemoteEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, gerrors.New(gerrors.ErrCodeEmbeddingFailed, "remote embedder", errClosed)
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+e.config.BatchSize, len(texts))
		vecs, err := e.request(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		for _, v := range vecs {
			if len(v) != e.dims {
				return nil, gerrors.New(gerrors.ErrCodeDimensionMismatch,
					fmt.Sprintf("model %s returned %d dimensions, expected %d", e.config.Model, len(v), e.dims), nil)
			}
		}
		out = append(out, vecs...)
		slog.Debug("embedding_batch",
			slog.String("model", e.config.Model),
			slog.Int("done", end),
			slog.Int("total", len(texts)))
	}
	return out, nil
}

func (e *RemoteEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: e.config.Model, Input: texts})
	if err != nil {
		return nil, gerrors.New(gerrors.ErrCodeEmbeddingFailed, "encode embedding request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, gerrors.ConfigError("invalid embedding base URL", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, gerrors.New(gerrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("embedding request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), nil).
			WithDetail("model", e.config.Model)
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, gerrors.New(gerrors.ErrCodeEmbeddingFailed, "decode embedding response", err)
	}
	if parsed.Error != nil {
		return nil, gerrors.New(gerrors.ErrCodeEmbeddingFailed, parsed.Error.Message, nil)
	}
	return orderEmbeddings(parsed.Data, len(texts))
}

// orderEmbeddings sorts items by index and checks that every input has
// exactly one non-zero vector.
func orderEmbeddings(items []embeddingItem, n int) ([][]float32, error) {
	fail := func(format string, args ...any) error {
		return gerrors.New(gerrors.ErrCodeEmbeddingFailed, fmt.Sprintf(format, args...), nil)
	}
	if len(items) != n {
		return nil, fail("embedding response has %d items for %d inputs", len(items), n)
	}
	for _, it := range items {
		if it.Index == nil {
			return nil, fail("embedding response item without index")
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return *items[i].Index < *items[j].Index })

	out := make([][]float32, n)
	for i, it := range items {
		if *it.Index != i {
			if *it.Index < 0 || *it.Index >= n {
				return nil, fail("embedding index %d out of range", *it.Index)
			}
			return nil, fail("duplicate or missing embedding index %d", i)
		}
		v := make([]float32, len(it.Embedding))
		for j, x := range it.Embedding {
			v[j] = float32(x)
		}
		if len(v) == 0 || isZero(v) {
			return nil, fail("empty embedding for input %d", i)
		}
		out[i] = v
	}
	return out, nil
}

func transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return gerrors.New(gerrors.ErrCodeNetworkTimeout, "embedding request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return gerrors.NetworkError("embedding service unreachable", err)
}

// Dimensions returns the vector size.
func (e *RemoteEmbedder) Dimensions() int { return e.dims }

// ModelName returns the configured model.
func (e *RemoteEmbedder) ModelName() string { return e.config.Model }

// Close releases idle connections. It is safe to call twice.
func (e *RemoteEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.closeIdle()
	return nil
}

func (e *RemoteEmbedder) closeIdle() {
	if e.transport != nil {
		e.transport.CloseIdleConnections()
	}
}
