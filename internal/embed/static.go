package embed

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	gerrors "github.com/gramps-project/grampsindex/internal/errors"
	"github.com/gramps-project/grampsindex/internal/text"
)

// StaticEmbedder hashes words and character trigrams into a fixed size
// vector. It needs no model or network and is deterministic, which makes
// it the embedder for tests and offline installs.
type StaticEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

// Boilerplate of the generated object descriptions carries no meaning.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "as": true, "at": true, "the": true,
	"of": true, "in": true, "is": true, "was": true, "were": true, "has": true,
	"had": true, "her": true, "his": true, "their": true, "with": true,
	"following": true, "database": true,
}

const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

// Embed returns one unit vector per text.
func (e *StaticEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, gerrors.New(gerrors.ErrCodeEmbeddingFailed, "static embedder", errClosed)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		out[i] = normalizeVector(staticVector(t))
	}
	return out, nil
}

func staticVector(s string) []float32 {
	v := make([]float32, StaticDimensions)
	words := tokenize(s)
	for _, w := range words {
		v[hashToIndex(w, StaticDimensions)] += tokenWeight
	}
	for _, w := range words {
		for _, g := range ngrams(w, ngramSize) {
			v[hashToIndex("#"+g, StaticDimensions)] += ngramWeight
		}
	}
	if isZero(v) {
		// Texts without words still need a valid direction.
		v[0] = 1
	}
	return v
}

// tokenize lowercases, folds diacritics and splits on anything that is
// not a letter or digit. Stop words are dropped.
func tokenize(s string) []string {
	folded := strings.ToLower(text.FoldASCII(s))
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if !stopWords[f] {
			out = append(out, f)
		}
	}
	return out
}

func ngrams(word string, n int) []string {
	r := []rune(word)
	if len(r) < n {
		return nil
	}
	out := make([]string, 0, len(r)-n+1)
	for i := 0; i+n <= len(r); i++ {
		out = append(out, string(r[i:i+n]))
	}
	return out
}

func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

func (e *StaticEmbedder) Dimensions() int   { return StaticDimensions }
func (e *StaticEmbedder) ModelName() string { return StaticModelName }

// Close is idempotent.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
