package query

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"time"
)

//go:embed terms.txt
var defaultTerms []byte

// templates widen a finite topic list into a practically unbounded set.
var templates = []string{
	"%s",
	"%s facts",
	"%s news",
	"what is %s",
	"%s history",
	"best %s",
	"%s for beginners",
	"%s near me",
	"%s pictures",
	"how does %s work",
}

// Corpus draws terms from a static topic list crossed with query templates.
// Safe for concurrent use.
type Corpus struct {
	topics []string
	batch  int

	mu  sync.Mutex
	rnd *rand.Rand
}

// CorpusOption configures a Corpus.
type CorpusOption func(*Corpus)

// WithBatchSize sets how many terms one Terms call yields. Default: 40.
func WithBatchSize(n int) CorpusOption { return func(c *Corpus) { c.batch = n } }

// WithCorpusSeed makes the corpus deterministic.
func WithCorpusSeed(seed uint64) CorpusOption {
	return func(c *Corpus) { c.rnd = rand.New(rand.NewPCG(seed, seed+1)) }
}

// NewCorpus creates a corpus over topics. An empty list uses the built-in one.
func NewCorpus(topics []string, opts ...CorpusOption) *Corpus {
	if len(topics) == 0 {
		topics = parseLines(defaultTerms)
	}
	c := &Corpus{
		topics: cleanTerms(topics),
		batch:  40,
		rnd:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0xc0ffee)),
	}
	for _, o := range opts {
		o(c)
	}
	if c.batch <= 0 {
		c.batch = 40
	}
	return c
}

// LoadCorpusFile reads one topic per line; blank lines and lines starting
// with # are skipped.
func LoadCorpusFile(path string, opts ...CorpusOption) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("query: read corpus: %w", err)
	}
	topics := parseLines(data)
	if len(topics) == 0 {
		return nil, fmt.Errorf("query: corpus %s has no topics", path)
	}
	return NewCorpus(topics, opts...), nil
}

func (c *Corpus) Name() string { return "corpus" }

// Terms returns a random batch of topic/template combinations.
func (c *Corpus) Terms(context.Context) ([]string, error) {
	if len(c.topics) == 0 {
		return nil, fmt.Errorf("query: empty corpus")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, c.batch)
	for range c.batch {
		topic := c.topics[c.rnd.IntN(len(c.topics))]
		tmpl := templates[c.rnd.IntN(len(templates))]
		out = append(out, fmt.Sprintf(tmpl, topic))
	}
	return out, nil
}

// Size is the number of distinct terms the corpus can produce.
func (c *Corpus) Size() int { return len(c.topics) * len(templates) }

func parseLines(data []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
