// Package session runs the pipeline over a source text up to a chosen phase and caches the
// result per text, so that an editor can re-analyze on every change.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/xplshn/cinterp/pkg/ast"
	"github.com/xplshn/cinterp/pkg/config"
	"github.com/xplshn/cinterp/pkg/interp"
	"github.com/xplshn/cinterp/pkg/lexer"
	"github.com/xplshn/cinterp/pkg/parser"
	"github.com/xplshn/cinterp/pkg/semantic"
	"github.com/xplshn/cinterp/pkg/token"
	"github.com/xplshn/cinterp/pkg/util"
)

var log = commonlog.GetLogger("cinterp.session")

// Phase is the last pipeline phase a run executes.
type Phase int

const (
	PhaseLex Phase = iota
	PhaseSyntax
	PhaseSemantic
	PhaseRun
)

var phaseNames = [...]string{"lex", "syntax", "semantic", "run"}

func (p Phase) String() string { return phaseNames[p] }

// PhaseNames lists the accepted --phase values.
func PhaseNames() []string { return phaseNames[:] }

// ParsePhase maps a phase name to its Phase.
func ParsePhase(name string) (Phase, error) {
	for i, n := range phaseNames {
		if n == name {
			return Phase(i), nil
		}
	}
	return 0, fmt.Errorf("unknown phase '%s' (want one of %s)", name, strings.Join(phaseNames[:], ", "))
}

// maxCached bounds the cache; it is cleared when full.
const maxCached = 64

// Result is what one run of the pipeline produced. Fields of phases that did not run are zero.
// Results are shared between callers through the cache and must not be modified.
type Result struct {
	RunID    string
	Phase    Phase
	Tokens   []token.Token
	Root     *ast.Node
	Warnings []util.Warning
	Output   string
	Err      error

	// Failed is the phase that produced Err.
	Failed  Phase
	Timings map[Phase]time.Duration
}

// OK reports whether every requested phase succeeded.
func (r *Result) OK() bool { return r.Err == nil }

type cacheKey struct {
	hash  uint64
	phase Phase
}

// Session owns a configuration and the results computed with it. It is safe for concurrent use.
type Session struct {
	cfg *config.Config

	mu    sync.Mutex
	cache map[cacheKey]*Result
	hits  int
}

func New(cfg *config.Config) *Session {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Session{cfg: cfg, cache: make(map[cacheKey]*Result)}
}

// Hits is the number of runs answered from the cache.
func (s *Session) Hits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits
}

// Run executes the phases of src up to and including last. Identical text and phase return the
// cached result.
func (s *Session) Run(src string, last Phase) *Result {
	key := cacheKey{hash: xxhash.Sum64String(src), phase: last}

	s.mu.Lock()
	if r, ok := s.cache[key]; ok {
		s.hits++
		s.mu.Unlock()
		log.Debugf("cache hit %x (%s), run %s", key.hash, last, r.RunID)
		return r
	}
	s.mu.Unlock()

	r := s.run(src, last)

	s.mu.Lock()
	if len(s.cache) >= maxCached {
		clear(s.cache)
	}
	s.cache[key] = r
	s.mu.Unlock()
	return r
}

// Forget drops every cached result.
func (s *Session) Forget() {
	s.mu.Lock()
	clear(s.cache)
	s.mu.Unlock()
}

func (s *Session) run(src string, last Phase) *Result {
	r := &Result{RunID: uuid.New().String(), Phase: last, Timings: make(map[Phase]time.Duration)}
	log.Debugf("run %s: %d bytes up to %s", r.RunID, len(src), last)

	step := func(p Phase, fn func() error) {
		if r.Err != nil || p > last {
			return
		}
		start := time.Now()
		err := fn()
		r.Timings[p] = time.Since(start)
		log.Debugf("run %s: %s took %s", r.RunID, p, r.Timings[p])
		if err != nil {
			r.Err, r.Failed = err, p
			log.Infof("run %s: %s failed: %v", r.RunID, p, err)
		}
	}

	step(PhaseLex, func() (err error) {
		r.Tokens, err = lexer.NewLexer(src, s.cfg).Tokenize()
		return err
	})
	step(PhaseSyntax, func() (err error) {
		r.Root, err = parser.NewParser(s.cfg).Parse(r.Tokens)
		return err
	})
	step(PhaseSemantic, func() error {
		a := semantic.NewAnalyzer(s.cfg)
		err := a.Analyze(r.Root)
		r.Warnings = a.Warnings()
		return err
	})
	step(PhaseRun, func() error {
		var out strings.Builder
		err := interp.New(s.cfg, &out).Run(r.Root)
		r.Output = out.String()
		return err
	})
	return r
}
