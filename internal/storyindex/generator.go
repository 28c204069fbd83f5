package storyindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/dominikbraun/graph"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/mvp-joe/storyindex/internal/indexers"
	"github.com/mvp-joe/storyindex/internal/specifier"
)

// Autodocs controls generated docs pages for CSF files.
type Autodocs string

const (
	AutodocsOff Autodocs = "false"
	AutodocsTag Autodocs = "tag"
	AutodocsOn  Autodocs = "true"
)

// DocsOptions configure docs entries.
type DocsOptions struct {
	Enabled     bool
	Autodocs    Autodocs
	DefaultName string
}

// Options configure a Generator.
type Options struct {
	WorkingDir string
	Indexers   *indexers.Registry
	Docs       DocsOptions
	// StoryStoreV7 must be set for standalone .mdx docs files.
	StoryStoreV7 bool
	// StorySort is called on every index computation; nil or a nil
	// comparator selects DefaultComparator.
	StorySort        func() (Comparator, error)
	Logger           *slog.Logger
	Concurrency      int
	RespectGitignore bool
	// Progress, when set, observes Initialize.
	Progress Progress
}

// Progress observes the initial extraction. OnFileExtracted is called
// concurrently from extraction workers.
type Progress interface {
	OnDiscoveryComplete(files int)
	OnFileExtracted(importPath string)
}

type slotState int

const (
	stateUninitialized slotState = iota
	stateExtracting
	stateCached
	stateErrored
)

func (s slotState) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateExtracting:
		return "extracting"
	case stateCached:
		return "cached"
	case stateErrored:
		return "errored"
	}
	return fmt.Sprintf("slotState(%d)", int(s))
}

// cacheSlot holds the extraction state of one file.
type cacheSlot struct {
	state   slotState
	version uint64
	docs    bool
	stories *storiesResult
	doc     *docsResult
	err     error
}

// Generator maintains the story index.
type Generator struct {
	specs []specifier.Specifier
	opts  Options
	log   *slog.Logger

	// readFile reads docs files.
	readFile func(string) ([]byte, error)

	mu          sync.Mutex
	initialized bool
	caches      []map[string]*cacheSlot
	deps        graph.Graph[string, string]
	// settled is broadcast whenever a claimed slot is released or reset.
	settled *sync.Cond
	// storiesEpoch changes when a CSF slot changes.
	storiesEpoch uint64
	lastIndex    *StoryIndex
	lastErr      error

	flight singleflight.Group

	hooksMu sync.Mutex
	hooks   []func()
}

// NewGenerator creates a generator over the given specifiers.
func NewGenerator(specs []specifier.Specifier, opts Options) *Generator {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Indexers == nil {
		opts.Indexers = indexers.New()
	}
	if opts.Docs.DefaultName == "" {
		opts.Docs.DefaultName = "Docs"
	}
	if opts.Docs.Autodocs == "" {
		opts.Docs.Autodocs = AutodocsTag
	}
	if opts.WorkingDir == "" {
		opts.WorkingDir, _ = os.Getwd()
	}
	caches := make([]map[string]*cacheSlot, len(specs))
	for i := range caches {
		caches[i] = map[string]*cacheSlot{}
	}
	g := &Generator{
		specs:    specs,
		opts:     opts,
		log:      opts.Logger,
		readFile: os.ReadFile,
		caches:   caches,
		deps:     graph.New(graph.StringHash, graph.Directed()),
	}
	g.settled = sync.NewCond(&g.mu)
	return g
}

// Specifiers returns the configured specifiers.
func (g *Generator) Specifiers() []specifier.Specifier {
	return append([]specifier.Specifier(nil), g.specs...)
}

// OnInvalidate registers fn to run after every cache invalidation.
func (g *Generator) OnInvalidate(fn func()) {
	g.hooksMu.Lock()
	defer g.hooksMu.Unlock()
	g.hooks = append(g.hooks, fn)
}

func (g *Generator) fireHooks() {
	g.hooksMu.Lock()
	hooks := append([]func(){}, g.hooks...)
	g.hooksMu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (g *Generator) concurrency() int {
	if g.opts.Concurrency > 0 {
		return g.opts.Concurrency
	}
	return runtime.GOMAXPROCS(0)
}

// Initialize discovers the files of every specifier and extracts them. It
// returns the link errors of docs files; other file errors are kept per
// file.
func (g *Generator) Initialize(ctx context.Context) error {
	discovered := make([][]string, len(g.specs))
	for i, spec := range g.specs {
		files, err := specifier.Discover(spec, g.opts.WorkingDir, specifier.DiscoverOptions{
			RespectGitignore: g.opts.RespectGitignore,
		})
		if err != nil {
			return fmt.Errorf("failed to discover %s: %w", spec, err)
		}
		if len(files) == 0 {
			g.log.Warn("no story files found for the specified pattern", "pattern", spec.String())
		}
		discovered[i] = files
	}
	if g.opts.Progress != nil {
		total := 0
		for _, files := range discovered {
			total += len(files)
		}
		g.opts.Progress.OnDiscoveryComplete(total)
	}

	g.mu.Lock()
	for i, files := range discovered {
		for _, f := range files {
			if _, ok := g.caches[i][f]; !ok {
				g.caches[i][f] = g.newSlot(f)
			}
		}
	}
	g.initialized = true
	g.invalidateIndexLocked()
	g.mu.Unlock()

	if err := g.ensureExtracted(ctx); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.linkErrorsLocked()
}

// Rescan re-discovers every specifier, adding new files and removing
// vanished ones.
func (g *Generator) Rescan(ctx context.Context) error {
	changed := false
	for i, spec := range g.specs {
		files, err := specifier.Discover(spec, g.opts.WorkingDir, specifier.DiscoverOptions{
			RespectGitignore: g.opts.RespectGitignore,
		})
		if err != nil {
			return fmt.Errorf("failed to discover %s: %w", spec, err)
		}
		present := make(map[string]bool, len(files))
		g.mu.Lock()
		for _, f := range files {
			present[f] = true
			if _, ok := g.caches[i][f]; !ok {
				g.addLocked(i, f)
				changed = true
			}
		}
		for f := range g.caches[i] {
			if !present[f] {
				g.invalidateLocked(i, f, true)
				changed = true
			}
		}
		g.mu.Unlock()
	}
	if changed {
		g.fireHooks()
	}
	return ctx.Err()
}

func (g *Generator) newSlot(absPath string) *cacheSlot {
	return &cacheSlot{docs: isDocsFile(absPath)}
}

// isDocsFile reports whether path is a standalone MDX docs file.
func isDocsFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".mdx") &&
		!strings.HasSuffix(lower, ".stories.mdx") &&
		!strings.HasSuffix(lower, ".story.mdx")
}

// Invalidate drops the cached result of importPath in spec. Docs files
// depending on it are invalidated too. A removed file leaves the cache.
func (g *Generator) Invalidate(spec specifier.Specifier, importPath string, removed bool) {
	i := g.specIndex(spec)
	if i < 0 {
		return
	}
	absPath := g.absolute(importPath)
	g.mu.Lock()
	changed := g.invalidateLocked(i, absPath, removed)
	g.mu.Unlock()
	if changed {
		g.fireHooks()
	}
}

// InvalidateFile routes a file system change to every specifier matching
// the file. Unknown files that match a specifier are added. It reports
// whether the index was affected.
func (g *Generator) InvalidateFile(absPath string, removed bool) bool {
	importPath := specifier.ImportPath(absPath, g.opts.WorkingDir)
	changed := false
	g.mu.Lock()
	for i, spec := range g.specs {
		if _, ok := g.caches[i][absPath]; ok {
			changed = g.invalidateLocked(i, absPath, removed) || changed
			continue
		}
		if !removed && spec.Match(importPath) {
			g.addLocked(i, absPath)
			changed = true
		}
	}
	g.mu.Unlock()
	if changed {
		g.fireHooks()
	}
	return changed
}

func (g *Generator) specIndex(spec specifier.Specifier) int {
	for i, s := range g.specs {
		if s.Directory == spec.Directory && s.Files == spec.Files && s.TitlePrefix == spec.TitlePrefix {
			return i
		}
	}
	return -1
}

func (g *Generator) absolute(importPath string) string {
	if strings.HasPrefix(importPath, "./") || strings.HasPrefix(importPath, "../") {
		return joinPath(g.opts.WorkingDir, importPath)
	}
	return importPath
}

// addLocked tracks a new file. Docs files whose imports point at it are
// re-extracted so that a previously missing `of` target can link.
func (g *Generator) addLocked(i int, absPath string) {
	slot := g.newSlot(absPath)
	g.caches[i][absPath] = slot
	if !slot.docs {
		g.storiesEpoch++
		for _, cache := range g.caches {
			for p, s := range cache {
				if s.docs && s.doc != nil && s.doc.imports(absPath) {
					g.resetLocked(p, s)
				}
				if s.docs && s.state == stateErrored && isLinkError(s.err) {
					g.resetLocked(p, s)
				}
			}
		}
	}
	g.invalidateIndexLocked()
}

func (g *Generator) invalidateLocked(i int, absPath string, removed bool) bool {
	slot, ok := g.caches[i][absPath]
	if !ok {
		return false
	}

	for _, dep := range g.dependents(absPath) {
		for _, cache := range g.caches {
			if s, ok := cache[dep]; ok {
				g.resetLocked(dep, s)
			}
		}
	}

	if removed {
		g.dropEdges(absPath)
		_ = g.deps.RemoveVertex(absPath)
		delete(g.caches[i], absPath)
		if !slot.docs {
			g.storiesEpoch++
		}
	} else {
		g.resetLocked(absPath, slot)
	}
	g.invalidateIndexLocked()
	return true
}

// resetLocked returns a slot to uninitialized and bumps its version so an
// extraction already in flight is discarded when it lands.
func (g *Generator) resetLocked(absPath string, slot *cacheSlot) {
	slot.state = stateUninitialized
	slot.version++
	slot.stories, slot.doc, slot.err = nil, nil, nil
	if slot.docs {
		g.dropEdges(absPath)
	} else {
		g.storiesEpoch++
	}
	g.invalidateIndexLocked()
}

func (g *Generator) invalidateIndexLocked() {
	g.lastIndex = nil
	g.lastErr = nil
	g.settled.Broadcast()
}

// dependents returns every file that depends on absPath, transitively.
func (g *Generator) dependents(absPath string) []string {
	preds, err := g.deps.PredecessorMap()
	if err != nil {
		return nil
	}
	seen := map[string]bool{absPath: true}
	queue := []string{absPath}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for p := range preds[cur] {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
				queue = append(queue, p)
			}
		}
	}
	sort.Strings(out)
	return out
}

// dropEdges removes the outgoing dependency edges of a docs file.
func (g *Generator) dropEdges(absPath string) {
	adj, err := g.deps.AdjacencyMap()
	if err != nil {
		return
	}
	for target := range adj[absPath] {
		_ = g.deps.RemoveEdge(absPath, target)
	}
	preds, err := g.deps.PredecessorMap()
	if err != nil {
		return
	}
	for source := range preds[absPath] {
		_ = g.deps.RemoveEdge(source, absPath)
	}
}

func (g *Generator) addEdges(docsPath string, targets []string) {
	_ = g.deps.AddVertex(docsPath)
	for _, t := range targets {
		_ = g.deps.AddVertex(t)
		_ = g.deps.AddEdge(docsPath, t)
	}
}

// FileErrors returns every file-local error, ordered by path.
func (g *Generator) FileErrors() []*IndexingError {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []*IndexingError
	seen := map[string]bool{}
	for _, cache := range g.caches {
		for p, s := range cache {
			if s.state != stateErrored || seen[p] {
				continue
			}
			seen[p] = true
			var ie *IndexingError
			if errors.As(s.err, &ie) {
				out = append(out, ie)
			} else {
				out = append(out, &IndexingError{Err: s.err, ImportPaths: []string{specifier.ImportPath(p, g.opts.WorkingDir)}})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ImportPaths[0] < out[j].ImportPaths[0] })
	return out
}

// FileError returns the stored error of one file, or nil.
func (g *Generator) FileError(absPath string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, cache := range g.caches {
		if s, ok := cache[absPath]; ok && s.state == stateErrored {
			return s.err
		}
	}
	return nil
}

// GetIndex returns the current index, computing it when the cache changed.
// Concurrent callers share one computation, which outlives the cancellation
// of any single caller.
func (g *Generator) GetIndex(ctx context.Context) (*StoryIndex, error) {
	g.mu.Lock()
	if !g.initialized {
		g.mu.Unlock()
		return nil, ErrNotInitialized
	}
	if g.lastIndex != nil {
		ix := g.lastIndex
		g.mu.Unlock()
		return ix, nil
	}
	if g.lastErr != nil {
		err := g.lastErr
		g.mu.Unlock()
		return nil, err
	}
	g.mu.Unlock()

	ch := g.flight.DoChan("index", func() (any, error) {
		return g.compute(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*StoryIndex), nil
	}
}

// compute extracts and builds until no slot is pending at build time, so
// an invalidation landing between extraction and build is never memoized
// as a complete index.
func (g *Generator) compute(ctx context.Context) (*StoryIndex, error) {
	for {
		if err := g.ensureExtracted(ctx); err != nil {
			return nil, err
		}
		cmp, err := g.comparator()
		if err != nil {
			return nil, err
		}

		g.mu.Lock()
		if g.pendingLocked() {
			g.mu.Unlock()
			continue
		}
		ix, err := g.buildLocked(cmp)
		if err != nil {
			g.log.Warn("failed to build story index", "error", err)
		}
		g.lastIndex, g.lastErr = ix, err
		g.mu.Unlock()
		return ix, err
	}
}

func (g *Generator) comparator() (Comparator, error) {
	cmp := DefaultComparator(g.opts.Docs.DefaultName)
	if g.opts.StorySort == nil {
		return cmp, nil
	}
	custom, err := g.opts.StorySort()
	if err != nil {
		return nil, fmt.Errorf("failed to load storySort: %w", err)
	}
	if custom != nil {
		cmp = custom
	}
	return cmp, nil
}

// buildLocked assembles, de-duplicates and sorts the entries.
func (g *Generator) buildLocked(cmp Comparator) (*StoryIndex, error) {
	if err := g.softErrorLocked(); err != nil {
		return nil, err
	}
	if err := g.linkErrorsLocked(); err != nil {
		return nil, err
	}

	var (
		entries []Entry
		byID    = map[string]int{}
		dupErrs []error
	)
	add := func(e Entry) {
		i, ok := byID[e.ID]
		if !ok {
			byID[e.ID] = len(entries)
			entries = append(entries, e)
			return
		}
		better, err := g.ChooseDuplicate(entries[i], e)
		if err != nil {
			dupErrs = append(dupErrs, err)
			return
		}
		entries[i] = better
	}

	for i := range g.specs {
		cache := g.caches[i]
		paths := make([]string, 0, len(cache))
		for p := range cache {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			s := cache[p]
			if s.state != stateCached {
				continue
			}
			switch {
			case s.stories != nil:
				for _, e := range s.stories.entries {
					add(e)
				}
			case s.doc != nil && s.doc.entry != nil:
				add(*s.doc.entry)
			}
		}
	}
	if len(dupErrs) > 0 {
		return nil, errors.Join(dupErrs...)
	}

	sortEntries(entries, cmp)
	return NewStoryIndex(entries), nil
}

func (g *Generator) softErrorLocked() error {
	for _, cache := range g.caches {
		for _, s := range cache {
			var soft *SoftError
			if s.state == stateErrored && errors.As(s.err, &soft) {
				return soft
			}
		}
	}
	return nil
}

func (g *Generator) linkErrorsLocked() error {
	var errs []error
	seen := map[string]bool{}
	for _, cache := range g.caches {
		paths := make([]string, 0, len(cache))
		for p := range cache {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			s := cache[p]
			if s.state == stateErrored && isLinkError(s.err) && !seen[p] {
				seen[p] = true
				errs = append(errs, s.err)
			}
		}
	}
	return errors.Join(errs...)
}

func isLinkError(err error) bool {
	var le *LinkError
	return errors.As(err, &le)
}

// job is one claimed extraction.
type job struct {
	spec    int
	path    string
	version uint64
}

// ensureExtracted extracts every uninitialized slot: CSF files first, then
// docs files, which link against the CSF results. It repeats until no
// slot is pending, waiting while only other callers hold claimed slots.
func (g *Generator) ensureExtracted(ctx context.Context) error {
	for {
		if err := g.runPass(ctx, false); err != nil {
			return err
		}
		if err := g.runPass(ctx, true); err != nil {
			return err
		}
		g.mu.Lock()
		for g.pendingLocked() && !g.claimableLocked() {
			g.settled.Wait()
		}
		pending := g.pendingLocked()
		g.mu.Unlock()
		if !pending {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// claimableLocked reports whether runPass would claim a slot now.
func (g *Generator) claimableLocked() bool {
	storiesPending := g.storiesPendingLocked()
	for _, cache := range g.caches {
		for _, s := range cache {
			if s.state != stateUninitialized {
				continue
			}
			if !s.docs || !storiesPending {
				return true
			}
		}
	}
	return false
}

func (g *Generator) pendingLocked() bool {
	for _, cache := range g.caches {
		for _, s := range cache {
			if s.state == stateUninitialized || s.state == stateExtracting {
				return true
			}
		}
	}
	return false
}

func (g *Generator) runPass(ctx context.Context, docs bool) error {
	g.mu.Lock()
	if docs && g.storiesPendingLocked() {
		g.mu.Unlock()
		return nil
	}
	var jobs []job
	for i, cache := range g.caches {
		for p, s := range cache {
			if s.docs != docs || s.state != stateUninitialized {
				continue
			}
			// a file matched by several specifiers is extracted per specifier
			s.state = stateExtracting
			jobs = append(jobs, job{spec: i, path: p, version: s.version})
		}
	}
	var snap *csfSnapshot
	if docs && len(jobs) > 0 {
		snap = g.snapshotLocked()
	}
	g.mu.Unlock()

	if len(jobs) == 0 {
		return nil
	}
	sort.Slice(jobs, func(a, b int) bool {
		if jobs[a].spec != jobs[b].spec {
			return jobs[a].spec < jobs[b].spec
		}
		return jobs[a].path < jobs[b].path
	})

	var eg errgroup.Group
	eg.SetLimit(g.concurrency())
	for _, j := range jobs {
		eg.Go(func() error {
			var settled bool
			if docs {
				res, err := g.extractDocs(ctx, g.specs[j.spec], j.path, snap)
				settled = g.storeDocs(j, snap, res, err)
			} else {
				res, err := g.extractStories(ctx, g.specs[j.spec], j.path)
				settled = g.storeStories(j, res, err)
			}
			if settled && g.opts.Progress != nil {
				g.opts.Progress.OnFileExtracted(specifier.ImportPath(j.path, g.opts.WorkingDir))
			}
			return ctx.Err()
		})
	}
	return eg.Wait()
}

func (g *Generator) storiesPendingLocked() bool {
	for _, cache := range g.caches {
		for _, s := range cache {
			if !s.docs && (s.state == stateUninitialized || s.state == stateExtracting) {
				return true
			}
		}
	}
	return false
}

// claimedSlot returns the slot of j when no invalidation happened since it
// was claimed.
func (g *Generator) claimedSlot(j job) (*cacheSlot, bool) {
	s, ok := g.caches[j.spec][j.path]
	if !ok || s.version != j.version || s.state != stateExtracting {
		return nil, false
	}
	return s, true
}

// storeStories records a CSF extraction and reports whether the slot
// settled.
func (g *Generator) storeStories(j job, res *storiesResult, err error) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	defer g.settled.Broadcast()
	s, ok := g.claimedSlot(j)
	if !ok {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.state = stateUninitialized
		return false
	}
	if err != nil {
		s.state, s.err = stateErrored, g.indexingError(j.path, err)
		g.log.Warn("extraction failed", "file", specifier.ImportPath(j.path, g.opts.WorkingDir), "error", err)
	} else {
		s.state, s.stories = stateCached, res
	}
	g.storiesEpoch++
	g.invalidateIndexLocked()
	return true
}

func (g *Generator) storeDocs(j job, snap *csfSnapshot, res *docsResult, err error) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	defer g.settled.Broadcast()
	s, ok := g.claimedSlot(j)
	if !ok {
		return false
	}
	if snap.epoch != g.storiesEpoch || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.state = stateUninitialized
		return false
	}
	switch {
	case err != nil:
		s.state = stateErrored
		var soft *SoftError
		if errors.As(err, &soft) || isLinkError(err) {
			s.err = err
		} else {
			s.err = g.indexingError(j.path, err)
		}
		g.log.Warn("extraction failed", "file", specifier.ImportPath(j.path, g.opts.WorkingDir), "error", err)
	default:
		s.state, s.doc = stateCached, res
		if res != nil {
			g.addEdges(j.path, res.dependencies)
		}
	}
	g.invalidateIndexLocked()
	return true
}

func (g *Generator) indexingError(absPath string, err error) error {
	return &IndexingError{Err: err, ImportPaths: []string{specifier.ImportPath(absPath, g.opts.WorkingDir)}}
}
