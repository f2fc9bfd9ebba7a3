package classpath

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"nullguard/internal/classfile"
	"nullguard/internal/diag"
	"nullguard/internal/trace"
)

// DefaultCacheSize bounds the number of summaries kept in memory.
const DefaultCacheSize = 4096

// MaxChainDepth bounds superclass chain walks.
const MaxChainDepth = 256

// ModuleInfo and PackageInfo are the internal names of metadata units.
const (
	ModuleInfo  = "module-info"
	PackageInfo = "package-info"
)

// ErrChainTooDeep reports a superclass chain longer than MaxChainDepth,
// which only happens with a cycle in broken input.
var ErrChainTooDeep = errors.New("superclass chain too deep")

// Options configures a Context.
type Options struct {
	CacheSize int
	// Disk, when set, persists summaries across runs.
	Disk *DiskCache
	// Reporter receives warnings for unusable entries and classes.
	Reporter diag.Reporter
}

// lookup is a cached lookup result; a nil summary caches a miss.
type lookup struct {
	summary *Summary
}

// Context is a read-only view of a class path that answers type queries by
// internal class name. It is owned by the caller: one pass at a time, Reset
// between independent passes.
type Context struct {
	mu      sync.Mutex
	entries []Entry
	cache   *lru.Cache[string, lookup]
	disk    *DiskCache
	rep     diag.Reporter

	hits, misses int
}

// Open opens every path concurrently. Paths that cannot be opened are
// reported as warnings and skipped; entry order is preserved.
func Open(ctx context.Context, paths []string, opts Options) (*Context, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, lookup](size)
	if err != nil {
		return nil, err
	}
	rep := opts.Reporter
	if rep == nil {
		rep = diag.NopReporter{}
	}

	ctx, span := trace.Start(ctx, trace.ScopePass, "classpath_open")
	defer span.End(fmt.Sprintf("%d entries", len(paths)))

	opened := make([]Entry, len(paths))
	failures := make([]error, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			opened[i], failures[i] = OpenEntry(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, e := range opened {
			if e != nil {
				_ = e.Close()
			}
		}
		return nil, err
	}

	c := &Context{cache: cache, disk: opts.Disk, rep: rep}
	for i, e := range opened {
		if failures[i] != nil {
			diag.ReportWarning(rep, diag.StrUnresolvedClasspath, diag.Location{Path: paths[i]}, failures[i].Error()).Emit()
			continue
		}
		c.entries = append(c.entries, e)
	}
	return c, nil
}

// Entries returns the paths of the usable entries in lookup order.
func (c *Context) Entries() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Path()
	}
	return out
}

// Reset drops every cached summary so that the next pass sees fresh data.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
	c.hits, c.misses = 0, 0
}

// Stats returns in-memory cache hits and misses since the last Reset.
func (c *Context) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Close releases every entry.
func (c *Context) Close() error {
	var errs []error
	for _, e := range c.entries {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.entries = nil
	return errors.Join(errs...)
}

// ReadClass returns the raw bytes of a class and the index of the entry that
// holds it. The first entry containing the class wins.
func (c *Context) ReadClass(name string) ([]byte, int, bool, error) {
	for i, e := range c.entries {
		data, ok, err := e.Read(name)
		if err != nil {
			return nil, 0, false, err
		}
		if ok {
			return data, i, true, nil
		}
	}
	return nil, 0, false, nil
}

// Lookup returns the summary of a class.
func (c *Context) Lookup(name string) (*Summary, bool, error) {
	c.mu.Lock()
	if l, ok := c.cache.Get(name); ok {
		c.hits++
		c.mu.Unlock()
		return l.summary, l.summary != nil, nil
	}
	c.misses++
	c.mu.Unlock()

	data, origin, ok, err := c.ReadClass(name)
	if err != nil {
		return nil, false, err
	}
	var s *Summary
	if ok {
		if s, err = c.summarize(name, data); err != nil {
			diag.ReportWarning(c.rep, diag.StrUnparsableClass, diag.Location{Path: c.entries[origin].Path(), Class: name}, err.Error()).Emit()
			s = nil
		} else {
			s.Origin = origin
		}
	}
	c.mu.Lock()
	c.cache.Add(name, lookup{summary: s})
	c.mu.Unlock()
	return s, s != nil, nil
}

// lookupIn reads name from a single entry, bypassing the cache.
func (c *Context) lookupIn(origin int, name string) (*Summary, bool, error) {
	if origin < 0 || origin >= len(c.entries) {
		return nil, false, nil
	}
	data, ok, err := c.entries[origin].Read(name)
	if err != nil || !ok {
		return nil, false, err
	}
	s, err := c.summarize(name, data)
	if err != nil {
		return nil, false, err
	}
	s.Origin = origin
	return s, true, nil
}

func (c *Context) summarize(name string, data []byte) (*Summary, error) {
	key := Combine(Sum(data), summarySalt)
	if s, ok, err := c.disk.Get(key); err == nil && ok {
		return s, nil
	}
	cf, err := classfile.Parse(data)
	if err != nil {
		return nil, err
	}
	s, err := Summarize(cf)
	if err != nil {
		return nil, err
	}
	if s.Name != name && name != ModuleInfo {
		return nil, fmt.Errorf("entry %s declares class %s", name, s.Name)
	}
	// a failed cache write only costs a re-parse next time
	_ = c.disk.Put(key, s)
	return s, nil
}

// Package returns the package-info summary of an internal package name.
func (c *Context) Package(pkg string) (*Summary, bool, error) {
	if pkg == "" {
		return c.Lookup(PackageInfo)
	}
	return c.Lookup(pkg + "/" + PackageInfo)
}

// Module returns the module-info summary of the entry that holds s.
func (c *Context) Module(s *Summary) (*Summary, bool, error) {
	if s == nil {
		return nil, false, nil
	}
	key := fmt.Sprintf("%s#%d", ModuleInfo, s.Origin)
	c.mu.Lock()
	if l, ok := c.cache.Get(key); ok {
		c.mu.Unlock()
		return l.summary, l.summary != nil, nil
	}
	c.mu.Unlock()

	m, ok, err := c.lookupIn(s.Origin, ModuleInfo)
	if err != nil {
		return nil, false, err
	}
	c.mu.Lock()
	c.cache.Add(key, lookup{summary: m})
	c.mu.Unlock()
	return m, ok, nil
}

// UnresolvedError reports a class missing from the class path.
type UnresolvedError struct {
	Name string
	// From is the class that referenced Name.
	From string
}

func (e *UnresolvedError) Error() string {
	if e.From != "" {
		return fmt.Sprintf("class %s (referenced from %s) not found on class path", e.Name, e.From)
	}
	return fmt.Sprintf("class %s not found on class path", e.Name)
}

// SuperChain returns the superclasses of name, nearest first, stopping before
// java/lang/Object. On an unresolved superclass the chain found so far is
// returned together with an *UnresolvedError.
func (c *Context) SuperChain(name string) ([]*Summary, error) {
	s, ok, err := c.Lookup(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &UnresolvedError{Name: name}
	}
	var chain []*Summary
	for depth := 0; ; depth++ {
		if depth >= MaxChainDepth {
			return chain, fmt.Errorf("%w: %s", ErrChainTooDeep, name)
		}
		if s.Super == "" || s.Super == ObjectClass {
			return chain, nil
		}
		from, super := s.Name, s.Super
		s, ok, err = c.Lookup(super)
		if err != nil {
			return chain, err
		}
		if !ok {
			return chain, &UnresolvedError{Name: super, From: from}
		}
		chain = append(chain, s)
	}
}
