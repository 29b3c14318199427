package main

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/ffi-runtime/callback"
	"github.com/wippyai/ffi-runtime/collection"
	"github.com/wippyai/ffi-runtime/connection"
	"github.com/wippyai/ffi-runtime/foreign"
	"github.com/wippyai/ffi-runtime/memory"
	"github.com/wippyai/ffi-runtime/ownership"
	"github.com/wippyai/ffi-runtime/wrap"
)

// Scenario is a scripted sequence of boundary operations.
type Scenario struct {
	Name    string   `yaml:"name"`
	Heap    string   `yaml:"heap"`
	Signals []Signal `yaml:"signals"`
	Steps   []Step   `yaml:"steps"`
}

// Signal declares a signal on an instance type.
type Signal struct {
	Type string `yaml:"type"`
	Name string `yaml:"name"`
}

// Step is one operation. Op selects which of the other fields apply.
type Step struct {
	Op       string   `yaml:"op"`
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	Tag      string   `yaml:"tag"`
	Object   string   `yaml:"object"`
	Signal   string   `yaml:"signal"`
	From     string   `yaml:"from"`
	To       string   `yaml:"to"`
	Objects  []string `yaml:"objects"`
	Refcount *int32   `yaml:"refcount"`
	Floating bool     `yaml:"floating"`
}

// LoadScenario parses a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes YAML scenario text.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	for i, st := range s.Steps {
		if _, ok := stepOps[st.Op]; !ok {
			return nil, fmt.Errorf("step %d: unknown op %q", i+1, st.Op)
		}
	}
	return &s, nil
}

// active is the runtime the session classes forward to. sessionMu is held
// for the whole life of a session, so one session runs at a time.
var (
	active    *foreign.Runtime
	sessionMu sync.Mutex
)

type sessionBinder struct{}

func (sessionBinder) Runtime() *foreign.Runtime { return active }

type (
	instance = wrap.ObjectOf[sessionBinder]
	elem     = wrap.ObjectElem[instance]
)

// seq is the read side shared by every collection a session holds.
type seq struct {
	kind  string
	len   func() int
	all   func() iter.Seq[Handle]
	close func()
}

type Handle = foreign.Handle

// Session executes steps against a live foreign runtime.
type Session struct {
	rt          *foreign.Runtime
	reg         *callback.Registry
	heap        *memory.Heap
	out         io.Writer
	raw         map[string]Handle
	objs        map[string]*wrap.Object[instance]
	conns       map[string]connection.Connection
	collections map[string]*seq
	fired       map[string]int
	id          uuid.UUID
	closed      bool
}

// NewSession creates a runtime on the named heap ("linear" or "wazero").
// It fails while another session is still open.
func NewSession(ctx context.Context, heap string, out io.Writer) (*Session, error) {
	if !sessionMu.TryLock() {
		return nil, fmt.Errorf("another session is active")
	}
	var h *memory.Heap
	switch heap {
	case "", "linear":
		h = memory.NewLinear(nil)
	case "wazero":
		var err error
		if h, err = memory.NewWazero(ctx, nil); err != nil {
			sessionMu.Unlock()
			return nil, err
		}
	default:
		sessionMu.Unlock()
		return nil, fmt.Errorf("unknown heap %q", heap)
	}
	rt := foreign.New(foreign.Options{Heap: h, Strict: true})
	active = rt
	s := &Session{
		rt:          rt,
		reg:         callback.NewRegistry(rt, callback.DefaultOptions()),
		heap:        h,
		out:         out,
		raw:         make(map[string]Handle),
		objs:        make(map[string]*wrap.Object[instance]),
		conns:       make(map[string]connection.Connection),
		collections: make(map[string]*seq),
		fired:       make(map[string]int),
		id:          uuid.New(),
	}
	logger().Debug("session started", zap.Stringer("id", s.id), zap.String("heap", heap))
	return s, nil
}

// ID identifies the session in logs.
func (s *Session) ID() uuid.UUID { return s.id }

// Runtime returns the session's foreign runtime.
func (s *Session) Runtime() *foreign.Runtime { return s.rt }

func (s *Session) printf(format string, args ...any) {
	if s.out != nil {
		fmt.Fprintf(s.out, format, args...)
	}
}

// Run executes every step of sc, stopping at the first failure.
func (s *Session) Run(sc *Scenario) error {
	for _, sig := range sc.Signals {
		s.rt.DefineSignal(sig.Type, sig.Name)
	}
	for i, st := range sc.Steps {
		if err := s.Exec(st); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, st.Op, err)
		}
	}
	return nil
}

var stepOps = map[string]func(*Session, Step) error{
	"new-object": (*Session).newObject,
	"wrap":       (*Session).wrap,
	"drop":       (*Session).drop,
	"connect":    (*Session).connect,
	"emit":       (*Session).emit,
	"disconnect": (*Session).disconnect,
	"convert":    (*Session).convert,
	"iterate":    (*Session).iterate,
	"expect":     (*Session).expect,
	"stats":      (*Session).stats,
}

// Exec runs one step. Contract violations surface as errors.
func (s *Session) Exec(st Step) (err error) {
	op, ok := stepOps[st.Op]
	if !ok {
		return fmt.Errorf("unknown op %q", st.Op)
	}
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("%v", r)
		}
	}()
	return op(s, st)
}

func (s *Session) handle(name string) (Handle, error) {
	if o, ok := s.objs[name]; ok {
		return o.Handle(), nil
	}
	if h, ok := s.raw[name]; ok {
		return h, nil
	}
	return 0, fmt.Errorf("no object %q", name)
}

func (s *Session) newObject(st Step) error {
	if _, err := s.handle(st.Name); err == nil {
		return fmt.Errorf("object %q exists", st.Name)
	}
	typ := st.Type
	if typ == "" {
		typ = "Object"
	}
	h, err := s.rt.NewObject(typ, st.Floating)
	if err != nil {
		return err
	}
	s.raw[st.Name] = h
	s.printf("%s = %s %#x refcount=%d floating=%t\n", st.Name, typ, h, s.rt.RefCount(h), st.Floating)
	return nil
}

func (s *Session) wrap(st Step) error {
	h, ok := s.raw[st.Name]
	if !ok {
		return fmt.Errorf("no unwrapped object %q", st.Name)
	}
	tag, err := ownership.ParseTag(st.Tag)
	if err != nil {
		return err
	}
	o := wrap.Wrap[instance](h, tag)
	delete(s.raw, st.Name)
	s.objs[st.Name] = &o
	s.printf("wrap %s %s refcount=%d\n", st.Name, tag, s.rt.RefCount(h))
	return nil
}

func (s *Session) drop(st Step) error {
	if c, ok := s.collections[st.Name]; ok {
		c.close()
		delete(s.collections, st.Name)
		s.printf("drop %s\n", st.Name)
		return nil
	}
	if o, ok := s.objs[st.Name]; ok {
		h := o.Handle()
		o.Close()
		delete(s.objs, st.Name)
		s.printf("drop %s refcount=%d\n", st.Name, s.rt.RefCount(h))
		return nil
	}
	if h, ok := s.raw[st.Name]; ok {
		s.rt.Unref(h)
		delete(s.raw, st.Name)
		s.printf("unref %s\n", st.Name)
		return nil
	}
	return fmt.Errorf("nothing named %q", st.Name)
}

func (s *Session) connect(st Step) error {
	h, err := s.handle(st.Object)
	if err != nil {
		return err
	}
	name := st.Name
	c, err := connection.Connect(s.reg, h, st.Signal, func(*callback.Args) (Handle, error) {
		s.fired[name]++
		s.printf("  %s fired (%d)\n", name, s.fired[name])
		return 0, nil
	})
	if err != nil {
		return err
	}
	s.conns[name] = c
	s.printf("connect %s to %s::%s id=%s\n", name, st.Object, st.Signal, c.ID())
	return nil
}

func (s *Session) emit(st Step) error {
	h, err := s.handle(st.Object)
	if err != nil {
		return err
	}
	s.printf("emit %s::%s\n", st.Object, st.Signal)
	_, err = s.rt.SignalEmit(h, st.Signal)
	return err
}

func (s *Session) disconnect(st Step) error {
	c, ok := s.conns[st.Name]
	if !ok {
		return fmt.Errorf("no connection %q", st.Name)
	}
	c.Disconnect()
	s.printf("disconnect %s connected=%t\n", st.Name, c.Connected())
	return nil
}

type source interface {
	collection.Source[elem]
	Close()
}

type sink interface {
	collection.Sink[elem]
}

func (s *Session) newSource(kind string, hs []Handle) (source, error) {
	switch kind {
	case "slist":
		return collection.SListFromSlice[elem](s.rt, hs)
	case "list":
		return collection.ListFromSlice[elem](s.rt, hs)
	case "ptrarray":
		return collection.PtrArrayFromSlice[elem](s.rt, hs)
	case "span":
		return collection.SpanFromSlice[elem](s.rt, hs)
	case "zspan":
		return collection.ZSpanFromSlice[elem](s.rt, hs)
	case "hashset":
		m := collection.NewHashMap[elem, elem](s.rt)
		for _, h := range hs {
			if err := m.Add(h, ownership.None); err != nil {
				m.Close()
				return nil, err
			}
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown collection %q", kind)
}

func (s *Session) newSink(kind string) (sink, *seq, error) {
	switch kind {
	case "slist":
		l := collection.NewSList[elem](s.rt)
		return l, &seq{kind, l.Len, l.All, l.Close}, nil
	case "list":
		l := collection.NewList[elem](s.rt)
		return l, &seq{kind, l.Len, l.All, l.Close}, nil
	case "ptrarray":
		a := collection.NewPtrArray[elem](s.rt)
		return a, &seq{kind, a.Len, a.All, a.Close}, nil
	case "span":
		sp := collection.NewSpan[elem](s.rt)
		return sp, &seq{kind, sp.Len, sp.All, sp.Close}, nil
	case "zspan":
		sp := collection.NewZSpan[elem](s.rt)
		return sp, &seq{kind, sp.Len, sp.All, sp.Close}, nil
	case "hashset":
		m := collection.NewHashMap[elem, elem](s.rt)
		return m, &seq{kind, m.Len, m.Keys, m.Close}, nil
	}
	return nil, nil, fmt.Errorf("unknown collection %q", kind)
}

func (s *Session) convert(st Step) error {
	if _, ok := s.collections[st.Name]; ok {
		return fmt.Errorf("collection %q exists", st.Name)
	}
	hs := make([]Handle, 0, len(st.Objects))
	for _, name := range st.Objects {
		h, err := s.handle(name)
		if err != nil {
			return err
		}
		hs = append(hs, h)
	}
	src, err := s.newSource(st.From, hs)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, view, err := s.newSink(st.To)
	if err != nil {
		return err
	}
	if err := collection.Convert[elem](dst, src); err != nil {
		view.close()
		return err
	}
	s.collections[st.Name] = view
	s.printf("convert %s -> %s: %s has %d elements\n", st.From, st.To, st.Name, view.len())
	return nil
}

func (s *Session) iterate(st Step) error {
	c, ok := s.collections[st.Name]
	if !ok {
		return fmt.Errorf("no collection %q", st.Name)
	}
	names := s.names()
	s.printf("iterate %s (%s)\n", st.Name, c.kind)
	for h := range c.all() {
		s.printf("  %s refcount=%d\n", names[h], s.rt.RefCount(h))
	}
	return nil
}

func (s *Session) names() map[Handle]string {
	m := make(map[Handle]string, len(s.raw)+len(s.objs))
	for n, h := range s.raw {
		m[h] = n
	}
	for n, o := range s.objs {
		m[o.Handle()] = n
	}
	return m
}

func (s *Session) expect(st Step) error {
	if st.Refcount == nil {
		return fmt.Errorf("expect without refcount")
	}
	h, err := s.handle(st.Object)
	if err != nil {
		return err
	}
	if got := s.rt.RefCount(h); got != *st.Refcount {
		return fmt.Errorf("%s refcount = %d, want %d", st.Object, got, *st.Refcount)
	}
	return nil
}

func (s *Session) stats(Step) error {
	st := s.rt.Stats()
	s.printf("stats objects=%d blocks=%d boxes=%d finalized=%d callbacks=%d\n",
		st.Objects, st.Blocks, st.Boxes, st.Finalized, s.reg.Live())
	return nil
}

// Objects lists live objects by name with their refcounts.
func (s *Session) Objects() []ObjectInfo {
	var out []ObjectInfo
	for n, h := range s.raw {
		out = append(out, ObjectInfo{Name: n, Handle: h, Refcount: s.rt.RefCount(h)})
	}
	for n, o := range s.objs {
		h := o.Handle()
		out = append(out, ObjectInfo{Name: n, Handle: h, Refcount: s.rt.RefCount(h), Wrapped: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ObjectInfo is a row of the session's object table.
type ObjectInfo struct {
	Name     string
	Handle   Handle
	Refcount int32
	Wrapped  bool
}

// ParseStep reads the interactive shorthand "op name key=value ...".
func ParseStep(line string) (Step, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Step{}, fmt.Errorf("empty step")
	}
	st := Step{Op: fields[0]}
	if _, ok := stepOps[st.Op]; !ok {
		return Step{}, fmt.Errorf("unknown op %q", st.Op)
	}
	for _, f := range fields[1:] {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			st.Name = f
			continue
		}
		switch k {
		case "type":
			st.Type = v
		case "tag":
			st.Tag = v
		case "object":
			st.Object = v
		case "signal":
			st.Signal = v
		case "from":
			st.From = v
		case "to":
			st.To = v
		case "objects":
			st.Objects = strings.Split(v, ",")
		case "floating":
			st.Floating = v == "true"
		case "refcount":
			var n int32
			if _, err := fmt.Sscan(v, &n); err != nil {
				return Step{}, fmt.Errorf("refcount %q: %w", v, err)
			}
			st.Refcount = &n
		default:
			return Step{}, fmt.Errorf("unknown key %q", k)
		}
	}
	return st, nil
}

// Close releases everything the session still holds and reports leaks.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	for n, c := range s.collections {
		c.close()
		delete(s.collections, n)
	}
	for n, c := range s.conns {
		c.Disconnect()
		delete(s.conns, n)
	}
	for n, o := range s.objs {
		o.Close()
		delete(s.objs, n)
	}
	for n, h := range s.raw {
		s.rt.Unref(h)
		delete(s.raw, n)
	}
	_ = s.reg.Close()
	st := s.rt.Stats()
	if st.Objects != 0 || st.Blocks != 0 {
		logger().Warn("leaked at session close",
			zap.Stringer("id", s.id), zap.Int("objects", st.Objects), zap.Int("blocks", st.Blocks))
	}
	err := s.rt.Close(ctx)
	if cerr := s.heap.Close(ctx); err == nil {
		err = cerr
	}
	active = nil
	sessionMu.Unlock()
	return err
}
