// Package graph runs a small fixed graph of named steps over a shared state.
//
// Each node mutates the state it is given. Edges are either unconditional or
// chosen by a router that inspects one or two state fields. Execution stops
// when the END node is reached.
package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// END is the terminal node name.
const END = "__end__"

// MaxSteps bounds a single run so a router that never exits fails loudly.
const MaxSteps = 64

var (
	ErrNoEntryPoint = errors.New("graph has no entry point")
	ErrUnknownNode  = errors.New("unknown node")
	ErrStepLimit    = errors.New("step limit exceeded")
)

// Node is a single step. It reads and updates the state in place.
type Node[S any] func(ctx context.Context, s *S) error

// Router picks the next node key after a node has run.
type Router[S any] func(s *S) string

type conditional[S any] struct {
	route   Router[S]
	targets map[string]string
}

// Graph is the builder. Call Compile to obtain something runnable.
type Graph[S any] struct {
	nodes        map[string]Node[S]
	edges        map[string]string
	conditionals map[string]conditional[S]
	entry        string
	order        []string
}

func New[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:        make(map[string]Node[S]),
		edges:        make(map[string]string),
		conditionals: make(map[string]conditional[S]),
	}
}

func (g *Graph[S]) AddNode(name string, n Node[S]) *Graph[S] {
	if _, ok := g.nodes[name]; !ok {
		g.order = append(g.order, name)
	}
	g.nodes[name] = n
	return g
}

func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	g.edges[from] = to
	return g
}

// AddConditionalEdges routes from a node by the router's return value.
// targets maps router values to node names; a nil map means the router
// returns node names directly.
func (g *Graph[S]) AddConditionalEdges(from string, route Router[S], targets map[string]string) *Graph[S] {
	g.conditionals[from] = conditional[S]{route: route, targets: targets}
	return g
}

func (g *Graph[S]) SetEntryPoint(name string) *Graph[S] {
	g.entry = name
	return g
}

// Compile checks that every node is reachable by name and has a way out.
func (g *Graph[S]) Compile() (*Runnable[S], error) {
	if g.entry == "" {
		return nil, ErrNoEntryPoint
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return nil, fmt.Errorf("entry point %q: %w", g.entry, ErrUnknownNode)
	}
	known := func(name string) bool {
		if name == END {
			return true
		}
		_, ok := g.nodes[name]
		return ok
	}

	for _, name := range g.order {
		to, hasEdge := g.edges[name]
		cond, hasCond := g.conditionals[name]
		if !hasEdge && !hasCond {
			return nil, fmt.Errorf("node %q has no outgoing edge", name)
		}
		if hasEdge && hasCond {
			return nil, fmt.Errorf("node %q has both a direct and a conditional edge", name)
		}
		if hasEdge && !known(to) {
			return nil, fmt.Errorf("edge %s -> %s: %w", name, to, ErrUnknownNode)
		}
		for key, target := range cond.targets {
			if !known(target) {
				return nil, fmt.Errorf("conditional edge %s[%s] -> %s: %w", name, key, target, ErrUnknownNode)
			}
		}
	}
	for from := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("edge from %q: %w", from, ErrUnknownNode)
		}
	}

	return &Runnable[S]{g: g, logger: zap.NewNop()}, nil
}

// Runnable executes a compiled graph. It is safe for concurrent use as
// long as each run gets its own state.
type Runnable[S any] struct {
	g      *Graph[S]
	logger *zap.Logger
}

// WithLogger returns a copy that logs each visited node.
func (r *Runnable[S]) WithLogger(l *zap.Logger) *Runnable[S] {
	if l == nil {
		l = zap.NewNop()
	}
	return &Runnable[S]{g: r.g, logger: l}
}

// Nodes lists node names in registration order.
func (r *Runnable[S]) Nodes() []string {
	out := make([]string, len(r.g.order))
	copy(out, r.g.order)
	return out
}

// Run executes from the entry point and returns the visited node names.
func (r *Runnable[S]) Run(ctx context.Context, s *S) ([]string, error) {
	var path []string
	current := r.g.entry
	for steps := 0; current != END; steps++ {
		if steps >= MaxSteps {
			return path, fmt.Errorf("after %v: %w", path, ErrStepLimit)
		}
		if err := ctx.Err(); err != nil {
			return path, err
		}

		node := r.g.nodes[current]
		r.logger.Debug("graph node", zap.String("node", current))
		path = append(path, current)
		if err := node(ctx, s); err != nil {
			return path, fmt.Errorf("node %s: %w", current, err)
		}

		next, err := r.next(current, s)
		if err != nil {
			return path, err
		}
		current = next
	}
	return path, nil
}

func (r *Runnable[S]) next(current string, s *S) (string, error) {
	if to, ok := r.g.edges[current]; ok {
		return to, nil
	}
	cond := r.g.conditionals[current]
	key := cond.route(s)
	if cond.targets == nil {
		if key != END {
			if _, ok := r.g.nodes[key]; !ok {
				return "", fmt.Errorf("router for %s returned %q: %w", current, key, ErrUnknownNode)
			}
		}
		return key, nil
	}
	to, ok := cond.targets[key]
	if !ok {
		keys := make([]string, 0, len(cond.targets))
		for k := range cond.targets {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", fmt.Errorf("router for %s returned %q, want one of %v: %w", current, key, keys, ErrUnknownNode)
	}
	return to, nil
}
