// Package copula runs the correlated Student-t copula Monte Carlo that is
// the crux of the evaluator. The correlated-normal transform is built
// once as a gorgonia expression graph and reused across requests of the
// same (legs, sample count) shape: the graph is compiled once, inputs
// are rebound with gorgonia.Let, execution runs through VM.RunAll(), and
// the VM is reset between invocations rather than rebuilt.
package copula

import (
	"fmt"
	"sync"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// shape identifies a compiled kernel by the two dimensions that fix its
// expression graph: leg count n and sample count N.
type shape struct {
	n int
	N int
}

// kernel holds a compiled correlated-normal transform Y = Z·Lᵀ for one
// shape. RunAll/Let/Reset are not safe for concurrent use on the same
// machine, so each kernel serializes access with its own mutex; distinct
// shapes run fully in parallel.
type kernel struct {
	mu      sync.Mutex
	graph   *gorgonia.ExprGraph
	zNode   *gorgonia.Node
	lNode   *gorgonia.Node
	yNode   *gorgonia.Node
	machine gorgonia.VM
}

func buildKernel(n, N int) (*kernel, error) {
	g := gorgonia.NewGraph()

	zNode := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(N, n), gorgonia.WithName("z"))
	lNode := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(n, n), gorgonia.WithName("l"))

	lT, err := gorgonia.Transpose(lNode, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("transpose correlation factor: %w", err)
	}
	yNode, err := gorgonia.Mul(zNode, lT)
	if err != nil {
		return nil, fmt.Errorf("build correlated-normal matmul: %w", err)
	}

	return &kernel{
		graph:   g,
		zNode:   zNode,
		lNode:   lNode,
		yNode:   yNode,
		machine: gorgonia.NewTapeMachine(g),
	}, nil
}

// run binds z (N*n, row-major) and l (n*n, row-major) to the compiled
// graph, executes it, and returns Y = Z·Lᵀ as a flat N*n row-major slice.
func (k *kernel) run(zFlat, lFlat []float64, n, N int) ([]float64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	defer k.machine.Reset()

	zTensor := tensor.New(tensor.WithShape(N, n), tensor.WithBacking(zFlat))
	lTensor := tensor.New(tensor.WithShape(n, n), tensor.WithBacking(lFlat))

	if err := gorgonia.Let(k.zNode, zTensor); err != nil {
		return nil, fmt.Errorf("bind z: %w", err)
	}
	if err := gorgonia.Let(k.lNode, lTensor); err != nil {
		return nil, fmt.Errorf("bind l: %w", err)
	}

	if err := k.machine.RunAll(); err != nil {
		return nil, fmt.Errorf("run correlated-normal kernel: %w", err)
	}

	out, ok := k.yNode.Value().Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("unexpected kernel output type %T", k.yNode.Value().Data())
	}
	// Copy: the tensor's backing array is reused by the machine on the
	// next Reset/RunAll cycle.
	result := make([]float64, len(out))
	copy(result, out)
	return result, nil
}

// Cache is a write-once, read-many store of compiled kernels keyed by
// shape, shared across all requests.
type Cache struct {
	mu      sync.Mutex
	kernels map[shape]*kernel
}

// NewCache returns an empty kernel cache.
func NewCache() *Cache {
	return &Cache{kernels: make(map[shape]*kernel)}
}

// Warm compiles and caches a kernel for (n, N) if not already present.
// Calling this for every (n, N) pair the orchestrator expects to serve
// amortizes Gorgonia's graph-build cost out of the request hot path.
func (c *Cache) Warm(n, N int) error {
	_, err := c.get(n, N)
	return err
}

func (c *Cache) get(n, N int) (*kernel, error) {
	key := shape{n: n, N: N}

	c.mu.Lock()
	if k, ok := c.kernels[key]; ok {
		c.mu.Unlock()
		return k, nil
	}
	c.mu.Unlock()

	k, err := buildKernel(n, N)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.kernels[key]; ok {
		return existing, nil
	}
	c.kernels[key] = k
	return k, nil
}
