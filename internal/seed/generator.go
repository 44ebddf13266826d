package seed

import (
	"math/rand/v2"

	"github.com/brianvoe/gofakeit/v7"
)

// Price bounds in cents, inclusive.
const (
	MinPriceInCents = 1000
	MaxPriceInCents = 10000
)

// Product is one generated products row (id is assigned by the database).
type Product struct {
	Name         string
	Description  string
	PriceInCents int32
}

// Generator produces deterministic product rows. Batch i is a pure function
// of the seed and i, so concurrent workers produce the same data no matter
// how their batches are scheduled.
type Generator struct {
	seed uint64
}

// NewGenerator returns a Generator for seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{seed: uint64(seed)}
}

// Batch returns size products for batch index i. Each batch owns its faker,
// so no locking is needed across workers.
func (g *Generator) Batch(i, size int) []Product {
	f := gofakeit.NewFaker(rand.NewPCG(g.seed, uint64(i)), false)
	out := make([]Product, size)
	for j := range out {
		out[j] = Product{
			Name:         f.ProductName(),
			Description:  f.ProductDescription(),
			PriceInCents: int32(f.IntRange(MinPriceInCents, MaxPriceInCents)),
		}
	}
	return out
}
