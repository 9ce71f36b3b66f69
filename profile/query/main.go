// Profiling:
// go build ./profile/query
// go tool pprof -http=":8000" -nodefraction=0.001 ./query cpu.pprof

package main

import (
	"runtime"

	"github.com/pkg/profile"

	"github.com/edwinsyarief/sparsecs"
)

type comp1 struct {
	V int64
	W int64
}

type comp2 struct {
	V int64
	W int64
}

type comp3 struct {
	V int64
	W int64
}

type comp4 struct {
	V int64
	W int64
}

func main() {
	count := 50
	iters := 10000
	entities := 100000
	p := profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	run(count, iters, entities)
	p.Stop()
}

// run steps a four-component filter sequentially and the same join through
// a reflective parallel query. comp4 is on half the entities, so it drives
// both.
func run(rounds, iters, numEntities int) {
	pool := sparsecs.NewWorkerPool(runtime.NumCPU() - 1)
	defer pool.Close()
	for range rounds {
		r, err := sparsecs.NewRegistry(sparsecs.Config{
			Name:              "query",
			MaxEntities:       numEntities,
			MaxComponentTypes: 4,
		})
		if err != nil {
			panic(err)
		}
		batch := sparsecs.NewBuilder3[comp1, comp2, comp3](r)
		ents, err := batch.NewEntities(numEntities, comp1{}, comp2{V: 1, W: 1}, comp3{})
		if err != nil {
			panic(err)
		}
		for i, e := range ents {
			if i%2 == 0 {
				sparsecs.Emplace(r, e, comp4{})
			}
		}
		query := sparsecs.NewFilter4[comp1, comp2, comp3, comp4](r)

		for range iters {
			query.Reset()
			for query.Next() {
				c1, c2, _, _ := query.Get()
				c1.V += c2.V
				c1.W += c2.W
			}
			r.QueryPar(pool, func(c1 *comp1, c2 *comp2, c4 *comp4) {
				c1.V -= c2.V
				c4.W++
			})
		}
	}
}
