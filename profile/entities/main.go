// Profiling:
// go build ./profile/entities
// go tool pprof -http=":8000" -nodefraction=0.001 ./entities mem.pprof

package main

import (
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

func main() {
	count := 50
	iters := 10000
	entities := 1000
	p := profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
	run(count, iters, entities)
	p.Stop()
}

// run churns entities: create a batch, touch it through a filter, destroy
// it again. Destroyed ids are recycled by the next batch.
func run(rounds, iters, numEntities int) {
	for range rounds {
		r, err := sparsecs.NewRegistry(sparsecs.Config{
			Name:              "entities",
			MaxEntities:       numEntities,
			MaxComponentTypes: 2,
		})
		if err != nil {
			panic(err)
		}
		query := sparsecs.NewFilter2[comp1, comp2](r)
		batch := sparsecs.NewBuilder2[comp1, comp2](r)
		entities := make([]sparsecs.Entity, 0, numEntities)

		for range iters {
			if _, err := batch.NewEntities(numEntities, comp1{}, comp2{V: 1, W: 1}); err != nil {
				panic(err)
			}
			entities = entities[:0]
			query.Reset()
			for query.Next() {
				entities = append(entities, query.Entity())
				comp1, comp2 := query.Get()
				comp1.V += comp2.V
				comp1.W += comp2.W
			}
			for _, e := range entities {
				r.Destroy(e)
			}
		}
	}
}
