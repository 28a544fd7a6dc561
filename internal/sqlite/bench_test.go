// Benchmarks for aggregate writes, reads and filtered listing.
package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/mesh-intelligence/recipebox/pkg/types"
)

func newBenchBackend(b *testing.B) *Backend {
	b.Helper()
	backend := NewBackend(nil)
	if err := backend.Attach(testConfig(b.TempDir())); err != nil {
		b.Fatalf("attach: %v", err)
	}
	b.Cleanup(func() { backend.Detach() })
	return backend
}

func benchAggregate(i int) *types.RecipeAggregate {
	return &types.RecipeAggregate{
		Recipe: types.Recipe{Title: fmt.Sprintf("Benchmark recipe %d", i), Servings: types.IntPtr(2)},
		Ingredients: []types.RecipeIngredient{
			{Name: "rice", Amount: types.Float64Ptr(1), Unit: "cup"},
			{Name: "water", Amount: types.Float64Ptr(1.2), Unit: "cup"},
			{Name: "salt"},
		},
		Steps: []types.RecipeStep{
			{StepNumber: 1, Description: "Rinse"},
			{StepNumber: 2, Description: "Simmer"},
		},
		Tags: []types.Tag{{Name: fmt.Sprintf("tag-%d", i%10)}},
	}
}

func seedRecipes(b *testing.B, backend *Backend, n int) []int64 {
	b.Helper()
	rt, err := backend.Recipes()
	if err != nil {
		b.Fatal(err)
	}
	ids := make([]int64, n)
	for i := range n {
		agg, err := rt.CreateAggregate(context.Background(), benchAggregate(i))
		if err != nil {
			b.Fatalf("seed recipe %d: %v", i, err)
		}
		ids[i] = agg.Recipe.ID
	}
	return ids
}

func BenchmarkCreateAggregate(b *testing.B) {
	backend := newBenchBackend(b)
	rt, err := backend.Recipes()
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := rt.CreateAggregate(ctx, benchAggregate(i)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGetAggregate(b *testing.B) {
	backend := newBenchBackend(b)
	ids := seedRecipes(b, backend, 100)
	rt, _ := backend.Recipes()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := rt.GetAggregate(ctx, ids[i%len(ids)], types.ReadOptions{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFetch(b *testing.B) {
	for _, size := range []int{100, 1000} {
		b.Run(fmt.Sprintf("size=%d", size), func(b *testing.B) {
			backend := newBenchBackend(b)
			seedRecipes(b, backend, size)
			rt, _ := backend.Recipes()
			ctx := context.Background()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := rt.Fetch(ctx, types.RecipeFilter{TitleContains: "recipe 9", Limit: 20}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
