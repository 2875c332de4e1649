package applog

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/buildswift/orchestrator/internal/models"
	"github.com/buildswift/orchestrator/pkg/logger"
)

// **Property: concurrent appends lose nothing**
// For any N concurrent callers appending to the same log, the log afterwards
// holds exactly the prior entries followed by N new entries, each present once.

func TestConcurrentAppendsAreRaceSafe(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	properties := gopter.NewProperties(parameters)

	properties.Property("N concurrent appends yield exactly N new entries", prop.ForAll(
		func(existing, writers int) bool {
			s, err := NewFileStore(t.TempDir(), logger.Discard())
			if err != nil {
				t.Logf("store: %v", err)
				return false
			}
			ctx := context.Background()

			for i := 0; i < existing; i++ {
				if err := s.Append(ctx, models.LogDeployments, &models.DeploymentRecord{Slug: fmt.Sprintf("prior-%d", i)}); err != nil {
					return false
				}
			}

			var wg sync.WaitGroup
			errs := make(chan error, writers)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					errs <- s.Append(ctx, models.LogDeployments, &models.DeploymentRecord{Slug: fmt.Sprintf("new-%d", i)})
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				if err != nil {
					t.Logf("append: %v", err)
					return false
				}
			}

			deps, err := ListAs[models.DeploymentRecord](ctx, s, models.LogDeployments)
			if err != nil || len(deps) != existing+writers {
				return false
			}

			// Prior entries keep their position.
			for i := 0; i < existing; i++ {
				if deps[i].Slug != fmt.Sprintf("prior-%d", i) {
					return false
				}
			}

			seen := make(map[string]bool)
			ids := make(map[string]bool)
			for _, d := range deps[existing:] {
				if seen[d.Slug] || ids[d.ID] {
					return false
				}
				seen[d.Slug] = true
				ids[d.ID] = true
			}
			return len(seen) == writers
		},
		gen.IntRange(0, 5),
		gen.IntRange(1, 40),
	))

	properties.TestingRun(t)
}

// **Property: the log only grows**
// Every append increases the length by one and leaves the previous prefix intact.

func TestLogIsAppendOnly(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("appending preserves the existing prefix", prop.ForAll(
		func(slugs []string) bool {
			s, err := NewFileStore(t.TempDir(), logger.Discard())
			if err != nil {
				return false
			}
			ctx := context.Background()

			var before []string
			for _, slug := range slugs {
				if err := s.Append(ctx, models.LogDeployments, &models.DeploymentRecord{Slug: slug}); err != nil {
					return false
				}
				deps, err := ListAs[models.DeploymentRecord](ctx, s, models.LogDeployments)
				if err != nil || len(deps) != len(before)+1 {
					return false
				}
				for i, prev := range before {
					if deps[i].Slug != prev {
						return false
					}
				}
				before = append(before, slug)
			}
			return true
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}
