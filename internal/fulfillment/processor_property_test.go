package fulfillment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/buildswift/orchestrator/internal/applog"
	"github.com/buildswift/orchestrator/internal/dedupe"
	"github.com/buildswift/orchestrator/internal/models"
	"github.com/buildswift/orchestrator/pkg/logger"
)

// **Property: redelivery never builds twice**
// For any sequence of deliveries drawn from a few event ids that all belong
// to one checkout session, exactly one build runs and exactly one payment
// and one deployment record are appended.

func TestRedeliveryBuildsOnce(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("one build per checkout session", prop.ForAll(
		func(ids []int) bool {
			logs, err := applog.NewFileStore(t.TempDir(), logger.Discard())
			if err != nil {
				return false
			}
			b := &fakeBuilder{}
			proc := New(b, logs, dedupe.New(100, time.Hour), logger.Discard())

			for _, id := range ids {
				if _, err := proc.Handle(context.Background(), completedEvent(fmt.Sprintf("evt_%d", id), "cs_same")); err != nil {
					return false
				}
			}

			payments, err := applog.ListAs[models.PaymentRecord](context.Background(), logs, models.LogPayments)
			if err != nil {
				return false
			}
			deployments, err := applog.ListAs[models.DeploymentRecord](context.Background(), logs, models.LogDeployments)
			if err != nil {
				return false
			}
			return b.Calls() == 1 && len(payments) == 1 && len(deployments) == 1
		},
		gen.SliceOfN(8, gen.IntRange(1, 3)).SuchThat(func(v []int) bool { return len(v) > 0 }),
	))

	properties.TestingRun(t)
}
