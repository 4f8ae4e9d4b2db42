package sequences

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	orderactivities "github.com/Apurer/pizzeria-api/internal/platform/temporal/activities/orders"
)

// RunNotificationRedeliverySequence retries a customer email with backoff until
// it is delivered, becomes obsolete, or the attempts are exhausted.
func RunNotificationRedeliverySequence(ctx workflow.Context, input orderactivities.NotificationInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("notification redelivery started", "orderId", input.OrderID, "kind", string(input.Kind))
	options := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        10 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        5 * time.Minute,
			MaximumAttempts:        10,
			NonRetryableErrorTypes: []string{orderactivities.ErrTypeNotificationObsolete},
		},
	}

	err := workflow.ExecuteActivity(workflow.WithActivityOptions(ctx, options), orderactivities.ResendNotificationActivityName, input).Get(ctx, nil)
	if err != nil {
		logger.Error("notification redelivery failed", "orderId", input.OrderID, "kind", string(input.Kind), "error", err)
		return err
	}
	logger.Info("notification redelivered", "orderId", input.OrderID, "kind", string(input.Kind))
	return nil
}
