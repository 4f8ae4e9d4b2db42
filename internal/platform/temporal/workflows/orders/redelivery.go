package orders

import (
	"go.temporal.io/sdk/workflow"

	orderactivities "github.com/Apurer/pizzeria-api/internal/platform/temporal/activities/orders"
	"github.com/Apurer/pizzeria-api/internal/platform/temporal/sequences"
)

const (
	// NotificationTaskQueue is polled by the worker that sends customer emails.
	NotificationTaskQueue = "orders-notifications"
	// NotificationRedeliveryWorkflowName is the registered workflow type.
	NotificationRedeliveryWorkflowName = "orders.workflows.NotificationRedelivery"
)

// NotificationRedeliveryWorkflow durably retries one failed customer notification.
func NotificationRedeliveryWorkflow(ctx workflow.Context, input orderactivities.NotificationInput) error {
	return sequences.RunNotificationRedeliverySequence(ctx, input)
}
