package workflows

import (
	"context"
	"errors"
	"fmt"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
	orderactivities "github.com/Apurer/pizzeria-api/internal/platform/temporal/activities/orders"
	orderworkflows "github.com/Apurer/pizzeria-api/internal/platform/temporal/workflows/orders"
)

var _ ports.NotificationRedelivery = (*TemporalNotificationRedelivery)(nil)

// workflowStarter is the subset of client.Client used to start workflows.
type workflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// TemporalNotificationRedelivery schedules durable notification retries on a Temporal cluster.
type TemporalNotificationRedelivery struct {
	client    workflowStarter
	taskQueue string
}

func NewTemporalNotificationRedelivery(c client.Client) *TemporalNotificationRedelivery {
	return &TemporalNotificationRedelivery{client: c, taskQueue: orderworkflows.NotificationTaskQueue}
}

// Redeliver starts the redelivery workflow and returns without waiting for it.
// At most one redelivery per order and kind runs at a time.
func (o *TemporalNotificationRedelivery) Redeliver(ctx context.Context, orderID string, kind ports.NotificationKind) error {
	if o == nil || o.client == nil {
		return errors.New("temporal notification redelivery not configured")
	}
	options := client.StartWorkflowOptions{
		ID:                       WorkflowID(orderID, kind),
		TaskQueue:                o.taskQueue,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
	}
	_, err := o.client.ExecuteWorkflow(ctx, options, orderworkflows.NotificationRedeliveryWorkflowName,
		orderactivities.NotificationInput{OrderID: orderID, Kind: kind})
	if err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &alreadyStarted) {
			return nil
		}
		return err
	}
	return nil
}

// WorkflowID is deterministic per order and notification kind.
func WorkflowID(orderID string, kind ports.NotificationKind) string {
	return fmt.Sprintf("order-notification-%s-%s", orderID, kind)
}
