package workflow

import (
	"context"

	"github.com/google/uuid"

	"github.com/eduflow/eduflow/types"
)

// HandleTask services the inbound task contract. Unrecognized task types
// fail with an UNKNOWN_TASK error naming the type.
func (o *Orchestrator) HandleTask(ctx context.Context, task types.Task) (map[string]any, error) {
	switch task.Type {
	case types.TaskCreateWorkflow:
		template := stringField(task.Data, "template")
		priority := types.Priority(stringField(task.Data, "priority"))
		wf, err := o.Create(template, paramsField(task.Data, "parameters"), priority)
		if err != nil {
			return nil, err
		}
		return map[string]any{"workflowId": wf.ID}, nil

	case types.TaskExecuteWorkflow:
		id := stringField(task.Data, "workflowId")
		if err := o.Execute(ctx, id); err != nil {
			return nil, err
		}
		return map[string]any{"workflowId": id, "status": string(o.Status(ctx, id).Status)}, nil

	case types.TaskPauseWorkflow:
		id := stringField(task.Data, "workflowId")
		if err := o.Pause(id); err != nil {
			return nil, err
		}
		return map[string]any{"workflowId": id, "status": string(StatusPaused)}, nil

	case types.TaskResumeWorkflow:
		id := stringField(task.Data, "workflowId")
		if err := o.Resume(ctx, id); err != nil {
			return nil, err
		}
		return map[string]any{"workflowId": id, "status": string(o.Status(ctx, id).Status)}, nil

	case types.TaskCancelWorkflow:
		id := stringField(task.Data, "workflowId")
		if err := o.Cancel(ctx, id); err != nil {
			return nil, err
		}
		return map[string]any{"workflowId": id, "status": string(StatusFailed)}, nil

	case types.TaskGetWorkflowStatus:
		report := o.Status(ctx, stringField(task.Data, "workflowId"))
		return reportToMap(report), nil

	default:
		return nil, types.NewErrorf(types.ErrUnknownTask, "unknown task type %s", task.Type)
	}
}

// HandleMessage services the inbound message contract. Replies carry a
// response type and echo the request id as the correlation id. Operation
// failures are conveyed in-band as error-response envelopes; only an
// unrecognized message type is returned as an error.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg *types.AgentMessage) (*types.AgentMessage, error) {
	switch msg.Type {
	case types.MsgWorkflowCreateRequest:
		return o.reply(ctx, msg, types.Task{Type: types.TaskCreateWorkflow, Data: msg.Data})

	case types.MsgWorkflowExecuteRequest:
		return o.reply(ctx, msg, types.Task{Type: types.TaskExecuteWorkflow, Data: msg.Data})

	case types.MsgWorkflowStatusRequest:
		return o.reply(ctx, msg, types.Task{Type: types.TaskGetWorkflowStatus, Data: msg.Data})

	case types.MsgWorkflowStepComplete:
		return o.acknowledgeStep(msg), nil

	default:
		return nil, types.NewErrorf(types.ErrUnknownMessage,
			"unknown message type %s", msg.Type)
	}
}

// reply runs a task and wraps the outcome in a response envelope.
func (o *Orchestrator) reply(ctx context.Context, msg *types.AgentMessage, task types.Task) (*types.AgentMessage, error) {
	data, err := o.HandleTask(ctx, task)
	if err != nil {
		return msg.Response(uuid.NewString(), types.MsgErrorResponse, map[string]any{
			"error": err.Error(),
			"code":  string(types.GetErrorCode(err)),
		}), nil
	}
	return msg.Response(uuid.NewString(), types.MsgWorkflowResponse, data), nil
}

// acknowledgeStep records an externally reported step completion. The
// notification only applies to a step the engine currently has in flight;
// anything else is acknowledged without effect.
func (o *Orchestrator) acknowledgeStep(msg *types.AgentMessage) *types.AgentMessage {
	workflowID := stringField(msg.Data, "workflowId")
	stepID := stringField(msg.Data, "stepId")

	applied := false
	o.mu.Lock()
	if wf, ok := o.workflows[workflowID]; ok {
		if step := wf.StepByID(stepID); step != nil && step.Status == StepInProgress {
			step.Status = StepCompleted
			if output, ok := msg.Data["output"].(map[string]any); ok {
				step.Output = output
			}
			applied = true
		}
	}
	o.mu.Unlock()

	return msg.Response(uuid.NewString(), types.MsgWorkflowResponse, map[string]any{
		"workflowId": workflowID,
		"stepId":     stepID,
		"applied":    applied,
	})
}

func reportToMap(r StatusReport) map[string]any {
	if !r.Found {
		return map[string]any{"status": "not_found"}
	}
	m := map[string]any{
		"workflowId":     r.WorkflowID,
		"name":           r.Name,
		"status":         string(r.Status),
		"progress":       r.Progress,
		"completedSteps": r.CompletedSteps,
		"totalSteps":     r.TotalSteps,
	}
	if r.CurrentStep != "" {
		m["currentStep"] = r.CurrentStep
	}
	return m
}

func stringField(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	s, _ := data[key].(string)
	return s
}

// paramsField extracts per-step parameters from loosely typed task data.
func paramsField(data map[string]any, key string) Parameters {
	raw, ok := data[key].(map[string]any)
	if !ok {
		return nil
	}
	params := make(Parameters, len(raw))
	for stepID, v := range raw {
		if m, ok := v.(map[string]any); ok {
			params[stepID] = m
		}
	}
	return params
}
