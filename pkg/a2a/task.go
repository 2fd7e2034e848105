package a2a

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/syedsany6/a2a-runtime/pkg/jsonrpc"
)

// Task is the unit of work tracked by the engine (§3). State transitions are
// owned by the engine, not by Task itself — these are plain data plus the
// small set of read helpers every caller needs.
type Task struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId,omitempty"`
	Status    TaskStatus     `json:"status"`
	History   []Message      `json:"history,omitempty"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Validate reports the minimal shape a Task must have to be persisted or
// emitted: a non-blank id/sessionId and a non-blank status state.
func (task *Task) Validate() error {
	if strings.TrimSpace(task.ID) == "" {
		return fmt.Errorf("task: id must not be blank")
	}
	if strings.TrimSpace(task.SessionID) == "" {
		return fmt.Errorf("task: sessionId must not be blank")
	}
	if strings.TrimSpace(string(task.Status.State)) == "" {
		return fmt.Errorf("task: status.state must not be blank")
	}
	return nil
}

// NewTask creates a fresh Task in the submitted state with a new id and
// session id, per §4.4's "new Task" path.
func NewTask() *Task {
	return &Task{
		ID:        uuid.New().String(),
		SessionID: uuid.New().String(),
		Status: TaskStatus{
			State:     TaskStateSubmitted,
			Timestamp: time.Now(),
		},
		History:   make([]Message, 0),
		Artifacts: make([]Artifact, 0),
		Metadata:  make(map[string]any),
	}
}

func (task *Task) LastMessage() *Message {
	if len(task.History) == 0 {
		return nil
	}
	return &task.History[len(task.History)-1]
}

func (task *Task) AddFinalPart(part Part) {
	task.History = append(task.History, Message{
		Role:  "agent",
		Parts: []Part{part},
	})
}

/*
TaskStatusUpdateEvent is sent when the agent wishes to inform the client of
a status transition.
*/
type TaskStatusUpdateEvent struct {
	ID       string         `json:"id"`
	Status   TaskStatus     `json:"status"`
	Final    bool           `json:"final"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

/*
TaskArtifactUpdateEvent is emitted when a new or updated artefact is
available for a task.
*/
type TaskArtifactUpdateEvent struct {
	ID       string         `json:"id"`
	Artifact Artifact       `json:"artifact"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TaskHistory represents the history of a task
type TaskHistory struct {
	MessageHistory []Message `json:"messageHistory,omitempty"`
}

// TaskSendParams represents the parameters for sending a task message
type TaskSendParams struct {
	ID                  string                  `json:"id"`
	SessionID           string                  `json:"sessionId,omitempty"`
	Message             Message                 `json:"message"`
	AcceptedOutputModes []string                `json:"acceptedOutputModes,omitempty"`
	PushNotification    *PushNotificationConfig `json:"pushNotification,omitempty"`
	HistoryLength       *int                    `json:"historyLength,omitempty"`
	Metadata            map[string]any          `json:"metadata,omitempty"`
}

// TaskIDParams represents the base parameters for task ID-based operations
type TaskIDParams struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TaskQueryParams represents the parameters for querying task information
type TaskQueryParams struct {
	TaskIDParams
	HistoryLength *int `json:"historyLength,omitempty"`
}

// PushNotificationConfig represents the configuration for push notifications
type PushNotificationConfig struct {
	URL            string               `json:"url"`
	Token          *string              `json:"token,omitempty"`
	Authentication *AgentAuthentication `json:"authentication,omitempty"`
}

// TaskPushNotificationConfig represents the configuration for task-specific push notifications
type TaskPushNotificationConfig struct {
	ID                     string                 `json:"id"`
	PushNotificationConfig PushNotificationConfig `json:"pushNotificationConfig"`
}

// SendTaskRequest represents a request to send a task message
type SendTaskRequest struct {
	jsonrpc.Request
	Method string         `json:"method"`
	Params TaskSendParams `json:"params"`
}

// GetTaskRequest represents a request to get task status
type GetTaskRequest struct {
	jsonrpc.Request
	Method string          `json:"method"`
	Params TaskQueryParams `json:"params"`
}

// CancelTaskRequest represents a request to cancel a task
type CancelTaskRequest struct {
	jsonrpc.Request
	Method string       `json:"method"`
	Params TaskIDParams `json:"params"`
}

// SetTaskPushNotificationRequest represents a request to set task notifications
type SetTaskPushNotificationRequest struct {
	jsonrpc.Request
	Method string                     `json:"method"`
	Params TaskPushNotificationConfig `json:"params"`
}

// GetTaskPushNotificationRequest represents a request to get task notification configuration
type GetTaskPushNotificationRequest struct {
	jsonrpc.Request
	Method string       `json:"method"`
	Params TaskIDParams `json:"params"`
}

// TaskResubscriptionRequest represents a request to resubscribe to task updates
type TaskResubscriptionRequest struct {
	jsonrpc.Request
	Method string          `json:"method"`
	Params TaskQueryParams `json:"params"`
}

// SendTaskStreamingRequest represents a request to send a task message and subscribe to updates
type SendTaskStreamingRequest struct {
	jsonrpc.Request
	Method string         `json:"method"`
	Params TaskSendParams `json:"params"`
}

type TaskStatusUpdateResponse struct {
	jsonrpc.Response
	Result TaskStatusUpdateResult `json:"result"`
}

type TaskStatusUpdateResult struct {
	ID       string         `json:"id"`
	Status   TaskStatus     `json:"status"`
	Final    bool           `json:"final"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (task *Task) String() string {
	var sb strings.Builder

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("212")).
		Bold(true)

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("39")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("252"))

	sectionStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		Bold(true)

	indent := "   "
	bullet := "│ "

	sb.WriteString(headerStyle.Render("Task Details") + "\n")
	sb.WriteString(bullet + labelStyle.Render("ID: ") + valueStyle.Render(task.ID) + "\n")
	if task.SessionID != "" {
		sb.WriteString(bullet + labelStyle.Render("Session ID: ") + valueStyle.Render(task.SessionID) + "\n")
	}

	sb.WriteString("\n" + sectionStyle.Render("Status") + "\n")
	sb.WriteString(bullet + labelStyle.Render("State: ") + valueStyle.Render(string(task.Status.State)) + "\n")
	if task.Status.Message != nil && len(task.Status.Message.Parts) > 0 {
		sb.WriteString(bullet + labelStyle.Render("Message: ") + valueStyle.Render(task.Status.Message.Parts[0].Text) + "\n")
	}

	sb.WriteString(bullet + labelStyle.Render("Timestamp: ") + valueStyle.Render(task.Status.Timestamp.Format(time.RFC3339)) + "\n")

	if len(task.History) > 0 {
		sb.WriteString("\n" + sectionStyle.Render("History") + "\n")
		for i, message := range task.History {
			sb.WriteString(bullet + labelStyle.Render(fmt.Sprintf("Message %d", i+1)) + "\n")
			sb.WriteString(bullet + indent + labelStyle.Render("Role: ") + valueStyle.Render(message.Role) + "\n")
			if name, ok := message.Metadata["name"].(string); ok && name != "" {
				sb.WriteString(bullet + indent + labelStyle.Render("Name: ") + valueStyle.Render(name) + "\n")
			}
			for _, part := range message.Parts {
				sb.WriteString(bullet + indent + labelStyle.Render("Content: ") + valueStyle.Render(part.Text) + "\n")
			}
		}
	}

	if len(task.Artifacts) > 0 {
		sb.WriteString("\n" + sectionStyle.Render("Artifacts") + "\n")
		for i, artifact := range task.Artifacts {
			sb.WriteString(bullet + labelStyle.Render(fmt.Sprintf("Artifact %d", i+1)) + "\n")
			if artifact.Name != nil {
				sb.WriteString(bullet + indent + labelStyle.Render("Name: ") + valueStyle.Render(*artifact.Name) + "\n")
			}
			if artifact.Description != nil {
				sb.WriteString(bullet + indent + labelStyle.Render("Description: ") + valueStyle.Render(*artifact.Description) + "\n")
			}
			for j, part := range artifact.Parts {
				sb.WriteString(bullet + indent + labelStyle.Render(fmt.Sprintf("Part %d: ", j+1)) + valueStyle.Render(part.Text) + "\n")
			}
		}
	}

	if len(task.Metadata) > 0 {
		sb.WriteString("\n" + sectionStyle.Render("Metadata") + "\n")
		keys := make([]string, 0, len(task.Metadata))
		for k := range task.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(bullet + labelStyle.Render(k+": ") + valueStyle.Render(fmt.Sprintf("%v", task.Metadata[k])) + "\n")
		}
	}

	return sb.String()
}
