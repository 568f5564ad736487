package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/boardsync/boardsync/internal/app"
	"github.com/boardsync/boardsync/internal/domain/comment"
	"github.com/boardsync/boardsync/internal/domain/payment"
	"github.com/boardsync/boardsync/internal/domain/pool"
	"github.com/boardsync/boardsync/internal/domain/project"
	"github.com/boardsync/boardsync/internal/domain/task"
)

// toolset carries the tool handlers' shared state. Task tools act on the
// project selected by select_project.
type toolset struct {
	app *app.App

	mu       sync.Mutex
	selected string
}

func (ts *toolset) selectedProject() (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.selected == "" {
		return "", errors.New("no project selected; call select_project first")
	}
	return ts.selected, nil
}

func registerTools(server *sdkmcp.Server, a *app.App) {
	ts := &toolset{app: a}

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_projects",
		Description: "List all projects on the board",
	}, ts.listProjects)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "select_project",
		Description: "Select the project that task tools operate on, subscribing to its live updates",
	}, ts.selectProject)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "board_snapshot",
		Description: "Get the selected project's kanban board, column by column in display order",
	}, ts.boardSnapshot)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_tasks",
		Description: "List tasks in the selected project, optionally filtered by status or text search",
	}, ts.listTasks)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "create_task",
		Description: "Create a task in the selected project",
	}, ts.createTask)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "move_task",
		Description: "Move a task to another board column",
	}, ts.moveTask)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "reorder_tasks",
		Description: "Reorder one column of the selected project; only changed positions are sent to the server",
	}, ts.reorderTasks)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "delete_task",
		Description: "Delete a task",
	}, ts.deleteTask)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "comment_on_task",
		Description: "Post a comment on a task; @[Name](id) and @[everyone] mentions are resolved to notification targets",
	}, ts.commentOnTask)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_fund_pools",
		Description: "List fund pools with their enabled state and execution counters",
	}, ts.listFundPools)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "create_sample_order",
		Description: "Create a demo order with an active payment QR code",
	}, ts.createSampleOrder)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "payment_status",
		Description: "Get the active payment QR's status and remaining time",
	}, ts.paymentStatus)
}

type emptyInput struct{}

type listProjectsOutput struct {
	Projects []project.Project `json:"projects"`
}

func (ts *toolset) listProjects(ctx context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, listProjectsOutput, error) {
	if err := ts.app.Projects.Load(ctx); err != nil {
		return nil, listProjectsOutput{}, err
	}
	return nil, listProjectsOutput{Projects: ts.app.Projects.All()}, nil
}

type selectProjectInput struct {
	ProjectID string `json:"projectId"`
}

type selectProjectOutput struct {
	Project   project.Project `json:"project"`
	TaskCount int             `json:"taskCount"`
}

func (ts *toolset) selectProject(ctx context.Context, _ *sdkmcp.CallToolRequest, in selectProjectInput) (*sdkmcp.CallToolResult, selectProjectOutput, error) {
	if err := ts.app.SelectProject(ctx, in.ProjectID); err != nil {
		return nil, selectProjectOutput{}, err
	}

	ts.mu.Lock()
	ts.selected = in.ProjectID
	ts.mu.Unlock()

	p, ok := ts.app.Projects.Get(in.ProjectID)
	if !ok {
		loaded, err := ts.app.Client.Projects().Get(ctx, in.ProjectID)
		if err != nil {
			return nil, selectProjectOutput{}, err
		}
		p = *loaded
	}
	return nil, selectProjectOutput{
		Project:   p,
		TaskCount: len(ts.app.Tasks.Filtered(task.Filters{ProjectID: in.ProjectID})),
	}, nil
}

type boardColumn struct {
	Status task.Status `json:"status"`
	Tasks  []task.Task `json:"tasks"`
}

type boardSnapshotOutput struct {
	ProjectID string        `json:"projectId"`
	Columns   []boardColumn `json:"columns"`
}

func (ts *toolset) boardSnapshot(_ context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, boardSnapshotOutput, error) {
	projectID, err := ts.selectedProject()
	if err != nil {
		return nil, boardSnapshotOutput{}, err
	}

	out := boardSnapshotOutput{ProjectID: projectID}
	for _, status := range task.Columns {
		out.Columns = append(out.Columns, boardColumn{
			Status: status,
			Tasks:  ts.app.Tasks.ByStatus(status, projectID),
		})
	}
	return nil, out, nil
}

type listTasksInput struct {
	Status string `json:"status,omitempty"`
	Search string `json:"search,omitempty"`
}

type listTasksOutput struct {
	Tasks []task.Task `json:"tasks"`
}

func (ts *toolset) listTasks(_ context.Context, _ *sdkmcp.CallToolRequest, in listTasksInput) (*sdkmcp.CallToolResult, listTasksOutput, error) {
	projectID, err := ts.selectedProject()
	if err != nil {
		return nil, listTasksOutput{}, err
	}

	tasks := ts.app.Tasks.Filtered(task.Filters{
		ProjectID: projectID,
		Status:    task.Status(in.Status),
		Search:    in.Search,
	})
	return nil, listTasksOutput{Tasks: tasks}, nil
}

type createTaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

type taskOutput struct {
	Task task.Task `json:"task"`
}

func (ts *toolset) createTask(ctx context.Context, _ *sdkmcp.CallToolRequest, in createTaskInput) (*sdkmcp.CallToolResult, taskOutput, error) {
	projectID, err := ts.selectedProject()
	if err != nil {
		return nil, taskOutput{}, err
	}

	created, err := ts.app.Tasks.Create(ctx, projectID, task.CreateInput{
		Title:       in.Title,
		Description: in.Description,
		Status:      task.Status(in.Status),
		Priority:    task.Priority(in.Priority),
	})
	if err != nil {
		return nil, taskOutput{}, err
	}
	return nil, taskOutput{Task: *created}, nil
}

type moveTaskInput struct {
	TaskID string `json:"taskId"`
	Status string `json:"status"`
}

func (ts *toolset) moveTask(ctx context.Context, _ *sdkmcp.CallToolRequest, in moveTaskInput) (*sdkmcp.CallToolResult, taskOutput, error) {
	if err := ts.app.Tasks.Move(ctx, in.TaskID, task.Status(in.Status)); err != nil {
		return nil, taskOutput{}, err
	}
	moved, ok := ts.app.Tasks.Get(in.TaskID)
	if !ok {
		return nil, taskOutput{}, task.ErrNotFound
	}
	return nil, taskOutput{Task: moved}, nil
}

type reorderTasksInput struct {
	Status     string   `json:"status"`
	OrderedIDs []string `json:"orderedIds"`
}

type reorderTasksOutput struct {
	Tasks []task.Task `json:"tasks"`
}

func (ts *toolset) reorderTasks(ctx context.Context, _ *sdkmcp.CallToolRequest, in reorderTasksInput) (*sdkmcp.CallToolResult, reorderTasksOutput, error) {
	projectID, err := ts.selectedProject()
	if err != nil {
		return nil, reorderTasksOutput{}, err
	}
	if err := ts.app.Tasks.Reorder(ctx, projectID, in.OrderedIDs); err != nil {
		return nil, reorderTasksOutput{}, err
	}
	return nil, reorderTasksOutput{
		Tasks: ts.app.Tasks.ByStatus(task.Status(in.Status), projectID),
	}, nil
}

type deleteTaskInput struct {
	TaskID string `json:"taskId"`
}

type deleteTaskOutput struct {
	Deleted string `json:"deleted"`
}

func (ts *toolset) deleteTask(ctx context.Context, _ *sdkmcp.CallToolRequest, in deleteTaskInput) (*sdkmcp.CallToolResult, deleteTaskOutput, error) {
	if err := ts.app.Tasks.Delete(ctx, in.TaskID); err != nil {
		return nil, deleteTaskOutput{}, err
	}
	return nil, deleteTaskOutput{Deleted: in.TaskID}, nil
}

type commentInput struct {
	TaskID  string `json:"taskId"`
	Content string `json:"content"`
}

type commentOutput struct {
	Comment        comment.Comment `json:"comment"`
	MentionTargets []string        `json:"mentionTargets"`
}

func (ts *toolset) commentOnTask(ctx context.Context, _ *sdkmcp.CallToolRequest, in commentInput) (*sdkmcp.CallToolResult, commentOutput, error) {
	created, err := ts.app.Comments.Create(ctx, in.TaskID, in.Content)
	if err != nil {
		return nil, commentOutput{}, err
	}

	targets := comment.MentionTargets(in.Content, ts.app.Members.MentionRoster(), created.UserID)
	return nil, commentOutput{Comment: *created, MentionTargets: targets}, nil
}

type listPoolsOutput struct {
	Pools           []pool.FundPool `json:"pools"`
	ExecutorEnabled bool            `json:"executorEnabled"`
}

func (ts *toolset) listFundPools(ctx context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, listPoolsOutput, error) {
	if err := ts.app.Pools.Load(ctx); err != nil {
		return nil, listPoolsOutput{}, err
	}
	return nil, listPoolsOutput{
		Pools:           ts.app.Pools.All(),
		ExecutorEnabled: ts.app.Pools.ExecutorEnabled(),
	}, nil
}

type sampleOrderOutput struct {
	Order     payment.Order `json:"order"`
	QRID      string        `json:"qrId"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

func (ts *toolset) createSampleOrder(ctx context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, sampleOrderOutput, error) {
	result, err := ts.app.Payments.CreateSampleOrder(ctx)
	if err != nil {
		return nil, sampleOrderOutput{}, err
	}
	return nil, sampleOrderOutput{
		Order: result.Order, QRID: result.QRID, ExpiresAt: result.ExpiresAt,
	}, nil
}

type paymentStatusOutput struct {
	QRID             string `json:"qrId,omitempty"`
	Status           string `json:"status,omitempty"`
	RemainingSeconds int    `json:"remainingSeconds"`
}

func (ts *toolset) paymentStatus(_ context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, paymentStatusOutput, error) {
	qr, status, remaining := ts.app.Payments.ActiveQR()
	if qr == nil {
		return nil, paymentStatusOutput{}, fmt.Errorf("no active payment QR")
	}
	return nil, paymentStatusOutput{
		QRID:             qr.QRID,
		Status:           string(status),
		RemainingSeconds: int(remaining / time.Second),
	}, nil
}
