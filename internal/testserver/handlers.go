package testserver

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/boardsync/boardsync/internal/domain/comment"
	"github.com/boardsync/boardsync/internal/domain/label"
	"github.com/boardsync/boardsync/internal/domain/member"
	"github.com/boardsync/boardsync/internal/domain/notification"
	"github.com/boardsync/boardsync/internal/domain/payment"
	"github.com/boardsync/boardsync/internal/domain/pool"
	"github.com/boardsync/boardsync/internal/domain/project"
	"github.com/boardsync/boardsync/internal/domain/sprint"
	"github.com/boardsync/boardsync/internal/domain/task"
	"github.com/boardsync/boardsync/internal/realtime"
)

func (s *Server) routes(r *mux.Router) {
	// Reorder must register ahead of the id route.
	r.HandleFunc("/tasks/reorder", s.reorderTasks).Methods(http.MethodPatch)
	r.HandleFunc("/tasks/my-tasks", s.listAllTasks).Methods(http.MethodGet)
	r.HandleFunc("/tasks/project/{projectID}", s.listProjectTasks).Methods(http.MethodGet)
	r.HandleFunc("/tasks", s.createTask).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{id}", s.getTask).Methods(http.MethodGet)
	r.HandleFunc("/tasks/{id}", s.updateTask).Methods(http.MethodPut)
	r.HandleFunc("/tasks/{id}/status", s.updateTaskStatus).Methods(http.MethodPatch)
	r.HandleFunc("/tasks/{id}", s.deleteTask).Methods(http.MethodDelete)

	r.HandleFunc("/tasks/{id}/comments", s.listComments).Methods(http.MethodGet)
	r.HandleFunc("/tasks/{id}/comments", s.createComment).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{id}/comments/{commentID}", s.updateComment).Methods(http.MethodPut)
	r.HandleFunc("/tasks/{id}/comments/{commentID}", s.deleteComment).Methods(http.MethodDelete)

	r.HandleFunc("/projects", s.listProjects).Methods(http.MethodGet)
	r.HandleFunc("/projects", s.createProject).Methods(http.MethodPost)
	r.HandleFunc("/projects/{id}", s.getProject).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id}", s.updateProject).Methods(http.MethodPut)
	r.HandleFunc("/projects/{id}", s.deleteProject).Methods(http.MethodDelete)
	r.HandleFunc("/projects/{id}/archive", s.setProjectStatus(project.StatusArchived)).Methods(http.MethodPut)
	r.HandleFunc("/projects/{id}/activate", s.setProjectStatus(project.StatusActive)).Methods(http.MethodPut)
	r.HandleFunc("/projects/{id}/members/details", s.listUsers).Methods(http.MethodGet)

	r.HandleFunc("/projects/{id}/sprints", s.listSprints).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id}/sprints", s.createSprint).Methods(http.MethodPost)
	r.HandleFunc("/projects/{id}/sprints/{sprintID}", s.updateSprint("")).Methods(http.MethodPut)
	r.HandleFunc("/projects/{id}/sprints/{sprintID}/start", s.updateSprint(sprint.StatusActive)).Methods(http.MethodPut)
	r.HandleFunc("/projects/{id}/sprints/{sprintID}/close", s.updateSprint(sprint.StatusClosed)).Methods(http.MethodPut)
	r.HandleFunc("/projects/{id}/sprints/{sprintID}", s.deleteSprint).Methods(http.MethodDelete)

	r.HandleFunc("/projects/{id}/labels/all", s.listLabels).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id}/labels", s.createLabel).Methods(http.MethodPost)
	r.HandleFunc("/projects/{id}/labels/{labelID}", s.updateLabel).Methods(http.MethodPut)
	r.HandleFunc("/projects/{id}/labels/{labelID}", s.deleteLabel).Methods(http.MethodDelete)

	r.HandleFunc("/fund-pools", s.listPools).Methods(http.MethodGet)
	r.HandleFunc("/fund-pools", s.createPool).Methods(http.MethodPost)
	r.HandleFunc("/fund-pools/{id}", s.updatePool).Methods(http.MethodPut)
	r.HandleFunc("/fund-pools/{id}/toggle", s.togglePool).Methods(http.MethodPatch)
	r.HandleFunc("/fund-pools/{id}/execute", s.executePool).Methods(http.MethodPost)
	r.HandleFunc("/fund-pools/{id}/executions", s.listExecutions).Methods(http.MethodGet)
	r.HandleFunc("/fund-pools/{id}", s.deletePool).Methods(http.MethodDelete)
	r.HandleFunc("/feature-flags/evaluate", s.evaluateFlags).Methods(http.MethodGet)

	r.HandleFunc("/orders", s.listOrders).Methods(http.MethodGet)
	r.HandleFunc("/orders", s.createOrder).Methods(http.MethodPost)
	r.HandleFunc("/orders/{id}/cancel", s.cancelOrder).Methods(http.MethodPatch)
	r.HandleFunc("/payments/sample-order", s.sampleOrder).Methods(http.MethodPost)
	r.HandleFunc("/payments/qr", s.generateQR).Methods(http.MethodPost)

	r.HandleFunc("/notifications", s.listNotifications).Methods(http.MethodGet)
	r.HandleFunc("/notifications/unread-count", s.unreadCount).Methods(http.MethodGet)
	r.HandleFunc("/notifications/read-all", s.markAllRead).Methods(http.MethodPatch)
	r.HandleFunc("/notifications/{id}/read", s.markRead).Methods(http.MethodPatch)

	r.HandleFunc("/users", s.listUsers).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeList(w http.ResponseWriter, data any, total, skip, limit int) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true, "data": data, "total": total, "skip": skip, "limit": limit,
	})
}

func writeEntity(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return fallback
}

// Tasks

func (s *Server) listAllTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeList(w, tasks, len(tasks), 0, queryInt(r, "limit", 100))
}

func (s *Server) listProjectTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.ListByProject(r.Context(), mux.Vars(r)["projectID"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeList(w, tasks, len(tasks), 0, queryInt(r, "limit", 100))
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeEntity(w, http.StatusOK, t)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var in task.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	projectID := r.URL.Query().Get("projectId")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, "projectId required")
		return
	}

	now := time.Now().UTC()
	t := task.Task{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		AssigneeID:  in.AssigneeID,
		ProjectID:   projectID,
		ParentID:    in.ParentID,
		SprintID:    in.SprintID,
		Tags:        in.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Status == "" {
		t.Status = task.StatusTodo
	}

	existing, err := s.tasks.ListByProject(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, other := range existing {
		if other.Status == t.Status && other.Order >= t.Order {
			t.Order = other.Order + 1
		}
	}
	if t.Order == 0 {
		t.Order = 1
	}

	if err := s.tasks.Put(r.Context(), t); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.hub.broadcast(realtime.ProjectRoom(projectID), realtime.EventTaskCreated, map[string]any{
		"originClientId": originClientID(r), "task": t,
	})
	writeEntity(w, http.StatusCreated, t)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	current, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	// Shallow merge: absent fields keep the stored values.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	updated := *current
	if err := json.Unmarshal(body, &updated); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	updated.ID = id
	updated.UpdatedAt = time.Now().UTC()

	if err := s.tasks.Put(r.Context(), updated); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.hub.broadcast(realtime.ProjectRoom(updated.ProjectID), realtime.EventTaskUpdated, map[string]any{
		"originClientId": originClientID(r), "task": updated,
	})
	writeEntity(w, http.StatusOK, updated)
}

func (s *Server) updateTaskStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	current, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	var body struct {
		Status task.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	current.Status = body.Status
	current.UpdatedAt = time.Now().UTC()
	if err := s.tasks.Put(r.Context(), *current); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.hub.broadcast(realtime.ProjectRoom(current.ProjectID), realtime.EventTaskMoved, map[string]any{
		"originClientId": originClientID(r), "task": current,
	})
	writeEntity(w, http.StatusOK, current)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	current, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err := s.tasks.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.hub.broadcast(realtime.ProjectRoom(current.ProjectID), realtime.EventTaskDeleted, map[string]any{
		"originClientId": originClientID(r), "taskId": id,
	})
	writeMessage(w, "task deleted")
}

func (s *Server) reorderTasks(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProjectID  string            `json:"projectId"`
		TaskOrders []task.OrderPatch `json:"taskOrders"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if len(body.TaskOrders) == 0 {
		writeError(w, http.StatusBadRequest, "empty reorder")
		return
	}

	if err := s.tasks.ApplyOrders(r.Context(), body.TaskOrders); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.hub.broadcast(realtime.ProjectRoom(body.ProjectID), realtime.EventTaskReordered, map[string]any{
		"originClientId": originClientID(r), "taskOrders": body.TaskOrders,
	})
	writeMessage(w, "tasks reordered")
}

// Comments

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.comments.ListByTask(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeList(w, comments, len(comments), 0, queryInt(r, "limit", 100))
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["id"]
	now := time.Now().UTC()
	c := comment.Comment{
		ID:          uuid.NewString(),
		TaskID:      taskID,
		UserID:      authUser(r),
		Attachments: []comment.Attachment{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart body")
			return
		}
		c.Content = r.FormValue("content")
		if file, header, err := r.FormFile("file"); err == nil {
			size, _ := io.Copy(io.Discard, file)
			file.Close()
			c.Attachments = append(c.Attachments, comment.Attachment{
				URL:      "/uploads/" + header.Filename,
				Filename: header.Filename,
				Size:     size,
			})
		}
	} else {
		var body struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		c.Content = body.Content
	}

	if err := s.comments.Put(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeEntity(w, http.StatusCreated, c)
}

func (s *Server) updateComment(w http.ResponseWriter, r *http.Request) {
	commentID := mux.Vars(r)["commentID"]
	current, err := s.comments.Get(r.Context(), commentID)
	if err != nil {
		writeError(w, http.StatusNotFound, "comment not found")
		return
	}

	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	current.Content = body.Content
	current.UpdatedAt = time.Now().UTC()
	// Update responses carry the bare author id, as the real backend does.
	current.User = nil
	if err := s.comments.Put(r.Context(), *current); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeEntity(w, http.StatusOK, current)
}

func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) {
	if err := s.comments.Delete(r.Context(), mux.Vars(r)["commentID"]); err != nil {
		writeError(w, http.StatusNotFound, "comment not found")
		return
	}
	writeMessage(w, "comment deleted")
}

// Projects

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.projects.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeList(w, projects, len(projects), 0, queryInt(r, "limit", 100))
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.projects.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	writeEntity(w, http.StatusOK, p)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var in project.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	now := time.Now().UTC()
	p := project.Project{
		ID:          uuid.NewString(),
		WorkplaceID: r.URL.Query().Get("workplaceId"),
		Name:        in.Name,
		Description: in.Description,
		Color:       in.Color,
		Icon:        in.Icon,
		Status:      project.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.projects.Put(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.hub.broadcast(realtime.RoomProjects, realtime.EventProjectCreated, map[string]any{
		"originClientId": originClientID(r), "project": p,
	})
	writeEntity(w, http.StatusCreated, p)
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	current, err := s.projects.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	updated := *current
	if err := json.Unmarshal(body, &updated); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	updated.ID = id
	updated.UpdatedAt = time.Now().UTC()

	if err := s.projects.Put(r.Context(), updated); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.hub.broadcast(realtime.RoomProjects, realtime.EventProjectUpdated, map[string]any{
		"originClientId": originClientID(r), "project": updated,
	})
	writeEntity(w, http.StatusOK, updated)
}

func (s *Server) setProjectStatus(status project.ProjectStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		current, err := s.projects.Get(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		current.Status = status
		current.UpdatedAt = time.Now().UTC()
		if err := s.projects.Put(r.Context(), *current); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		s.hub.broadcast(realtime.RoomProjects, realtime.EventProjectUpdated, map[string]any{
			"originClientId": originClientID(r), "project": current,
		})
		writeEntity(w, http.StatusOK, current)
	}
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.projects.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	s.hub.broadcast(realtime.RoomProjects, realtime.EventProjectDeleted, map[string]any{
		"originClientId": originClientID(r), "projectId": id,
	})
	writeMessage(w, "project deleted")
}

// Sprints and labels live in memory; the development server treats them as
// session-scoped planning scratchpads.

func (s *Server) listSprints(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sprints := append([]sprint.Sprint(nil), s.sprints[mux.Vars(r)["id"]]...)
	s.mu.Unlock()
	writeList(w, sprints, len(sprints), 0, 100)
}

func (s *Server) createSprint(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]
	var in sprint.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	now := time.Now().UTC()
	sp := sprint.Sprint{
		ID: uuid.NewString(), ProjectID: projectID,
		Name: in.Name, Goal: in.Goal, Status: sprint.StatusPlanned,
		StartDate: in.StartDate, EndDate: in.EndDate,
		CreatedAt: now, UpdatedAt: now,
	}
	s.mu.Lock()
	s.sprints[projectID] = append(s.sprints[projectID], sp)
	s.mu.Unlock()
	writeEntity(w, http.StatusCreated, sp)
}

func (s *Server) updateSprint(status sprint.SprintStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		projectID, sprintID := vars["id"], vars["sprintID"]

		var in sprint.Input
		if status == "" {
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
				writeError(w, http.StatusBadRequest, "invalid body")
				return
			}
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sp := range s.sprints[projectID] {
			if sp.ID != sprintID {
				continue
			}
			if status != "" {
				sp.Status = status
			} else {
				if in.Name != "" {
					sp.Name = in.Name
				}
				if in.Goal != "" {
					sp.Goal = in.Goal
				}
				if in.StartDate != nil {
					sp.StartDate = in.StartDate
				}
				if in.EndDate != nil {
					sp.EndDate = in.EndDate
				}
			}
			sp.UpdatedAt = time.Now().UTC()
			s.sprints[projectID][i] = sp
			writeEntity(w, http.StatusOK, sp)
			return
		}
		writeError(w, http.StatusNotFound, "sprint not found")
	}
}

func (s *Server) deleteSprint(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	projectID, sprintID := vars["id"], vars["sprintID"]

	s.mu.Lock()
	defer s.mu.Unlock()
	sprints := s.sprints[projectID]
	for i, sp := range sprints {
		if sp.ID == sprintID {
			s.sprints[projectID] = append(sprints[:i], sprints[i+1:]...)
			writeMessage(w, "sprint deleted")
			return
		}
	}
	writeError(w, http.StatusNotFound, "sprint not found")
}

func (s *Server) listLabels(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	labels := append([]label.Label(nil), s.labels[mux.Vars(r)["id"]]...)
	s.mu.Unlock()
	writeList(w, labels, len(labels), 0, 100)
}

func (s *Server) createLabel(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]
	var in label.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	l := label.Label{ID: uuid.NewString(), ProjectID: projectID, Name: in.Name, Color: in.Color}
	s.mu.Lock()
	s.labels[projectID] = append(s.labels[projectID], l)
	s.mu.Unlock()
	writeEntity(w, http.StatusCreated, l)
}

func (s *Server) updateLabel(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	projectID, labelID := vars["id"], vars["labelID"]

	var in label.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.labels[projectID] {
		if l.ID != labelID {
			continue
		}
		if in.Name != "" {
			l.Name = in.Name
		}
		if in.Color != "" {
			l.Color = in.Color
		}
		s.labels[projectID][i] = l
		writeEntity(w, http.StatusOK, l)
		return
	}
	writeError(w, http.StatusNotFound, "label not found")
}

func (s *Server) deleteLabel(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	projectID, labelID := vars["id"], vars["labelID"]

	s.mu.Lock()
	defer s.mu.Unlock()
	labels := s.labels[projectID]
	for i, l := range labels {
		if l.ID == labelID {
			s.labels[projectID] = append(labels[:i], labels[i+1:]...)
			writeMessage(w, "label deleted")
			return
		}
	}
	writeError(w, http.StatusNotFound, "label not found")
}

// Fund pools and feature flags

func (s *Server) listPools(w http.ResponseWriter, r *http.Request) {
	pools, err := s.pools.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeList(w, pools, len(pools), 0, 100)
}

func (s *Server) createPool(w http.ResponseWriter, r *http.Request) {
	var in pool.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	now := time.Now().UTC()
	p := pool.FundPool{
		ID: uuid.NewString(), Name: in.Name, Description: in.Description,
		Amount: in.Amount, Currency: in.Currency, Enabled: true,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := s.pools.Put(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.hub.broadcast(realtime.RoomFundPools, realtime.EventPoolUpdated, map[string]any{
		"originClientId": originClientID(r), "fundPool": p,
	})
	writeEntity(w, http.StatusCreated, p)
}

func (s *Server) updatePool(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	current, err := s.pools.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "fund pool not found")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	updated := *current
	if err := json.Unmarshal(body, &updated); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	updated.ID = id
	updated.UpdatedAt = time.Now().UTC()

	if err := s.pools.Put(r.Context(), updated); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.hub.broadcast(realtime.RoomFundPools, realtime.EventPoolUpdated, map[string]any{
		"originClientId": originClientID(r), "fundPool": updated,
	})
	writeEntity(w, http.StatusOK, updated)
}

func (s *Server) togglePool(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	current, err := s.pools.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "fund pool not found")
		return
	}

	current.Enabled = !current.Enabled
	current.UpdatedAt = time.Now().UTC()
	if err := s.pools.Put(r.Context(), *current); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.hub.broadcast(realtime.RoomFundPools, realtime.EventPoolUpdated, map[string]any{
		"originClientId": originClientID(r), "fundPool": current,
	})
	writeEntity(w, http.StatusOK, current)
}

func (s *Server) executePool(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	current, err := s.pools.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "fund pool not found")
		return
	}

	now := time.Now().UTC()
	current.ExecutionCount++
	current.LastExecutedAt = &now
	current.UpdatedAt = now
	if err := s.pools.Put(r.Context(), *current); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.mu.Lock()
	s.executions[id] = append([]pool.Execution{{
		ID: uuid.NewString(), PoolID: id, Amount: current.Amount,
		Status: "completed", ExecutedAt: now,
	}}, s.executions[id]...)
	s.mu.Unlock()

	s.hub.broadcast(realtime.RoomFundPools, realtime.EventPoolUpdated, map[string]any{
		"originClientId": originClientID(r), "fundPool": current,
	})
	writeEntity(w, http.StatusOK, current)
}

func (s *Server) listExecutions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	history := append([]pool.Execution(nil), s.executions[mux.Vars(r)["id"]]...)
	s.mu.Unlock()
	writeList(w, history, len(history), 0, queryInt(r, "limit", 20))
}

func (s *Server) deletePool(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.pools.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "fund pool not found")
		return
	}
	s.mu.Lock()
	delete(s.executions, id)
	s.mu.Unlock()
	writeMessage(w, "fund pool deleted")
}

func (s *Server) evaluateFlags(w http.ResponseWriter, r *http.Request) {
	keys := strings.Split(r.URL.Query().Get("keys"), ",")

	s.mu.Lock()
	flags := make(map[string]bool, len(keys))
	for _, key := range keys {
		flags[key] = s.flags[key]
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "flags": flags})
}

// SetFlag flips a feature flag and broadcasts the change.
func (s *Server) SetFlag(key string, enabled bool) {
	s.mu.Lock()
	s.flags[key] = enabled
	s.mu.Unlock()

	s.hub.broadcast(realtime.RoomFeatureFlags, realtime.EventFlagUpdated,
		pool.FlagUpdate{Key: key, Enabled: enabled})
}

// Orders and payments

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	skip, limit := queryInt(r, "skip", 0), queryInt(r, "limit", 20)
	orders, total, err := s.orders.List(r.Context(), skip, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeList(w, orders, total, skip, limit)
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var in payment.CreateOrderInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	now := time.Now().UTC()
	o := payment.Order{
		ID: uuid.NewString(), UserID: authUser(r),
		Amount: in.Amount, Currency: in.Currency,
		Status: payment.OrderPending, Metadata: in.Metadata,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := s.orders.Put(r.Context(), o); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeEntity(w, http.StatusCreated, o)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	current, err := s.orders.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	current.Status = payment.OrderCancelled
	current.UpdatedAt = time.Now().UTC()
	if err := s.orders.Put(r.Context(), *current); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeEntity(w, http.StatusOK, current)
}

func (s *Server) sampleOrder(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	o := payment.Order{
		ID: uuid.NewString(), UserID: authUser(r),
		Amount: 9.99, Currency: "USD", Status: payment.OrderPending,
		Metadata:  map[string]any{"sample": true},
		CreatedAt: now, UpdatedAt: now,
	}
	if err := s.orders.Put(r.Context(), o); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	qrID := uuid.NewString()
	s.mu.Lock()
	s.qrOrders[qrID] = o.ID
	s.mu.Unlock()

	writeEntity(w, http.StatusCreated, payment.SampleOrderResult{
		Order: o, QRID: qrID,
		QRImage:   "data:image/png;base64," + qrID,
		ExpiresAt: now.Add(QRLifetime),
		Amount:    o.Amount,
	})
}

func (s *Server) generateQR(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrderID  string `json:"orderId"`
		Currency string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	order, err := s.orders.Get(r.Context(), body.OrderID)
	if err != nil {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if order.Status != payment.OrderPending {
		writeError(w, http.StatusConflict, "order is not pending")
		return
	}

	qrID := uuid.NewString()
	s.mu.Lock()
	s.qrOrders[qrID] = order.ID
	s.mu.Unlock()

	writeEntity(w, http.StatusOK, payment.QRResult{
		QRID:      qrID,
		QRImage:   "data:image/png;base64," + qrID,
		ExpiresAt: time.Now().UTC().Add(QRLifetime),
		Amount:    order.Amount,
	})
}

// Notifications

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	feed, err := s.notifications.ListByUser(r.Context(), authUser(r), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeList(w, feed, len(feed), 0, queryInt(r, "limit", 50))
}

func (s *Server) unreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.notifications.CountUnread(r.Context(), authUser(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": count})
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	if err := s.notifications.MarkRead(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeMessage(w, "notification read")
}

func (s *Server) markAllRead(w http.ResponseWriter, r *http.Request) {
	if err := s.notifications.MarkAllRead(r.Context(), authUser(r)); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeMessage(w, "notifications read")
}

// Users

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	users := append([]member.Member(nil), s.users...)
	s.mu.Unlock()
	writeList(w, users, len(users), 0, queryInt(r, "limit", 100))
}

func (s *Server) persistNotification(t *testing.T, raw json.RawMessage) {
	t.Helper()
	var n notification.Notification
	require.NoError(t, json.Unmarshal(raw, &n))
	require.NoError(t, s.notifications.Put(t.Context(), n))
}
