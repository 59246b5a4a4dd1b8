package api

import (
	"errors"
	"net/http"

	"github.com/operandhq/lpr/internal/api/presenter"
	"github.com/operandhq/lpr/internal/tasks"
)

type TriggerTaskResponse struct {
	Status string `json:"status"`
	Task   string `json:"task"`
}

type ListTasksResponse struct {
	Tasks []tasks.TaskStatus `json:"tasks"`
}

type TaskLogsResponse struct {
	Task string           `json:"task"`
	Logs []tasks.LogEntry `json:"logs"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, ListTasksResponse{Tasks: s.tasks.ListStatus()}, http.StatusOK)
}

func (s *Server) handleTriggerTask(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if err := s.tasks.Trigger(name); err != nil {
		var notFound tasks.TaskNotFoundError
		if errors.As(err, &notFound) {
			presenter.Error(w, r, err.Error(), http.StatusNotFound)
			return
		}
		presenter.Error(w, r, err.Error(), http.StatusInternalServerError)
		return
	}
	presenter.JSON(w, r, TriggerTaskResponse{Status: "triggered", Task: name}, http.StatusAccepted)
}

func (s *Server) handleTaskLogs(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	logs, err := s.tasks.GetLogs(name)
	if err != nil {
		var notFound tasks.TaskNotFoundError
		if errors.As(err, &notFound) {
			presenter.Error(w, r, err.Error(), http.StatusNotFound)
			return
		}
		presenter.Error(w, r, err.Error(), http.StatusInternalServerError)
		return
	}
	presenter.JSON(w, r, TaskLogsResponse{Task: name, Logs: logs}, http.StatusOK)
}
