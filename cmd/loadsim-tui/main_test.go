package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/loadsim/pkg/client"
)

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func testSettings() settings {
	return settings{percentage: 70, duration: "00:10", logCount: 2, services: 3}
}

func TestModel_DataUpdatesView(t *testing.T) {
	m := initialModel(client.NewClient("http://127.0.0.1:1"), testSettings())

	updated, _ := m.Update(dataMsg{list: &client.TaskList{
		Running: 1,
		Tasks: []client.Task{
			{ID: "a", Kind: "cpu", Percentage: 70, DurationSeconds: 10, Status: "warning", State: "running", StartedAt: time.Now()},
			{ID: "b", Kind: "disk", Percentage: 10, Status: "good", State: "failed", Error: "disk full", StartedAt: time.Now()},
		},
	}})
	view := updated.(model).View()
	assert.Contains(t, view, "1 Running")
	assert.Contains(t, view, "2 Tasks")
	assert.Contains(t, view, "70.0% for 00:10")
}

func TestModel_OfflineStatus(t *testing.T) {
	m := initialModel(client.NewClient("http://127.0.0.1:1"), testSettings())
	updated, _ := m.Update(dataMsg{err: errors.New("connection refused")})
	assert.Contains(t, updated.(model).View(), "Offline: connection refused")
}

func TestModel_QuitKey(t *testing.T) {
	m := initialModel(client.NewClient("http://127.0.0.1:1"), testSettings())
	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_SimulateKey(t *testing.T) {
	var gotPath string
	var gotBody client.SimulationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(client.SimulationResponse{Message: "Memory simulation started: 70.0% for 00:10", Status: "warning"})
	}))
	defer srv.Close()

	m := initialModel(client.NewClient(srv.URL), testSettings())
	_, cmd := m.Update(key("m"))
	require.NotNil(t, cmd)

	msg, ok := cmd().(actionMsg)
	require.True(t, ok)
	require.NoError(t, msg.err)
	assert.Equal(t, "/api/simulate/memory", gotPath)
	assert.Equal(t, 70.0, gotBody.Percentage)
	assert.Equal(t, "00:10", gotBody.Duration)

	updated, _ := m.Update(msg)
	assert.Contains(t, updated.(model).last, "Memory simulation started")
}

func TestModel_CancelWithoutRunningTasks(t *testing.T) {
	m := initialModel(client.NewClient("http://127.0.0.1:1"), testSettings())
	_, cmd := m.Update(key("x"))
	require.NotNil(t, cmd)
	assert.Equal(t, actionMsg{text: "No running tasks"}, cmd())
}
