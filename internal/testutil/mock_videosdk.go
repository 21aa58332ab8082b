// Package testutil provides testing utilities for the usage exporter.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// SessionPage is one page of canned session records served by the mock.
type SessionPage struct {
	Data     []map[string]any `json:"data"`
	PageInfo map[string]int   `json:"pageInfo"`
}

// MockVideoSDK is a configurable mock sessions API server.
type MockVideoSDK struct {
	server *httptest.Server
	mu     sync.RWMutex

	pages    map[int]SessionPage
	failPage int
	failCode int
	failBody string

	// Tracking
	RequestCount int
	LastAuth     string
	LastQuery    map[string]string
}

// NewMockVideoSDK creates a mock sessions API server with no pages
// configured; until pages are set it serves a single empty page.
func NewMockVideoSDK() *MockVideoSDK {
	mock := &MockVideoSDK{
		pages: make(map[int]SessionPage),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handleSessions))
	return mock
}

// URL returns the mock server URL, usable as the client's base URL.
func (m *MockVideoSDK) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockVideoSDK) Close() {
	m.server.Close()
}

// SetPages installs the canned pages, numbering them from 1 and filling in
// the pageInfo envelope automatically.
func (m *MockVideoSDK) SetPages(pages ...[]map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pages = make(map[int]SessionPage, len(pages))
	for i, data := range pages {
		m.pages[i+1] = SessionPage{
			Data: data,
			PageInfo: map[string]int{
				"currentPage": i + 1,
				"lastPage":    len(pages),
			},
		}
	}
}

// SetRawPage installs a single page verbatim, for envelope edge cases such
// as a missing pageInfo object.
func (m *MockVideoSDK) SetRawPage(page int, p SessionPage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[page] = p
}

// FailAt makes the given page number respond with the given status and body.
func (m *MockVideoSDK) FailAt(page, statusCode int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPage = page
	m.failCode = statusCode
	m.failBody = body
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockVideoSDK) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

func (m *MockVideoSDK) handleSessions(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	m.mu.Lock()
	m.RequestCount++
	m.LastAuth = r.Header.Get("Authorization")
	m.LastQuery = map[string]string{}
	for key := range r.URL.Query() {
		m.LastQuery[key] = r.URL.Query().Get(key)
	}
	failPage, failCode, failBody := m.failPage, m.failCode, m.failBody
	canned, exists := m.pages[page]
	m.mu.Unlock()

	if failPage != 0 && page == failPage {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(failCode)
		fmt.Fprint(w, failBody)
		return
	}

	if !exists {
		canned = SessionPage{
			Data:     []map[string]any{},
			PageInfo: map[string]int{"currentPage": 1, "lastPage": 1},
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(canned)
}

// NewSession builds a minimal session record for fixtures.
func NewSession(id string, participants ...map[string]any) map[string]any {
	return map[string]any{
		"id":           id,
		"roomId":       "room-" + id,
		"start":        "2024-03-01T10:00:00Z",
		"end":          "2024-03-01T11:00:00Z",
		"status":       "ended",
		"participants": participants,
	}
}

// NewParticipant builds a participant record with alternating start/end
// timelog values.
func NewParticipant(id, name string, timelog ...any) map[string]any {
	logs := make([]map[string]any, 0, len(timelog)/2)
	for i := 0; i+1 < len(timelog); i += 2 {
		logs = append(logs, map[string]any{
			"start": timelog[i],
			"end":   timelog[i+1],
		})
	}
	return map[string]any{
		"participantId": id,
		"name":          name,
		"timelog":       logs,
	}
}
