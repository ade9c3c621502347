package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drawdash/drawdash/internal/session"
)

type nopHandler struct{}

func (nopHandler) HandleConnect(connID string)                  {}
func (nopHandler) HandleEvent(connID string, evt session.Event) {}
func (nopHandler) HandleDisconnect(connID string)               {}

// A plain GET without the upgrade headers must get exactly the upgrader's
// own rejection, not a second response body stacked on top of it.
func TestSessionConnectionRejectsNonUpgradeRequest(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	cm.SetHandler(nopHandler{})
	h := NewWebSocketHandler(cm)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	h.HandleSessionConnection(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), "failed to upgrade connection")
}
