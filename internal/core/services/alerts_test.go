package services

import (
	"testing"
	"time"

	"roomcast/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestAlertServiceKeepsRecentAlerts(t *testing.T) {
	svc := NewAlertService(time.Minute, zap.NewNop())

	svc.Alert(domain.AlertSuccess, "joined room")
	svc.Alert(domain.AlertDanger, "transport failed")

	recent := svc.Recent()
	assert.Len(t, recent, 2)
	assert.Equal(t, domain.AlertSuccess, recent[0].Category)
	assert.Equal(t, "transport failed", recent[1].Message)
}

func TestAlertServicePrunesExpired(t *testing.T) {
	svc := NewAlertService(20*time.Millisecond, zap.NewNop())

	svc.Alert(domain.AlertSuccess, "old news")
	time.Sleep(40 * time.Millisecond)
	svc.Alert(domain.AlertDanger, "fresh")

	recent := svc.Recent()
	assert.Len(t, recent, 1)
	assert.Equal(t, "fresh", recent[0].Message)
}
