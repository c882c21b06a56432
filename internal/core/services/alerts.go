package services

import (
	"sync"
	"time"

	"roomcast/internal/core/domain"

	"go.uber.org/zap"
)

// AlertService collects transient user-visible alerts. Alerts auto-dismiss
// after the TTL; delivery never blocks the caller.
type AlertService struct {
	mu     sync.Mutex
	alerts []domain.Alert
	ttl    time.Duration
	logger *zap.SugaredLogger
}

func NewAlertService(ttl time.Duration, logger *zap.Logger) *AlertService {
	if ttl <= 0 {
		ttl = 4 * time.Second
	}
	return &AlertService{ttl: ttl, logger: logger.Sugar()}
}

// Alert records one alert.
func (a *AlertService) Alert(category domain.AlertCategory, message string) {
	alert := domain.Alert{Category: category, Message: message, IssuedAt: time.Now()}

	a.mu.Lock()
	a.prune(time.Now())
	a.alerts = append(a.alerts, alert)
	a.mu.Unlock()

	if category == domain.AlertDanger {
		a.logger.Warnw("alert", "category", category, "message", message)
	} else {
		a.logger.Infow("alert", "category", category, "message", message)
	}
}

// Recent returns alerts that have not yet expired.
func (a *AlertService) Recent() []domain.Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prune(time.Now())
	return append([]domain.Alert(nil), a.alerts...)
}

func (a *AlertService) prune(now time.Time) {
	live := a.alerts[:0]
	for _, alert := range a.alerts {
		if now.Sub(alert.IssuedAt) < a.ttl {
			live = append(live, alert)
		}
	}
	a.alerts = live
}
