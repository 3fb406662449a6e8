package application

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/wms-platform/fulfillment/shared/pkg/api"
	"github.com/wms-platform/fulfillment/shared/pkg/errors"
	"github.com/wms-platform/fulfillment/shared/pkg/keylock"
	"github.com/wms-platform/fulfillment/shared/pkg/logging"
	"github.com/wms-platform/fulfillment/shared/pkg/metrics"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/alert"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/ledger"
)

const (
	defaultScanPageSize = 100
	notifyTimeout       = 5 * time.Second
)

// AlertService watches stock records for threshold crossings
type AlertService struct {
	alerts   alert.Repository
	stock    ledger.Repository
	notifier AlertNotifier
	guard    *guard
	pageSize int64
	metrics  *metrics.Metrics
	logger   *logging.Logger
}

// NewAlertService creates a new AlertService. A nil notifier disables notifications.
func NewAlertService(
	alerts alert.Repository,
	stock ledger.Repository,
	notifier AlertNotifier,
	locker keylock.Locker,
	m *metrics.Metrics,
	logger *logging.Logger,
) *AlertService {
	logger = logger.WithComponent("alerts")
	return &AlertService{
		alerts:   alerts,
		stock:    stock,
		notifier: notifier,
		guard:    newGuard(locker, 0, m, logger),
		pageSize: defaultScanPageSize,
		metrics:  m,
		logger:   logger,
	}
}

// Scan walks the ledger page by page and yields every alert it opens. The
// ledger is only read. Each range over the sequence starts a fresh scan.
func (s *AlertService) Scan(ctx context.Context) iter.Seq2[*alert.StockAlert, error] {
	return func(yield func(*alert.StockAlert, error) bool) {
		for page := int64(1); ; page++ {
			records, total, err := s.stock.List(ctx, ledger.Filter{
				ActiveOnly: true,
				Page:       common.Page{Number: page, Size: s.pageSize},
			})
			if err != nil {
				yield(nil, fmt.Errorf("list stock page %d: %w", page, err))
				return
			}

			for _, record := range records {
				for _, condition := range alert.Evaluate(record) {
					a := alert.NewStockAlert(record, condition)
					opened, err := s.alerts.OpenIfAbsent(ctx, a)
					if err != nil {
						if !yield(nil, fmt.Errorf("open %s alert for %s: %w", condition.Type, record.ProductID, err)) {
							return
						}
						continue
					}
					if !opened {
						continue
					}

					s.metrics.RecordAlertOpened(string(a.AlertType), string(a.AlertLevel))
					s.logger.WithContext(ctx).Info("Opened stock alert",
						"alertId", a.AlertID, "productId", a.ProductID,
						"alertType", a.AlertType, "alertLevel", a.AlertLevel)
					s.notify(ctx, a)

					if !yield(a, nil) {
						return
					}
				}
			}

			if len(records) == 0 || page*s.pageSize >= total {
				return
			}
		}
	}
}

// notify is fire-and-forget; failures are only logged
func (s *AlertService) notify(ctx context.Context, a *alert.StockAlert) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := s.notifier.NotifyAlertRaised(ctx, a); err != nil {
		s.logger.WithError(err).Warn("Failed to notify stock alert", "alertId", a.AlertID, "productId", a.ProductID)
	}
}

// RunScan drains a scan and returns the alerts it opened. Per-alert failures
// are logged and skipped; the first failure is returned with the alerts
// opened so far.
func (s *AlertService) RunScan(ctx context.Context) ([]*AlertDTO, error) {
	opened := []*AlertDTO{}
	var firstErr error
	for a, err := range s.Scan(ctx) {
		if err != nil {
			s.logger.WithError(err).Error("Alert scan step failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		opened = append(opened, ToAlertDTO(a))
	}
	if firstErr != nil {
		return opened, mapError(firstErr, "alert", "")
	}
	return opened, nil
}

// ResolveAlert closes an alert
func (s *AlertService) ResolveAlert(ctx context.Context, alertID, resolvedBy, notes string) (*AlertDTO, error) {
	var resolved *alert.StockAlert
	err := s.guard.run(ctx, "alert:"+alertID, "resolve_alert", func(ctx context.Context) error {
		a, err := s.alerts.FindByID(ctx, alertID)
		if err != nil {
			return err
		}
		if a == nil {
			return errors.ErrNotFoundWithID("alert", alertID)
		}
		if err := a.Resolve(resolvedBy, notes); err != nil {
			return err
		}
		if err := s.alerts.Update(ctx, a); err != nil {
			return err
		}
		resolved = a
		return nil
	})
	if err != nil {
		return nil, mapError(err, "alert", alertID)
	}

	s.metrics.RecordAlertResolved()
	s.logger.Audit(ctx, "resolve", "alert", alertID, resolvedBy, map[string]any{"productId": resolved.ProductID})
	return ToAlertDTO(resolved), nil
}

// GetAlert retrieves an alert
func (s *AlertService) GetAlert(ctx context.Context, alertID string) (*AlertDTO, error) {
	a, err := s.alerts.FindByID(ctx, alertID)
	if err != nil {
		return nil, mapError(err, "alert", alertID)
	}
	if a == nil {
		return nil, errors.ErrNotFoundWithID("alert", alertID)
	}
	return ToAlertDTO(a), nil
}

// ListAlerts returns a page of alerts
func (s *AlertService) ListAlerts(ctx context.Context, query ListAlertsQuery) (*api.PageResponse[AlertDTO], error) {
	page := pageRequest(query.Page)
	query.Page = toPage(page)
	alerts, total, err := s.alerts.List(ctx, query.filter())
	if err != nil {
		s.logger.WithError(err).Error("Failed to list alerts")
		return nil, mapError(err, "alert", "")
	}

	data := make([]AlertDTO, 0, len(alerts))
	for _, a := range alerts {
		data = append(data, *ToAlertDTO(a))
	}
	resp := api.NewPageResponse(data, page, total)
	return &resp, nil
}

// AlertScanner runs RunScan on an interval
type AlertScanner struct {
	service   *AlertService
	interval  time.Duration
	logger    *logging.Logger
	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewAlertScanner creates a scanner; an interval of 0 disables it
func NewAlertScanner(service *AlertService, interval time.Duration, logger *logging.Logger) *AlertScanner {
	return &AlertScanner{
		service:  service,
		interval: interval,
		logger:   logger.WithComponent("alert-scanner"),
	}
}

// Start launches the scan loop. It is a no-op when the interval is 0.
func (a *AlertScanner) Start(ctx context.Context) error {
	if a.interval <= 0 {
		a.logger.Info("Alert scanner disabled")
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return fmt.Errorf("alert scanner already running")
	}
	a.running = true
	a.stopCh = make(chan struct{})
	a.stoppedCh = make(chan struct{})

	a.logger.Info("Starting alert scanner", "interval", a.interval)
	go a.run(ctx, a.stopCh, a.stoppedCh)
	return nil
}

// Stop ends the scan loop and waits for it to exit
func (a *AlertScanner) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	stopCh, stoppedCh := a.stopCh, a.stoppedCh
	a.mu.Unlock()

	close(stopCh)
	<-stoppedCh
	a.logger.Info("Alert scanner stopped")
}

func (a *AlertScanner) run(ctx context.Context, stopCh <-chan struct{}, stoppedCh chan<- struct{}) {
	defer close(stoppedCh)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			opened, err := a.service.RunScan(ctx)
			if err != nil {
				a.logger.WithError(err).Warn("Alert scan finished with errors", "opened", len(opened))
				continue
			}
			if len(opened) > 0 {
				a.logger.Info("Alert scan opened alerts", "opened", len(opened))
			}
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
