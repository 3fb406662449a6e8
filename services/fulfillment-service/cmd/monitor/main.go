package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/wms-platform/fulfillment/shared/pkg/cloudevents"
	"github.com/wms-platform/fulfillment/shared/pkg/kafka"
	"github.com/wms-platform/fulfillment/shared/pkg/logging"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/bootstrap"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/config"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/ledger"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/infrastructure/messaging"
)

// Stock monitoring tool. "scan" runs one alert scan and prints what it opened,
// "report" prints the ledger with its stock status.

var (
	mode    = flag.String("mode", "scan", "scan or report")
	status  = flag.String("status", "", "report only products in this stock status (e.g. LOW_STOCK)")
	notify  = flag.Bool("notify", false, "publish opened alerts to Kafka")
	timeout = flag.Duration("timeout", 2*time.Minute, "overall deadline")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logConfig := logging.DefaultConfig(cfg.ServiceName + "-monitor")
	logConfig.Level = logging.ParseLevel(cfg.LogLevel)
	logConfig.Output = os.Stderr
	logger := logging.New(logConfig)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg.ApplyTopics()
	factory := cloudevents.NewEventFactory(cloudevents.SourceFulfillment)
	stores, err := bootstrap.OpenStores(ctx, cfg, factory, nil, logger)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer stores.Close(context.Background())

	locker, closeLocker, err := bootstrap.NewLocker(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize key locks: %v", err)
	}
	defer closeLocker()

	var notifier application.AlertNotifier
	if *notify {
		producer := kafka.NewProductionProducer(cfg.KafkaClientConfig(cfg.ServiceName+"-monitor"), nil, logger)
		defer producer.Close()
		notifier = messaging.NewKafkaAlertNotifier(producer, factory)
	}
	services := bootstrap.NewServices(cfg, stores, locker, notifier, nil, nil, logger)

	switch *mode {
	case "scan":
		err = scan(ctx, os.Stdout, services.Alerts)
	case "report":
		err = report(ctx, os.Stdout, services.Ledger, ledger.StockStatus(strings.ToUpper(*status)))
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", *mode, err)
	}
}

func scan(ctx context.Context, w io.Writer, alerts *application.AlertService) error {
	opened, err := alerts.RunScan(ctx)
	if err != nil {
		return err
	}
	if len(opened) == 0 {
		fmt.Fprintln(w, "No new alerts")
		return nil
	}

	fmt.Fprintf(w, "Opened %d alerts:\n\n", len(opened))
	fmt.Fprintln(w, "PRODUCT              TYPE          LEVEL     STOCK  THRESHOLD  ACTION")
	fmt.Fprintln(w, "-------------------  ------------  --------  -----  ---------  ------")
	for _, a := range opened {
		fmt.Fprintf(w, "%-19s  %-12s  %-8s  %5d  %9d  %s\n",
			a.ProductID, a.AlertType, a.AlertLevel, a.CurrentStock, a.ThresholdStock, a.SuggestedAction)
	}
	return nil
}

func report(ctx context.Context, w io.Writer, ledgerSvc *application.LedgerService, status ledger.StockStatus) error {
	counts := make(map[string]int)
	total := 0

	fmt.Fprintln(w, "PRODUCT              CURRENT  RESERVED  AVAILABLE  REORDER  STATUS        ACTIVE")
	fmt.Fprintln(w, "-------------------  -------  --------  ---------  -------  ------------  ------")
	for number := int64(1); ; number++ {
		page, err := ledgerSvc.ListStock(ctx, application.ListStockQuery{
			Status: status,
			Page:   common.Page{Number: number, Size: 100},
		})
		if err != nil {
			return err
		}
		for _, s := range page.Data {
			fmt.Fprintf(w, "%-19s  %7d  %8d  %9d  %7d  %-12s  %t\n",
				s.ProductID, s.CurrentQuantity, s.ReservedQuantity, s.AvailableQuantity, s.ReorderPoint, s.Status, s.Active)
			counts[s.Status]++
			total++
		}
		if !page.HasNext {
			break
		}
	}

	fmt.Fprintf(w, "\n%d products", total)
	for _, st := range []ledger.StockStatus{ledger.StatusActive, ledger.StatusLowStock, ledger.StatusOutOfStock, ledger.StatusInactive} {
		fmt.Fprintf(w, ", %s %d", st, counts[string(st)])
	}
	fmt.Fprintln(w)
	return nil
}
