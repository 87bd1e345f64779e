package ingest

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // by design
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/solarview/telemetry-core-go/log"
	"github.com/solarview/telemetry-core-go/pkg/config"
	"github.com/solarview/telemetry-core-go/pkg/connection"
	"github.com/solarview/telemetry-core-go/pkg/history"
	"github.com/solarview/telemetry-core-go/pkg/model"
	"github.com/solarview/telemetry-core-go/pkg/prefs"
	"github.com/solarview/telemetry-core-go/pkg/processing"
	"github.com/solarview/telemetry-core-go/pkg/processing/scale"
	"github.com/solarview/telemetry-core-go/pkg/service"
	"github.com/solarview/telemetry-core-go/pkg/utils"
	"github.com/solarview/telemetry-core-go/pkg/viewport"
)

var appConfig config.Config // holds processed config values

//nolint:funlen // by design
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "consumes the live telemetry stream",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			appConfig = config.Config{}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return startIngest()
		},
	}
	cmd.Flags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	cmd.Flags().StringVar(&config.LogFormat,
		"log-format",
		"json",
		"controls the log output format")
	cmd.Flags().StringVar(&config.LogFilter,
		"log-filter",
		"",
		"zapfilter rules, e.g. 'debug:connection* info:*'")
	cmd.Flags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	cmd.Flags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data")
	cmd.Flags().IntVar(&config.ProfilingPort,
		"profiling-port",
		0,
		"port to use for providing profiling data")
	cmd.Flags().IntVar(&config.BufferCapacity,
		"buffer-capacity",
		history.DefaultCapacity,
		"max number of packets kept in the history buffer")
	cmd.Flags().StringVar(&config.OrderTolerance,
		"order-tolerance",
		"5s",
		"window in which out-of-order packets are sorted in")
	cmd.Flags().StringVar(&config.CheckInterval,
		"check-interval",
		"1s",
		"interval of the stream staleness check")
	cmd.Flags().StringVar(&config.MaxBackoff,
		"max-backoff",
		"30s",
		"upper bound of the reconnect backoff")
	cmd.Flags().StringVar(&config.SpeedUnit,
		"speed-unit",
		"ms",
		"preferred speed unit (ms, mph, kph)")
	cmd.Flags().StringVar(&config.TempUnit,
		"temp-unit",
		"c",
		"preferred temperature unit (c, f)")
	cmd.Flags().BoolVar(&appConfig.PrintMessage,
		"print-message",
		false,
		"if true and log level is debug, the packet payload will be printed")
	return cmd
}

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return defaultVal
}

//nolint:funlen,cyclop // by design
func startIngest() error {
	setupLogger()

	log.Debug("Config:",
		log.String("url", config.URL),
		log.String("vehicle", config.VehicleID),
		log.Int("bufferCapacity", config.BufferCapacity),
	)

	if config.ProfilingPort > 0 {
		log.Info("Starting profiling server on port", log.Int("port", config.ProfilingPort))
		go func() {
			//nolint:gosec // by design
			err := http.ListenAndServe(
				fmt.Sprintf("localhost:%d", config.ProfilingPort),
				nil)
			if err != nil {
				log.Error("Profiling server stopped", log.ErrorField(err))
			}
		}()
	}

	var telemetry *config.Telemetry
	if config.EnableTelemetry {
		log.Info("Enabling telemetry")
		var err error
		if telemetry, err = config.SetupTelemetry(context.Background()); err != nil {
			log.Warn("Could not setup telemetry", log.ErrorField(err))
		}
	}

	waitForRequiredServices()

	buffer := history.NewBuffer(
		history.WithCapacity(config.BufferCapacity),
		history.WithToleranceMs(parseDuration(config.OrderTolerance, 5*time.Second).Milliseconds()),
	)
	store := prefs.NewViperStore(viper.GetViper(), model.UnitPrefs{
		Speed: model.SpeedUnit(config.SpeedUnit),
		Temp:  model.TempUnit(config.TempUnit),
	})
	log.Debug("unit preferences",
		log.String("speed", string(store.UnitPrefs().Speed)),
		log.String("temp", string(store.UnitPrefs().Temp)))

	procOpts := []processing.Option{processing.WithBuffer(buffer)}
	if appConfig.PrintMessage {
		procOpts = append(procOpts, processing.WithListener(func(p model.Packet) {
			log.Debug("packet",
				log.Any("payload", scale.ScalePacket(p, store.UnitPrefs())))
		}))
	}
	processor := processing.NewProcessor(procOpts...)
	transport := connection.NewNatsTransport(config.URL, config.VehicleID)
	histClient, err := setupHistoryClient()
	if err != nil {
		log.Warn("history service unavailable, backfill disabled", log.ErrorField(err))
	}

	manager := connection.NewManager(
		connection.WithTransport(transport),
		connection.WithProcessor(processor),
		connection.WithHistoryService(histClient),
		connection.WithVehicleID(config.VehicleID),
		connection.WithCheckInterval(parseDuration(config.CheckInterval, time.Second)),
		connection.WithMaxBackoff(parseDuration(config.MaxBackoff, 30*time.Second)),
	)

	coordinator := viewport.NewCoordinator(buffer)
	defer coordinator.Close()

	log.Info("Starting ingest")
	if err := manager.Connect(context.Background()); err != nil {
		log.Error("could not connect", log.ErrorField(err))
		return err
	}
	go logStatus(manager)
	setupGoRoutinesDump()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	v := <-sigChan
	log.Debug("Got signal ", log.Any("signal", v))
	manager.Disconnect()
	if telemetry != nil {
		telemetry.Shutdown()
	}

	log.Info("Ingest terminated")
	return nil
}

func setupLogger() {
	var logger *log.Logger
	opts := []log.Option{log.WithCaller(true), log.AddCallerSkip(1)}
	if config.LogFilter != "" {
		opts = append(opts, log.WithFilters(config.LogFilter))
	}
	switch config.LogFormat {
	case "json":
		logger = log.New(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			opts...)
	default:
		logger = log.DevLogger(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.DebugLevel),
			opts...)
	}
	log.ResetDefault(logger)
}

// setupHistoryClient creates a separate NATS connection for historic
// request/reply so backfill never competes with the stream transport.
func setupHistoryClient() (service.History, error) {
	conn, err := nats.Connect(config.URL, nats.Name("stc-history"))
	if err != nil {
		return nil, err
	}
	return service.NewNatsHistory(conn), nil
}

func logStatus(manager *connection.Manager) {
	statusChan := manager.SubscribeStatus()
	last := connection.Status{}
	for status := range statusChan {
		if status.State != last.State || status.Freshness != last.Freshness {
			log.Info("stream status",
				log.String("state", status.State.String()),
				log.String("freshness", status.Freshness.String()),
				log.Time("lastPacket", status.LastPacket))
		}
		last = status
	}
}

func setupGoRoutinesDump() {
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGQUIT)
		buf := make([]byte, 1<<20)
		for {
			<-sigs
			stacklen := runtime.Stack(buf, true)
			fmt.Printf("=== received SIGQUIT ===\n*** goroutine dump...\n%s\n*** end\n",
				buf[:stacklen])
		}
	}()
}

func waitForRequiredServices() {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}

	if natsAddr := utils.ExtractFromNatsURL(config.URL); natsAddr != "" {
		if err = utils.WaitForTCP(natsAddr, timeout); err != nil {
			log.Fatal("required services not ready", log.ErrorField(err))
		}
	}
	log.Debug("Required services are available")
}
