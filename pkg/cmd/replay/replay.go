package replay

import (
	"context"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/solarview/telemetry-core-go/log"
	"github.com/solarview/telemetry-core-go/pkg/config"
	"github.com/solarview/telemetry-core-go/pkg/history"
	"github.com/solarview/telemetry-core-go/pkg/processing"
	"github.com/solarview/telemetry-core-go/pkg/service"
)

var day string

func NewReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "replays a historic day through the processing pipeline",
		Long: `Fetches a day from the historic data service and re-derives
races and laps from the stored packets. Without --day the available days
are listed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay()
		},
	}
	cmd.Flags().StringVar(&day, "day", "",
		"day to replay (YYYY-MM-DD); empty lists available days")
	cmd.Flags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	return cmd
}

//nolint:funlen // by design
func runReplay() error {
	logger := log.DevLogger(
		os.Stderr,
		parseLogLevel(config.LogLevel, log.InfoLevel),
		log.WithCaller(true),
		log.AddCallerSkip(1))
	log.ResetDefault(logger)

	conn, err := nats.Connect(config.URL, nats.Name("stc-replay"))
	if err != nil {
		log.Error("could not connect history service", log.ErrorField(err))
		return err
	}
	defer conn.Close()
	histClient := service.NewNatsHistory(conn)

	ctx := context.Background()
	if day == "" {
		return listDays(ctx, histClient)
	}

	dayStart, err := time.ParseInLocation("2006-01-02", day, time.UTC)
	if err != nil {
		log.Error("invalid day", log.String("day", day), log.ErrorField(err))
		return err
	}
	startMs := dayStart.UnixMilli()
	endMs := dayStart.Add(24 * time.Hour).UnixMilli()

	packets, err := histClient.FetchRange(ctx, config.VehicleID, startMs, endMs)
	if err != nil {
		log.Error("could not fetch day", log.ErrorField(err))
		return err
	}
	log.Info("replaying day",
		log.String("day", day), log.Int("packets", len(packets)))

	buffer := history.NewBuffer()
	processor := processing.NewProcessor(processing.WithBuffer(buffer))
	for _, p := range packets {
		processor.Process(p)
	}

	sessions := processor.Sessions()
	log.Info("replay done",
		log.Int("packets", buffer.Len()),
		log.Int("races", sessions.Len()))
	for _, key := range sessions.Order {
		race := sessions.Races[key]
		log.Info("race",
			log.String("id", race.ID),
			log.Time("start", time.UnixMilli(race.StartTime)),
			log.Int("laps", len(race.Laps)))
		for _, lapNo := range race.LapOrder {
			lap := race.Laps[lapNo]
			log.Info("lap",
				log.Int("lap", lap.LapNumber),
				log.Time("finish", time.UnixMilli(lap.FinishTime)),
				log.Any("stats", lap.Stats))
		}
	}
	return nil
}

func listDays(ctx context.Context, histClient service.History) error {
	days, err := histClient.FetchAvailableDays(ctx, config.VehicleID)
	if err != nil {
		log.Error("could not fetch available days", log.ErrorField(err))
		return err
	}
	for _, d := range days {
		log.Info("available day", log.String("day", d.Format("2006-01-02")))
	}
	return nil
}

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}
