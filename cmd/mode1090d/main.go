// Command mode1090d runs one or more Mode S/ADS-B sources (AVR, Beast or
// SBS1, fetched, listened for, or replayed from a file) through the
// aircraft tracker and prints a running summary, in the teacher's
// cmd/pw_ingest style: one urfave/cli app, lib/logging for verbosity
// flags, lib/setup for source flags.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"mode1090/lib/example_finder"
	"mode1090/lib/logging"
	"mode1090/lib/setup"
	"mode1090/lib/tracker"
)

const icaoFlag = "icao"

func main() {
	app := &cli.App{
		Name:  "mode1090d",
		Usage: "Decode Mode S/ADS-B traffic from AVR, Beast or SBS1 sources and track aircraft",
		Before: func(c *cli.Context) error {
			logging.SetLoggingLevel(c)
			return nil
		},
		Action: run,
	}
	logging.IncludeVerbosityFlags(app)
	setup.IncludeSourceFlags(app)
	app.Flags = append(app.Flags, &cli.StringSliceFlag{
		Name:  icaoFlag,
		Usage: "Restrict tracking to one or more ICAO hex addresses",
	})

	logging.ConfigureForCli()

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("mode1090d exited with an error")
	}
}

func run(c *cli.Context) error {
	producers, err := setup.HandleSourceFlags(c)
	if err != nil {
		return err
	}
	if len(producers) == 0 {
		return cli.Exit("no sources configured: use --fetch, --listen or --file", 1)
	}

	var filterOpts []example_finder.Option
	for _, icaoStr := range c.StringSlice(icaoFlag) {
		filterOpts = append(filterOpts, example_finder.WithPlaneIcaoStr(icaoStr))
	}
	filter := example_finder.NewFilter(filterOpts...)

	refLat, refLon := c.Float64(setup.RefLat), c.Float64(setup.RefLon)
	engine := tracker.NewEngine(refLat, refLon, refLat != 0 || refLon != 0)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, p := range producers {
		go consume(ctx, p, filter, engine)
	}

	cleaner := time.NewTicker(30 * time.Second)
	defer cleaner.Stop()
	report := time.NewTicker(10 * time.Second)
	defer report.Stop()

	for {
		select {
		case <-ctx.Done():
			for _, p := range producers {
				p.Stop()
			}
			log.Info().Msg("mode1090d shutting down")
			return nil
		case <-cleaner.C:
			if removed := engine.CleanStale(tracker.DefaultTTL); removed > 0 {
				log.Debug().Int("removed", removed).Msg("Cleaned stale aircraft")
			}
		case <-report.C:
			log.Info().Int("aircraft", engine.Len()).Msg("Tracker status")
		}
	}
}

func consume(ctx context.Context, p tracker.Producer, filter *example_finder.Filter, engine *tracker.Engine) {
	log.Info().Str("source", p.String()).Msg("Starting source")
	for {
		select {
		case <-ctx.Done():
			return
		case fe, ok := <-p.Listen():
			if !ok {
				return
			}
			if nil == filter.Handle(fe) {
				continue
			}
			engine.HandleEvent(fe)
		}
	}
}
