package main

import (
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"stravaload/internal/auth"
	"stravaload/internal/config"
	"stravaload/internal/logger"
	"stravaload/internal/service"
	"stravaload/internal/store"
	"stravaload/internal/strava"
)

var Version = "dev"

func main() {
	app := &cli.App{
		Name:    "stravaload",
		Usage:   "Sync Strava activities and track training load",
		Version: Version,
		Description: "stravaload pulls your activities from Strava, scores each one\n" +
			"with a training stress estimate, and maintains your daily\n" +
			"fitness, fatigue and form (CTL/ATL/TSB) series locally.",
		Commands: []*cli.Command{
			authCommand(),
			syncCommand(),
			statusCommand(),
			zonesCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// env is everything a command needs that outlives it
type env struct {
	cfg *config.Config
	log logrus.FieldLogger
	db  *store.DB
}

func setup() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		dir, _ := config.Dir()
		return nil, fmt.Errorf("invalid config: %w\n\nSet STRAVA_CLIENT_ID and STRAVA_CLIENT_SECRET in %s/.env\n(create an API application at https://www.strava.com/settings/api)", err, dir)
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &env{
		cfg: cfg,
		log: logger.New(cfg.LogLevel),
		db:  db,
	}, nil
}

func (e *env) close() {
	e.db.Close()
}

// manager wires the API client and sync manager for the stored athlete
func (e *env) manager() (*service.SyncManager, int64, error) {
	athleteID, err := e.db.AnyAthleteID()
	if err == store.ErrNoToken {
		return nil, 0, fmt.Errorf("not authenticated, run: stravaload auth")
	}
	if err != nil {
		return nil, 0, err
	}

	oauthCfg := auth.NewOAuthConfig(e.cfg.Strava)
	tokens, err := auth.NewTokenSource(oauthCfg, e.db, athleteID,
		time.Duration(e.cfg.Strava.TokenRefreshBufferSeconds)*time.Second, e.log)
	if err != nil {
		return nil, 0, err
	}

	client := strava.NewClient(tokens, e.log, strava.Options{
		MaxRetries:     e.cfg.Strava.MaxRetries,
		RateLimit15Min: e.cfg.Strava.RateLimit15Min,
		RateLimitDaily: e.cfg.Strava.RateLimitDaily,
	})

	return service.NewSyncManager(client, e.db, e.cfg.Sync, e.cfg.Athlete, e.log), athleteID, nil
}

// queries builds a manager with no API client, for read-only commands
func (e *env) queries() *service.SyncManager {
	return service.NewSyncManager(nil, e.db, e.cfg.Sync, e.cfg.Athlete, e.log)
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Connect your Strava account",
		Action: func(c *cli.Context) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()

			res, err := auth.Authenticate(c.Context, auth.NewOAuthConfig(e.cfg.Strava))
			if err != nil {
				return fmt.Errorf("authorization failed: %w", err)
			}
			if err := auth.StoreResult(e.db, res); err != nil {
				return fmt.Errorf("storing token: %w", err)
			}
			if err := e.db.UpsertAthlete(&store.Athlete{ID: res.AthleteID}); err != nil {
				return fmt.Errorf("storing athlete: %w", err)
			}

			fmt.Printf("\nConnected athlete %d. Run: stravaload sync\n", res.AthleteID)
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Fetch new activities and update the training load series",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "full",
				Usage: "Re-fetch everything and rebuild the series from scratch",
			},
		},
		Action: func(c *cli.Context) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()

			m, athleteID, err := e.manager()
			if err != nil {
				return err
			}

			m.Progress = func(p service.Progress) {
				switch p.Phase {
				case "activities":
					if p.Completed > 0 {
						fmt.Printf("\rFetched %d activities", p.Completed)
					}
				case "streams":
					fmt.Printf("\rSyncing streams %d/%d", p.Completed, p.Total)
				}
			}

			var result *service.Result
			if c.Bool("full") {
				result = m.FullSync(c.Context, athleteID)
			} else {
				result = m.IncrementalSync(c.Context, athleteID)
			}
			fmt.Println()

			if result.Status != store.SyncStatusSuccess {
				return cli.Exit(fmt.Sprintf("sync failed: %s", result.Error), 1)
			}

			fmt.Printf("Sync complete in %s: %d new, %d updated, %d streams, %d load days\n",
				result.Duration.Round(time.Millisecond),
				result.ActivitiesSynced, result.ActivitiesUpdated,
				result.StreamsSynced, result.LoadDaysComputed)

			q := e.queries()
			fitness, err := q.CurrentFitness(athleteID)
			if err == nil && fitness != nil {
				printFitness(fitness)
			}
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the last sync and current fitness",
		Action: func(c *cli.Context) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()

			athleteID, err := e.db.AnyAthleteID()
			if err == store.ErrNoToken {
				fmt.Println("Not authenticated. Run: stravaload auth")
				return nil
			}
			if err != nil {
				return err
			}

			q := e.queries()

			last, err := q.LastSync(athleteID)
			if err != nil {
				return err
			}
			if last == nil {
				fmt.Println("No syncs yet. Run: stravaload sync")
				return nil
			}

			fmt.Printf("Last sync: %s %s (%s)\n", last.SyncType, last.SyncStatus,
				last.StartedAt.Local().Format("2006-01-02 15:04"))
			if last.SyncStatus == store.SyncStatusFailed && last.ErrorMessage != "" {
				fmt.Printf("  error: %s\n", last.ErrorMessage)
			}
			if last.CompletedAt != nil {
				fmt.Printf("  %d new, %d updated, %d streams in %s\n",
					last.ActivitiesSynced, last.ActivitiesUpdated,
					last.StreamsSynced, last.Duration().Round(time.Second))
			}

			fitness, err := q.CurrentFitness(athleteID)
			if err != nil {
				return err
			}
			if fitness != nil {
				printFitness(fitness)
			}
			return nil
		},
	}
}

func zonesCommand() *cli.Command {
	return &cli.Command{
		Name:  "zones",
		Usage: "Show training zones (creating defaults if none exist)",
		Action: func(c *cli.Context) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()

			athleteID, err := e.db.AnyAthleteID()
			if err == store.ErrNoToken {
				fmt.Println("Not authenticated. Run: stravaload auth")
				return nil
			}
			if err != nil {
				return err
			}

			q := e.queries()
			if err := q.EnsureDefaultZones(athleteID); err != nil {
				return err
			}

			for _, zoneType := range []string{store.ZoneTypeHeartRate, store.ZoneTypePower} {
				zones, err := e.db.GetZones(athleteID, zoneType)
				if err != nil {
					return err
				}
				if len(zones) == 0 {
					continue
				}

				unit := "bpm"
				title := "Heart rate zones"
				if zoneType == store.ZoneTypePower {
					unit = "W"
					title = "Power zones"
				}

				fmt.Printf("\n%s:\n", title)
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				for _, z := range zones {
					upper := fmt.Sprintf("%.0f %s", z.MaxValue, unit)
					if z.MaxValue >= 10000 {
						upper = "max"
					}
					fmt.Fprintf(w, "  Z%d\t%s\t%.0f - %s\n", z.ZoneNumber, z.Name, z.MinValue, upper)
				}
				w.Flush()
			}
			return nil
		},
	}
}

func printFitness(f *service.Fitness) {
	fmt.Printf("\nFitness as of %s:\n", f.Date)
	fmt.Printf("  CTL (fitness):  %.1f\n", f.CTL)
	fmt.Printf("  ATL (fatigue):  %.1f\n", f.ATL)
	fmt.Printf("  TSB (form):     %.1f - %s\n", f.TSB, f.Form)
	fmt.Printf("  7-day ramp:     %+.1f\n", f.RampRate)
}
