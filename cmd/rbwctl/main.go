package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"ranked-bedwars/internal/announce"
	"ranked-bedwars/internal/constants"
	"ranked-bedwars/internal/domain"
	fxmodules "ranked-bedwars/internal/fx"
	"ranked-bedwars/internal/service"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
)

// deps is what the commands need out of the shared graph.
type deps struct {
	coordinator *service.Coordinator
	players     *service.PlayerService
	games       *service.GameService
	table       *service.RatingTable
	reconciler  *service.Reconciler
	teardown    *announce.Teardown
}

// withApp starts the shared graph, runs fn, and stops it again. Stopping
// drops any teardown still in its grace period.
func withApp(c *cli.Context, fn func(ctx context.Context, d *deps) error) error {
	var d deps
	app := fx.New(
		fxmodules.Core,
		fx.NopLogger,
		fx.Populate(&d.coordinator, &d.players, &d.games, &d.table, &d.reconciler, &d.teardown),
	)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(c.Context, fx.DefaultTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	runErr := fn(c.Context, &d)

	stopCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func main() {
	for key, value := range map[string]string{"LOG_FORMAT": "console", "LOG_LEVEL": "warn"} {
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}

	cliApp := &cli.App{
		Name:  "rbwctl",
		Usage: "operate the ranked bedwars scoring core",
		Commands: []*cli.Command{
			newGameCommand(),
			newPlayerCommand(),
			newBandCommand(),
			newBoosterCommand(),
			{
				Name:  "reset-daily",
				Usage: "zero every player's daily elo",
				Action: func(c *cli.Context) error {
					return withApp(c, func(ctx context.Context, d *deps) error {
						n, err := d.players.ResetDailyElo(ctx)
						if err != nil {
							return err
						}
						fmt.Printf("reset daily elo for %d players\n", n)
						return nil
					})
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var (
	gameFlag = &cli.Int64Flag{Name: "game", Aliases: []string{"g"}, Usage: "game id", Required: true}
	byFlag   = &cli.StringFlag{Name: "by", Usage: "discord id of the staff member"}
)

func splitIDs(raw []string) []string {
	var out []string
	for _, r := range raw {
		for _, id := range strings.Split(r, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}

// readStats loads a JSON object of IGN to match statistics.
func readStats(path string) (domain.StatsByIGN, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats file: %w", err)
	}
	var raw map[string]domain.MatchStats
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse stats file: %w", err)
	}
	stats := make(domain.StatsByIGN, len(raw))
	for ign, s := range raw {
		stats[strings.ToLower(ign)] = s
	}
	return stats, nil
}

func printOutcomes(players []service.PlayerOutcome) {
	for _, p := range players {
		switch {
		case p.Err != nil:
			fmt.Printf("  %s %s: failed: %v\n", p.DiscordID, p.IGN, p.Err)
		case p.Skipped:
			fmt.Printf("  %s: skipped\n", p.DiscordID)
		default:
			fmt.Printf("  %s %s: %s %+d mvp=%t\n", p.DiscordID, p.IGN, p.Result, p.EloChange, p.IsMVP)
		}
	}
}

func newGameCommand() *cli.Command {
	return &cli.Command{
		Name:  "game",
		Usage: "create, score and void games",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "mint a game id and store a pending game",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "team1", Usage: "discord ids", Required: true},
					&cli.StringSliceFlag{Name: "team2", Usage: "discord ids", Required: true},
					&cli.BoolFlag{Name: "casual"},
				},
				Action: func(c *cli.Context) error {
					gameType := domain.GameTypeRanked
					if c.Bool("casual") {
						gameType = domain.GameTypeCasual
					}
					return withApp(c, func(ctx context.Context, d *deps) error {
						g, err := d.coordinator.CreateGame(ctx, splitIDs(c.StringSlice("team1")), splitIDs(c.StringSlice("team2")), gameType)
						if err != nil {
							return err
						}
						fmt.Printf("created %s game #%d\n", g.GameType, g.GameID)
						return nil
					})
				},
			},
			{
				Name:  "channels",
				Usage: "record the channels created for a game",
				Flags: []cli.Flag{
					gameFlag,
					&cli.StringFlag{Name: "text", Required: true},
					&cli.StringFlag{Name: "vc1"},
					&cli.StringFlag{Name: "vc2"},
				},
				Action: func(c *cli.Context) error {
					return withApp(c, func(ctx context.Context, d *deps) error {
						return d.games.AttachChannels(ctx, &domain.GameChannels{
							GameID:      c.Int64("game"),
							TextChannel: c.String("text"),
							Team1VC:     c.String("vc1"),
							Team2VC:     c.String("vc2"),
						})
					})
				},
			},
			{
				Name:  "submit",
				Usage: "mark a pending game as submitted",
				Flags: []cli.Flag{gameFlag, byFlag},
				Action: func(c *cli.Context) error {
					return withApp(c, func(ctx context.Context, d *deps) error {
						return d.coordinator.Submit(ctx, c.Int64("game"), c.String("by"))
					})
				},
			},
			{
				Name:  "score",
				Usage: "score a game",
				Flags: []cli.Flag{
					gameFlag,
					byFlag,
					&cli.IntFlag{Name: "winner", Usage: "winning team, 1 or 2", Required: true},
					&cli.StringSliceFlag{Name: "mvp", Usage: "discord ids"},
					&cli.StringSliceFlag{Name: "bedbreaker", Usage: "discord ids"},
					&cli.StringFlag{Name: "stats", Usage: "JSON file of per-IGN statistics"},
					&cli.BoolFlag{Name: "casual", Usage: "score without rating changes"},
					&cli.BoolFlag{Name: "teardown", Usage: "delete the game's channels now instead of after the grace period"},
				},
				Action: func(c *cli.Context) error {
					req := service.ScoreRequest{
						GameID:      c.Int64("game"),
						WinningTeam: c.Int("winner"),
						MVPs:        splitIDs(c.StringSlice("mvp")),
						BedBreakers: splitIDs(c.StringSlice("bedbreaker")),
						ScoredBy:    c.String("by"),
						Casual:      c.Bool("casual"),
					}
					if path := c.String("stats"); path != "" {
						stats, err := readStats(path)
						if err != nil {
							return err
						}
						req.Stats = stats
					}
					return withApp(c, func(ctx context.Context, d *deps) error {
						report, err := d.coordinator.Score(ctx, req)
						if err != nil {
							return err
						}
						fmt.Printf("scored game #%d (casual=%t, failures=%d)\n", report.Game.GameID, report.Casual, report.Failures())
						printOutcomes(report.Players)
						if c.Bool("teardown") {
							return d.teardown.Run(ctx, req.GameID)
						}
						return nil
					})
				},
			},
			{
				Name:  "void",
				Usage: "reverse a game's effects and mark it voided",
				Flags: []cli.Flag{
					gameFlag,
					byFlag,
					&cli.BoolFlag{Name: "teardown", Usage: "delete the game's channels now"},
				},
				Action: func(c *cli.Context) error {
					return withApp(c, func(ctx context.Context, d *deps) error {
						report, err := d.coordinator.Void(ctx, c.Int64("game"), c.String("by"))
						if err != nil {
							return err
						}
						fmt.Printf("voided game #%d (failures=%d)\n", report.Game.GameID, report.Failures())
						printOutcomes(report.Players)
						if c.Bool("teardown") {
							return d.teardown.Run(ctx, report.Game.GameID)
						}
						return nil
					})
				},
			},
			{
				Name:  "show",
				Usage: "print a game and its per-player rows",
				Flags: []cli.Flag{gameFlag},
				Action: func(c *cli.Context) error {
					return withApp(c, func(ctx context.Context, d *deps) error {
						detail, err := d.games.GetGame(ctx, c.Int64("game"))
						if err != nil {
							return err
						}
						g := detail.Game
						fmt.Printf("game #%d %s %s\n  team1: %s\n  team2: %s\n", g.GameID, g.GameType, g.State,
							strings.Join(g.Team1, ", "), strings.Join(g.Team2, ", "))
						for _, rg := range detail.Players {
							fmt.Printf("  %s: %s %+d mvp=%t\n", rg.DiscordID, rg.Result, rg.EloChange, rg.IsMVP)
						}
						return nil
					})
				},
			},
		},
	}
}

func newPlayerCommand() *cli.Command {
	idFlag := &cli.StringFlag{Name: "id", Usage: "discord id", Required: true}
	return &cli.Command{
		Name:  "player",
		Usage: "register players and sync their roles",
		Subcommands: []*cli.Command{
			{
				Name:  "register",
				Flags: []cli.Flag{idFlag, &cli.StringFlag{Name: "ign", Required: true}},
				Action: func(c *cli.Context) error {
					return withApp(c, func(ctx context.Context, d *deps) error {
						p, err := d.players.Register(ctx, c.String("id"), c.String("ign"))
						if err != nil {
							return err
						}
						fmt.Printf("registered %s as %s\n", p.DiscordID, p.IGN)
						return nil
					})
				},
			},
			{
				Name:  "unregister",
				Flags: []cli.Flag{idFlag},
				Action: func(c *cli.Context) error {
					return withApp(c, func(ctx context.Context, d *deps) error {
						return d.players.Unregister(ctx, c.String("id"))
					})
				},
			},
			{
				Name:  "show",
				Flags: []cli.Flag{idFlag},
				Action: func(c *cli.Context) error {
					return withApp(c, func(ctx context.Context, d *deps) error {
						p, err := d.players.GetPlayer(ctx, c.String("id"))
						if err != nil {
							return err
						}
						fmt.Printf("%s %s elo=%d daily=%+d highest=%d level=%d wins=%d losses=%d streak=%d/%d\n",
							p.DiscordID, p.IGN, p.Elo, p.DailyElo, p.HighestElo, p.Level, p.Wins, p.Losses, p.WinStreak, p.LoseStreak)
						return nil
					})
				},
			},
			{
				Name:  "settings",
				Usage: "change how a player's nickname is displayed",
				Flags: []cli.Flag{
					idFlag,
					&cli.BoolFlag{Name: "hide-elo", Usage: "drop the [elo] prefix"},
					&cli.BoolFlag{Name: "static", Usage: "never touch the nickname"},
					&cli.BoolFlag{Name: "no-ping", Usage: "do not ping on score"},
					&cli.StringFlag{Name: "nick", Usage: "suffix shown after the IGN"},
				},
				Action: func(c *cli.Context) error {
					return withApp(c, func(ctx context.Context, d *deps) error {
						s, err := d.players.Settings(ctx, c.String("id"))
						if err != nil {
							return err
						}
						if c.IsSet("hide-elo") {
							s.IsPrefixToggled = c.Bool("hide-elo")
						}
						if c.IsSet("static") {
							s.StaticNickname = c.Bool("static")
						}
						if c.IsSet("no-ping") {
							s.IsScoringPingToggled = c.Bool("no-ping")
						}
						if c.IsSet("nick") {
							s.Nickname = c.String("nick")
						}
						return d.players.UpdateSettings(ctx, s)
					})
				},
			},
			{
				Name:  "reconcile",
				Usage: "bring a member's roles and nickname in line with the store",
				Flags: []cli.Flag{idFlag},
				Action: func(c *cli.Context) error {
					return withApp(c, func(ctx context.Context, d *deps) error {
						return d.reconciler.Reconcile(ctx, c.String("id"))
					})
				},
			},
		},
	}
}

func newBandCommand() *cli.Command {
	roleFlag := &cli.StringFlag{Name: "role", Usage: "discord role id", Required: true}
	return &cli.Command{
		Name:  "band",
		Usage: "manage rating bands",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Action: func(c *cli.Context) error {
					return withApp(c, func(ctx context.Context, d *deps) error {
						bands, err := d.table.Bands(ctx)
						if err != nil {
							return err
						}
						for _, b := range bands {
							fmt.Printf("%-12s [%d, %d) win=%+d lose=%+d mvp=%+d role=%s\n",
								b.RankName, b.MinElo, b.MaxElo, b.WinElo, b.LoseElo, b.MVPElo, b.RoleID)
						}
						return nil
					})
				},
			},
			{
				Name: "set",
				Flags: []cli.Flag{
					roleFlag,
					&cli.StringFlag{Name: "rank", Required: true},
					&cli.IntFlag{Name: "min", Required: true},
					&cli.IntFlag{Name: "max", Required: true},
					&cli.IntFlag{Name: "win", Required: true},
					&cli.IntFlag{Name: "lose", Required: true},
					&cli.IntFlag{Name: "mvp"},
				},
				Action: func(c *cli.Context) error {
					return withApp(c, func(ctx context.Context, d *deps) error {
						return d.table.SetBand(ctx, domain.RatingBand{
							MinElo:   c.Int("min"),
							MaxElo:   c.Int("max"),
							WinElo:   c.Int("win"),
							LoseElo:  c.Int("lose"),
							MVPElo:   c.Int("mvp"),
							RoleID:   c.String("role"),
							RankName: c.String("rank"),
						})
					})
				},
			},
			{
				Name:  "remove",
				Flags: []cli.Flag{roleFlag},
				Action: func(c *cli.Context) error {
					return withApp(c, func(ctx context.Context, d *deps) error {
						return d.table.RemoveBand(ctx, c.String("role"))
					})
				},
			},
		},
	}
}

func newBoosterCommand() *cli.Command {
	return &cli.Command{
		Name:      "booster",
		Usage:     "set the global win elo multiplier",
		ArgsUsage: "MULTIPLIER",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected exactly one multiplier", 2)
			}
			return withApp(c, func(ctx context.Context, d *deps) error {
				if err := d.table.SetBooster(ctx, c.Args().First()); err != nil {
					return err
				}
				fmt.Printf("booster set to %s (effective %.2f)\n", c.Args().First(), d.table.Multiplier(ctx))
				return nil
			})
		},
	}
}
