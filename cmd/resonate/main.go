// Command resonate is the CLI front end for the recommendation engine.
//
// Subcommands:
//
//	analyze   build a taste profile from a JSON file of seed songs
//	recommend print ranked recommendations for a user
//	update    blend new songs into an existing profile
//	profile   show a user's taste profile
//	track     record a listening-history play event
//
// All collaborators are constructed here and passed down explicitly;
// nothing in the engine reaches for global state.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/scrypster/resonate/internal/config"
	"github.com/scrypster/resonate/internal/embedding"
	"github.com/scrypster/resonate/internal/engine"
	"github.com/scrypster/resonate/internal/links"
	"github.com/scrypster/resonate/internal/search"
	"github.com/scrypster/resonate/internal/storage"
	"github.com/scrypster/resonate/internal/storage/postgres"
	"github.com/scrypster/resonate/internal/storage/sqlite"
	"github.com/scrypster/resonate/pkg/types"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	log.SetPrefix("resonate: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:]); err != nil {
		log.Fatalf("%s failed: %v", os.Args[1], err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: resonate <command> [flags]

commands:
  analyze    -user <id> -songs <file.json>
  recommend  -user <id> [-limit n] [-genre g1,g2] [-mood m]
  update     -user <id> -songs <file.json> [-weight w]
  profile    -user <id>
  track      -user <id> -title <t> -artist <a> [-duration s] [-completed]`)
}

// app bundles the constructed services for the subcommands.
type app struct {
	cfg      *config.Config
	profiles *engine.ProfileService
	rec      *engine.Recommender
	history  storage.HistoryStore
	closer   func() error
}

func newApp() (*app, error) {
	cfg, err := config.Load(os.Getenv("RESONATE_CONFIG"))
	if err != nil {
		return nil, err
	}

	var (
		profileStore storage.ProfileStore
		historyStore storage.HistoryStore
		closer       func() error
	)
	switch cfg.Storage.Engine {
	case "postgres":
		store, err := postgres.NewStore(cfg.Storage.DSN, cfg.Embedding.Dimension)
		if err != nil {
			return nil, err
		}
		profileStore, historyStore, closer = store, store, store.Close
	default:
		store, err := sqlite.NewStore(cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		profileStore, historyStore, closer = store, store, store.Close
	}

	embedder := embedding.NewOllamaEmbedder(embedding.OllamaConfig{
		BaseURL:   cfg.Embedding.OllamaURL,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   cfg.Embedding.Timeout,
	})
	songEmbedder, err := embedding.NewSongEmbedder(embedder, cfg.Embedding.CacheSize)
	if err != nil {
		closer() //nolint:errcheck
		return nil, err
	}

	searcher := search.NewMultiProvider(
		search.NewITunesClient(search.ITunesConfig{
			Timeout:           cfg.Search.Timeout,
			RequestsPerSecond: cfg.Search.RequestsPerSecond,
		}),
		search.NewLastFMClient(search.LastFMConfig{
			Timeout:           cfg.Search.Timeout,
			RequestsPerSecond: cfg.Search.RequestsPerSecond,
		}),
	)

	var resolver links.VideoResolver
	if cfg.YouTube.APIKey != "" {
		if yt, err := links.NewYouTubeResolver(links.YouTubeConfig{APIKey: cfg.YouTube.APIKey}); err == nil {
			resolver = yt
		}
	}

	profiles := engine.NewProfileService(profileStore, songEmbedder)
	rec := engine.NewRecommender(profiles, searcher, songEmbedder, engine.RecommenderConfig{
		History:  historyStore,
		Resolver: resolver,
	})

	return &app{cfg: cfg, profiles: profiles, rec: rec, history: historyStore, closer: closer}, nil
}

func run(ctx context.Context, command string, args []string) error {
	switch command {
	case "analyze":
		return cmdAnalyze(ctx, args)
	case "recommend":
		return cmdRecommend(ctx, args)
	case "update":
		return cmdUpdate(ctx, args)
	case "profile":
		return cmdProfile(ctx, args)
	case "track":
		return cmdTrack(ctx, args)
	case "help", "-h", "--help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func cmdAnalyze(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	user := fs.String("user", "", "user ID")
	songsPath := fs.String("songs", "", "path to JSON file of seed songs")
	fs.Parse(args) //nolint:errcheck

	if *user == "" || *songsPath == "" {
		return fmt.Errorf("-user and -songs are required")
	}
	songs, err := readSongs(*songsPath)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.closer() //nolint:errcheck

	result, err := a.profiles.AnalyzeTaste(ctx, *user, songs)
	if err != nil {
		return err
	}
	fmt.Println(result)
	return nil
}

func cmdRecommend(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	user := fs.String("user", "", "user ID")
	limit := fs.Int("limit", 10, "number of recommendations")
	genres := fs.String("genre", "", "comma-separated genre filter")
	mood := fs.String("mood", "", "mood context")
	fs.Parse(args) //nolint:errcheck

	if *user == "" {
		return fmt.Errorf("-user is required")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.closer() //nolint:errcheck

	opts := engine.RecommendOptions{}
	if *genres != "" {
		opts.GenreFilter = strings.Split(*genres, ",")
	}
	if *mood != "" {
		opts.Context = map[string]string{"mood": *mood}
	}

	result, err := a.rec.GetRecommendations(ctx, *user, *limit, opts)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func cmdUpdate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	user := fs.String("user", "", "user ID")
	songsPath := fs.String("songs", "", "path to JSON file of new songs")
	weight := fs.Float64("weight", engine.DefaultBlendWeight, "blend weight for new songs")
	fs.Parse(args) //nolint:errcheck

	if *user == "" || *songsPath == "" {
		return fmt.Errorf("-user and -songs are required")
	}
	songs, err := readSongs(*songsPath)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.closer() //nolint:errcheck

	profile, err := a.profiles.UpdateProfileWithSongs(ctx, *user, songs, *weight)
	if err != nil {
		return err
	}
	fmt.Printf("profile for %s now has %d songs (version %d)\n",
		profile.UserID, profile.SongCount, profile.Version)
	return nil
}

func cmdProfile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	user := fs.String("user", "", "user ID")
	fs.Parse(args) //nolint:errcheck

	if *user == "" {
		return fmt.Errorf("-user is required")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.closer() //nolint:errcheck

	profile, err := a.profiles.GetTasteProfile(ctx, *user)
	if err != nil {
		return err
	}
	// The vector itself is noise on a terminal.
	view := struct {
		UserID    string          `json:"user_id"`
		SongCount int             `json:"song_count"`
		Version   int64           `json:"version"`
		UpdatedAt time.Time       `json:"updated_at"`
		SeedSongs []types.SongRef `json:"seed_songs"`
	}{profile.UserID, profile.SongCount, profile.Version, profile.UpdatedAt, profile.SeedSongs}
	return printJSON(view)
}

func cmdTrack(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("track", flag.ExitOnError)
	user := fs.String("user", "", "user ID")
	title := fs.String("title", "", "song title")
	artist := fs.String("artist", "", "primary artist")
	duration := fs.Float64("duration", 0, "listen duration in seconds")
	completed := fs.Bool("completed", false, "song played to the end")
	fs.Parse(args) //nolint:errcheck

	if *user == "" || *title == "" || *artist == "" {
		return fmt.Errorf("-user, -title and -artist are required")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.closer() //nolint:errcheck

	return a.history.RecordPlay(ctx, *user, types.PlayEvent{
		Title:           *title,
		Artists:         []string{*artist},
		DurationSeconds: *duration,
		Completed:       *completed,
		Source:          "manual",
		PlayedAt:        time.Now().UTC(),
	})
}

func readSongs(path string) ([]types.SongRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var songs []types.SongRef
	if err := json.Unmarshal(data, &songs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return songs, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
