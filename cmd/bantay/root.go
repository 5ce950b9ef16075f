package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lborres/bantay"
	"github.com/lborres/bantay/adapters/file"
	"github.com/lborres/bantay/adapters/memory"
	pgxadapter "github.com/lborres/bantay/adapters/pgx"
	redisadapter "github.com/lborres/bantay/adapters/redis"
	"github.com/lborres/bantay/adapters/rest"
	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/config"
	"github.com/lborres/bantay/pkg/crypto"
	"github.com/lborres/bantay/pkg/logging"
)

// runtime is shared by every command; it is filled in by the root pre-run hook
type runtime struct {
	configFile string
	verbose    bool
	yes        bool
	jsonOutput bool

	loader *config.Loader
	cfg    config.Config
	log    *logging.Logger

	closers []func()
}

var errNotLoggedIn = errors.New("not logged in; run `bantay login` first")

func newRootCmd() *cobra.Command {
	rt := &runtime{}

	root := &cobra.Command{
		Use:           "bantay",
		Short:         "Proctoring dashboard client",
		Long:          "bantay watches a proctoring backend: live alerts, the violation feed, exam countdown and statistics, plus the staff forms.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.init()
		},
	}
	// finalizers also run when a command fails
	cobra.OnFinalize(rt.close)

	flags := root.PersistentFlags()
	flags.StringVar(&rt.configFile, "config", "", "config file (default: ./bantay.yaml or ~/.config/bantay/bantay.yaml)")
	flags.BoolVarP(&rt.verbose, "verbose", "v", false, "log debug output to stderr")
	flags.BoolVarP(&rt.yes, "yes", "y", false, "answer yes to every confirmation prompt")
	flags.BoolVar(&rt.jsonOutput, "json", false, "print machine-readable JSON")

	root.AddCommand(
		newLoginCmd(rt),
		newLogoutCmd(rt),
		newWhoamiCmd(rt),
		newRegisterCmd(rt),
		newAlertsCmd(rt),
		newFeedCmd(rt),
		newExamCmd(rt),
		newStatsCmd(rt),
		newExamsCmd(rt),
		newStudentsCmd(rt),
		newSummaryCmd(rt),
		newExportCmd(rt),
		newMediaCmd(rt),
		newServeCmd(rt),
	)
	return root
}

func (rt *runtime) init() error {
	loader, err := config.Load(rt.configFile)
	if err != nil {
		return err
	}
	rt.loader = loader
	rt.cfg = loader.Config()

	logCfg := logging.Config{
		Level:      rt.cfg.Logging.Level,
		Directory:  rt.cfg.Logging.Directory,
		MaxSize:    rt.cfg.Logging.MaxSize,
		MaxBackups: rt.cfg.Logging.MaxBackups,
		MaxAge:     rt.cfg.Logging.MaxAge,
		Compress:   rt.cfg.Logging.Compress,
		Console:    rt.verbose,
	}
	if rt.verbose {
		logCfg.Level = "debug"
	}
	log, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	rt.log = log
	rt.closers = append(rt.closers, func() { _ = log.Close() })

	if file := loader.File(); file != "" {
		log.Debug("configuration loaded", zap.String("file", file))
	}
	return nil
}

func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// openStorage builds the token storage selected by the configuration
func (rt *runtime) openStorage(ctx context.Context) (core.TokenStorage, error) {
	sc := rt.cfg.Storage
	switch sc.Driver {
	case "memory":
		return memory.New(sc.TTL), nil

	case "file":
		path := sc.Path
		if path == "" {
			p, err := file.DefaultPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		var opts []file.Option
		if sc.Passphrase != "" {
			sealer, err := crypto.NewSealer(sc.Passphrase)
			if err != nil {
				return nil, err
			}
			opts = append(opts, file.WithSealer(sealer))
		}
		return file.New(path, opts...)

	case "postgres":
		pool, err := pgxadapter.Connect(ctx, sc.DSN)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		store := pgxadapter.New(pool, sc.Profile)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil

	case "redis":
		client, err := redisadapter.Connect(ctx, sc.RedisURL)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		return redisadapter.New(client, sc.Profile, sc.TTL), nil
	}
	return nil, fmt.Errorf("%w: %q", config.ErrUnknownStorage, sc.Driver)
}

// dashboard wires a dashboard against the configured backend. extra may
// adjust the configuration before it is built.
func (rt *runtime) dashboard(ctx context.Context, extra func(*bantay.Config)) (*bantay.Bantay, error) {
	backend, err := rest.New(rest.Config{
		BaseURL: rt.cfg.Backend.URL,
		Timeout: rt.cfg.Backend.Timeout,
		Logger:  rt.log.Named("backend"),
	})
	if err != nil {
		return nil, err
	}

	storage, err := rt.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	filter := rt.cfg.AlertFilter()
	sessionConfig := rt.cfg.SessionConfig()
	bc := bantay.Config{
		Backend:        backend,
		Storage:        storage,
		Logger:         rt.log.Logger,
		SessionConfig:  &sessionConfig,
		Intervals:      rt.cfg.PollIntervals(),
		AlertFilter:    &filter,
		StatsSessionID: rt.cfg.Stats.SessionID,
	}
	if rt.cfg.Media.Enabled {
		media, err := rest.NewMediaClient(rest.Config{
			BaseURL: rt.cfg.Media.URL,
			Timeout: rt.cfg.Media.Timeout,
			Logger:  rt.log.Named("media"),
		})
		if err != nil {
			return nil, err
		}
		bc.Media = media
	}
	if extra != nil {
		extra(&bc)
	}

	b, err := bantay.New(bc)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, b.Stop)
	return b, nil
}

// restore loads the persisted session and waits for it to resolve
func (rt *runtime) restore(ctx context.Context, b *bantay.Bantay) (core.SessionState, error) {
	b.Session.Start(ctx)
	waitCtx, cancel := context.WithTimeout(ctx, rt.cfg.SessionConfig().ResolveTimeout+time.Second)
	defer cancel()
	return b.Session.Wait(waitCtx)
}

// requireLogin is restore for commands that need an authenticated session
func (rt *runtime) requireLogin(ctx context.Context, b *bantay.Bantay) (core.SessionState, error) {
	state, err := rt.restore(ctx, b)
	if err != nil {
		return state, err
	}
	if !state.Authenticated() {
		return state, errNotLoggedIn
	}
	return state, nil
}

func (rt *runtime) confirmer(cmd *cobra.Command) core.Confirmer {
	if rt.yes {
		return core.AlwaysConfirm
	}
	return &promptConfirmer{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.ErrOrStderr()}
}

func (rt *runtime) printer(w io.Writer) *printer {
	return &printer{w: w, json: rt.jsonOutput}
}
