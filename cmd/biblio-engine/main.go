// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the biblio-engine CLI.
package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/biblio-engine/internal/citeproc"
	"github.com/pdiddy/biblio-engine/internal/engine"
	"github.com/pdiddy/biblio-engine/internal/schema"
	"github.com/pdiddy/biblio-engine/internal/secrets"
	"github.com/pdiddy/biblio-engine/internal/store"
	"github.com/pdiddy/biblio-engine/internal/styles"
	"github.com/pdiddy/biblio-engine/internal/translate"
	"github.com/pdiddy/biblio-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "biblio-engine/0.1"
	defaultDataDir   = ".biblio"
	defaultStyle     = "chicago-author-date"
)

// loadedSecrets holds API tokens loaded from .secrets/ at startup.
var loadedSecrets map[string]string

var log zerolog.Logger

// rootCmd is the base command for the biblio-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "biblio-engine",
	Short: "Build and synchronize a formatted bibliography",
	Long: `biblio-engine accumulates bibliographic records from identifier lookups
(DOI, ISBN, PMID, arXiv), web page URLs, and import files, and renders them
into a formatted bibliography under a selectable citation style. The rendered
output stays synchronized as records, ordering, and style change.

Each operation is a subcommand: add, list, remove, undo, reorder, style,
render, title, and clear.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s

		level := zerolog.WarnLevel
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = zerolog.DebugLevel
		}
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).With().Timestamp().Logger()
		if len(loadedSecrets) > 0 {
			log.Debug().Strs("keys", secrets.Keys(loadedSecrets)).Msg("loaded secrets")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./biblio-engine.yaml or ~/.config/biblio-engine/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "data directory (default: .biblio)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("biblio-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "biblio-engine"))
		}
	}

	viper.SetDefault("data_dir", defaultDataDir)
	viper.SetDefault("style", defaultStyle)
	viper.SetDefault("engine", citeproc.EngineClassic)

	viper.SetEnvPrefix("BIBLIO_ENGINE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// session bundles the wired engine with the resources a subcommand needs.
type session struct {
	engine   *engine.Engine
	resolver *styles.Resolver
	store    *store.Store
	close    func()
}

// openSession wires the store, resolvers, pipeline, and engine, and runs the
// engine's initial settle.
func openSession(cmd *cobra.Command) (*session, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir == "" {
		dataDir = viper.GetString("data_dir")
	}

	db, err := store.OpenDB(dataDir)
	if err != nil {
		return nil, err
	}

	st, err := store.New(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	httpCfg := types.HTTPConfig{Timeout: defaultTimeout, UserAgent: defaultUserAgent}
	client := &http.Client{Timeout: httpCfg.Timeout}

	resolver, err := styles.NewResolver(client, types.StyleConfig{HTTPConfig: httpCfg}, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	provider := schema.NewProvider(client, types.SchemaConfig{
		HTTPConfig: httpCfg,
		CachePath:  filepath.Join(dataDir, "schema.json"),
	})

	translator := translate.NewClient(client, types.TranslationConfig{
		HTTPConfig: httpCfg,
		Endpoint:   viper.GetString("translation_endpoint"),
		Token:      loadedSecrets["translation-server-token"],
		MaxRetries: 3,
	})
	pipeline := translate.NewPipeline(translator, provider, log)

	engCfg := types.EngineConfig{
		Processor:    viper.GetString("engine"),
		DefaultStyle: viper.GetString("style"),
	}
	proc, err := citeproc.New(citeproc.Options{Engine: engCfg.Processor})
	if err != nil {
		db.Close()
		return nil, err
	}

	eng := engine.New(engine.Params{
		Store:      st,
		Styles:     resolver,
		Schema:     provider,
		Translator: pipeline,
		Processor:  proc,
		Config:     engCfg,
		Logger:     log,
	})
	if err := eng.Start(cmd.Context()); err != nil {
		db.Close()
		return nil, err
	}

	return &session{
		engine:   eng,
		resolver: resolver,
		store:    st,
		close:    func() { db.Close() },
	}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
