package config

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --endpoint
// on both "trickle chat" and "trickle ask").
type Flag struct {
	// Name is the long flag name (e.g. "endpoint").
	Name string

	// Shorthand is the one-letter short flag (e.g. "e"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "client.endpoint").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddIntFlag, AddDurationFlag
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagEndpoint    = "endpoint"
	FlagMethod      = "method"
	FlagNewlineMode = "newline-mode"
	FlagTimeout     = "timeout"
	FlagMaxAttempts = "max-attempts"

	FlagHistoryDriver = "history-driver"
	FlagHistoryPath   = "history-path"
	FlagSQLite        = "sqlite"
	FlagPostgresDSN   = "postgres-dsn"

	FlagListen     = "listen"
	FlagChunkSize  = "chunk-size"
	FlagChunkDelay = "chunk-delay"
	FlagFailFirst  = "fail-first"
	FlagDropAfter  = "drop-after"

	FlagEventStreamProvider = "eventstream-provider"
	FlagEventStreamTopic    = "eventstream-topic"
)

// Flags is the shared registry used by the trickle commands.
var Flags = FlagSet{
	FlagEndpoint:    {Name: "endpoint", Shorthand: "e", ViperKey: "client.endpoint", Description: "Chat stream endpoint URL"},
	FlagMethod:      {Name: "method", Shorthand: "m", ViperKey: "client.method", Description: "Request method (POST or GET)"},
	FlagNewlineMode: {Name: "newline-mode", ViperKey: "client.newline_mode", Description: "Escaped newline rendering (literal, html)"},
	FlagTimeout:     {Name: "timeout", ViperKey: "client.timeout", Description: "Time to wait for response headers"},
	FlagMaxAttempts: {Name: "max-attempts", ViperKey: "retry.max_attempts", Description: "Reconnect attempts before giving up"},

	FlagHistoryDriver: {Name: "history-driver", ViperKey: "history.driver", Description: "History storage (none, memory, jsonfile, sqlite, postgres)"},
	FlagHistoryPath:   {Name: "history-path", ViperKey: "history.path", Description: "Path to the JSON history file"},
	FlagSQLite:        {Name: "sqlite", Shorthand: "s", ViperKey: "history.sqlite_path", Description: "Path to SQLite database"},
	FlagPostgresDSN:   {Name: "postgres-dsn", ViperKey: "history.postgres_dsn", Description: "PostgreSQL connection string"},

	FlagListen:     {Name: "listen", Shorthand: "l", ViperKey: "server.listen", Description: "Address for the producer to listen on"},
	FlagChunkSize:  {Name: "chunk-size", ViperKey: "server.chunk_size", Description: "Runes per message event"},
	FlagChunkDelay: {Name: "chunk-delay", ViperKey: "server.chunk_delay", Description: "Pause between message events"},
	FlagFailFirst:  {Name: "fail-first", ViperKey: "server.fail_first", Description: "Reject the first N chat requests with 503"},
	FlagDropAfter:  {Name: "drop-after", ViperKey: "server.drop_after", Description: "Drop fresh streams after N message events"},

	FlagEventStreamProvider: {Name: "eventstream-provider", ViperKey: "eventstream.provider", Description: "Turn event publisher (nop, kafka)"},
	FlagEventStreamTopic:    {Name: "eventstream-topic", ViperKey: "eventstream.topic", Description: "Kafka topic for turn events"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *int) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaults().GetInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddDurationFlag registers a duration flag on cmd from the given FlagSet.
func AddDurationFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *time.Duration) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaults().GetDuration(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().DurationVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().DurationVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaults returns a viper instance holding only NewDefaultConfig values.
func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
