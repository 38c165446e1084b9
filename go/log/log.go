// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package log provides module loggers built on zerolog.
//
// Loggers are configured through a toml file named rigoletto.toml in the
// working directory, or the file named by the RIGOLETTO_LOGCONFIG environment
// variable. All fields are optional:
//
//	# default level of all modules: debug/info/warn/error/fatal/panic/disabled
//	level = "info"
//
//	# output format: console, console_no_color or json
//	formatter = "console"
//
//	# output target: stdout, stderr or a file path
//	out = "stderr"
//
//	# print source file and line
//	caller = false
//
//	timefieldformat = "15:04:05"
//
//	# per module settings, only the level and output can be changed
//	[state]
//	level = "debug"
package log

import (
	"errors"
	"os"
	"strings"
	"sync"

	colorable "github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

var (
	baseLogger = zerolog.New(os.Stderr)
	baseLevel  = zerolog.InfoLevel
	viperConf  = viper.New()

	logInitLock sync.Mutex
	isLogInit   = false
)

const (
	confFilePathKey     = "LOGCONFIG"
	confEnvPrefix       = "RIGOLETTO"
	defaultConfFileName = "rigoletto"
)

// Logger is a zerolog logger tagged with the name of the module using it.
type Logger struct {
	*zerolog.Logger
	name  string
	level zerolog.Level
}

func loadConfigFile() {
	viperConf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperConf.SetEnvPrefix(confEnvPrefix)
	viperConf.AutomaticEnv()

	viperConf.SetConfigType("toml")
	viperConf.SetConfigName(defaultConfFileName)
	viperConf.AddConfigPath(".")

	if path := viperConf.GetString(confFilePathKey); path != "" {
		viperConf.SetConfigFile(path)
	}

	if err := viperConf.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			baseLogger.Warn().Err(err).Msg("failed to read logger configuration")
		}
	}
}

func initLog() {
	if format := viperConf.GetString("timefieldformat"); format != "" {
		zerolog.TimeFieldFormat = format
	}

	out := os.Stderr
	if name := viperConf.GetString("out"); name != "" {
		if o, err := getOutput(name); err == nil {
			out = o
		} else {
			baseLogger.Warn().Err(err).Str("out", name).Msg("failed to open log output, using stderr")
		}
	}
	baseLogger = baseLogger.Output(out)

	switch formatter := strings.ToLower(viperConf.GetString("formatter")); formatter {
	case "", "console":
		baseLogger = baseLogger.Output(zerolog.ConsoleWriter{
			Out:        colorable.NewColorable(out),
			TimeFormat: zerolog.TimeFieldFormat,
		})
	case "console_no_color":
		baseLogger = baseLogger.Output(zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    true,
			TimeFormat: zerolog.TimeFieldFormat,
		})
	case "json":
	default:
		baseLogger.Warn().Str("formatter", formatter).Msg("unknown log formatter, using json")
	}

	if viperConf.GetBool("caller") {
		baseLogger = baseLogger.With().Caller().Logger()
	}

	baseLevel = parseLevel(viperConf.GetString("level"), zerolog.InfoLevel)
	baseLogger = baseLogger.With().Timestamp().Logger().Level(baseLevel)
}

func parseLevel(level string, fallback zerolog.Level) zerolog.Level {
	if level == "" {
		return fallback
	}
	res, err := zerolog.ParseLevel(level)
	if err != nil {
		baseLogger.Warn().Err(err).Str("level", level).Msg("invalid log level")
		return fallback
	}
	return res
}

func ensureInit() {
	if !isLogInit {
		loadConfigFile()
		initLog()
		isLogInit = true
	}
}

// Configure replaces the logger configuration by the given settings. Loggers
// created before the call keep their configuration.
func Configure(conf *viper.Viper) {
	logInitLock.Lock()
	defer logInitLock.Unlock()
	viperConf = conf
	baseLogger = zerolog.New(os.Stderr)
	initLog()
	isLogInit = true
}

// NewLogger creates a logger for the given module. All events of the logger
// carry a "module" field.
func NewLogger(moduleName string) *Logger {
	logInitLock.Lock()
	defer logInitLock.Unlock()
	ensureInit()

	zLogger := baseLogger.With().Str("module", moduleName).Logger()
	zLevel := baseLevel
	if sub := viperConf.Sub(moduleName); sub != nil {
		if name := sub.GetString("out"); name != "" {
			if out, err := getOutput(name); err == nil {
				zLogger = zLogger.Output(out)
			} else {
				baseLogger.Warn().Err(err).Str("out", name).Str("module", moduleName).Msg("failed to open log output")
			}
		}
		zLevel = parseLevel(sub.GetString("level"), baseLevel)
		zLogger = zLogger.Level(zLevel)
	}

	return &Logger{
		Logger: &zLogger,
		name:   moduleName,
		level:  zLevel,
	}
}

// Default returns the logger without a module name.
func Default() *Logger {
	logInitLock.Lock()
	defer logInitLock.Unlock()
	ensureInit()
	return &Logger{
		Logger: &baseLogger,
		level:  baseLevel,
	}
}

// Nop returns a logger discarding all events.
func Nop() *Logger {
	l := zerolog.Nop()
	return &Logger{Logger: &l, level: zerolog.Disabled}
}

func (l *Logger) Name() string {
	return l.name
}

// IsDebugEnabled can be used to skip the computation of expensive debug output.
func (l *Logger) IsDebugEnabled() bool {
	return l.level <= zerolog.DebugLevel
}

func (l *Logger) Level() string {
	return l.level.String()
}

var errEmptyName = errors.New("empty output name")

// getOutput resolves stdout, stderr or a file path to be appended to.
func getOutput(name string) (*os.File, error) {
	switch name {
	case "":
		return nil, errEmptyName
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	return os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
}
