package config

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is to be used for all logging
var Logger *logrus.Logger

// InitLogger initializes the logger with apropriate configuration options
func InitLogger(c *Config) error {
	var (
		fileName = c.LogFileName
		maxSize  = c.LogMaxSize
		logLevel = c.LogLevel
	)

	if maxSize == 0 {
		maxSize = 50
	}

	if logLevel == "" {
		logLevel = "info"
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if fileName != "" && fileName != "stdout" {
		out = &lumberjack.Logger{
			Filename: fileName,
			MaxSize:  maxSize, // MB
		}
	}

	Logger = &logrus.Logger{
		Formatter: &logrus.JSONFormatter{},
		Out:       out,
		Hooks:     make(logrus.LevelHooks),
		Level:     level,
	}

	Logger.Info("Logger started")
	return nil
}
