package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/internal/utils"
	"github.com/spf13/viper"
)

// Load the viper defaults, then the config file at configFilePath on top.
//
// A missing config file is not an error; the defaults (and any bound flags) are used instead.
func LoadConfig(configFilePath string) error {
	utils.SetViperDefaults()

	viper.SetConfigFile(configFilePath)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			slog.Info("no config file found", "configFilePath", configFilePath)
			return nil
		}
		slog.Error("error during config read", "err", err)
		return fmt.Errorf("reading config %s: %w", configFilePath, err)
	}

	if viper.GetInt("samplerate") <= 0 {
		return fmt.Errorf("samplerate must be positive, got %d", viper.GetInt("samplerate"))
	}
	if viper.GetInt("streambuffer") <= 0 {
		return fmt.Errorf("streambuffer must be positive, got %d", viper.GetInt("streambuffer"))
	}
	return nil
}
