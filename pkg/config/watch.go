package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch follows the config file read by v and calls onChange with the
// re-resolved Config after every write. It returns false when v did not read
// a config file, in which case there is nothing to watch.
//
// Listen addresses and storage are fixed at startup; callers decide which
// settings they can apply live.
func Watch(v *viper.Viper, logger *slog.Logger, onChange func(*Config)) bool {
	if v.ConfigFileUsed() == "" {
		return false
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		cfg, err := FromViper(v)
		if err != nil {
			logger.Warn("ignoring invalid config change", "file", e.Name, "error", err)
			return
		}

		logger.Info("config file changed", "file", e.Name, "op", e.Op.String())
		if onChange != nil {
			onChange(cfg)
		}
	})
	v.WatchConfig()

	return true
}
