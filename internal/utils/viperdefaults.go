package utils

import "github.com/spf13/viper"

// Set the viper defaults for the bridge.
// For use in cmd/config and cmd/r6ebridge.
func SetViperDefaults() {
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("logfile", "")
	viper.SetDefault("backend", "")
	viper.SetDefault("samplerate", 44100)
	viper.SetDefault("streambuffer", 64)
	viper.SetDefault("wav.file", "")
	viper.SetDefault("nats.url", "")
	viper.SetDefault("nats.subject", "r6ebridge.audio")
	viper.SetDefault("webrtc.codec", "CodecPCMU8000Mono")
	viper.SetDefault("webrtc.iceservers", []string{})
	viper.SetDefault("monitor.addr", "")
}
