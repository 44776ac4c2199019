package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/cmd/config"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/internal/audioapi"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/internal/module"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/internal/utils"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/address"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/audiodevice/device"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFilePath string
	logFilePointer *os.File

	rootCmd = &cobra.Command{
		Use:   "r6ebridge",
		Short: "Capture audio hardware as timestamped packet streams",
		Long: `r6ebridge exposes the capture devices of a native audio backend (WASAPI, ALSA,
CoreAudio, PulseAudio, ...) under miniaudio:// connection strings and streams
their samples to WAV files, NATS subjects and WebRTC listeners.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadConfig(configFilePath); err != nil {
				return err
			}

			var err error
			logFilePointer, err = utils.ConfigureDefaultLogger(
				viper.GetString("loglevel"),
				viper.GetString("logfile"),
				slog.HandlerOptions{},
			)
			if err != nil {
				return fmt.Errorf("error while configuring default logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logFilePointer != nil {
				logFilePointer.Close()
			}
		},
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFilePath, "config", "config.yaml", "Set the file path to the config file.")
	flags.String("loglevel", "info", "Log level: none, error, warn, info or debug")
	flags.String("logfile", "", "Write JSON logs to this file instead of stdout")
	flags.String("backend", "", "Native audio backend (e.g. wasapi, alsa, pulseaudio); empty selects the platform default")
	flags.Bool("simulate", false, "Use simulated hardware instead of a native backend")
	flags.String("simulate-wav", "", "Feed the simulated hardware from this WAV file instead of a sine tone")

	for _, key := range []string{"loglevel", "logfile", "backend"} {
		viper.BindPFlag(key, flags.Lookup(key))
	}
	viper.BindPFlag("simulate.enabled", flags.Lookup("simulate"))
	viper.BindPFlag("simulate.wav", flags.Lookup("simulate-wav"))

	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newTypesCommand())
	rootCmd.AddCommand(newCaptureCommand())
}

// Open the configured backend context and wrap it in a module.
func openModule() (*module.Module, error) {
	api, err := openAPI()
	if err != nil {
		return nil, err
	}
	return module.New(api, module.Options{
		SampleRate:       viper.GetInt("samplerate"),
		StreamBufferSize: viper.GetInt("streambuffer"),
	}), nil
}

func openAPI() (audioapi.Context, error) {
	backend, err := audioapi.ParseBackend(viper.GetString("backend"))
	if err != nil {
		return nil, err
	}

	if !viper.GetBool("simulate.enabled") && viper.GetString("simulate.wav") == "" {
		api, err := audioapi.NewMalgoAPI(backend)
		if err != nil {
			return nil, err
		}
		return api, nil
	}

	simulated := simulatedDevice(backend)
	api := audioapi.NewDummyAPI(backend, simulated)
	// Deliver 10 ms periods in real time.
	api.SetNegotiate(func(requested int) int { return requested })
	api.SetPeriod(viper.GetInt("samplerate")/100, 10*time.Millisecond)

	if wavFile := viper.GetString("simulate.wav"); wavFile != "" {
		generator, err := device.NewWAVSampleGenerator(wavFile)
		if err != nil {
			return nil, err
		}
		rate := generator.SampleRate()
		api.SetSampleSource(generator)
		api.SetNegotiate(func(int) int { return rate })
		api.SetPeriod(rate/100, 10*time.Millisecond)
	}
	return api, nil
}

func simulatedDevice(backend address.Backend) audioapi.DeviceInfo {
	var addr address.Address
	switch backend {
	case address.BackendWASAPI:
		addr = address.WASAPIAddress("{0.0.1.00000000}.{simulated}")
	case address.BackendDSound:
		addr = address.DSoundAddress{}
	case address.BackendWinMM:
		addr = address.WinMMAddress(0)
	case address.BackendJACK:
		addr = address.JACKAddress(0)
	case address.BackendCoreAudio:
		addr = address.CoreAudioAddress("SimulatedMicrophone")
	case address.BackendALSA:
		addr = address.ALSAAddress("default")
	case address.BackendPulseAudio:
		addr = address.PulseAudioAddress("simulated.monitor")
	default:
		if bare, err := address.NewBareAddress(backend); err == nil {
			addr = bare
		} else {
			addr = address.UnknownAddress{}
		}
	}
	return audioapi.DeviceInfo{Address: addr, Name: "Simulated microphone", IsDefault: true}
}
