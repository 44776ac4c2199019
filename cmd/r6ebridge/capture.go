package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	capturedevice "github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/internal/device"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/internal/functionblock"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/internal/module"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/internal/nats"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/internal/networking"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/audiodevice"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/audiodevice/device"
	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errNoCaptureDevice = errors.New("no capture device available")

func newCaptureCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture from a device and stream it to the configured consumers",
		Long: `Create a capture device from a connection string (or the default device when
none is given) and fan its packets out to a WAV file, a NATS subject and a
WebRTC monitor server, each enabled by its flag or config key.

Capture runs until --duration elapses or the process is interrupted.`,
		Args: cobra.NoArgs,
		RunE: runCapture,
	}

	flags := cmd.Flags()
	flags.String("connection", "", "Connection string of the device, e.g. miniaudio://alsa/hw:1,0")
	flags.Int("sample-rate", 44100, "Requested sample rate; applied through the SampleRate property")
	flags.Duration("duration", 0, "Stop capturing after this long (0 runs until interrupted)")
	flags.String("wav", "", "Write the capture to this WAV file")
	flags.String("nats", "", "Publish packets to the NATS server at this URL")
	flags.String("monitor", "", "Serve WebRTC listeners on this address, e.g. :8080")

	viper.BindPFlag("connection", flags.Lookup("connection"))
	viper.BindPFlag("duration", flags.Lookup("duration"))
	viper.BindPFlag("wav.file", flags.Lookup("wav"))
	viper.BindPFlag("nats.url", flags.Lookup("nats"))
	viper.BindPFlag("monitor.addr", flags.Lookup("monitor"))
	return cmd
}

func runCapture(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration := viper.GetDuration("duration"); duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	m, err := openModule()
	if err != nil {
		return err
	}
	defer m.Close()

	connection, err := selectConnection(m, viper.GetString("connection"))
	if err != nil {
		return err
	}
	captureDevice, err := m.CreateDevice(&connection)
	if err != nil {
		return err
	}
	logger := slog.Default().With("device", captureDevice.LocalID(), "connection", connection)

	if flag := cmd.Flags().Lookup("sample-rate"); flag.Changed {
		rate, _ := cmd.Flags().GetInt("sample-rate")
		if err := captureDevice.Properties().SetPropertyValue(capturedevice.SampleRateProperty, rate); err != nil {
			return err
		}
	}
	if !captureDevice.IsRunning() {
		logger.Warn("capture device is not running; consumers will only see the stream close")
	}

	// --------------------------------------------------------------------------------

	fanOut := device.NewFanOutDevice(viper.GetInt("streambuffer"), device.DefaultSinkTimeout)
	counter := device.NewDummyAudioSinkDevice()
	counter.SetStream(fanOut.GetStream())
	sinks := []audiodevice.AudioSinkDevice{counter}

	if wavFile := viper.GetString("wav.file"); wavFile != "" {
		writer, err := m.CreateFunctionBlock(functionblock.WAVWriterTypeID, "wav0")
		if err != nil {
			return err
		}
		if err := writer.Properties().SetPropertyValue(functionblock.FileNameProperty, wavFile); err != nil {
			return err
		}
		writer.SetStream(fanOut.GetStream())
		sinks = append(sinks, writer)
	}

	if natsURL := viper.GetString("nats.url"); natsURL != "" {
		publisher, err := nats.NewPacketPublisher(natsURL, viper.GetString("nats.subject"), connection, logger)
		if err != nil {
			return err
		}
		publisher.SetStream(fanOut.GetStream())
		sinks = append(sinks, publisher)
	}

	if monitorAddr := viper.GetString("monitor.addr"); monitorAddr != "" {
		server, trackSink, err := newMonitor(logger)
		if err != nil {
			return err
		}
		trackSink.SetStream(fanOut.GetStream())
		sinks = append(sinks, trackSink)

		serverCtx, cancelServer := context.WithCancel(context.Background())
		defer cancelServer()
		go func() {
			if err := server.ListenAndServe(serverCtx, monitorAddr); err != nil {
				logger.Error("monitor server stopped", "err", err)
			}
		}()
	}

	fanOut.SetStream(captureDevice.Channel().GetStream())
	logger.Info("capturing", "sampleRate", captureDevice.SampleRate(), "sinks", fanOut.NumSinks())

	<-ctx.Done()

	// Disposing closes the channel stream, which finalises every sink.
	captureDevice.Dispose()
	for _, sink := range sinks {
		sink.WaitForClose()
	}

	fmt.Fprintf(cmd.OutOrStdout(), "packets: %d\nsamples: %d\ndropped: %d\n",
		counter.Packets(), counter.Samples(), captureDevice.DroppedPackets())
	return nil
}

// Return connection, or the connection string of the default (else first)
// capture device when connection is empty.
func selectConnection(m *module.Module, connection string) (string, error) {
	if connection != "" {
		return connection, nil
	}

	devices, err := m.AvailableDevices()
	if err != nil {
		return "", err
	}
	if len(devices) == 0 {
		return "", errNoCaptureDevice
	}
	for _, d := range devices {
		if d.IsDefault {
			return d.ConnectionString, nil
		}
	}
	return devices[0].ConnectionString, nil
}

func newMonitor(logger *slog.Logger) (*networking.MonitorServer, *networking.TrackSink, error) {
	track, codec, err := networking.NewAudioTrack(viper.GetString("webrtc.codec"), "r6ebridge")
	if err != nil {
		return nil, nil, err
	}
	trackSink, err := networking.NewTrackSink(track, codec, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("codec %s: %w", viper.GetString("webrtc.codec"), err)
	}

	webrtcConfig := webrtc.Configuration{}
	if iceServers := viper.GetStringSlice("webrtc.iceservers"); len(iceServers) > 0 {
		webrtcConfig.ICEServers = []webrtc.ICEServer{{URLs: iceServers}}
	}
	return networking.NewMonitorServer(webrtcConfig, track, logger), trackSink, nil
}
