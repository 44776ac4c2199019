package functionblock

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/internal/property"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/audiodevice/device"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/signal"
	"github.com/google/uuid"
)

const FileNameProperty = "FileName"

var errNoFileName = errors.New("no file name set")

// WAVWriter writes its input stream to the file named by its FileName property.
//
// The file takes the sample rate of the first packet; packets captured at
// another rate (after the device was reconfigured) are resampled. The file is
// finalised when the input stream closes.
type WAVWriter struct {
	logger     *slog.Logger
	localID    string
	properties *property.Object

	mu        sync.Mutex
	connected bool
	done      chan struct{}
}

func NewWAVWriter(localID string, logger *slog.Logger) *WAVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(
		"wav writer uuid", uuid.New(),
		"functionBlock", localID,
	)

	w := &WAVWriter{
		logger:     logger,
		localID:    localID,
		properties: property.NewObject(logger),
		done:       make(chan struct{}),
	}
	// The name is unique on a fresh object.
	_ = w.properties.AddProperty(property.StringProperty(FileNameProperty, ""))
	return w
}

func (w *WAVWriter) TypeID() string { return WAVWriterTypeID }

func (w *WAVWriter) LocalID() string { return w.localID }

func (w *WAVWriter) Properties() *property.Object { return w.properties }

// Connect starts writing stream to the configured file.
// A writer can be connected only once.
func (w *WAVWriter) Connect(stream <-chan *signal.DataPacket) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.connected {
		return errors.New("wav writer is already connected")
	}

	fileName, err := w.properties.String(FileNameProperty)
	if err != nil {
		return err
	}
	if fileName == "" {
		return errNoFileName
	}

	output, err := device.NewFileAudioOutputDevice(fileName, 0)
	if err != nil {
		return fmt.Errorf("could not create wav file: %w", err)
	}
	w.connected = true

	output.SetStream(stream)
	go func() {
		output.WaitForClose()
		w.logger.Info("wav file written", "file", fileName, "sampleRate", output.GetDeviceProperties().SampleRate)
		close(w.done)
	}()
	w.logger.Debug("connected", "file", fileName)
	return nil
}

// SetStream connects the writer. If that fails the error is logged and the
// stream is drained so the producer never blocks on it.
func (w *WAVWriter) SetStream(stream <-chan *signal.DataPacket) {
	if err := w.Connect(stream); err != nil {
		w.logger.Error("could not connect wav writer", "err", err)

		w.mu.Lock()
		closeDone := !w.connected
		w.connected = true
		w.mu.Unlock()

		go func() {
			for range stream {
			}
			if closeDone {
				close(w.done)
			}
		}()
	}
}

// Block until the input stream closed and the file was finalised.
func (w *WAVWriter) WaitForClose() {
	<-w.done
}
