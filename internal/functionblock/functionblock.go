// Package functionblock holds the function blocks the bridge publishes
// next to its capture devices.
package functionblock

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/internal/property"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/audiodevice"
)

var ErrUnknownType = errors.New("unknown function block type")

const WAVWriterTypeID = "r6e_bridge_module_wav_writer"

// Type describes a kind of function block to a host.
type Type struct {
	ID          string
	Name        string
	Description string
}

// A FunctionBlock consumes a packet stream and is configured through properties.
type FunctionBlock interface {
	audiodevice.AudioSinkDevice

	TypeID() string
	LocalID() string
	Properties() *property.Object
}

// Types returns the function block types that can be created.
func Types() map[string]Type {
	return map[string]Type{
		WAVWriterTypeID: {
			ID:          WAVWriterTypeID,
			Name:        "WAV writer",
			Description: "Writes the input signal to a 16 bit mono .WAV file",
		},
	}
}

// Create a function block of the given type.
func Create(typeID string, localID string, logger *slog.Logger) (FunctionBlock, error) {
	switch typeID {
	case WAVWriterTypeID:
		return NewWAVWriter(localID, logger), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, typeID)
}
