package property

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func positive(v int) error {
	if v <= 0 {
		return errors.New("must be positive")
	}
	return nil
}

func TestAddProperty(t *testing.T) {
	o := NewObject(nil)
	require.NoError(t, o.AddProperty(IntProperty("SampleRate", 44100, []int{11025, 22050, 44100}, positive)))
	require.NoError(t, o.AddProperty(StringProperty("FileName", "")))

	assert.ErrorIs(t, o.AddProperty(StringProperty("FileName", "x")), ErrAlreadyExists)
	assert.ErrorIs(t, o.AddProperty(Info{Name: "NoDefault"}), ErrInvalidValue)
	assert.Equal(t, []string{"SampleRate", "FileName"}, o.PropertyNames())

	info, err := o.Property("SampleRate")
	require.NoError(t, err)
	assert.Equal(t, []any{11025, 22050, 44100}, info.SuggestedValues)

	rate, err := o.Int("SampleRate")
	require.NoError(t, err)
	assert.Equal(t, 44100, rate)

	_, err = o.Property("Missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetPropertyValue(t *testing.T) {
	o := NewObject(nil)
	require.NoError(t, o.AddProperty(IntProperty("SampleRate", 44100, nil, positive)))

	var written []any
	require.NoError(t, o.OnPropertyValueWrite("SampleRate", func(name string, value any) {
		assert.Equal(t, "SampleRate", name)
		// Handlers run outside the lock, so reading back must not deadlock.
		current, err := o.Int(name)
		assert.NoError(t, err)
		assert.Equal(t, value, current)
		written = append(written, value)
	}))

	tests := []struct {
		name    string
		value   any
		wantErr error
	}{
		{"suggested value", 22050, nil},
		{"value outside suggestions", 48000, nil},
		{"rejected by validator", 0, ErrInvalidValue},
		{"wrong type", "48000", ErrInvalidValue},
		{"wrong numeric type", int64(48000), ErrInvalidValue},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := o.SetPropertyValue("SampleRate", tt.value)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}

	assert.Equal(t, []any{22050, 48000}, written)
	assert.ErrorIs(t, o.SetPropertyValue("Missing", 1), ErrNotFound)
	assert.ErrorIs(t, o.OnPropertyValueWrite("Missing", func(string, any) {}), ErrNotFound)

	_, err := o.String("SampleRate")
	assert.ErrorIs(t, err, ErrInvalidValue)
}
