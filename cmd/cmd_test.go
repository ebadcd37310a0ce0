package cmd

import (
	"testing"

	"github.com/bnema/softbright/internal/config"
	"github.com/bnema/softbright/internal/display"
	"github.com/bnema/softbright/internal/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		arg      string
		value    float64
		relative bool
		wantErr  bool
	}{
		{arg: "0.4", value: 0.4},
		{arg: "65%", value: 0.65},
		{arg: "+10%", value: 0.1, relative: true},
		{arg: "-0.05", value: -0.05, relative: true},
		{arg: "1.5", wantErr: true},
		{arg: "bright", wantErr: true},
		{arg: "nan", wantErr: true},
		{arg: "+Inf", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			value, relative, err := parseLevel(tt.arg)
			if tt.wantErr {
				assert.ErrorIs(t, err, config.ErrInvalidValue)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.value, value, 1e-9)
			assert.Equal(t, tt.relative, relative)
		})
	}
}

func TestClampLevel(t *testing.T) {
	assert.Equal(t, 0.0, clampLevel(-0.2))
	assert.Equal(t, 1.0, clampLevel(1.3))
	assert.Equal(t, 0.5, clampLevel(0.5))
}

func TestParseArea(t *testing.T) {
	r, err := parseArea("10, 20,300,200")
	require.NoError(t, err)
	assert.Equal(t, &shell.Rect{X: 10, Y: 20, Width: 300, Height: 200}, r)

	for _, bad := range []string{"1,2,3", "a,b,c,d", "0,0,0,10"} {
		_, err := parseArea(bad)
		assert.Error(t, err, bad)
	}
}

func TestMonitorRows(t *testing.T) {
	monitors := []*display.Monitor{
		{Name: "eDP-1", Description: "BOE 0x0BCA", Width: 1920, Height: 1200, Primary: true, Refresh: 60},
		{Name: "HDMI-A-1", X: 1920, Width: 2560, Height: 1440},
	}
	rows := monitorRows(monitors, map[string]bool{"HDMI-A-1": true})
	require.Len(t, rows, 2)
	assert.Equal(t, "BOE 0x0BCA", rows[0].Name)
	assert.False(t, rows[0].Dimmed)
	assert.Equal(t, "HDMI-A-1", rows[1].Name)
	assert.Equal(t, 1920, rows[1].X)
	assert.True(t, rows[1].Dimmed)

	assert.False(t, monitorRows(monitors, nil)[1].Dimmed)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "0.40", formatValue(0.4))
	assert.Equal(t, `""`, formatValue(""))
	assert.Equal(t, "all", formatValue("all"))
	assert.Equal(t, "true", formatValue(true))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "get", "set", "slider", "monitors", "config", "screenshot", "version"} {
		assert.True(t, names[want], want)
	}
	assert.Len(t, configKeys(), len(config.Schema))
}
