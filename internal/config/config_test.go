package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func parse(t *testing.T, args []string) (Config, error) {
	t.Helper()

	var (
		got    Config
		gotErr error
	)

	cmd := &cli.Command{
		Name:  "nfc-watch",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			got, gotErr = FromCommand(cmd)
			return nil
		},
	}
	require.NoError(t, cmd.Run(context.Background(), append([]string{"nfc-watch"}, args...)))

	return got, gotErr
}

func TestFromCommand(t *testing.T) {
	defaultPath, err := filepath.Abs(DefaultConfigPath)
	require.NoError(t, err)

	tests := []struct {
		name    string
		args    []string
		want    Config
		wantErr error
	}{
		{
			name: "Defaults",
			args: nil,
			want: Config{ConfigPath: defaultPath},
		},
		{
			name: "Absolute config",
			args: []string{"--config", "/etc/nfc-watch/config.yaml"},
			want: Config{ConfigPath: "/etc/nfc-watch/config.yaml"},
		},
		{
			name: "Debug and metrics",
			args: []string{"--debug", "--metrics-address", ":9100", "-c", "/tmp/watch.toml"},
			want: Config{ConfigPath: "/tmp/watch.toml", Debug: true, MetricsAddress: ":9100"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parse(t, tt.args)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromCommand_Env(t *testing.T) {
	t.Setenv("NFC_WATCH_CONFIG", "/srv/config.json")
	t.Setenv("NFC_WATCH_DEBUG", "true")

	got, err := parse(t, nil)
	require.NoError(t, err)
	assert.Equal(t, Config{ConfigPath: "/srv/config.json", Debug: true}, got)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name:    "Empty config path",
			cfg:     Config{},
			wantErr: ErrValidationFailed,
		},
		{
			name: "Config path set",
			cfg:  Config{ConfigPath: "config.json"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}
