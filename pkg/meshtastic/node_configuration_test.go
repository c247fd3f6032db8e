package meshtastic

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Archie3d/mesh-responder/pkg/client"
	"github.com/Archie3d/mesh-responder/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadNodeConfigYaml(t *testing.T) {
	cfg, err := LoadNodeConfiguration(filepath.Join("testdata", "node_config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, types.NodeId(0x11223344), cfg.Id)
	assert.Equal(t, "TEST", cfg.ShortName)
	assert.Equal(t, "Test Responder", cfg.LongName)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NatsUrl)
	assert.Equal(t, "test", cfg.NatsSubjectPrefix)

	assert.Equal(t, uint32(869525000), cfg.Radio.Frequency)
	assert.Equal(t, LoRaPower(20), cfg.Radio.Power)
	assert.Equal(t, LoRaSpreadingFactor(client.LORA_SF11), cfg.Radio.SpreadingFactor)
	assert.Equal(t, LoRaBandwidth(client.LORA_BW_250), cfg.Radio.Bandwidth)
	assert.Equal(t, LoRaCodingRate(client.LORA_CR_4_5), cfg.Radio.CodingRate)
	assert.Equal(t, uint8(0x2B), cfg.Radio.SyncWord)

	require.Equal(t, 2, len(cfg.Channels))

	assert.Equal(t, uint32(0), cfg.Channels[0].Id)
	assert.Equal(t, "LongFast", cfg.Channels[0].Name)
	assert.Equal(t, types.CryptoKey([]byte{0x01}), cfg.Channels[0].EncryptionKey)

	assert.Equal(t, uint32(1), cfg.Channels[1].Id)
	assert.Equal(t, "Private", cfg.Channels[1].Name)
	assert.Equal(t, types.DefaultChannelKey, cfg.Channels[1].EncryptionKey)

	assert.Equal(t, uint32(1), cfg.ReplyChannel)
	assert.Equal(t, uint8(5), cfg.HopLimit)
	assert.True(t, cfg.Rebroadcast)
	assert.Equal(t, time.Minute, cfg.DedupWindow.Std())
	assert.Equal(t, []types.Duration{types.Duration(2 * time.Second), types.Duration(5 * time.Second)}, cfg.RepeatDelays)
}

func TestDefaultNodeConfiguration(t *testing.T) {
	cfg := DefaultNodeConfiguration()

	assert.NoError(t, cfg.Validate())
	assert.NotZero(t, cfg.Id)
	assert.False(t, cfg.Id.IsBroadcast())
	assert.Empty(t, cfg.NatsUrl)
	assert.Empty(t, cfg.RepeatDelays)
	assert.Equal(t, uint64(250), cfg.Radio.Bandwidth.KHz())

	// Stable across calls
	assert.Equal(t, cfg.Id, DefaultNodeConfiguration().Id)

	ch := NewChannel(cfg.Channels[0].Id, cfg.Channels[0].Name, cfg.Channels[0].EncryptionKey)
	assert.Equal(t, byte(0x08), ch.Hash())
}

func TestLoadInvalidNodeConfig(t *testing.T) {
	_, err := LoadNodeConfiguration(filepath.Join("testdata", "invalid_config.yaml"))
	require.Error(t, err)

	assert.ErrorContains(t, err, "invalid node id")
	assert.ErrorContains(t, err, "hop limit 9 exceeds 7")
	assert.ErrorContains(t, err, "duplicate channel id 0")
	assert.ErrorContains(t, err, "key must be 1, 16 or 32 bytes")
	assert.ErrorContains(t, err, "reply channel 3 is not configured")
}

func TestLoadMissingNodeConfig(t *testing.T) {
	_, err := LoadNodeConfiguration(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadNodeConfigUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, writeFile(path, "mac_address: AABB11223344\n"))

	_, err := LoadNodeConfiguration(path)
	assert.ErrorContains(t, err, "mac_address")
}

func TestLoadNodeConfigBadRadio(t *testing.T) {
	for name, content := range map[string]string{
		"bandwidth":   "radio:\n  bandwidth: 300\n",
		"sf":          "radio:\n  spreading_factor: 13\n",
		"coding rate": "radio:\n  coding_rate: 4/9\n",
		"power":       "radio:\n  power: 15\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, writeFile(path, content))

			_, err := LoadNodeConfiguration(path)
			assert.Error(t, err)
		})
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
