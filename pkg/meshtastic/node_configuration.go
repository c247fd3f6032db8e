package meshtastic

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"time"

	"github.com/Archie3d/mesh-responder/pkg/client"
	"github.com/Archie3d/mesh-responder/pkg/types"
	"gopkg.in/yaml.v3"
)

const (
	defaultChannelName = "LongFast"
	defaultHopLimit    = 3
	maxHopLimit        = 7
)

type NodeConfiguration struct {
	Id        types.NodeId `yaml:"id"`
	ShortName string       `yaml:"short_name"`
	LongName  string       `yaml:"long_name"`

	NatsUrl           string `yaml:"nats_url"`
	NatsSubjectPrefix string `yaml:"nats_subject_prefix"`

	Radio RadioConfiguration `yaml:"radio"`

	Channels []ChannelConfiguration `yaml:"channels"`

	// Channel the replies are broadcast on
	ReplyChannel uint32 `yaml:"reply_channel"`

	HopLimit     uint8            `yaml:"hop_limit"`
	Rebroadcast  bool             `yaml:"rebroadcast"`
	DedupWindow  types.Duration   `yaml:"dedup_window"`
	RepeatDelays []types.Duration `yaml:"repeat_delays"`
}

type RadioConfiguration struct {
	Frequency       uint32              `yaml:"frequency"`
	Power           LoRaPower           `yaml:"power"`
	SpreadingFactor LoRaSpreadingFactor `yaml:"spreading_factor"`
	Bandwidth       LoRaBandwidth       `yaml:"bandwidth"`
	CodingRate      LoRaCodingRate      `yaml:"coding_rate"`
	PreambleLength  uint16              `yaml:"preamble_length"`
	SyncWord        uint8               `yaml:"sync_word"`
}

type ChannelConfiguration struct {
	Id            uint32          `yaml:"id"`
	Name          string          `yaml:"name"`
	EncryptionKey types.CryptoKey `yaml:"encryption_key"`
}

// DefaultNodeConfiguration is a node on the default LongFast channel,
// US region, slot 20.
func DefaultNodeConfiguration() *NodeConfiguration {
	return &NodeConfiguration{
		Id:                defaultNodeId(),
		ShortName:         "RSPD",
		LongName:          "Mesh Responder",
		NatsSubjectPrefix: "mesh",
		Radio: RadioConfiguration{
			Frequency:       906_875_000,
			Power:           14,
			SpreadingFactor: client.LORA_SF11,
			Bandwidth:       client.LORA_BW_250,
			CodingRate:      client.LORA_CR_4_5,
			PreambleLength:  16,
			SyncWord:        0x2B,
		},
		Channels: []ChannelConfiguration{
			{Id: 0, Name: defaultChannelName, EncryptionKey: types.CryptoKey{0x01}},
		},
		HopLimit:    defaultHopLimit,
		DedupWindow: types.Duration(30 * time.Second),
	}
}

// defaultNodeId derives a stable id from the host name so the node
// keeps its identity across runs.
func defaultNodeId() types.NodeId {
	host, err := os.Hostname()
	if err != nil {
		host = "mesh-responder"
	}

	h := fnv.New32a()
	h.Write([]byte(host))

	// Keep clear of the reserved and broadcast ranges
	return types.NodeId(h.Sum32()&0x7FFFFFFF | 0x10)
}

// LoadNodeConfiguration reads a YAML file on top of the defaults.
func LoadNodeConfiguration(configFile string) (*NodeConfiguration, error) {
	f, err := os.Open(configFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	config := DefaultNodeConfiguration()
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)

	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("%s: %w", configFile, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", configFile, err)
	}

	return config, nil
}

func (c *NodeConfiguration) Validate() error {
	var errs []error

	if c.Id == 0 || c.Id.IsBroadcast() {
		errs = append(errs, fmt.Errorf("invalid node id %s", c.Id))
	}

	if c.Radio.Frequency == 0 {
		errs = append(errs, fmt.Errorf("radio frequency is not set"))
	}

	if c.HopLimit > maxHopLimit {
		errs = append(errs, fmt.Errorf("hop limit %d exceeds %d", c.HopLimit, maxHopLimit))
	}

	seen := map[uint32]bool{}
	for _, ch := range c.Channels {
		if seen[ch.Id] {
			errs = append(errs, fmt.Errorf("duplicate channel id %d", ch.Id))
		}
		seen[ch.Id] = true

		switch len(ch.EncryptionKey.Expand()) {
		case 0, 1, 16, 32:
		default:
			errs = append(errs, fmt.Errorf("channel %q: key must be 1, 16 or 32 bytes", ch.Name))
		}
	}

	if !seen[c.ReplyChannel] {
		errs = append(errs, fmt.Errorf("reply channel %d is not configured", c.ReplyChannel))
	}

	return errors.Join(errs...)
}
