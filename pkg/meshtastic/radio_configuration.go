package meshtastic

import (
	"fmt"
	"strconv"

	"github.com/Archie3d/mesh-responder/pkg/client"
	"gopkg.in/yaml.v3"
)

// Bandwidth in kHz as written in the config and the dongle code for it.
var bandwidths = []struct {
	kHz  uint64
	code LoRaBandwidth
}{
	{7, client.LORA_BW_007},
	{10, client.LORA_BW_010},
	{15, client.LORA_BW_015},
	{20, client.LORA_BW_020},
	{31, client.LORA_BW_031},
	{41, client.LORA_BW_041},
	{62, client.LORA_BW_062},
	{125, client.LORA_BW_125},
	{250, client.LORA_BW_250},
	{500, client.LORA_BW_500},
}

type LoRaBandwidth uint32

func (b LoRaBandwidth) KHz() uint64 {
	for _, bw := range bandwidths {
		if bw.code == b {
			return bw.kHz
		}
	}
	return 0
}

func (b LoRaBandwidth) MarshalYAML() (any, error) {
	return b.KHz(), nil
}

func (b *LoRaBandwidth) UnmarshalYAML(node *yaml.Node) error {
	kHz, err := strconv.ParseUint(node.Value, 10, 32)
	if err != nil {
		return err
	}

	for _, bw := range bandwidths {
		if bw.kHz == kHz {
			*b = bw.code
			return nil
		}
	}

	return fmt.Errorf("unsupported LoRa bandwidth %d", kHz)
}

//------------------------------------------------------------------------------

type LoRaSpreadingFactor uint32

func (s LoRaSpreadingFactor) MarshalYAML() (any, error) {
	return uint32(s), nil
}

func (s *LoRaSpreadingFactor) UnmarshalYAML(node *yaml.Node) error {
	sf, err := strconv.ParseUint(node.Value, 10, 32)
	if err != nil {
		return err
	}

	if sf < client.LORA_SF5 || sf > client.LORA_SF12 {
		return fmt.Errorf("unsupported LoRa spreading factor %d", sf)
	}

	*s = LoRaSpreadingFactor(sf)

	return nil
}

//------------------------------------------------------------------------------

var codingRates = map[string]LoRaCodingRate{
	"4/5": client.LORA_CR_4_5,
	"4/6": client.LORA_CR_4_6,
	"4/7": client.LORA_CR_4_7,
	"4/8": client.LORA_CR_4_8,
}

type LoRaCodingRate uint32

func (c LoRaCodingRate) MarshalYAML() (any, error) {
	for name, cr := range codingRates {
		if cr == c {
			return name, nil
		}
	}

	return nil, fmt.Errorf("unsupported LoRa coding rate: %d", uint32(c))
}

func (c *LoRaCodingRate) UnmarshalYAML(node *yaml.Node) error {
	cr, ok := codingRates[node.Value]
	if !ok {
		return fmt.Errorf("unknown LoRa coding rate '%s'", node.Value)
	}

	*c = cr

	return nil
}

//------------------------------------------------------------------------------

type LoRaPower int32

func (p LoRaPower) MarshalYAML() (any, error) {
	return int32(p), nil
}

func (p *LoRaPower) UnmarshalYAML(node *yaml.Node) error {
	pw, err := strconv.ParseInt(node.Value, 10, 32)
	if err != nil {
		return err
	}

	if pw != 14 && pw != 17 && pw != 20 && pw != 22 {
		return fmt.Errorf("unsupported LoRa power %d", pw)
	}

	*p = LoRaPower(pw)

	return nil
}

// txParameters maps the output power to the SX1262 PA settings
// recommended in the datasheet.
func (p LoRaPower) txParameters() *client.TxParameters {
	params := &client.TxParameters{
		RampTime: client.POWER_RAMP_200,
		Power:    22,
	}

	switch p {
	case 14:
		params.DutyCycle, params.HpMax = 0x02, 0x02
	case 17:
		params.DutyCycle, params.HpMax = 0x02, 0x03
	case 20:
		params.DutyCycle, params.HpMax = 0x03, 0x05
	default:
		params.DutyCycle, params.HpMax = 0x04, 0x07
	}

	return params
}
