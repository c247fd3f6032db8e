package types

import (
	"encoding/base64"

	"gopkg.in/yaml.v3"
)

// "AQ==" - the well known default channel key.
var DefaultChannelKey = CryptoKey{0xd4, 0xf1, 0xbb, 0x3a, 0x20, 0x29, 0x07, 0x59, 0xf0, 0xbc, 0xff, 0xab, 0xcf, 0x4e, 0x69, 0x01}

type CryptoKey []byte

// Expand resolves the single byte shorthand keys.
// 0x01 is the default key, 0x02..0x0A are the default key with
// the last byte bumped, as Meshtastic firmware does.
func (k CryptoKey) Expand() CryptoKey {
	if len(k) != 1 || k[0] == 0x00 || k[0] > 0x0A {
		return k
	}

	expanded := make(CryptoKey, len(DefaultChannelKey))
	copy(expanded, DefaultChannelKey)
	expanded[len(expanded)-1] += k[0] - 1

	return expanded
}

func (k CryptoKey) MarshalYAML() (any, error) {
	return k.String(), nil
}

func (k *CryptoKey) UnmarshalYAML(node *yaml.Node) error {
	ba, err := base64.StdEncoding.DecodeString(node.Value)
	if err != nil {
		return err
	}
	*k = ba
	return nil
}

func (k CryptoKey) String() string {
	return base64.StdEncoding.EncodeToString(k)
}
