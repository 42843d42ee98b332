// Package params defines the protocol parameters the gateway operates
// under: fork versions, signing domain types and SSZ list limits.
package params

// GatewayConfig contains the protocol constants for one network.
type GatewayConfig struct {
	// Fork versions, keyed to runtime/version constants.
	CapellaForkVersion []byte
	DenebForkVersion   []byte

	// GenesisValidatorsRoot of the network the gateway signs for.
	GenesisValidatorsRoot [32]byte

	// Signing domain types.
	DomainApplicationBuilder  [4]byte
	DomainProposerConstraints [4]byte

	// SSZ list limits of the execution payload transaction list.
	MaxTransactionsPerPayload uint64
	MaxBytesPerTransaction    uint64
	MaxConstraintsPerSlot     uint64

	SecondsPerSlot uint64
	SlotsPerEpoch  uint64
}

// Copy returns a deep copy of the configuration, safe to mutate before an
// Override.
func (c *GatewayConfig) Copy() *GatewayConfig {
	out := *c
	out.CapellaForkVersion = append([]byte(nil), c.CapellaForkVersion...)
	out.DenebForkVersion = append([]byte(nil), c.DenebForkVersion...)
	return &out
}

var gatewayConfig = MainnetConfig()

// GatewayConfiguration retrieves the active gateway configuration.
func GatewayConfiguration() *GatewayConfig {
	return gatewayConfig
}

// OverrideGatewayConfig sets the active configuration. Tests use this to
// install deterministic parameters.
func OverrideGatewayConfig(c *GatewayConfig) {
	gatewayConfig = c
}

// MainnetConfig returns the configuration for mainnet.
func MainnetConfig() *GatewayConfig {
	return &GatewayConfig{
		CapellaForkVersion:        []byte{0x03, 0x00, 0x00, 0x00},
		DenebForkVersion:          []byte{0x04, 0x00, 0x00, 0x00},
		GenesisValidatorsRoot:     [32]byte{},
		DomainApplicationBuilder:  [4]byte{0x00, 0x00, 0x00, 0x01},
		DomainProposerConstraints: [4]byte{0x00, 0x00, 0x00, 0x02},
		MaxTransactionsPerPayload: 1 << 20,
		MaxBytesPerTransaction:    1 << 30,
		MaxConstraintsPerSlot:     256,
		SecondsPerSlot:            12,
		SlotsPerEpoch:             32,
	}
}
