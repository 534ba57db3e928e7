package registry

// ChainIbcData is one `_IBC/<chain_a>-<chain_b>.json` file of the cosmos
// chain registry.
type ChainIbcData struct {
	Schema   string           `json:"$schema"`
	Chain1   IbcChainData     `json:"chain_1"`
	Chain2   IbcChainData     `json:"chain_2"`
	Channels []IbcChannelData `json:"channels"`
}

// IbcChainData is one side of the IBC connection.
type IbcChainData struct {
	ChainName    string `json:"chain_name"`
	ClientID     string `json:"client_id"`
	ConnectionID string `json:"connection_id"`
}

// IbcChannelData is one channel between the two chains.
type IbcChannelData struct {
	Chain1   ChannelChainData `json:"chain_1"`
	Chain2   ChannelChainData `json:"chain_2"`
	Ordering string           `json:"ordering"`
	Version  string           `json:"version"`
	Tags     ChannelTags      `json:"tags"`
}

// ChannelChainData is the channel end on one chain.
type ChannelChainData struct {
	ChannelID string `json:"channel_id"`
	PortID    string `json:"port_id"`
}

// ChannelTags carries the registry curation flags.
type ChannelTags struct {
	Preferred bool   `json:"preferred"`
	Status    string `json:"status"`
}

// ChannelEnd is a channel as seen from the sending chain.
type ChannelEnd struct {
	ChannelID             string
	CounterpartyChannelID string
	PortID                string
	ConnectionID          string
	Preferred             bool
	Status                string
}
