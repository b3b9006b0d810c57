package types

var networkNames = map[uint64]string{
	1:        "mainnet",
	5:        "goerli",
	17000:    "holesky",
	11155111: "sepolia",
	1337:     "localhost",
	31337:    "hardhat",
}

// NetworkFor builds a Network from a chain id, naming the well-known ones.
func NetworkFor(chainID uint64) Network {
	name, ok := networkNames[chainID]
	if !ok {
		name = "unknown"
	}
	return Network{ChainID: chainID, Name: name}
}
