package cache

import "strings"

const contractsPrefix = "contracts/"

// StageKey is the key of a contract's StageRecord.
func StageKey(contractID string) string { return contractsPrefix + contractID + "/stage" }

// StatusKey is the key of a contract's StatusRecord.
func StatusKey(contractID string) string { return contractsPrefix + contractID + "/status" }

// SignaturesKey is the key of a contract's cached Signatures.
func SignaturesKey(contractID string) string { return contractsPrefix + contractID + "/signatures" }

// ContractKeys is the doublestar pattern matching every key of a contract.
func ContractKeys(contractID string) string { return contractsPrefix + contractID + "/*" }

// SplitKey returns the contract id and record kind ("stage", "status",
// "signatures") of a contract key.
func SplitKey(key string) (contractID, kind string, ok bool) {
	rest, found := strings.CutPrefix(key, contractsPrefix)
	if !found {
		return "", "", false
	}
	i := strings.LastIndexByte(rest, '/')
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}
