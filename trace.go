package compose

import (
	"encoding/json"
)

// PassTrace captures what one committed pass did: the identities executed,
// skipped, and unmounted, in the order the walk reached them. Traces are a
// debugging aid with no stability contract.
type PassTrace struct {
	PassID    string   `json:"pass_id"`
	Kind      string   `json:"kind"`
	Executed  []string `json:"executed,omitempty"`
	Skipped   []string `json:"skipped,omitempty"`
	Unmounted []string `json:"unmounted,omitempty"`
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t PassTrace) ToJSON() ([]byte, error) {
	type alias PassTrace
	return json.Marshal(alias(t))
}

// PassTraceFromJSON deserialises a JSON payload that was previously generated
// via ToJSON.
func PassTraceFromJSON(payload []byte) (PassTrace, error) {
	type alias PassTrace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return PassTrace{}, err
	}
	return PassTrace(trace), nil
}
