package ldmodel

import "encoding/json"

// flagAlias has the same fields as FeatureFlag but without the custom (Un)MarshalJSON methods,
// used to avoid infinite recursion when delegating to encoding/json.
type flagAlias FeatureFlag

// clientSideLegacy and clientSideExplicit are the two wire schemas for a flag's client-side
// visibility. Only one of them is normally present; whichever one was present when the flag was
// parsed is remembered in ClientSideAvailability.Explicit so re-serialization uses the same one.
type clientSideLegacy struct {
	ClientSide *bool `json:"clientSide,omitempty"`
}

type clientSideExplicit struct {
	ClientSideAvailability *struct {
		UsingEnvironmentID bool `json:"usingEnvironmentId"`
		UsingMobileKey     bool `json:"usingMobileKey"`
	} `json:"clientSideAvailability,omitempty"`
}

// MarshalJSON implements json.Marshaler, writing back whichever clientSide schema was used when
// the flag was parsed (legacy clientSide bool vs. explicit clientSideAvailability object).
func (f FeatureFlag) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(flagAlias(f))
	if err != nil {
		return nil, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	if f.ClientSide.Explicit {
		raw, err := json.Marshal(clientSideExplicit{ClientSideAvailability: &struct {
			UsingEnvironmentID bool `json:"usingEnvironmentId"`
			UsingMobileKey     bool `json:"usingMobileKey"`
		}{f.ClientSide.UsingEnvironmentID, f.ClientSide.UsingMobileKey}})
		if err != nil {
			return nil, err
		}
		var m map[string]json.RawMessage
		_ = json.Unmarshal(raw, &m)
		merged["clientSideAvailability"] = m["clientSideAvailability"]
	} else if f.ClientSide.UsingEnvironmentID || f.ClientSide.UsingMobileKey {
		v := f.ClientSide.UsingEnvironmentID
		raw, _ := json.Marshal(v)
		merged["clientSide"] = raw
	}
	return json.Marshal(merged)
}

// UnmarshalJSON implements json.Unmarshaler, recording which of the two clientSide wire schemas
// was present.
func (f *FeatureFlag) UnmarshalJSON(data []byte) error {
	var alias flagAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*f = FeatureFlag(alias)

	var explicit clientSideExplicit
	if err := json.Unmarshal(data, &explicit); err == nil && explicit.ClientSideAvailability != nil {
		f.ClientSide = ClientSideAvailability{
			Explicit:           true,
			UsingEnvironmentID: explicit.ClientSideAvailability.UsingEnvironmentID,
			UsingMobileKey:     explicit.ClientSideAvailability.UsingMobileKey,
		}
		return nil
	}

	var legacy clientSideLegacy
	if err := json.Unmarshal(data, &legacy); err == nil && legacy.ClientSide != nil {
		f.ClientSide = ClientSideAvailability{
			Explicit:           false,
			UsingEnvironmentID: *legacy.ClientSide,
			UsingMobileKey:     true,
		}
	}
	return nil
}
