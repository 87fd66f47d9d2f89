// Package datakinds defines the two built-in ldstoretypes.DataKind implementations, for feature
// flags and segments. The store itself is generic over DataKind; these are what give it the
// specific namespaces ("features", "segments") that the rest of the SDK uses.
package datakinds

import (
	"encoding/json"

	"github.com/launchdarkly/go-server-sdk-evalcore/interfaces/ldstoretypes"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldmodel"
)

// deletedItemPlaceholderKey is the key written into a tombstone's serialized form. Serialize does
// not receive a key parameter, so a sentinel unrepresentable as a real flag or segment key (a
// real key can never contain '$') fills in the field some deserializers expect to always be
// present.
const deletedItemPlaceholderKey = "$deleted"

type featureFlagDataKind struct{}
type segmentDataKind struct{}

// Features is the DataKind for feature flags.
var Features ldstoretypes.DataKind = featureFlagDataKind{}

// Segments is the DataKind for segments.
var Segments ldstoretypes.DataKind = segmentDataKind{}

// AllDataKinds returns every built-in DataKind, in a stable order.
func AllDataKinds() []ldstoretypes.DataKind {
	return []ldstoretypes.DataKind{Features, Segments}
}

func (featureFlagDataKind) GetName() string { return "features" }

func (featureFlagDataKind) Serialize(item ldstoretypes.ItemDescriptor) []byte {
	if item.Item == nil {
		flag := ldmodel.FeatureFlag{Key: deletedItemPlaceholderKey, Version: item.Version, Deleted: true}
		data, err := json.Marshal(flag)
		if err != nil {
			return nil
		}
		return data
	}
	flag, ok := item.Item.(*ldmodel.FeatureFlag)
	if !ok {
		return nil
	}
	data, err := json.Marshal(flag)
	if err != nil {
		return nil
	}
	return data
}

func (featureFlagDataKind) Deserialize(data []byte) (ldstoretypes.ItemDescriptor, error) {
	var flag ldmodel.FeatureFlag
	if err := json.Unmarshal(data, &flag); err != nil {
		return ldstoretypes.ItemDescriptor{}, err
	}
	if flag.Deleted {
		return ldstoretypes.ItemDescriptor{Version: flag.Version, Item: nil}, nil
	}
	return ldstoretypes.ItemDescriptor{Version: flag.Version, Item: &flag}, nil
}

func (featureFlagDataKind) String() string { return "features" }

func (segmentDataKind) GetName() string { return "segments" }

func (segmentDataKind) Serialize(item ldstoretypes.ItemDescriptor) []byte {
	if item.Item == nil {
		segment := ldmodel.Segment{Key: deletedItemPlaceholderKey, Version: item.Version, Deleted: true}
		data, err := json.Marshal(segment)
		if err != nil {
			return nil
		}
		return data
	}
	segment, ok := item.Item.(*ldmodel.Segment)
	if !ok {
		return nil
	}
	data, err := json.Marshal(segment)
	if err != nil {
		return nil
	}
	return data
}

func (segmentDataKind) Deserialize(data []byte) (ldstoretypes.ItemDescriptor, error) {
	var segment ldmodel.Segment
	if err := json.Unmarshal(data, &segment); err != nil {
		return ldstoretypes.ItemDescriptor{}, err
	}
	if segment.Deleted {
		return ldstoretypes.ItemDescriptor{Version: segment.Version, Item: nil}, nil
	}
	return ldstoretypes.ItemDescriptor{Version: segment.Version, Item: &segment}, nil
}

func (segmentDataKind) String() string { return "segments" }
