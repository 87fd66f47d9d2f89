// Package sharedtest contains test doubles shared by the internal packages' test suites.
package sharedtest

import (
	"encoding/json"
	"fmt"

	st "github.com/launchdarkly/go-server-sdk-evalcore/interfaces/ldstoretypes"
)

// MockData and MockOtherData are two distinct DataKinds for MockDataItem, so store tests can
// verify that collections of different kinds stay separate.
var (
	MockData      = mockDataKind{name: "mock1"}
	MockOtherData = mockDataKind{name: "mock2", isOther: true}
)

// MockDataItem is a minimal stand-in for FeatureFlag/Segment in store tests.
type MockDataItem struct {
	Key         string `json:"key"`
	Version     int    `json:"version"`
	Deleted     bool   `json:"deleted,omitempty"`
	Name        string `json:"name,omitempty"`
	IsOtherKind bool   `json:"isOtherKind,omitempty"`
}

// MakeMockDataSet builds an Init payload from the given items, routing each one to MockData or
// MockOtherData according to its IsOtherKind field. Both collections are always present, even
// when empty, because Init replaces all kinds at once.
func MakeMockDataSet(items ...MockDataItem) []st.Collection {
	dataSet := []st.Collection{
		{Kind: MockData, Items: []st.KeyedItemDescriptor{}},
		{Kind: MockOtherData, Items: []st.KeyedItemDescriptor{}},
	}
	for _, item := range items {
		coll := &dataSet[0]
		if item.IsOtherKind {
			coll = &dataSet[1]
		}
		coll.Items = append(coll.Items, item.ToKeyedItemDescriptor())
	}
	return dataSet
}

// ToItemDescriptor converts the test item to an ItemDescriptor.
func (m MockDataItem) ToItemDescriptor() st.ItemDescriptor {
	return st.ItemDescriptor{Version: m.Version, Item: m}
}

// ToKeyedItemDescriptor converts the test item to a KeyedItemDescriptor.
func (m MockDataItem) ToKeyedItemDescriptor() st.KeyedItemDescriptor {
	return st.KeyedItemDescriptor{Key: m.Key, Item: m.ToItemDescriptor()}
}

// ToSerializedItemDescriptor converts the test item to a SerializedItemDescriptor.
func (m MockDataItem) ToSerializedItemDescriptor() st.SerializedItemDescriptor {
	return st.SerializedItemDescriptor{
		Version:        m.Version,
		Deleted:        m.Deleted,
		SerializedItem: MockData.Serialize(m.ToItemDescriptor()),
	}
}

type mockDataKind struct {
	name    string
	isOther bool
}

func (k mockDataKind) GetName() string {
	return k.name
}

func (k mockDataKind) String() string {
	return k.name
}

func (k mockDataKind) Serialize(item st.ItemDescriptor) []byte {
	if item.Item == nil {
		data, _ := json.Marshal(MockDataItem{Version: item.Version, Deleted: true})
		return data
	}
	if m, ok := item.Item.(MockDataItem); ok {
		data, _ := json.Marshal(m)
		return data
	}
	return nil
}

func (k mockDataKind) Deserialize(data []byte) (st.ItemDescriptor, error) {
	var m MockDataItem
	if err := json.Unmarshal(data, &m); err != nil || m.Version == 0 {
		return st.ItemDescriptor{}.NotFound(), fmt.Errorf(`not a valid MockDataItem: "%s"`, data)
	}
	if m.IsOtherKind != k.isOther {
		return st.ItemDescriptor{}.NotFound(), fmt.Errorf("item in %q collection belongs to the other kind", k.name)
	}
	if m.Deleted {
		return st.ItemDescriptor{Version: m.Version}, nil
	}
	return st.ItemDescriptor{Version: m.Version, Item: m}, nil
}
