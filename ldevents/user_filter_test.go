package ldevents

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/go-server-sdk-evalcore/lduser"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldvalue"
)

func TestUserFilterScrubUser(t *testing.T) {
	config := EventsConfiguration{Loggers: testLoggers()}

	t.Run("no private attributes configured", func(t *testing.T) {
		uf := newUserFilter(config)
		user := lduser.NewUserBuilder("user-key").Name("Alice").Custom("score", ldvalue.Int(42)).Build()
		scrubbed := uf.scrubUser(user)
		assert.Equal(t, "user-key", scrubbed.filteredUser.Key)
		require.NotNil(t, scrubbed.filteredUser.Name)
		assert.Equal(t, "Alice", *scrubbed.filteredUser.Name)
		assert.Equal(t, ldvalue.Int(42), scrubbed.filteredUser.Custom["score"])
		assert.Empty(t, scrubbed.filteredUser.PrivateAttrs)
	})

	t.Run("per-user private attribute is scrubbed", func(t *testing.T) {
		uf := newUserFilter(config)
		user := lduser.NewUserBuilder("user-key").Name("Alice").AsPrivateAttribute().Build()
		scrubbed := uf.scrubUser(user)
		assert.Nil(t, scrubbed.filteredUser.Name)
		assert.Contains(t, scrubbed.filteredUser.PrivateAttrs, lduser.NameAttribute)
	})

	t.Run("global private attribute is scrubbed", func(t *testing.T) {
		globalConfig := EventsConfiguration{
			Loggers:               testLoggers(),
			PrivateAttributeNames: []string{lduser.EmailAttribute},
		}
		uf := newUserFilter(globalConfig)
		user := lduser.NewUserBuilder("user-key").Email("a@example.com").Build()
		scrubbed := uf.scrubUser(user)
		assert.Nil(t, scrubbed.filteredUser.Email)
		assert.Contains(t, scrubbed.filteredUser.PrivateAttrs, lduser.EmailAttribute)
	})

	t.Run("all attributes private", func(t *testing.T) {
		allPrivateConfig := EventsConfiguration{Loggers: testLoggers(), AllAttributesPrivate: true}
		uf := newUserFilter(allPrivateConfig)
		user := lduser.NewUserBuilder("user-key").Name("Alice").Custom("score", ldvalue.Int(1)).Build()
		scrubbed := uf.scrubUser(user)
		assert.Nil(t, scrubbed.filteredUser.Name)
		assert.Empty(t, scrubbed.filteredUser.Custom)
	})

	t.Run("serializes to JSON without the private values", func(t *testing.T) {
		uf := newUserFilter(config)
		user := lduser.NewUserBuilder("user-key").Email("a@example.com").AsPrivateAttribute().Build()
		scrubbed := uf.scrubUser(user)
		data, err := json.Marshal(scrubbed)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "a@example.com")
		assert.Contains(t, string(data), "privateAttrs")
	})
}
