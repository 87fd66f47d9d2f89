package lduser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/launchdarkly/go-server-sdk-evalcore/ldvalue"
)

func TestNewUserHasOnlyKey(t *testing.T) {
	u := NewUser("some-key")
	assert.Equal(t, "some-key", u.Key())
	assert.False(t, u.Anonymous())
	_, hasSecondary := u.Secondary()
	assert.False(t, hasSecondary)
	assert.Empty(t, u.CustomAttributeNames())
}

func TestNewAnonymousUser(t *testing.T) {
	u := NewAnonymousUser("some-key")
	assert.Equal(t, "some-key", u.Key())
	assert.True(t, u.Anonymous())
}

func TestGetAttributeResolvesBuiltInsCustomsAndKey(t *testing.T) {
	u := NewUserBuilder("some-key").
		Email("test@example.com").
		Name("Lucy").
		Custom("group", ldvalue.String("microbattle")).
		Build()

	for attr, want := range map[string]ldvalue.Value{
		KeyAttribute:   ldvalue.String("some-key"),
		EmailAttribute: ldvalue.String("test@example.com"),
		NameAttribute:  ldvalue.String("Lucy"),
		"group":        ldvalue.String("microbattle"),
	} {
		t.Run(attr, func(t *testing.T) {
			value, ok := u.GetAttribute(attr)
			assert.True(t, ok)
			assert.Equal(t, want, value)
		})
	}
}

func TestGetAttributeMissingIsNullAndNotSet(t *testing.T) {
	u := NewUser("some-key")
	value, ok := u.GetAttribute("no-such-attribute")
	assert.False(t, ok)
	assert.Equal(t, ldvalue.Null(), value)

	value, ok = u.GetAttribute(EmailAttribute)
	assert.False(t, ok)
	assert.Equal(t, ldvalue.Null(), value)
}

func TestGetAttributeAnonymous(t *testing.T) {
	_, ok := NewUser("u").GetAttribute(AnonymousAttribute)
	assert.False(t, ok, "anonymous is unset for a default user")

	value, ok := NewAnonymousUser("u").GetAttribute(AnonymousAttribute)
	assert.True(t, ok)
	assert.Equal(t, ldvalue.Bool(true), value)
}

func TestSecondaryKeyIsSeparateFromCustomAttributes(t *testing.T) {
	u := NewUserBuilder("some-key").Secondary("secondary-key").Build()
	secondary, ok := u.Secondary()
	assert.True(t, ok)
	assert.Equal(t, "secondary-key", secondary)
	assert.NotContains(t, u.CustomAttributeNames(), SecondaryKeyAttribute)
}

func TestBuilderSetsEveryBuiltInAttribute(t *testing.T) {
	u := NewUserBuilder("some-key").
		Secondary("s").
		IP("1.2.3.4").
		Country("us").
		Email("e").
		FirstName("f").
		LastName("l").
		Avatar("a").
		Name("n").
		Anonymous(true).
		Build()

	for attr, want := range map[string]string{
		IPAttribute:        "1.2.3.4",
		CountryAttribute:   "us",
		EmailAttribute:     "e",
		FirstNameAttribute: "f",
		LastNameAttribute:  "l",
		AvatarAttribute:    "a",
		NameAttribute:      "n",
	} {
		value, ok := u.GetAttribute(attr)
		assert.True(t, ok, attr)
		assert.Equal(t, ldvalue.String(want), value, attr)
	}
	assert.True(t, u.Anonymous())
}

func TestBuilderMarksAttributesPrivate(t *testing.T) {
	u := NewUserBuilder("some-key").
		Email("test@example.com").AsPrivateAttribute().
		Name("Lucy").
		Custom("group", ldvalue.String("microbattle")).AsPrivateAttribute().
		Build()

	assert.True(t, u.IsPrivateAttribute(EmailAttribute))
	assert.True(t, u.IsPrivateAttribute("group"))
	assert.False(t, u.IsPrivateAttribute(NameAttribute))
	assert.ElementsMatch(t, []string{EmailAttribute, "group"}, u.PrivateAttributeNames())

	// Private means hidden from analytics, not hidden from evaluation.
	value, ok := u.GetAttribute(EmailAttribute)
	assert.True(t, ok)
	assert.Equal(t, ldvalue.String("test@example.com"), value)
}

func TestNewUserBuilderFromUserCopiesEverything(t *testing.T) {
	original := NewUserBuilder("some-key").
		Secondary("s").
		Email("test@example.com").AsPrivateAttribute().
		Anonymous(true).
		Custom("group", ldvalue.String("microbattle")).
		Build()

	copied := NewUserBuilderFromUser(original).Build()
	assert.Equal(t, original, copied)
}

func TestBuilderFromUserCanModifyWithoutAffectingOriginal(t *testing.T) {
	original := NewUserBuilder("some-key").Email("a@example.com").Build()
	modified := NewUserBuilderFromUser(original).Email("b@example.com").Build()

	value, _ := original.GetAttribute(EmailAttribute)
	assert.Equal(t, ldvalue.String("a@example.com"), value)
	value, _ = modified.GetAttribute(EmailAttribute)
	assert.Equal(t, ldvalue.String("b@example.com"), value)
}

func TestCustomAttributeNamesAreSorted(t *testing.T) {
	u := NewUserBuilder("some-key").
		Custom("zebra", ldvalue.Int(1)).
		Custom("aardvark", ldvalue.Int(2)).
		Build()
	assert.Equal(t, []string{"aardvark", "zebra"}, u.CustomAttributeNames())
}
