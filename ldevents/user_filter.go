package ldevents

import (
	"encoding/json"

	"github.com/launchdarkly/go-server-sdk-evalcore/ldlog"
	"github.com/launchdarkly/go-server-sdk-evalcore/lduser"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldvalue"
)

type filteredUser struct {
	Key          string                   `json:"key"`
	Secondary    *string                  `json:"secondary,omitempty"`
	IP           *string                  `json:"ip,omitempty"`
	Country      *string                  `json:"country,omitempty"`
	Email        *string                  `json:"email,omitempty"`
	FirstName    *string                  `json:"firstName,omitempty"`
	LastName     *string                  `json:"lastName,omitempty"`
	Avatar       *string                  `json:"avatar,omitempty"`
	Name         *string                  `json:"name,omitempty"`
	Anonymous    *bool                    `json:"anonymous,omitempty"`
	Custom       map[string]ldvalue.Value `json:"custom,omitempty"`
	PrivateAttrs []string                 `json:"privateAttrs,omitempty"`
}

type serializableUser struct {
	filteredUser filteredUser
	filter       *userFilter
}

type userFilter struct {
	allAttributesPrivate    bool
	globalPrivateAttributes []string
	loggers                 ldlog.Loggers
	logUserKeyInErrors      bool
}

func newUserFilter(config EventsConfiguration) userFilter {
	return userFilter{
		allAttributesPrivate:    config.AllAttributesPrivate,
		globalPrivateAttributes: config.PrivateAttributeNames,
		loggers:                 config.Loggers,
		logUserKeyInErrors:      config.LogUserKeyInErrors,
	}
}

const userSerializationErrorMessage = "An error occurred while processing custom attributes for %s. If this" +
	" is a concurrent modification error, check that you are not modifying custom attributes in a User after" +
	" you have evaluated a flag with that User. The custom attributes for this user have been dropped from" +
	" analytics data. Error: %s"

var builtinOptionalStringAttrs = []struct {
	name string
	set  func(*filteredUser, string)
}{
	{lduser.SecondaryKeyAttribute, func(f *filteredUser, v string) { f.Secondary = &v }},
	{lduser.IPAttribute, func(f *filteredUser, v string) { f.IP = &v }},
	{lduser.CountryAttribute, func(f *filteredUser, v string) { f.Country = &v }},
	{lduser.EmailAttribute, func(f *filteredUser, v string) { f.Email = &v }},
	{lduser.FirstNameAttribute, func(f *filteredUser, v string) { f.FirstName = &v }},
	{lduser.LastNameAttribute, func(f *filteredUser, v string) { f.LastName = &v }},
	{lduser.AvatarAttribute, func(f *filteredUser, v string) { f.Avatar = &v }},
	{lduser.NameAttribute, func(f *filteredUser, v string) { f.Name = &v }},
}

// scrubUser returns a JSON-serializable projection of user with private attributes removed, per
// the AllAttributesPrivate/PrivateAttributeNames configuration and the user's own private
// attribute names.
func (uf *userFilter) scrubUser(user lduser.User) *serializableUser {
	ret := &serializableUser{filter: uf}
	ret.filteredUser.Key = user.Key()
	if user.Anonymous() {
		anon := true
		ret.filteredUser.Anonymous = &anon
	}

	isPrivate := func(name string) bool {
		if uf.allAttributesPrivate || user.IsPrivateAttribute(name) {
			return true
		}
		for _, a := range uf.globalPrivateAttributes {
			if a == name {
				return true
			}
		}
		return false
	}

	var privateAttrs []string
	for _, attr := range builtinOptionalStringAttrs {
		v, ok := user.GetAttribute(attr.name)
		if !ok || v.IsNull() {
			continue
		}
		if isPrivate(attr.name) {
			privateAttrs = append(privateAttrs, attr.name)
			continue
		}
		attr.set(&ret.filteredUser, v.StringValue())
	}

	customNames := user.CustomAttributeNames()
	if len(customNames) > 0 {
		// Any panics from this point on (presumably due to concurrent modification of the user's
		// attributes) are caught here; in that case the custom attributes for this user are dropped.
		defer func() {
			if r := recover(); r != nil {
				uf.loggers.Errorf(userSerializationErrorMessage,
					describeUserForErrorLog(ret.filteredUser.Key, uf.logUserKeyInErrors), r)
				ret.filteredUser.Custom = nil
			}
		}()
		custom := make(map[string]ldvalue.Value, len(customNames))
		for _, name := range customNames {
			if isPrivate(name) {
				privateAttrs = append(privateAttrs, name)
				continue
			}
			if v, ok := user.GetAttribute(name); ok {
				custom[name] = v
			}
		}
		if len(custom) > 0 {
			ret.filteredUser.Custom = custom
		}
	}

	ret.filteredUser.PrivateAttrs = privateAttrs
	return ret
}

func (u serializableUser) MarshalJSON() (output []byte, err error) {
	marshalWithoutCustomAttrs := func(cause interface{}) ([]byte, error) {
		if me, ok := cause.(*json.MarshalerError); ok {
			cause = me.Err
		}
		u.filter.loggers.Errorf(userSerializationErrorMessage,
			describeUserForErrorLog(u.filteredUser.Key, u.filter.logUserKeyInErrors), cause)
		u.filteredUser.Custom = nil
		return json.Marshal(u.filteredUser)
	}
	defer func() {
		if r := recover(); r != nil {
			output, err = marshalWithoutCustomAttrs(r)
		}
	}()
	output, err = json.Marshal(u.filteredUser)
	if err != nil {
		output, err = marshalWithoutCustomAttrs(err)
	}
	return
}
