// Package lduser defines the user type that flags are evaluated against.
//
// The only mandatory property is Key, which must uniquely identify each user. Besides Key,
// a user can have any number of built-in and custom attributes; both kinds are stored the
// same way internally and are available to clause matching and bucketing by name.
package lduser

import (
	"sort"

	"github.com/launchdarkly/go-server-sdk-evalcore/ldvalue"
)

// Built-in attribute names recognized by GetAttribute and by the evaluator's bucketing and
// clause-matching logic. Any other attribute name is treated as a custom attribute.
const (
	KeyAttribute          = "key"
	SecondaryKeyAttribute = "secondary"
	IPAttribute           = "ip"
	CountryAttribute      = "country"
	EmailAttribute        = "email"
	FirstNameAttribute    = "firstName"
	LastNameAttribute     = "lastName"
	AvatarAttribute       = "avatar"
	NameAttribute         = "name"
	AnonymousAttribute    = "anonymous"
)

// User contains the attributes of a user being evaluated against feature flags. The only
// mandatory property is Key, which must uniquely identify each user.
//
// A User should be treated as immutable once it has been passed to any evaluation method; use
// NewUserBuilder or NewUserBuilderFromUser to construct one piece by piece.
type User struct {
	key                   string
	secondary             ldvalue.Value
	anonymous             bool
	attributes            map[string]ldvalue.Value
	privateAttributeNames []string
}

// NewUser creates a new user identified by the given key, with no other attributes set.
func NewUser(key string) User {
	return User{key: key}
}

// NewAnonymousUser creates a new anonymous user identified by the given key.
func NewAnonymousUser(key string) User {
	return User{key: key, anonymous: true}
}

// Key returns the unique key of the user.
func (u User) Key() string { return u.key }

// Secondary returns the secondary key of the user, if any.
//
// When a flag's bucketing attribute is set to a value, the secondary key (if present) is
// appended to the bucketing value so that users who are otherwise identical according to that
// attribute can still be split into different buckets.
func (u User) Secondary() (string, bool) {
	if u.secondary.IsNull() {
		return "", false
	}
	return u.secondary.StringValue(), true
}

// Anonymous returns true if the user was constructed or built as anonymous.
func (u User) Anonymous() bool { return u.anonymous }

// GetAttribute returns the named attribute's value and whether it was set. The key attribute
// is always present; built-in attributes (see the *Attribute constants) and custom attributes
// are both looked up by name the same way.
func (u User) GetAttribute(name string) (ldvalue.Value, bool) {
	if name == KeyAttribute {
		return ldvalue.String(u.key), true
	}
	if name == AnonymousAttribute {
		if _, ok := u.attributes[AnonymousAttribute]; !ok && !u.anonymous {
			return ldvalue.Null(), false
		}
		return ldvalue.Bool(u.anonymous), true
	}
	if name == SecondaryKeyAttribute {
		return u.secondary, !u.secondary.IsNull()
	}
	v, ok := u.attributes[name]
	return v, ok
}

// PrivateAttributeNames returns the names of attributes that were marked private when the user
// was built, in no particular order.
func (u User) PrivateAttributeNames() []string {
	out := make([]string, len(u.privateAttributeNames))
	copy(out, u.privateAttributeNames)
	return out
}

// IsPrivateAttribute reports whether the given attribute name was marked private.
func (u User) IsPrivateAttribute(name string) bool {
	for _, n := range u.privateAttributeNames {
		if n == name {
			return true
		}
	}
	return false
}

// builtinAttributeNames is the set of built-in attribute names (see the *Attribute constants);
// CustomAttributeNames excludes them, even though most of them share the attributes map with
// custom attributes.
var builtinAttributeNames = map[string]bool{
	KeyAttribute:          true,
	SecondaryKeyAttribute: true,
	IPAttribute:           true,
	CountryAttribute:      true,
	EmailAttribute:        true,
	FirstNameAttribute:    true,
	LastNameAttribute:     true,
	AvatarAttribute:       true,
	NameAttribute:         true,
	AnonymousAttribute:    true,
}

// CustomAttributeNames returns the sorted names of all non-built-in attributes set on the user.
func (u User) CustomAttributeNames() []string {
	out := make([]string, 0, len(u.attributes))
	for k := range u.attributes {
		if builtinAttributeNames[k] {
			continue
		}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Builder is a mutable builder for constructing a User. Obtain one with NewUserBuilder or
// NewUserBuilderFromUser, call setters, then Build(). A Builder must not be used from more than
// one goroutine at a time.
type Builder interface {
	Key(value string) Builder
	Secondary(value string) BuilderCanMakeAttributePrivate
	IP(value string) BuilderCanMakeAttributePrivate
	Country(value string) BuilderCanMakeAttributePrivate
	Email(value string) BuilderCanMakeAttributePrivate
	FirstName(value string) BuilderCanMakeAttributePrivate
	LastName(value string) BuilderCanMakeAttributePrivate
	Avatar(value string) BuilderCanMakeAttributePrivate
	Name(value string) BuilderCanMakeAttributePrivate
	Anonymous(value bool) Builder
	Custom(name string, value ldvalue.Value) BuilderCanMakeAttributePrivate
	Build() User
}

// BuilderCanMakeAttributePrivate is a Builder whose most recently set attribute can be marked
// private via AsPrivateAttribute.
type BuilderCanMakeAttributePrivate interface {
	Builder
	AsPrivateAttribute() Builder
}

type builderImpl struct {
	key          string
	anonymous    bool
	attributes   map[string]ldvalue.Value
	privateAttrs map[string]bool
}

type builderCanMakeAttributePrivate struct {
	builder  *builderImpl
	attrName string
}

// NewUserBuilder constructs a new Builder, specifying the user key.
func NewUserBuilder(key string) Builder {
	return &builderImpl{key: key, attributes: make(map[string]ldvalue.Value)}
}

// NewUserBuilderFromUser constructs a new Builder, copying all attributes from an existing user.
func NewUserBuilderFromUser(from User) Builder {
	b := &builderImpl{
		key:        from.key,
		anonymous:  from.anonymous,
		attributes: make(map[string]ldvalue.Value, len(from.attributes)),
	}
	for k, v := range from.attributes {
		b.attributes[k] = v
	}
	if len(from.privateAttributeNames) > 0 {
		b.privateAttrs = make(map[string]bool, len(from.privateAttributeNames))
		for _, name := range from.privateAttributeNames {
			b.privateAttrs[name] = true
		}
	}
	if !from.secondary.IsNull() {
		b.attributes[SecondaryKeyAttribute] = from.secondary
	}
	return b
}

func (b *builderImpl) canMakeAttributePrivate(name string) BuilderCanMakeAttributePrivate {
	return &builderCanMakeAttributePrivate{builder: b, attrName: name}
}

func (b *builderImpl) Key(value string) Builder {
	b.key = value
	return b
}

func (b *builderImpl) Secondary(value string) BuilderCanMakeAttributePrivate {
	b.attributes[SecondaryKeyAttribute] = ldvalue.String(value)
	return b.canMakeAttributePrivate(SecondaryKeyAttribute)
}

func (b *builderImpl) IP(value string) BuilderCanMakeAttributePrivate {
	b.attributes[IPAttribute] = ldvalue.String(value)
	return b.canMakeAttributePrivate(IPAttribute)
}

func (b *builderImpl) Country(value string) BuilderCanMakeAttributePrivate {
	b.attributes[CountryAttribute] = ldvalue.String(value)
	return b.canMakeAttributePrivate(CountryAttribute)
}

func (b *builderImpl) Email(value string) BuilderCanMakeAttributePrivate {
	b.attributes[EmailAttribute] = ldvalue.String(value)
	return b.canMakeAttributePrivate(EmailAttribute)
}

func (b *builderImpl) FirstName(value string) BuilderCanMakeAttributePrivate {
	b.attributes[FirstNameAttribute] = ldvalue.String(value)
	return b.canMakeAttributePrivate(FirstNameAttribute)
}

func (b *builderImpl) LastName(value string) BuilderCanMakeAttributePrivate {
	b.attributes[LastNameAttribute] = ldvalue.String(value)
	return b.canMakeAttributePrivate(LastNameAttribute)
}

func (b *builderImpl) Avatar(value string) BuilderCanMakeAttributePrivate {
	b.attributes[AvatarAttribute] = ldvalue.String(value)
	return b.canMakeAttributePrivate(AvatarAttribute)
}

func (b *builderImpl) Name(value string) BuilderCanMakeAttributePrivate {
	b.attributes[NameAttribute] = ldvalue.String(value)
	return b.canMakeAttributePrivate(NameAttribute)
}

func (b *builderImpl) Anonymous(value bool) Builder {
	b.anonymous = value
	return b
}

func (b *builderImpl) Custom(name string, value ldvalue.Value) BuilderCanMakeAttributePrivate {
	b.attributes[name] = value
	return b.canMakeAttributePrivate(name)
}

func (b *builderImpl) Build() User {
	u := User{key: b.key, anonymous: b.anonymous}
	if len(b.attributes) > 0 {
		u.attributes = make(map[string]ldvalue.Value, len(b.attributes))
		for k, v := range b.attributes {
			if k == SecondaryKeyAttribute {
				u.secondary = v
				continue
			}
			u.attributes[k] = v
		}
	}
	if len(b.privateAttrs) > 0 {
		names := make([]string, 0, len(b.privateAttrs))
		for name, on := range b.privateAttrs {
			if on {
				names = append(names, name)
			}
		}
		u.privateAttributeNames = names
	}
	return u
}

// AsPrivateAttribute marks the most recently set attribute as private, meaning its value will
// not be included in analytics events for this user. Key and Anonymous cannot be made private;
// the builder methods for those return the plain Builder interface, so this method is only
// reachable for attributes that support it.
func (b *builderCanMakeAttributePrivate) AsPrivateAttribute() Builder {
	if b.builder.privateAttrs == nil {
		b.builder.privateAttrs = make(map[string]bool)
	}
	b.builder.privateAttrs[b.attrName] = true
	return b.builder
}

func (b *builderCanMakeAttributePrivate) Key(value string) Builder { return b.builder.Key(value) }
func (b *builderCanMakeAttributePrivate) Secondary(value string) BuilderCanMakeAttributePrivate {
	return b.builder.Secondary(value)
}
func (b *builderCanMakeAttributePrivate) IP(value string) BuilderCanMakeAttributePrivate {
	return b.builder.IP(value)
}
func (b *builderCanMakeAttributePrivate) Country(value string) BuilderCanMakeAttributePrivate {
	return b.builder.Country(value)
}
func (b *builderCanMakeAttributePrivate) Email(value string) BuilderCanMakeAttributePrivate {
	return b.builder.Email(value)
}
func (b *builderCanMakeAttributePrivate) FirstName(value string) BuilderCanMakeAttributePrivate {
	return b.builder.FirstName(value)
}
func (b *builderCanMakeAttributePrivate) LastName(value string) BuilderCanMakeAttributePrivate {
	return b.builder.LastName(value)
}
func (b *builderCanMakeAttributePrivate) Avatar(value string) BuilderCanMakeAttributePrivate {
	return b.builder.Avatar(value)
}
func (b *builderCanMakeAttributePrivate) Name(value string) BuilderCanMakeAttributePrivate {
	return b.builder.Name(value)
}
func (b *builderCanMakeAttributePrivate) Anonymous(value bool) Builder {
	return b.builder.Anonymous(value)
}
func (b *builderCanMakeAttributePrivate) Custom(name string, value ldvalue.Value) BuilderCanMakeAttributePrivate {
	return b.builder.Custom(name, value)
}
func (b *builderCanMakeAttributePrivate) Build() User { return b.builder.Build() }
