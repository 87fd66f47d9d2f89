// Package internal contains implementation details that are shared across the SDK's exported
// packages but are not part of the public API.
package internal

import (
	"reflect"
	"sync"

	"github.com/launchdarkly/go-server-sdk-evalcore/interfaces"
)

// Arbitrary buffer size to make it less likely that we'll block when broadcasting to channels. It
// is still the consumer's responsibility to make sure they're reading the channel.
const subscriberChannelBufferLength = 10

// DataStoreStatusBroadcaster is the internal implementation of publish-subscribe for
// DataStoreStatus values. The pattern is reflection-based so the same machinery could back other
// status types if this module ever grows more of them; today the data store is the only component
// that reports status.
type DataStoreStatusBroadcaster struct {
	g *genericBroadcaster
}

// NewDataStoreStatusBroadcaster creates an instance of DataStoreStatusBroadcaster.
func NewDataStoreStatusBroadcaster() *DataStoreStatusBroadcaster {
	return &DataStoreStatusBroadcaster{
		g: newGenericBroadcaster(chan interfaces.DataStoreStatus(nil), (<-chan interfaces.DataStoreStatus)(nil)),
	}
}

// AddListener creates a new channel for listening to broadcast values. This is created with a
// small channel buffer, but it is the consumer's responsibility to consume the channel to avoid
// blocking an SDK goroutine.
func (b *DataStoreStatusBroadcaster) AddListener() <-chan interfaces.DataStoreStatus {
	ch, _ := b.g.addListenerInternal().(<-chan interfaces.DataStoreStatus)
	return ch
}

// RemoveListener stops broadcasting to a channel that was created with AddListener.
func (b *DataStoreStatusBroadcaster) RemoveListener(ch <-chan interfaces.DataStoreStatus) {
	b.g.removeListenerInternal(ch)
}

// Broadcast broadcasts a new value to the registered listeners, if any.
func (b *DataStoreStatusBroadcaster) Broadcast(value interfaces.DataStoreStatus) {
	b.g.broadcastInternal(value)
}

// Close closes all currently registered listener channels.
func (b *DataStoreStatusBroadcaster) Close() { b.g.close() }

// genericBroadcaster is a reflection-based generalized implementation of broadcasters.
type genericBroadcaster struct {
	channelType        reflect.Type
	receiveChannelType reflect.Type
	elementType        reflect.Type
	subscribers        []genericChannelPair
	lock               sync.Mutex
}

// genericChannelPair keeps track of both the channel used for sending (as a reflect.Value,
// because Value has methods for sending and closing) and the receive-only channel handed out to
// callers, since the two have different static types and cannot be compared directly.
type genericChannelPair struct {
	sendCh    reflect.Value
	receiveCh interface{}
}

// newGenericBroadcaster creates a genericBroadcaster that operates on the given channel type. If
// the types do not match the expected "chan X" / "<-chan X" pattern, it returns a stub that
// creates no channels and sends no values, so it cannot cause typecasting-related panics.
func newGenericBroadcaster(exampleChannel interface{}, exampleReceiveChannel interface{}) *genericBroadcaster {
	b := &genericBroadcaster{
		channelType:        reflect.TypeOf(exampleChannel),
		receiveChannelType: reflect.TypeOf(exampleReceiveChannel),
	}
	if b.channelType.Kind() != reflect.Chan || b.channelType.ChanDir() != reflect.BothDir {
		return &genericBroadcaster{}
	}
	if b.receiveChannelType.Kind() != reflect.Chan || b.receiveChannelType.ChanDir() != reflect.RecvDir {
		return &genericBroadcaster{}
	}
	if !b.channelType.ConvertibleTo(b.receiveChannelType) {
		return &genericBroadcaster{}
	}
	b.elementType = b.channelType.Elem()
	return b
}

func (b *genericBroadcaster) addListenerInternal() interface{} {
	if b.channelType == nil || b.receiveChannelType == nil {
		return nil
	}
	sendCh := reflect.MakeChan(b.channelType, subscriberChannelBufferLength)
	receiveCh := sendCh.Convert(b.receiveChannelType).Interface()
	chPair := genericChannelPair{sendCh: sendCh, receiveCh: receiveCh}
	b.lock.Lock()
	defer b.lock.Unlock()
	b.subscribers = append(b.subscribers, chPair)
	return receiveCh
}

func (b *genericBroadcaster) removeListenerInternal(ch interface{}) {
	b.lock.Lock()
	defer b.lock.Unlock()
	ss := b.subscribers
	for i, s := range ss {
		if s.receiveCh == ch {
			copy(ss[i:], ss[i+1:])
			ss[len(ss)-1] = genericChannelPair{}
			b.subscribers = ss[:len(ss)-1]
			s.sendCh.Close()
			break
		}
	}
}

func (b *genericBroadcaster) broadcastInternal(value interface{}) {
	if reflect.TypeOf(value) != b.elementType {
		return
	}
	var ss []genericChannelPair
	b.lock.Lock()
	if len(b.subscribers) > 0 {
		ss = make([]genericChannelPair, len(b.subscribers))
		copy(ss, b.subscribers)
	}
	b.lock.Unlock()
	if len(ss) > 0 {
		genericValue := reflect.ValueOf(value)
		for _, ch := range ss {
			ch.sendCh.Send(genericValue)
		}
	}
}

func (b *genericBroadcaster) close() {
	b.lock.Lock()
	defer b.lock.Unlock()
	for _, s := range b.subscribers {
		s.sendCh.Close()
	}
	b.subscribers = nil
}
