// Package hostbus implements the bridge.Host collaborator over Redis,
// the way the teacher's bluetooth service exposes its own state and
// commands: lists for queued work, pub/sub for wakeups, a hash for
// small persistent lookups. Application packets cross the Redis
// boundary CBOR-encoded, so the wire shape survives independent of
// either side's Go struct layout.
package hostbus

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/librescoot/rs485-bridge/pkg/bridge"
)

const (
	outboundListKey  = "rs485:outbound"
	inboundListKey   = "rs485:inbound"
	inboundNotifyKey = "rs485:inbound:notify"
	recipientHashKey = "rs485:recipients"

	brPopTimeout = 1 * time.Second
)

// outboundEnvelope is what a host-side producer LPUSHes onto
// outboundListKey: a body destined for a single slave (by UID or
// explicit address) or, with both zero, a broadcast.
type outboundEnvelope struct {
	UID          uint32 `cbor:"uid"`
	SlaveAddress *byte  `cbor:"slave_address,omitempty"`
	Body         []byte `cbor:"body"`
}

// inboundEnvelope is what Bus.DispatchResponse LPUSHes onto
// inboundListKey for a host-side consumer to BRPOP.
type inboundEnvelope struct {
	UID          uint32 `cbor:"uid"`
	SlaveAddress byte   `cbor:"slave_address"`
	Body         []byte `cbor:"body"`
}

// Bus is a Redis-backed implementation of bridge.Host, plus the
// outbound-side watcher that feeds bridge.Engine.DispatchIn.
type Bus struct {
	rc *redisClient
}

// New dials Redis and pings it, mirroring the teacher's redis.New.
func New(addr, password string, db int) (*Bus, error) {
	rc, err := newRedisClient(addr, password, db)
	if err != nil {
		return nil, err
	}
	return &Bus{rc: rc}, nil
}

func (b *Bus) Close() error {
	return b.rc.Close()
}

// DispatchResponse implements bridge.Host. packet is an application
// segment (UID LE, length byte, body) as handed over by the engine's
// receive path; it is re-encoded as CBOR and pushed for any host-side
// consumer.
func (b *Bus) DispatchResponse(packet []byte) error {
	if len(packet) < 5 {
		return fmt.Errorf("hostbus: application packet too short (%d bytes)", len(packet))
	}
	uid := binary.LittleEndian.Uint32(packet[:4])
	appLen := int(packet[4])
	bodyEnd := appLen - 5
	if bodyEnd < 0 || 5+bodyEnd > len(packet) {
		bodyEnd = len(packet) - 5
	}
	body := make([]byte, bodyEnd)
	copy(body, packet[5:5+bodyEnd])

	env := inboundEnvelope{UID: uid, Body: body}
	if recorded, err := b.rc.HGet(recipientHashKey, recipientField(uid)); err == nil && recorded != "" {
		if n, err := strconv.Atoi(recorded); err == nil {
			env.SlaveAddress = byte(n)
		}
	}

	encoded, err := cbor.Marshal(env)
	if err != nil {
		return fmt.Errorf("hostbus: encoding inbound packet: %w", err)
	}
	if err := b.rc.LPush(inboundListKey, encoded); err != nil {
		return err
	}
	return b.rc.Publish(inboundNotifyKey, []byte("1"))
}

// AddRecipient implements bridge.Host, recording uid -> slaveAddress in
// a Redis hash so later outbound traffic for that UID can be routed
// directly instead of broadcast.
func (b *Bus) AddRecipient(uid uint32, slaveAddress byte) error {
	return b.rc.HSet(recipientHashKey, recipientField(uid), slaveAddress)
}

func recipientField(uid uint32) string {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uid)
	return hex.EncodeToString(buf[:])
}

// Dispatcher is the subset of bridge.Engine the outbound watcher needs;
// satisfied by *bridge.Engine.
type Dispatcher interface {
	DispatchIn(application []byte, recipient *bridge.Recipient) error
}

// WatchOutbound blocks, repeatedly BRPOPing outboundListKey and handing
// decoded packets to engine.DispatchIn, until stopCh closes. It is the
// host-to-bridge half of the bus, meant to run in its own goroutine
// alongside the engine.
func (b *Bus) WatchOutbound(engine Dispatcher, stopCh <-chan struct{}) {
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		result, err := b.rc.BRPop(brPopTimeout, outboundListKey)
		if err != nil {
			log.Printf("RS485: hostbus: BRPOP failed, retrying: %v", err)
			continue
		}
		if result == nil {
			continue
		}

		var env outboundEnvelope
		if err := cbor.Unmarshal([]byte(result[1]), &env); err != nil {
			log.Printf("RS485: hostbus: dropping malformed outbound packet: %v", err)
			continue
		}

		application := buildApplicationSegment(env.UID, env.Body)

		recipient := b.resolveRecipient(env)
		if err := engine.DispatchIn(application, recipient); err != nil {
			log.Printf("RS485: hostbus: dispatch-in failed: %v", err)
		}
	}
}

func (b *Bus) resolveRecipient(env outboundEnvelope) *bridge.Recipient {
	if env.SlaveAddress != nil {
		return &bridge.Recipient{Opaque: *env.SlaveAddress}
	}
	if env.UID == 0 {
		return nil
	}
	recorded, err := b.rc.HGet(recipientHashKey, recipientField(env.UID))
	if err != nil || recorded == "" {
		return nil
	}
	n, err := strconv.Atoi(recorded)
	if err != nil {
		return nil
	}
	return &bridge.Recipient{Opaque: byte(n)}
}

// buildApplicationSegment assembles the UID-prefixed, length-prefixed
// application payload the engine's queues expect (spec §4.7): 4 bytes
// UID little-endian, 1 length byte, then body.
func buildApplicationSegment(uid uint32, body []byte) []byte {
	out := make([]byte, 5+len(body))
	binary.LittleEndian.PutUint32(out[:4], uid)
	out[4] = byte(5 + len(body))
	copy(out[5:], body)
	return out
}
