// Package broker is the coordination broker's transactional engine:
// publish, get, query, acknowledge, register, heartbeat, unregister,
// get_presence, pop_notifications, and stats. It owns the multi-step
// write sequencing and the fan-out/enqueue decision for publish.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jb-8200/asdlc-coord/internal/config"
	"github.com/jb-8200/asdlc-coord/internal/kvstore"
	"github.com/jb-8200/asdlc-coord/internal/message"
)

// ErrIdentityInvalid is returned when from_instance is empty, "unknown",
// or does not match the client's own identity.
var ErrIdentityInvalid = errors.New("identity invalid")

// Client is the broker's transactional engine. One Client is
// constructed per tool-host process; it holds an adapter handle and
// the resolved caller identity, both immutable after construction.
type Client struct {
	adapter  kvstore.Adapter
	cfg      config.Config
	identity string
	log      zerolog.Logger

	// Broadcast inbox fan-out targets every instance that has ever
	// called Register or Heartbeat. The broker has no separate
	// "instance roster" key in the storage layout, so knownInstances
	// resolves that set by scanning the presence hash, which carries
	// every instance ever seen.
}

// New constructs a broker Client bound to a single resolved identity.
func New(adapter kvstore.Adapter, cfg config.Config, identity string, log zerolog.Logger) *Client {
	return &Client{adapter: adapter, cfg: cfg, identity: identity, log: log}
}

// Subscribe opens the client's own live notification channel plus the
// broadcast channel, for callers that want to observe publishes as
// they happen rather than waiting for the next PopNotifications drain.
func (c *Client) Subscribe(ctx context.Context) (kvstore.Subscription, error) {
	return c.adapter.Subscribe(ctx, c.cfg.InstanceChannel(c.identity), c.cfg.BroadcastChannel())
}

func newMessageID() string {
	u := uuid.New()
	return "msg-" + hex8(u)
}

func hex8(u uuid.UUID) string {
	const hexDigits = "0123456789abcdef"
	b := make([]byte, 8)
	raw := u[:4]
	for i, by := range raw {
		b[i*2] = hexDigits[by>>4]
		b[i*2+1] = hexDigits[by&0xf]
	}
	return string(b)
}

// Publish performs the full seven-step publish sequence documented in
// the component design: generate id, write envelope, add to timeline,
// trim timeline to cap, fan out to inbox(es), add to pending if
// requires_ack, then emit the live and offline notification.
//
// from must equal the client's own identity and must not be empty or
// "unknown"; type must be one of the closed set.
func (c *Client) Publish(ctx context.Context, typ message.Type, subject, description, from, to string, requiresAck bool) (message.Envelope, error) {
	if from == "" || from == "unknown" || from != c.identity {
		return message.Envelope{}, fmt.Errorf("%w: from_instance %q", ErrIdentityInvalid, from)
	}
	if _, err := message.Parse(string(typ)); err != nil {
		return message.Envelope{}, err
	}

	now := time.Now().UTC()
	env := message.Envelope{
		ID:           newMessageID(),
		Type:         typ,
		From:         from,
		To:           to,
		Timestamp:    now,
		RequiresAck:  requiresAck,
		Acknowledged: false,
		Payload:      message.Payload{Subject: subject, Description: description},
	}

	if err := c.writeEnvelope(ctx, env); err != nil {
		return message.Envelope{}, fmt.Errorf("writing envelope: %w", err)
	}

	score := float64(now.Unix())
	if err := c.adapter.ZAdd(ctx, c.cfg.TimelineKey(), score, env.ID); err != nil {
		return message.Envelope{}, fmt.Errorf("adding to timeline: %w", err)
	}
	if err := c.trimTimeline(ctx); err != nil {
		return message.Envelope{}, fmt.Errorf("trimming timeline: %w", err)
	}

	if to == "all" {
		instances, err := c.knownInstances(ctx)
		if err != nil {
			return message.Envelope{}, fmt.Errorf("listing known instances: %w", err)
		}
		for _, inst := range instances {
			if err := c.adapter.SAdd(ctx, c.cfg.InboxKey(inst), env.ID); err != nil {
				return message.Envelope{}, fmt.Errorf("adding to inbox %s: %w", inst, err)
			}
		}
	} else {
		if err := c.adapter.SAdd(ctx, c.cfg.InboxKey(to), env.ID); err != nil {
			return message.Envelope{}, fmt.Errorf("adding to inbox: %w", err)
		}
	}

	if requiresAck {
		if err := c.adapter.SAdd(ctx, c.cfg.PendingKey(), env.ID); err != nil {
			return message.Envelope{}, fmt.Errorf("adding to pending: %w", err)
		}
	}

	event := message.FromEnvelope(env)
	payload, err := json.Marshal(event)
	if err != nil {
		return message.Envelope{}, fmt.Errorf("encoding notification event: %w", err)
	}
	if err := c.adapter.Publish(ctx, c.cfg.InstanceChannel(to), string(payload)); err != nil {
		return message.Envelope{}, fmt.Errorf("publishing live notification: %w", err)
	}
	if to == "all" {
		if err := c.adapter.Publish(ctx, c.cfg.BroadcastChannel(), string(payload)); err != nil {
			return message.Envelope{}, fmt.Errorf("publishing broadcast notification: %w", err)
		}
	}
	if err := c.adapter.RPush(ctx, c.cfg.NotifyQueueKey(to), string(payload)); err != nil {
		return message.Envelope{}, fmt.Errorf("enqueueing offline notification: %w", err)
	}

	return env, nil
}

func (c *Client) writeEnvelope(ctx context.Context, env message.Envelope) error {
	fields, err := envelopeFields(env)
	if err != nil {
		return err
	}
	key := c.cfg.MessageKey(env.ID)
	if err := c.adapter.HSet(ctx, key, fields); err != nil {
		return err
	}
	return c.adapter.Expire(ctx, key, c.cfg.MessageTTL())
}

func (c *Client) trimTimeline(ctx context.Context) error {
	card, err := c.adapter.ZCard(ctx, c.cfg.TimelineKey())
	if err != nil {
		return err
	}
	maxSize := int64(c.cfg.TimelineMaxSize)
	if card <= maxSize {
		return nil
	}
	return c.adapter.ZRemRangeByRank(ctx, c.cfg.TimelineKey(), 0, card-maxSize-1)
}

// knownInstances returns every instance that has ever registered or
// heartbeat, derived from the presence hash field names.
func (c *Client) knownInstances(ctx context.Context) ([]string, error) {
	fields, err := c.adapter.HGetAll(ctx, c.cfg.PresenceKey())
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for field := range fields {
		inst, _, ok := splitPresenceField(field)
		if ok {
			seen[inst] = true
		}
	}
	out := make([]string, 0, len(seen))
	for inst := range seen {
		out = append(out, inst)
	}
	sort.Strings(out)
	return out, nil
}

// Get reads a single envelope by id. The bool is false if the id was
// never written or its TTL has elapsed.
func (c *Client) Get(ctx context.Context, id string) (message.Envelope, bool, error) {
	fields, err := c.adapter.HGetAll(ctx, c.cfg.MessageKey(id))
	if err != nil {
		return message.Envelope{}, false, err
	}
	if len(fields) == 0 {
		return message.Envelope{}, false, nil
	}
	env, err := envelopeFromFields(fields)
	if err != nil {
		return message.Envelope{}, false, err
	}
	return env, true, nil
}

// Query computes a candidate id set, filters it, and returns envelopes
// newest-first with ties broken by lexicographic id.
func (c *Client) Query(ctx context.Context, q message.Query) ([]message.Envelope, error) {
	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var candidates []string
	var err error
	switch {
	case q.ToInstance != "":
		candidates, err = c.adapter.SMembers(ctx, c.cfg.InboxKey(q.ToInstance))
	case q.PendingOnly:
		candidates, err = c.adapter.SMembers(ctx, c.cfg.PendingKey())
	default:
		candidates, err = c.adapter.ZRange(ctx, c.cfg.TimelineKey(), 0, -1, true)
	}
	if err != nil {
		return nil, err
	}

	var out []message.Envelope
	for _, id := range candidates {
		env, ok, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if q.FromInstance != "" && env.From != q.FromInstance {
			continue
		}
		if q.MsgType != "" && env.Type != q.MsgType {
			continue
		}
		if q.PendingOnly && env.Acknowledged {
			continue
		}
		if q.Since != nil && env.Timestamp.Before(*q.Since) {
			continue
		}
		out = append(out, env)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Acknowledge mutates the envelope's ack trio and removes it from
// pending. It is idempotent: calling it twice converges to the same
// terminal state and returns true both times. Returns false only if
// the envelope does not exist.
func (c *Client) Acknowledge(ctx context.Context, id, ackBy, comment string) (bool, error) {
	env, ok, err := c.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	now := time.Now().UTC()
	env.Acknowledged = true
	env.AckBy = ackBy
	env.AckTimestamp = &now
	env.AckComment = comment

	if err := c.writeEnvelope(ctx, env); err != nil {
		return false, err
	}
	if err := c.adapter.SRem(ctx, c.cfg.PendingKey(), id); err != nil {
		return false, err
	}
	return true, nil
}

// Register writes active=1, last_heartbeat=now, and, if provided,
// session_id, overwriting prior values.
func (c *Client) Register(ctx context.Context, instance, sessionID string) error {
	fields := map[string]string{
		presenceField(instance, "active"):         "1",
		presenceField(instance, "last_heartbeat"): strconv.FormatInt(time.Now().UTC().Unix(), 10),
	}
	if sessionID != "" {
		fields[presenceField(instance, "session_id")] = sessionID
	}
	return c.adapter.HSet(ctx, c.cfg.PresenceKey(), fields)
}

// Heartbeat refreshes last_heartbeat only; it does not flip active
// back to true on its own.
func (c *Client) Heartbeat(ctx context.Context, instance string) error {
	return c.adapter.HSet(ctx, c.cfg.PresenceKey(), map[string]string{
		presenceField(instance, "last_heartbeat"): strconv.FormatInt(time.Now().UTC().Unix(), 10),
	})
}

// Unregister deletes active and session_id, preserving last_heartbeat
// for historical inspection.
func (c *Client) Unregister(ctx context.Context, instance string) error {
	return c.adapter.HDel(ctx, c.cfg.PresenceKey(),
		presenceField(instance, "active"),
		presenceField(instance, "session_id"),
	)
}

// GetPresence reads the presence hash and returns a derived record per
// instance: active is stored-active AND not stale. Missing
// last_heartbeat is treated as infinitely stale.
func (c *Client) GetPresence(ctx context.Context, staleness time.Duration) (map[string]message.Presence, error) {
	raw, err := c.adapter.HGetAll(ctx, c.cfg.PresenceKey())
	if err != nil {
		return nil, err
	}

	byInstance := map[string]*message.Presence{}
	get := func(inst string) *message.Presence {
		p, ok := byInstance[inst]
		if !ok {
			p = &message.Presence{InstanceID: inst}
			byInstance[inst] = p
		}
		return p
	}
	for field, val := range raw {
		inst, suffix, ok := splitPresenceField(field)
		if !ok {
			continue
		}
		p := get(inst)
		switch suffix {
		case "active":
			p.StoredActive = val == "1"
		case "last_heartbeat":
			if secs, err := strconv.ParseInt(val, 10, 64); err == nil {
				t := time.Unix(secs, 0).UTC()
				p.LastHeartbeat = &t
			}
		case "session_id":
			p.SessionID = val
		}
	}

	now := time.Now().UTC()
	out := make(map[string]message.Presence, len(byInstance))
	for inst, p := range byInstance {
		p.Stale = message.IsStale(p.LastHeartbeat, now, staleness)
		p.Active = p.StoredActive && !p.Stale
		if p.LastHeartbeat != nil {
			p.SecondsSinceHeartbeat = now.Sub(*p.LastHeartbeat).Seconds()
		}
		out[inst] = *p
	}
	return out, nil
}

// PopNotifications left-pops up to limit entries from instance's
// offline list, oldest first. limit=0 returns [] without touching the
// list; limit is capped to 1000 by the caller via config.
func (c *Client) PopNotifications(ctx context.Context, instance string, limit int) ([]message.NotificationEvent, error) {
	if limit <= 0 {
		return nil, nil
	}
	raw, err := c.adapter.LPop(ctx, c.cfg.NotifyQueueKey(instance), limit)
	if err != nil {
		return nil, err
	}
	out := make([]message.NotificationEvent, 0, len(raw))
	for _, s := range raw {
		var ev message.NotificationEvent
		if err := json.Unmarshal([]byte(s), &ev); err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed queued notification")
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Stats computes totals over the capped timeline, per type, and the
// active-instance count/list from GetPresence.
func (c *Client) Stats(ctx context.Context, staleness time.Duration) (message.Stats, error) {
	ids, err := c.adapter.ZRange(ctx, c.cfg.TimelineKey(), 0, -1, false)
	if err != nil {
		return message.Stats{}, err
	}

	byType := map[string]int{}
	total := 0
	for _, id := range ids {
		env, ok, err := c.Get(ctx, id)
		if err != nil {
			return message.Stats{}, err
		}
		if !ok {
			continue
		}
		total++
		byType[string(env.Type)]++
	}

	pendingIDs, err := c.adapter.SMembers(ctx, c.cfg.PendingKey())
	if err != nil {
		return message.Stats{}, err
	}

	presence, err := c.GetPresence(ctx, staleness)
	if err != nil {
		return message.Stats{}, err
	}
	var names []string
	for inst, p := range presence {
		if p.Active {
			names = append(names, inst)
		}
	}
	sort.Strings(names)

	return message.Stats{
		TotalMessages:   total,
		PendingMessages: len(pendingIDs),
		MessagesByType:  byType,
		ActiveInstances: len(names),
		InstanceNames:   names,
	}, nil
}

func presenceField(instance, suffix string) string {
	return instance + "." + suffix
}

// splitPresenceField reverses presenceField by matching one of the
// three known field suffixes; fields with any other suffix are
// rejected.
func splitPresenceField(field string) (instance, suffix string, ok bool) {
	for _, s := range []string{".active", ".last_heartbeat", ".session_id"} {
		if len(field) > len(s) && field[len(field)-len(s):] == s {
			return field[:len(field)-len(s)], s[1:], true
		}
	}
	return "", "", false
}

func envelopeFields(env message.Envelope) (map[string]string, error) {
	fields := map[string]string{
		"id":           env.ID,
		"type":         string(env.Type),
		"from":         env.From,
		"to":           env.To,
		"timestamp":    message.FormatTime(env.Timestamp),
		"requires_ack": strconv.FormatBool(env.RequiresAck),
		"acknowledged": strconv.FormatBool(env.Acknowledged),
	}
	payload, err := json.Marshal(env.Payload)
	if err != nil {
		return nil, err
	}
	fields["payload"] = string(payload)
	if env.AckBy != "" {
		fields["ack_by"] = env.AckBy
	}
	if env.AckTimestamp != nil {
		fields["ack_timestamp"] = message.FormatTime(*env.AckTimestamp)
	}
	if env.AckComment != "" {
		fields["ack_comment"] = env.AckComment
	}
	return fields, nil
}

func envelopeFromFields(fields map[string]string) (message.Envelope, error) {
	ts, err := message.ParseTime(fields["timestamp"])
	if err != nil {
		return message.Envelope{}, fmt.Errorf("parsing stored timestamp: %w", err)
	}
	var payload message.Payload
	if err := json.Unmarshal([]byte(fields["payload"]), &payload); err != nil {
		return message.Envelope{}, fmt.Errorf("parsing stored payload: %w", err)
	}
	env := message.Envelope{
		ID:           fields["id"],
		Type:         message.Type(fields["type"]),
		From:         fields["from"],
		To:           fields["to"],
		Timestamp:    ts,
		RequiresAck:  fields["requires_ack"] == "true",
		Acknowledged: fields["acknowledged"] == "true",
		Payload:      payload,
		AckBy:        fields["ack_by"],
		AckComment:   fields["ack_comment"],
	}
	if v, ok := fields["ack_timestamp"]; ok && v != "" {
		at, err := message.ParseTime(v)
		if err != nil {
			return message.Envelope{}, fmt.Errorf("parsing stored ack_timestamp: %w", err)
		}
		env.AckTimestamp = &at
	}
	return env, nil
}
