package rpchost

import (
	"context"
	"time"

	"github.com/jb-8200/asdlc-coord/internal/message"
)

func (h *Host) toolSchemas() []map[string]interface{} {
	return []map[string]interface{}{
		{"name": "coord_publish_message", "description": "Publish a coordination message to another instance."},
		{"name": "coord_check_messages", "description": "Query coordination messages."},
		{"name": "coord_ack_message", "description": "Acknowledge a coordination message."},
		{"name": "coord_get_presence", "description": "Get presence for all known instances."},
		{"name": "coord_get_notifications", "description": "Drain this instance's offline notification queue."},
		{"name": "coord_register_presence", "description": "Register this instance as present."},
		{"name": "coord_deregister_presence", "description": "Deregister this instance's presence."},
		{"name": "coord_heartbeat", "description": "Refresh this instance's heartbeat."},
	}
}

func (h *Host) registerTools() {
	h.Register("coord_publish_message", h.toolPublishMessage)
	h.Register("coord_check_messages", h.toolCheckMessages)
	h.Register("coord_ack_message", h.toolAckMessage)
	h.Register("coord_get_presence", h.toolGetPresence)
	h.Register("coord_get_notifications", h.toolGetNotifications)
	h.Register("coord_register_presence", h.toolRegisterPresence)
	h.Register("coord_deregister_presence", h.toolDeregisterPresence)
	h.Register("coord_heartbeat", h.toolHeartbeat)
}

func timeNow() time.Time { return time.Now().UTC() }

func argString(args map[string]interface{}, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

func argBool(args map[string]interface{}, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

func argInt(args map[string]interface{}, key string, def int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return def
}

func (h *Host) toolPublishMessage(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	if h.self == "" || h.self == "unknown" {
		return map[string]interface{}{
			"success": false,
			"error":   "sender identity is empty or unknown",
			"hint":    "set CLAUDE_INSTANCE_ID before starting the tool host",
		}, nil
	}

	typeStr := argString(args, "msg_type", "")
	typ, err := message.Parse(typeStr)
	if err != nil {
		return map[string]interface{}{
			"success":     false,
			"error":       "Invalid message type: " + typeStr,
			"valid_types": message.ValidTypeStrings(),
		}, nil
	}

	to := argString(args, "to_instance", "orchestrator")
	requiresAck := argBool(args, "requires_ack", true)
	subject := argString(args, "subject", "")
	description := argString(args, "description", "")

	env, err := h.client.Publish(ctx, typ, subject, description, h.self, to, requiresAck)
	if err != nil {
		return map[string]interface{}{"success": false, "error": err.Error()}, nil
	}

	return map[string]interface{}{
		"success":      true,
		"message_id":   env.ID,
		"type":         string(env.Type),
		"from":         env.From,
		"to":           env.To,
		"timestamp":    message.FormatTime(env.Timestamp),
		"requires_ack": env.RequiresAck,
	}, nil
}

func (h *Host) toolCheckMessages(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	q := message.Query{
		ToInstance:   argString(args, "to_instance", ""),
		FromInstance: argString(args, "from_instance", ""),
		PendingOnly:  argBool(args, "pending_only", false),
		Limit:        argInt(args, "limit", 100),
	}
	if t := argString(args, "msg_type", ""); t != "" {
		if parsed, err := message.Parse(t); err == nil {
			q.MsgType = parsed
		}
	}
	if s := argString(args, "since", ""); s != "" {
		if parsed, err := message.ParseTime(s); err == nil {
			q.Since = &parsed
		}
	}

	envs, err := h.client.Query(ctx, q)
	if err != nil {
		return map[string]interface{}{"success": false, "error": err.Error()}, nil
	}
	return map[string]interface{}{
		"success":  true,
		"count":    len(envs),
		"messages": envs,
	}, nil
}

func (h *Host) toolAckMessage(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	id := argString(args, "message_id", "")
	comment := argString(args, "comment", "")

	ok, err := h.client.Acknowledge(ctx, id, h.self, comment)
	if err != nil {
		return map[string]interface{}{"success": false, "error": err.Error()}, nil
	}
	if !ok {
		return map[string]interface{}{"success": false, "error": "Message not found: " + id}, nil
	}
	return map[string]interface{}{"success": true}, nil
}

func (h *Host) toolGetPresence(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	presence, err := h.client.GetPresence(ctx, h.cfg.PresenceTimeout())
	if err != nil {
		return map[string]interface{}{"success": false, "error": err.Error()}, nil
	}

	out := make(map[string]interface{}, len(presence))
	for inst, p := range presence {
		out[inst] = map[string]interface{}{
			"active":                  p.Active,
			"stale":                   p.Stale,
			"seconds_since_heartbeat": p.SecondsSinceHeartbeat,
			"session_id":              p.SessionID,
		}
	}
	return map[string]interface{}{"success": true, "presence": out}, nil
}

func (h *Host) toolGetNotifications(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	limit := h.cfg.ClampNotificationLimit(argInt(args, "limit", h.cfg.NotificationFetchCap))

	notifications, err := h.client.PopNotifications(ctx, h.self, limit)
	if err != nil {
		return map[string]interface{}{"success": false, "error": err.Error()}, nil
	}
	return map[string]interface{}{
		"success":       true,
		"count":         len(notifications),
		"notifications": notifications,
	}, nil
}

func (h *Host) toolRegisterPresence(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	role := argString(args, "role", h.self)
	sessionID := argString(args, "session_id", "")

	if err := h.client.Register(ctx, role, sessionID); err != nil {
		return map[string]interface{}{"success": false, "error": err.Error()}, nil
	}

	resp := map[string]interface{}{
		"success":       true,
		"role":          role,
		"registered_at": message.FormatTime(timeNow()),
	}
	if wt := argString(args, "worktree_path", ""); wt != "" {
		resp["worktree_path"] = wt
	}
	if sessionID != "" {
		resp["session_id"] = sessionID
	}
	return resp, nil
}

func (h *Host) toolDeregisterPresence(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	role := argString(args, "role", h.self)
	if err := h.client.Unregister(ctx, role); err != nil {
		return map[string]interface{}{"success": false, "error": err.Error()}, nil
	}
	return map[string]interface{}{"success": true}, nil
}

func (h *Host) toolHeartbeat(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	role := argString(args, "role", h.self)
	if err := h.client.Heartbeat(ctx, role); err != nil {
		return map[string]interface{}{"success": false, "error": err.Error()}, nil
	}
	return map[string]interface{}{"success": true}, nil
}
