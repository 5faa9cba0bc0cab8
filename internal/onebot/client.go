// Package onebot implements the OneBot v11 surface the bot needs:
// event parsing plus an action RPC over a napcat websocket. Responses
// are matched to requests by echo value.
package onebot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/rs/xid"
)

const (
	defaultTimeout = 10 * time.Second
	uploadTimeout  = 120 * time.Second
)

type Client struct {
	url   string
	token string
	log   *log.Logger
}

func NewClient(url, token string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{url: url, token: token, log: logger}
}

// call dials the action endpoint, writes one action frame and reads
// until the response with the matching echo arrives.
func (c *Client) call(ctx context.Context, action string, params map[string]any, timeout time.Duration) (map[string]any, error) {
	h := http.Header{}
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, h)
	if err != nil {
		return nil, fmt.Errorf("dial onebot: %w", err)
	}
	defer conn.Close()

	echo := action + "_" + xid.New().String()
	payload := map[string]any{"action": action, "params": params, "echo": echo}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		var resp map[string]any
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if respEcho, _ := resp["echo"].(string); respEcho != echo {
			continue
		}
		if status, _ := resp["status"].(string); status != "ok" {
			return resp, fmt.Errorf("onebot action %s failed: %v", action, resp["wording"])
		}
		data, _ := resp["data"].(map[string]any)
		return data, nil
	}
}

func messageIDOf(data map[string]any) int64 {
	if data == nil {
		return 0
	}
	if v, ok := data["message_id"].(float64); ok {
		return int64(v)
	}
	return 0
}

// SendGroupMessage sends segments to a group and returns the message id.
func (c *Client) SendGroupMessage(ctx context.Context, groupID int64, segs ...Segment) (int64, error) {
	data, err := c.call(ctx, "send_group_msg", map[string]any{
		"group_id": groupID,
		"message":  segmentsToPayload(segs),
	}, defaultTimeout)
	return messageIDOf(data), err
}

func (c *Client) SendPrivateMessage(ctx context.Context, userID int64, segs ...Segment) (int64, error) {
	data, err := c.call(ctx, "send_private_msg", map[string]any{
		"user_id": userID,
		"message": segmentsToPayload(segs),
	}, defaultTimeout)
	return messageIDOf(data), err
}

func (c *Client) SendGroupForward(ctx context.Context, groupID int64, nodes []ForwardNode) error {
	msg := make([]Segment, 0, len(nodes))
	for _, n := range nodes {
		msg = append(msg, n.toSegment())
	}
	_, err := c.call(ctx, "send_group_forward_msg", map[string]any{
		"group_id": groupID,
		"message":  segmentsToPayload(msg),
	}, defaultTimeout)
	return err
}

func (c *Client) SendPrivateForward(ctx context.Context, userID int64, nodes []ForwardNode) error {
	msg := make([]Segment, 0, len(nodes))
	for _, n := range nodes {
		msg = append(msg, n.toSegment())
	}
	_, err := c.call(ctx, "send_private_forward_msg", map[string]any{
		"user_id": userID,
		"message": segmentsToPayload(msg),
	}, defaultTimeout)
	return err
}

// UploadGroupFile uploads a local file into a group, optionally into a
// previously created folder.
func (c *Client) UploadGroupFile(ctx context.Context, groupID int64, path, name, folderID string) error {
	params := map[string]any{
		"group_id": groupID,
		"file":     path,
		"name":     name,
	}
	if folderID != "" {
		params["folder_id"] = folderID
	}
	_, err := c.call(ctx, "upload_group_file", params, uploadTimeout)
	return err
}

func (c *Client) UploadPrivateFile(ctx context.Context, userID int64, path, name string) error {
	_, err := c.call(ctx, "upload_private_file", map[string]any{
		"user_id": userID,
		"file":    path,
		"name":    name,
	}, uploadTimeout)
	return err
}

func (c *Client) SetGroupBan(ctx context.Context, groupID, userID int64, duration time.Duration) error {
	_, err := c.call(ctx, "set_group_ban", map[string]any{
		"group_id": groupID,
		"user_id":  userID,
		"duration": int64(duration.Seconds()),
	}, defaultTimeout)
	return err
}

// GroupMemberRole resolves a member's role: "owner", "admin" or "member".
func (c *Client) GroupMemberRole(ctx context.Context, groupID, userID int64) (string, error) {
	data, err := c.call(ctx, "get_group_member_info", map[string]any{
		"group_id": groupID,
		"user_id":  userID,
	}, defaultTimeout)
	if err != nil {
		return "", err
	}
	role, _ := data["role"].(string)
	return role, nil
}

// Folder is a remote group file folder.
type Folder struct {
	ID   string
	Name string
}

func (c *Client) GroupRootFolders(ctx context.Context, groupID int64) ([]Folder, error) {
	data, err := c.call(ctx, "get_group_root_files", map[string]any{
		"group_id": groupID,
	}, defaultTimeout)
	if err != nil {
		return nil, err
	}
	items, _ := data["folders"].([]any)
	folders := make([]Folder, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["folder_id"].(string)
		name, _ := m["folder_name"].(string)
		folders = append(folders, Folder{ID: id, Name: name})
	}
	return folders, nil
}

// CreateGroupFolder creates a folder under the group root and returns
// its id.
func (c *Client) CreateGroupFolder(ctx context.Context, groupID int64, name string) (string, error) {
	data, err := c.call(ctx, "create_group_file_folder", map[string]any{
		"group_id":    groupID,
		"folder_name": name,
	}, defaultTimeout)
	if err != nil {
		return "", err
	}
	if item, ok := data["groupItem"].(map[string]any); ok {
		if info, ok := item["folderInfo"].(map[string]any); ok {
			if id, ok := info["folderId"].(string); ok && id != "" {
				return id, nil
			}
		}
	}
	return "", fmt.Errorf("create folder %q: no folder id in response", name)
}

func (c *Client) DeleteMessage(ctx context.Context, messageID int64) error {
	_, err := c.call(ctx, "delete_msg", map[string]any{
		"message_id": messageID,
	}, defaultTimeout)
	return err
}
