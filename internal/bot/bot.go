// Package bot wires chat events to the JM source: the command router,
// the per-command flows and the weekly quota reset.
package bot

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/charmbracelet/log"

	"github.com/misty02600/jmcomic-bot/config"
	"github.com/misty02600/jmcomic-bot/internal/jm"
	"github.com/misty02600/jmcomic-bot/internal/onebot"
	"github.com/misty02600/jmcomic-bot/internal/store"
)

// Source is the JM side of the bot: metadata, search, covers and the
// download pipeline.
type Source interface {
	GetPhotoDetail(ctx context.Context, id string) (*jm.PhotoDetail, error)
	SearchSite(ctx context.Context, query string) ([]jm.SearchResult, error)
	Download(ctx context.Context, detail *jm.PhotoDetail) (string, error)
	FetchCover(ctx context.Context, id string) ([]byte, error)
}

// Transport is the chat side: message delivery and group management.
type Transport interface {
	SendGroupMessage(ctx context.Context, groupID int64, segs ...onebot.Segment) (int64, error)
	SendPrivateMessage(ctx context.Context, userID int64, segs ...onebot.Segment) (int64, error)
	SendGroupForward(ctx context.Context, groupID int64, nodes []onebot.ForwardNode) error
	SendPrivateForward(ctx context.Context, userID int64, nodes []onebot.ForwardNode) error
	UploadGroupFile(ctx context.Context, groupID int64, path, name, folderID string) error
	UploadPrivateFile(ctx context.Context, userID int64, path, name string) error
	SetGroupBan(ctx context.Context, groupID, userID int64, duration time.Duration) error
	GroupMemberRole(ctx context.Context, groupID, userID int64) (string, error)
	GroupRootFolders(ctx context.Context, groupID int64) ([]onebot.Folder, error)
	CreateGroupFolder(ctx context.Context, groupID int64, name string) (string, error)
	DeleteMessage(ctx context.Context, messageID int64) error
}

const (
	metadataTimeout = 30 * time.Second
	confirmWindow   = 10 * time.Minute
)

type Bot struct {
	cfg   *config.Config
	store *store.Store
	src   Source
	tp    Transport
	log   *log.Logger

	mu      sync.Mutex
	pending map[string]time.Time // 关闭jm confirmations awaiting "确认"
}

func New(cfg *config.Config, st *store.Store, src Source, tp Transport, logger *log.Logger) *Bot {
	if logger == nil {
		logger = log.Default()
	}
	return &Bot{
		cfg:     cfg,
		store:   st,
		src:     src,
		tp:      tp,
		log:     logger,
		pending: map[string]time.Time{},
	}
}

// HandleHTTPEvent receives one OneBot HTTP event and dispatches it on
// its own goroutine so slow downloads never block the intake.
func (b *Bot) HandleHTTPEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	ev, err := onebot.ParseEvent(body)
	if err != nil {
		b.log.Warn("事件解析失败", "err", err)
		return
	}
	if ev.PostType != "message" {
		return
	}
	go b.handleEvent(context.Background(), ev)
}

func (b *Bot) handleEvent(ctx context.Context, ev *onebot.Event) {
	cmd, arg := splitCommand(ev.PlainText())
	if cmd == "" {
		return
	}

	switch cmd {
	case "jm下载":
		if b.gate(ev) {
			b.handleDownload(ctx, ev, arg)
		}
	case "jm查询":
		if b.gate(ev) {
			b.handleQuery(ctx, ev, arg)
		}
	case "jm搜索":
		if b.gate(ev) {
			b.handleSearch(ctx, ev, arg)
		}
	case "jm设置文件夹":
		if ev.IsGroup() && b.isGroupAdmin(ev) {
			b.handleSetFolder(ctx, ev, arg)
		}
	case "jm拉黑":
		if ev.IsGroup() && b.isGroupAdmin(ev) {
			b.handleBlacklistAdd(ctx, ev)
		}
	case "jm解除拉黑":
		if ev.IsGroup() && b.isGroupAdmin(ev) {
			b.handleBlacklistRemove(ctx, ev)
		}
	case "jm黑名单":
		if ev.IsGroup() && b.isGroupAdmin(ev) {
			b.handleBlacklistShow(ctx, ev)
		}
	case "jm启用群":
		if b.cfg.IsSuperuser(ev.UserID) {
			b.handleEnableGroups(ctx, ev, arg, true)
		}
	case "jm禁用群":
		if b.cfg.IsSuperuser(ev.UserID) {
			b.handleEnableGroups(ctx, ev, arg, false)
		}
	case "开启jm":
		if ev.IsGroup() && b.cfg.IsSuperuser(ev.UserID) {
			b.handleEnableHere(ctx, ev)
		}
	case "关闭jm":
		if ev.IsGroup() && b.isGroupAdmin(ev) {
			b.handleDisableHere(ctx, ev)
		}
	case "确认":
		if ev.IsGroup() && b.isGroupAdmin(ev) {
			b.handleDisableConfirm(ctx, ev)
		}
	case "jm禁用id":
		if b.cfg.IsSuperuser(ev.UserID) {
			b.handleRestrictIDs(ctx, ev, arg)
		}
	case "jm禁用tag":
		if b.cfg.IsSuperuser(ev.UserID) {
			b.handleRestrictTags(ctx, ev, arg)
		}
	case "jm帮助":
		if b.gate(ev) {
			b.handleHelp(ctx, ev)
		}
	}
}

// gate applies the group-level access policy for content commands.
// Private chats bypass both the enable toggle and the blacklist.
func (b *Bot) gate(ev *onebot.Event) bool {
	if !ev.IsGroup() {
		return ev.IsPrivate()
	}
	if !b.store.IsGroupEnabled(ev.GroupID) {
		return false
	}
	return !b.store.IsUserBlacklisted(ev.GroupID, ev.UserID)
}

// isGroupAdmin reports whether the sender may run management commands:
// superusers anywhere, group admins and owners in their group.
func (b *Bot) isGroupAdmin(ev *onebot.Event) bool {
	if b.cfg.IsSuperuser(ev.UserID) {
		return true
	}
	return ev.SenderRole == "admin" || ev.SenderRole == "owner"
}

// splitCommand separates the command token from its argument and
// lowercases the token's ASCII letters so JM下载 matches jm下载.
func splitCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ""
	}
	cmd, arg := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		cmd, arg = text[:i], strings.TrimSpace(text[i:])
	}
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, cmd), arg
}

func (b *Bot) reply(ctx context.Context, ev *onebot.Event, segs ...onebot.Segment) {
	var err error
	if ev.IsGroup() {
		_, err = b.tp.SendGroupMessage(ctx, ev.GroupID, segs...)
	} else {
		_, err = b.tp.SendPrivateMessage(ctx, ev.UserID, segs...)
	}
	if err != nil {
		b.log.Warn("回复发送失败", "user", ev.UserID, "err", err)
	}
}

func (b *Bot) replyText(ctx context.Context, ev *onebot.Event, text string) {
	b.reply(ctx, ev, onebot.Text(text))
}

// replyAt at-mentions the sender in groups and degrades to plain text
// in private chats.
func (b *Bot) replyAt(ctx context.Context, ev *onebot.Event, text string) {
	if ev.IsGroup() {
		b.reply(ctx, ev, onebot.At(ev.UserID), onebot.Text(text))
		return
	}
	b.replyText(ctx, ev, text)
}

func (b *Bot) sendForward(ctx context.Context, ev *onebot.Event, nodes []onebot.ForwardNode) error {
	if ev.IsGroup() {
		return b.tp.SendGroupForward(ctx, ev.GroupID, nodes)
	}
	return b.tp.SendPrivateForward(ctx, ev.UserID, nodes)
}

func (b *Bot) cardNode(segs ...onebot.Segment) onebot.ForwardNode {
	return onebot.ForwardNode{
		UserID:   b.cfg.CardUserID,
		Nickname: b.cfg.CardNickname,
		Content:  segs,
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
